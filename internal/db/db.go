// Package db implements the server-side Repository (spec.md §4.4): CRUD for
// Deployment, Stack, and Container entities over a relational store, with
// referential-integrity error mapping and reverse lookup from a child
// entity to its owning Deployment's broadcast metadata.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // also registers the "postgres" sql driver via init()
)

// Pool bounds per spec.md §5: bounded at >=20 min, <=50 max, idle timeout
// 1800s.
const (
	maxOpenConns    = 50
	maxIdleConns    = 20
	connMaxIdleTime = 1800 * time.Second
)

// Postgres error codes mapped to caller-visible categories, per spec.md
// §4.4/§7.
const (
	pqUniqueViolation pq.ErrorCode = "23505"
	pqFKViolation     pq.ErrorCode = "23503"
)

// ErrNotFound indicates no row matched the requested id.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a unique-constraint violation (e.g. duplicate
// stack_name within a deployment).
var ErrConflict = errors.New("conflicting record")

// ErrFKViolation indicates a referenced parent does not exist.
var ErrFKViolation = errors.New("foreign key violation")

// Error wraps an underlying database error with the operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("db: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// builder is the shared squirrel statement builder using Postgres's $N
// placeholder format.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository is the server's handle on the relational deployment graph: one
// connection pool shared by the Deployments, Stacks, and Containers entity
// repositories.
type Repository struct {
	db          *sqlx.DB
	Deployments *DeploymentRepo
	Stacks      *StackRepo
	Containers  *ContainerRepo
}

// Open connects to databaseURL, configures the pool bounds, and returns a
// ready Repository.
func Open(databaseURL string) (*Repository, error) {
	conn, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxIdleConns)
	conn.SetConnMaxIdleTime(connMaxIdleTime)

	return &Repository{
		db:          conn,
		Deployments: &DeploymentRepo{db: conn},
		Stacks:      &StackRepo{db: conn},
		Containers:  &ContainerRepo{db: conn},
	}, nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error { return r.db.Close() }

// mapError translates a raw database error into the caller-visible
// categories of spec.md §4.4/§7.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrConflict
		case pqFKViolation:
			return ErrFKViolation
		}
	}
	return &Error{Op: op, Err: err}
}
