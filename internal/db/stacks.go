package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// StackRow is the relational shape of a catalog.Stack, without its
// Containers (loaded separately by CatalogProjector).
type StackRow struct {
	ID            int64  `db:"id"`
	DeploymentID  int64  `db:"deployment_id"`
	StackName     string `db:"stack_name"`
	Filename      string `db:"filename"`
	HomeDirectory string `db:"home_directory"`
}

// StackRepo is the Repository's entity repository for Stacks.
type StackRepo struct{ db *sqlx.DB }

func (r *StackRepo) Exists(ctx context.Context, id int64) (bool, error) {
	q, args, err := builder.Select("1").From("stacks").Where("id = ?", id).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = r.db.GetContext(ctx, &one, r.db.Rebind(q), args...)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapError("stacks.exists", err)
	}
	return true, nil
}

func (r *StackRepo) FindByID(ctx context.Context, id int64) (*StackRow, error) {
	q, args, err := builder.Select("id", "deployment_id", "stack_name", "filename", "home_directory").
		From("stacks").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, err
	}
	var row StackRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("stacks.find_by_id", err)
	}
	return &row, nil
}

// FindByDeployment returns a deployment's stacks in their stable stack_id
// order, as CatalogProjector requires.
func (r *StackRepo) FindByDeployment(ctx context.Context, deploymentID int64) ([]StackRow, error) {
	q, args, err := builder.Select("id", "deployment_id", "stack_name", "filename", "home_directory").
		From("stacks").Where("deployment_id = ?", deploymentID).OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []StackRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("stacks.find_by_deployment", err)
	}
	return rows, nil
}

func (r *StackRepo) FindAll(ctx context.Context) ([]StackRow, error) {
	q, args, err := builder.Select("id", "deployment_id", "stack_name", "filename", "home_directory").
		From("stacks").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []StackRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("stacks.find_all", err)
	}
	return rows, nil
}

// Create inserts the stack without checking its parent deployment first (the
// AdminAPI performs that check explicitly); a DB-level FK violation is
// surfaced as ErrFKViolation regardless, per spec.md §4.4.
func (r *StackRepo) Create(ctx context.Context, s StackRow) (*StackRow, error) {
	q, args, err := builder.Insert("stacks").
		Columns("deployment_id", "stack_name", "filename", "home_directory").
		Values(s.DeploymentID, s.StackName, s.Filename, s.HomeDirectory).
		Suffix("RETURNING id, deployment_id, stack_name, filename, home_directory").
		ToSql()
	if err != nil {
		return nil, err
	}
	var row StackRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("stacks.create", err)
	}
	return &row, nil
}

func (r *StackRepo) Update(ctx context.Context, s StackRow) (bool, error) {
	q, args, err := builder.Update("stacks").
		Set("stack_name", s.StackName).
		Set("filename", s.Filename).
		Set("home_directory", s.HomeDirectory).
		Where("id = ?", s.ID).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return false, mapError("stacks.update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError("stacks.update", err)
	}
	return n > 0, nil
}

func (r *StackRepo) Delete(ctx context.Context, id int64) (*StackRow, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	q, args, err := builder.Delete("stacks").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("stacks.delete", err)
	}
	return existing, nil
}

// DeploymentMetadata walks Stack -> Deployment, per spec.md §4.4.
func (r *StackRepo) DeploymentMetadata(ctx context.Context, stackID int64, deployments *DeploymentRepo) (*DeploymentRow, error) {
	stack, err := r.FindByID(ctx, stackID)
	if err != nil {
		return nil, err
	}
	return deployments.FindByID(ctx, stack.DeploymentID)
}
