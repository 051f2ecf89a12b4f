package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ContainerRow is the relational shape of a catalog.Container. Optional
// scalar fields use sql.NullString/bool zero values rather than pointers to
// keep sqlx struct-scanning straightforward; list fields use pq.StringArray
// to map onto Postgres text[] columns.
type ContainerRow struct {
	ID             int64          `db:"id"`
	StackID        int64          `db:"stack_id"`
	ServiceName    string         `db:"service_name"`
	ContainerName  string         `db:"container_name"`
	Image          string         `db:"image"`
	Restart        string         `db:"restart"`
	User           sql.NullString `db:"user_name"`
	StdinOpen      bool           `db:"stdin_open"`
	TTY            bool           `db:"tty"`
	Command        sql.NullString `db:"command"`
	WorkingDir     sql.NullString `db:"working_dir"`
	PullPolicy     sql.NullString `db:"pull_policy"`
	Ports          pq.StringArray `db:"ports"`
	Volumes        pq.StringArray `db:"volumes"`
	Environment    pq.StringArray `db:"environment"`
	MemReservation sql.NullString `db:"mem_reservation"`
	MemLimit       sql.NullString `db:"mem_limit"`
	OOMKillDisable bool           `db:"oom_kill_disable"`
	Privileged     bool           `db:"privileged"`
}

var containerColumns = []string{
	"id", "stack_id", "service_name", "container_name", "image", "restart",
	"user_name", "stdin_open", "tty", "command", "working_dir", "pull_policy",
	"ports", "volumes", "environment", "mem_reservation", "mem_limit",
	"oom_kill_disable", "privileged",
}

// ContainerRepo is the Repository's entity repository for Containers.
type ContainerRepo struct{ db *sqlx.DB }

func (r *ContainerRepo) Exists(ctx context.Context, id int64) (bool, error) {
	q, args, err := builder.Select("1").From("containers").Where("id = ?", id).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = r.db.GetContext(ctx, &one, r.db.Rebind(q), args...)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapError("containers.exists", err)
	}
	return true, nil
}

func (r *ContainerRepo) FindByID(ctx context.Context, id int64) (*ContainerRow, error) {
	q, args, err := builder.Select(containerColumns...).From("containers").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, err
	}
	var row ContainerRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("containers.find_by_id", err)
	}
	return &row, nil
}

func (r *ContainerRepo) FindByStack(ctx context.Context, stackID int64) ([]ContainerRow, error) {
	q, args, err := builder.Select(containerColumns...).From("containers").
		Where("stack_id = ?", stackID).OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []ContainerRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("containers.find_by_stack", err)
	}
	return rows, nil
}

func (r *ContainerRepo) FindAll(ctx context.Context) ([]ContainerRow, error) {
	q, args, err := builder.Select(containerColumns...).From("containers").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []ContainerRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("containers.find_all", err)
	}
	return rows, nil
}

func (r *ContainerRepo) Create(ctx context.Context, c ContainerRow) (*ContainerRow, error) {
	q, args, err := builder.Insert("containers").
		Columns("stack_id", "service_name", "container_name", "image", "restart",
			"user_name", "stdin_open", "tty", "command", "working_dir", "pull_policy",
			"ports", "volumes", "environment", "mem_reservation", "mem_limit",
			"oom_kill_disable", "privileged").
		Values(c.StackID, c.ServiceName, c.ContainerName, c.Image, c.Restart,
			c.User, c.StdinOpen, c.TTY, c.Command, c.WorkingDir, c.PullPolicy,
			c.Ports, c.Volumes, c.Environment, c.MemReservation, c.MemLimit,
			c.OOMKillDisable, c.Privileged).
		Suffix("RETURNING " + columnsList()).
		ToSql()
	if err != nil {
		return nil, err
	}
	var row ContainerRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("containers.create", err)
	}
	return &row, nil
}

func (r *ContainerRepo) Update(ctx context.Context, c ContainerRow) (bool, error) {
	q, args, err := builder.Update("containers").
		Set("service_name", c.ServiceName).
		Set("container_name", c.ContainerName).
		Set("image", c.Image).
		Set("restart", c.Restart).
		Set("user_name", c.User).
		Set("stdin_open", c.StdinOpen).
		Set("tty", c.TTY).
		Set("command", c.Command).
		Set("working_dir", c.WorkingDir).
		Set("pull_policy", c.PullPolicy).
		Set("ports", c.Ports).
		Set("volumes", c.Volumes).
		Set("environment", c.Environment).
		Set("mem_reservation", c.MemReservation).
		Set("mem_limit", c.MemLimit).
		Set("oom_kill_disable", c.OOMKillDisable).
		Set("privileged", c.Privileged).
		Where("id = ?", c.ID).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return false, mapError("containers.update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError("containers.update", err)
	}
	return n > 0, nil
}

func (r *ContainerRepo) Delete(ctx context.Context, id int64) (*ContainerRow, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	q, args, err := builder.Delete("containers").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("containers.delete", err)
	}
	return existing, nil
}

// DeploymentMetadata walks Container -> Stack -> Deployment, per spec.md
// §4.4.
func (r *ContainerRepo) DeploymentMetadata(ctx context.Context, containerID int64, stacks *StackRepo, deployments *DeploymentRepo) (*DeploymentRow, error) {
	c, err := r.FindByID(ctx, containerID)
	if err != nil {
		return nil, err
	}
	return stacks.DeploymentMetadata(ctx, c.StackID, deployments)
}

func columnsList() string {
	return strings.Join(containerColumns, ", ")
}
