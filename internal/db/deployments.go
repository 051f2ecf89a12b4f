package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// DeploymentRow is the relational shape of a catalog.Deployment, without
// its Stacks (loaded separately by CatalogProjector).
type DeploymentRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Client      string `db:"client"`
	Environment string `db:"environment"`
	Solution    string `db:"solution"`
}

// DeploymentRepo is the Repository's entity repository for Deployments.
type DeploymentRepo struct{ db *sqlx.DB }

func (r *DeploymentRepo) Exists(ctx context.Context, id int64) (bool, error) {
	q, args, err := builder.Select("1").From("deployments").Where("id = ?", id).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = r.db.GetContext(ctx, &one, r.db.Rebind(q), args...)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapError("deployments.exists", err)
	}
	return true, nil
}

func (r *DeploymentRepo) FindByID(ctx context.Context, id int64) (*DeploymentRow, error) {
	q, args, err := builder.Select("id", "name", "client", "environment", "solution").
		From("deployments").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, err
	}
	var row DeploymentRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("deployments.find_by_id", err)
	}
	return &row, nil
}

func (r *DeploymentRepo) FindByName(ctx context.Context, name string) (*DeploymentRow, error) {
	q, args, err := builder.Select("id", "name", "client", "environment", "solution").
		From("deployments").Where("name = ?", name).ToSql()
	if err != nil {
		return nil, err
	}
	var row DeploymentRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("deployments.find_by_name", err)
	}
	return &row, nil
}

func (r *DeploymentRepo) FindAll(ctx context.Context) ([]DeploymentRow, error) {
	q, args, err := builder.Select("id", "name", "client", "environment", "solution").
		From("deployments").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []DeploymentRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("deployments.find_all", err)
	}
	return rows, nil
}

// FindByMetadata supports CatalogProjector's filter-by-target query.
func (r *DeploymentRepo) FindByMetadata(ctx context.Context, client, environment, solution string) ([]DeploymentRow, error) {
	q, args, err := builder.Select("id", "name", "client", "environment", "solution").
		From("deployments").
		Where("client = ? AND environment = ? AND solution = ?", client, environment, solution).
		OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	var rows []DeploymentRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("deployments.find_by_metadata", err)
	}
	return rows, nil
}

func (r *DeploymentRepo) Create(ctx context.Context, d DeploymentRow) (*DeploymentRow, error) {
	q, args, err := builder.Insert("deployments").
		Columns("name", "client", "environment", "solution").
		Values(d.Name, d.Client, d.Environment, d.Solution).
		Suffix("RETURNING id, name, client, environment, solution").
		ToSql()
	if err != nil {
		return nil, err
	}
	var row DeploymentRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("deployments.create", err)
	}
	return &row, nil
}

// Update returns true iff a row changed.
func (r *DeploymentRepo) Update(ctx context.Context, d DeploymentRow) (bool, error) {
	q, args, err := builder.Update("deployments").
		Set("name", d.Name).
		Set("client", d.Client).
		Set("environment", d.Environment).
		Set("solution", d.Solution).
		Where("id = ?", d.ID).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return false, mapError("deployments.update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError("deployments.update", err)
	}
	return n > 0, nil
}

// Delete removes the deployment (cascading to its stacks and containers per
// the schema's ON DELETE CASCADE FKs) and returns the deleted record.
func (r *DeploymentRepo) Delete(ctx context.Context, id int64) (*DeploymentRow, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	q, args, err := builder.Delete("deployments").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...); err != nil {
		return nil, mapError("deployments.delete", err)
	}
	return existing, nil
}

// DeploymentMetadata returns the deployment itself — the base case of the
// child -> owning-Deployment walk used to pick a Notifier target.
func (r *DeploymentRepo) DeploymentMetadata(ctx context.Context, id int64) (*DeploymentRow, error) {
	return r.FindByID(ctx, id)
}
