// Package projector implements CatalogProjector (spec.md §4.5): assembling
// a full HikariCatalog from the relational graph, filtered by metadata or
// by deployment name.
package projector

import (
	"context"
	"fmt"

	"github.com/theinhumaneme/hikari/internal/catalog"
	"github.com/theinhumaneme/hikari/internal/db"
)

// CatalogVersion is the fixed version stamped onto every projected catalog,
// per spec.md §4.5 step 4.
const CatalogVersion = "1"

// deploymentSource, stackSource, and containerSource are the narrow slices
// of db.Repository the Projector needs — declared here so tests can supply
// fakes instead of a real connection pool.
type deploymentSource interface {
	FindByMetadata(ctx context.Context, client, environment, solution string) ([]db.DeploymentRow, error)
	FindByName(ctx context.Context, name string) (*db.DeploymentRow, error)
}

type stackSource interface {
	FindByDeployment(ctx context.Context, deploymentID int64) ([]db.StackRow, error)
}

type containerSource interface {
	FindByStack(ctx context.Context, stackID int64) ([]db.ContainerRow, error)
}

// Projector builds HikariCatalog values from a Repository.
type Projector struct {
	Deployments deploymentSource
	Stacks      stackSource
	Containers  containerSource
}

// New creates a Projector over repo.
func New(repo *db.Repository) *Projector {
	return &Projector{Deployments: repo.Deployments, Stacks: repo.Stacks, Containers: repo.Containers}
}

// ByMetadata builds the catalog containing only deployments matching
// (client, environment, solution).
func (p *Projector) ByMetadata(ctx context.Context, client, environment, solution string) (*catalog.HikariCatalog, error) {
	rows, err := p.Deployments.FindByMetadata(ctx, client, environment, solution)
	if err != nil {
		return nil, fmt.Errorf("loading deployments: %w", err)
	}
	return p.build(ctx, rows)
}

// ByName builds the catalog containing only the named deployment.
func (p *Projector) ByName(ctx context.Context, name string) (*catalog.HikariCatalog, error) {
	row, err := p.Deployments.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading deployment %s: %w", name, err)
	}
	return p.build(ctx, []db.DeploymentRow{*row})
}

// build walks each Deployment's stack_ids (in Repository order) and each
// Stack's container_ids, assembling the nested catalog structures and
// validating the result before returning, per spec.md §4.5.
func (p *Projector) build(ctx context.Context, deployments []db.DeploymentRow) (*catalog.HikariCatalog, error) {
	out := &catalog.HikariCatalog{
		Version:       CatalogVersion,
		DeployConfigs: make(map[string]catalog.Deployment, len(deployments)),
	}

	for _, depRow := range deployments {
		stackRows, err := p.Stacks.FindByDeployment(ctx, depRow.ID)
		if err != nil {
			return nil, fmt.Errorf("loading stacks for deployment %s: %w", depRow.Name, err)
		}

		stacks := make([]catalog.Stack, 0, len(stackRows))
		for _, stackRow := range stackRows {
			containerRows, err := p.Containers.FindByStack(ctx, stackRow.ID)
			if err != nil {
				return nil, fmt.Errorf("loading containers for stack %s: %w", stackRow.StackName, err)
			}

			services := make(map[string]catalog.Container, len(containerRows))
			for _, c := range containerRows {
				services[c.ServiceName] = catalog.Container{
					ContainerName:  c.ContainerName,
					Image:          c.Image,
					Restart:        c.Restart,
					User:           c.User.String,
					StdinOpen:      c.StdinOpen,
					TTY:            c.TTY,
					Command:        c.Command.String,
					WorkingDir:     c.WorkingDir.String,
					PullPolicy:     c.PullPolicy.String,
					Ports:          []string(c.Ports),
					Volumes:        []string(c.Volumes),
					Environment:    []string(c.Environment),
					MemReservation: c.MemReservation.String,
					MemLimit:       c.MemLimit.String,
					OOMKillDisable: c.OOMKillDisable,
					Privileged:     c.Privileged,
				}
			}

			stacks = append(stacks, catalog.Stack{
				StackName:   stackRow.StackName,
				Filename:    stackRow.Filename,
				HomeDir:     stackRow.HomeDirectory,
				ComposeSpec: catalog.ComposeSpec{Services: services},
			})
		}

		out.DeployConfigs[depRow.Name] = catalog.Deployment{
			Name:         depRow.Name,
			Client:       depRow.Client,
			Environment:  depRow.Environment,
			Solution:     depRow.Solution,
			DeployStacks: stacks,
		}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
