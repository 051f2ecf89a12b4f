package projector

import (
	"context"
	"database/sql"
	"testing"

	"github.com/theinhumaneme/hikari/internal/db"
)

type fakeDeployments struct {
	byMetadata []db.DeploymentRow
	byName     map[string]db.DeploymentRow
}

func (f *fakeDeployments) FindByMetadata(ctx context.Context, client, environment, solution string) ([]db.DeploymentRow, error) {
	return f.byMetadata, nil
}

func (f *fakeDeployments) FindByName(ctx context.Context, name string) (*db.DeploymentRow, error) {
	row, ok := f.byName[name]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &row, nil
}

type fakeStacks struct {
	byDeployment map[int64][]db.StackRow
}

func (f *fakeStacks) FindByDeployment(ctx context.Context, deploymentID int64) ([]db.StackRow, error) {
	return f.byDeployment[deploymentID], nil
}

type fakeContainers struct {
	byStack map[int64][]db.ContainerRow
}

func (f *fakeContainers) FindByStack(ctx context.Context, stackID int64) ([]db.ContainerRow, error) {
	return f.byStack[stackID], nil
}

func testProjector() (*Projector, *fakeDeployments, *fakeStacks, *fakeContainers) {
	deployments := &fakeDeployments{
		byMetadata: []db.DeploymentRow{{ID: 1, Name: "acme-prod-web", Client: "acme", Environment: "prod", Solution: "web"}},
		byName:     map[string]db.DeploymentRow{"acme-prod-web": {ID: 1, Name: "acme-prod-web", Client: "acme", Environment: "prod", Solution: "web"}},
	}
	stacks := &fakeStacks{byDeployment: map[int64][]db.StackRow{
		1: {{ID: 10, DeploymentID: 1, StackName: "core", Filename: "core.yaml", HomeDirectory: "/srv/acme"}},
	}}
	containers := &fakeContainers{byStack: map[int64][]db.ContainerRow{
		10: {{
			ID: 100, StackID: 10, ServiceName: "web", ContainerName: "web-1",
			Image: "nginx:latest", Restart: "always",
			User: sql.NullString{String: "www-data", Valid: true},
		}},
	}}
	p := &Projector{Deployments: deployments, Stacks: stacks, Containers: containers}
	return p, deployments, stacks, containers
}

func TestByMetadataAssemblesNestedCatalog(t *testing.T) {
	p, _, _, _ := testProjector()

	cat, err := p.ByMetadata(context.Background(), "acme", "prod", "web")
	if err != nil {
		t.Fatalf("ByMetadata returned error: %v", err)
	}
	if cat.Version != CatalogVersion {
		t.Errorf("version = %q, want %q", cat.Version, CatalogVersion)
	}
	dep, ok := cat.DeployConfigs["acme-prod-web"]
	if !ok {
		t.Fatal("expected deployment acme-prod-web in catalog")
	}
	if len(dep.DeployStacks) != 1 || dep.DeployStacks[0].StackName != "core" {
		t.Fatalf("unexpected stacks: %+v", dep.DeployStacks)
	}
	svc, ok := dep.DeployStacks[0].ComposeSpec.Services["web"]
	if !ok {
		t.Fatal("expected service 'web' in stack")
	}
	if svc.Image != "nginx:latest" || svc.User != "www-data" {
		t.Errorf("unexpected container: %+v", svc)
	}
}

func TestByNameReturnsSingleDeployment(t *testing.T) {
	p, _, _, _ := testProjector()

	cat, err := p.ByName(context.Background(), "acme-prod-web")
	if err != nil {
		t.Fatalf("ByName returned error: %v", err)
	}
	if len(cat.DeployConfigs) != 1 {
		t.Fatalf("expected exactly one deployment, got %d", len(cat.DeployConfigs))
	}
}

func TestByNameReturnsNotFoundForMissingDeployment(t *testing.T) {
	p, _, _, _ := testProjector()

	if _, err := p.ByName(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing deployment")
	}
}

func TestBuildRejectsDuplicateStackNameAcrossMetadataFilter(t *testing.T) {
	p, deployments, stacks, containers := testProjector()
	// Two deployments sharing a duplicate stack_name within one of them
	// should fail Validate() regardless of which query surfaced them.
	deployments.byMetadata = append(deployments.byMetadata, db.DeploymentRow{
		ID: 2, Name: "acme-prod-api", Client: "acme", Environment: "prod", Solution: "api",
	})
	stacks.byDeployment[2] = []db.StackRow{
		{ID: 20, DeploymentID: 2, StackName: "core", Filename: "a.yaml", HomeDirectory: "/srv/acme"},
		{ID: 21, DeploymentID: 2, StackName: "core", Filename: "b.yaml", HomeDirectory: "/srv/acme"},
	}
	// Give both stacks a valid service so the duplicate name is the only defect.
	containers.byStack[20] = containers.byStack[10]
	containers.byStack[21] = containers.byStack[10]

	if _, err := p.ByMetadata(context.Background(), "acme", "prod", "web"); err == nil {
		t.Fatal("expected validation error for duplicate stack_name")
	}
}
