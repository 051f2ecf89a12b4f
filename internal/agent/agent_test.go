package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/theinhumaneme/hikari/internal/catalog"
	"github.com/theinhumaneme/hikari/internal/config"
)

type fakeRunner struct {
	materializeCalls, pullCalls, upCalls, downCalls int
}

func (f *fakeRunner) Materialize(homeDir, filename string, spec catalog.ComposeSpec) (string, error) {
	f.materializeCalls++
	return filepath.Join(homeDir, filename), nil
}
func (f *fakeRunner) Pull(ctx context.Context, path string) bool { f.pullCalls++; return true }
func (f *fakeRunner) Up(ctx context.Context, path string) bool   { f.upCalls++; return true }
func (f *fakeRunner) Down(ctx context.Context, path string) bool { f.downCalls++; return true }

func testAgent(t *testing.T, catalogJSON string) (*Agent, *fakeRunner) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(catalogJSON)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	refPath := filepath.Join(t.TempDir(), "reference.json")
	identity := config.NodeIdentity{Version: "1", Client: "acme", Environment: "prod", Solution: "s1"}
	cfg := config.AgentConfig{ServerURL: srv.URL, ReferenceFilePath: refPath}
	runner := &fakeRunner{}
	return New(identity, cfg, runner, nil), runner
}

func TestBootstrapStartsNewDeployment(t *testing.T) {
	cat := `{"version":"1","deploy_configs":{"d1":{"name":"d1","client":"acme","environment":"prod","solution":"s1",
		"deploy_stacks":[{"stack_name":"web","filename":"web.yaml","home_directory":"/srv",
		"compose_spec":{"services":{"app":{"container_name":"app","image":"nginx","restart":"always"}}}}]}}}`
	a, runner := testAgent(t, cat)

	if err := a.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	if runner.upCalls != 1 {
		t.Errorf("up calls = %d, want 1", runner.upCalls)
	}

	written, err := catalog.Load(a.Cfg.ReferenceFilePath)
	if err != nil {
		t.Fatalf("loading written reference: %v", err)
	}
	if _, ok := written.DeployConfigs["d1"]; !ok {
		t.Error("expected reference file to contain deployment d1")
	}
}

func TestBootstrapFailsFatallyOnVersionMismatch(t *testing.T) {
	cat := `{"version":"2","deploy_configs":{}}`
	a, _ := testAgent(t, cat)

	err := a.Bootstrap(context.Background())
	if err == nil {
		t.Fatal("expected error on version mismatch")
	}
	if _, ok := err.(*FatalError); !ok {
		t.Errorf("expected *FatalError, got %T: %v", err, err)
	}
}

func TestWebsocketURLDerivesWSScheme(t *testing.T) {
	identity := config.NodeIdentity{Version: "1", Client: "acme", Environment: "prod", Solution: "s1"}
	cfg := config.AgentConfig{ServerURL: "http://hikari.example.com", ReferenceFilePath: "/tmp/ref.json"}
	a := New(identity, cfg, &fakeRunner{}, nil)

	u, err := a.websocketURL()
	if err != nil {
		t.Fatal(err)
	}
	want := "ws://hikari.example.com/ws?client=acme&environment=prod&solution=s1"
	if u != want {
		t.Errorf("websocketURL = %q, want %q", u, want)
	}
}
