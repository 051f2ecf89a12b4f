package compose

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/theinhumaneme/hikari/internal/catalog"
)

func TestMaterializeWritesComposeFile(t *testing.T) {
	dir := t.TempDir()
	r := New("docker", nil)

	spec := catalog.ComposeSpec{
		Services: map[string]catalog.Container{
			"web": {ContainerName: "web", Image: "nginx:1.27", Restart: "unless-stopped"},
		},
	}

	path, err := r.Materialize(filepath.Join(dir, "sub"), "docker-compose.yaml", spec)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading materialized file: %v", err)
	}
	if !strings.Contains(string(data), "nginx:1.27") {
		t.Errorf("expected materialized compose file to contain image, got:\n%s", data)
	}
}

func TestMaterializeOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	r := New("docker", nil)
	spec := catalog.ComposeSpec{Services: map[string]catalog.Container{
		"web": {ContainerName: "web", Image: "nginx:1", Restart: "always"},
	}}
	path, err := r.Materialize(dir, "docker-compose.yaml", spec)
	if err != nil {
		t.Fatal(err)
	}

	spec.Services["web"] = catalog.Container{ContainerName: "web", Image: "nginx:2", Restart: "always"}
	if _, err := r.Materialize(dir, "docker-compose.yaml", spec); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "nginx:1") || !strings.Contains(string(data), "nginx:2") {
		t.Errorf("expected overwrite to nginx:2, got:\n%s", data)
	}
}

// TestRunSucceedsAgainstStubBinary exercises the real spawn/stream/wait path
// against a fake "docker" that mimics `compose -f <path> <op>` by echoing to
// stdout and stderr, skipped on platforms without /bin/sh.
func TestRunSucceedsAgainstStubBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub binary is a shell script")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "docker")
	script := "#!/bin/sh\necho stdout-line\necho stderr-line 1>&2\nexit 0\n"
	if err := os.WriteFile(stub, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	r := New(stub, nil)
	ok := r.Up(context.Background(), filepath.Join(dir, "docker-compose.yaml"))
	if !ok {
		t.Error("expected Up against a zero-exit stub to report success")
	}
}

func TestRunReportsFailureOnNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub binary is a shell script")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "docker")
	script := "#!/bin/sh\nexit 1\n"
	if err := os.WriteFile(stub, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	r := New(stub, nil)
	if r.Down(context.Background(), filepath.Join(dir, "docker-compose.yaml")) {
		t.Error("expected Down against a non-zero-exit stub to report failure")
	}
}

