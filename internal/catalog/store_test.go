package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsurePlaceholderWritesMinimalDoc(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.json")

	if err := EnsurePlaceholder(path); err != nil {
		t.Fatalf("EnsurePlaceholder: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading placeholder: %v", err)
	}
	if string(data) != placeholderCatalog {
		t.Errorf("got %q, want %q", data, placeholderCatalog)
	}
}

func TestEnsurePlaceholderLeavesExistingFileAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.json")
	if err := os.WriteFile(path, []byte(`{"version":"7","deploy_configs":{}}`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := EnsurePlaceholder(path); err != nil {
		t.Fatalf("EnsurePlaceholder: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) == placeholderCatalog {
		t.Error("EnsurePlaceholder overwrote an existing reference file")
	}
}

func TestLoadRoundTripsThroughReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.json")

	c := validCatalog()
	if err := Replace(path, c); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version != c.Version {
		t.Errorf("version mismatch: got %q want %q", loaded.Version, c.Version)
	}
	if len(loaded.DeployConfigs) != len(c.DeployConfigs) {
		t.Errorf("deploy_configs length mismatch: got %d want %d", len(loaded.DeployConfigs), len(c.DeployConfigs))
	}
}

func TestLoadRejectsInvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.json")
	if err := os.WriteFile(path, []byte(`{"version":"","deploy_configs":{}}`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for empty version")
	}
}
