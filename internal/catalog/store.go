package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// placeholderCatalog is the minimal valid document written on first run.
const placeholderCatalog = `{"version":"1","deploy_configs":{}}`

// Load reads a node's local reference catalog from disk, parses it, and
// runs full validation, returning a *ValidationError naming the offending
// field path on failure.
func Load(path string) (*HikariCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference catalog %s: %w", path, err)
	}

	var c HikariCatalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing reference catalog %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// EnsurePlaceholder writes a minimal valid catalog document to path if no
// file exists there yet. Safe to call on every process start.
func EnsurePlaceholder(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking reference catalog %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating reference catalog directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, []byte(placeholderCatalog), 0644); err != nil {
		return fmt.Errorf("writing placeholder catalog %s: %w", path, err)
	}
	return nil
}

// Replace overwrites the reference file with catalog. Writes to a temp file
// in the same directory and renames over the target so a crash mid-write
// never leaves a torn reference file.
func Replace(path string, c *HikariCatalog) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing reference catalog: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".catalog-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp reference file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("writing temp reference file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp reference file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing reference catalog %s: %w", path, err)
	}
	return nil
}
