package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hikari.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadNodeIdentityFromFile(t *testing.T) {
	path := writeTOML(t, `
[identity]
version = "1"
client = "acme"
environment = "prod"
solution = "s1"
`)

	id, err := LoadNodeIdentity(path)
	if err != nil {
		t.Fatalf("LoadNodeIdentity returned error: %v", err)
	}
	if id.Client != "acme" || id.Environment != "prod" || id.Solution != "s1" {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestLoadNodeIdentityEnvOverridesFile(t *testing.T) {
	path := writeTOML(t, `
[identity]
version = "1"
client = "acme"
environment = "prod"
solution = "s1"
`)
	t.Setenv("HIKARI_CLIENT", "globex")

	id, err := LoadNodeIdentity(path)
	if err != nil {
		t.Fatalf("LoadNodeIdentity returned error: %v", err)
	}
	if id.Client != "globex" {
		t.Errorf("client = %q, want env override %q", id.Client, "globex")
	}
}

func TestLoadNodeIdentityRejectsMissingFields(t *testing.T) {
	path := writeTOML(t, `
[identity]
version = "1"
client = "acme"
`)
	if _, err := LoadNodeIdentity(path); err == nil {
		t.Fatal("expected error for missing environment/solution")
	}
}

func TestLoadUpdateOptionsAppliesDefaultPollInterval(t *testing.T) {
	path := writeTOML(t, `
[update]
remote_url = "https://hikari.example.com/bundle"
encrypted_file_path = "/var/lib/hikari/bundle.enc"
decrypted_file_path = "/var/lib/hikari/bundle.json"
reference_file_path = "/var/lib/hikari/reference.json"
`)

	opts, err := LoadUpdateOptions(path)
	if err != nil {
		t.Fatalf("LoadUpdateOptions returned error: %v", err)
	}
	if opts.PollInterval != 60 {
		t.Errorf("poll_interval = %d, want default 60", opts.PollInterval)
	}
}

func TestLoadServerConfigRequiresDatabaseURL(t *testing.T) {
	path := writeTOML(t, `
[server]
bind_address = "0.0.0.0:9000"
`)
	if _, err := LoadServerConfig(path); err == nil {
		t.Fatal("expected error for missing database_url")
	}
}

func TestLoadServerConfigAppliesDefaults(t *testing.T) {
	path := writeTOML(t, `
[server]
database_url = "postgres://localhost/hikari"
`)

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig returned error: %v", err)
	}
	if cfg.BindAddress != "0.0.0.0:9000" {
		t.Errorf("bind_address = %q, want default", cfg.BindAddress)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:*" {
		t.Errorf("cors_origins = %v, want default wildcard", cfg.CORSOrigins)
	}
}

func TestLoadAgentConfigRequiresServerURL(t *testing.T) {
	path := writeTOML(t, `
[agent]
reference_file_path = "/var/lib/hikari/reference.json"
`)
	if _, err := LoadAgentConfig(path); err == nil {
		t.Fatal("expected error for missing server_url")
	}
}
