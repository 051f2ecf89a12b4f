// Package config loads the typed configuration records a node or server
// process is constructed from: NodeIdentity, UpdateOptions, AgentConfig, and
// ServerConfig, bound from a TOML file plus HIKARI_* environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// NodeIdentity identifies which catalog version and (client, environment,
// solution) target a node reconciles, per spec.md §6.
type NodeIdentity struct {
	Version     string `mapstructure:"version"`
	Client      string `mapstructure:"client"`
	Environment string `mapstructure:"environment"`
	Solution    string `mapstructure:"solution"`
}

// UpdateOptions configures the Daemon's poll/decrypt/reconcile loop, per
// spec.md §6.
type UpdateOptions struct {
	RemoteURL         string `mapstructure:"remote_url"`
	PollInterval      int    `mapstructure:"poll_interval"`
	EncryptedFilePath string `mapstructure:"encrypted_file_path"`
	DecryptedFilePath string `mapstructure:"decrypted_file_path"`
	ReferenceFilePath string `mapstructure:"reference_file_path"`
}

// AgentConfig configures the Agent's push-subscribe loop. Only
// ReferenceFilePath and ServerURL are required, per spec.md §6.
type AgentConfig struct {
	ServerURL         string `mapstructure:"server_url"`
	ReferenceFilePath string `mapstructure:"reference_file_path"`
}

// ServerConfig configures the AdminAPI process.
type ServerConfig struct {
	BindAddress string   `mapstructure:"bind_address"`
	DatabaseURL string   `mapstructure:"database_url"`
	APIKey      string   `mapstructure:"api_key"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// defaultServerConfig mirrors the teacher's default-then-overlay idiom:
// sensible defaults, then a config file (if present) layered on top, then
// environment variables taking final precedence.
func defaultServerConfig() ServerConfig {
	return ServerConfig{
		BindAddress: "0.0.0.0:9000",
		CORSOrigins: []string{"http://localhost:*"},
	}
}

func defaultUpdateOptions() UpdateOptions {
	return UpdateOptions{PollInterval: 60}
}

// newViper builds a viper instance reading configPath (if non-empty) as
// TOML, with HIKARI_* environment variables overriding file values.
func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("HIKARI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}
	return v, nil
}

// LoadNodeIdentity reads the [identity] table from configPath plus
// HIKARI_VERSION/HIKARI_CLIENT/HIKARI_ENVIRONMENT/HIKARI_SOLUTION overrides.
func LoadNodeIdentity(configPath string) (*NodeIdentity, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	sub := v.Sub("identity")
	if sub == nil {
		sub = viper.New()
	}
	sub.SetEnvPrefix("HIKARI")
	sub.AutomaticEnv()
	bindEnv(sub, "version", "client", "environment", "solution")

	var id NodeIdentity
	if err := sub.Unmarshal(&id); err != nil {
		return nil, fmt.Errorf("parsing node identity: %w", err)
	}
	if id.Version == "" || id.Client == "" || id.Environment == "" || id.Solution == "" {
		return nil, fmt.Errorf("node identity: version, client, environment, and solution are all required")
	}
	return &id, nil
}

// LoadUpdateOptions reads the [update] table, applying Daemon defaults.
func LoadUpdateOptions(configPath string) (*UpdateOptions, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	opts := defaultUpdateOptions()
	sub := v.Sub("update")
	if sub == nil {
		sub = viper.New()
	}
	sub.SetEnvPrefix("HIKARI")
	sub.AutomaticEnv()
	bindEnv(sub, "remote_url", "poll_interval", "encrypted_file_path", "decrypted_file_path", "reference_file_path")
	if err := sub.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("parsing update options: %w", err)
	}
	if opts.RemoteURL == "" || opts.EncryptedFilePath == "" || opts.DecryptedFilePath == "" || opts.ReferenceFilePath == "" {
		return nil, fmt.Errorf("update options: remote_url, encrypted_file_path, decrypted_file_path, and reference_file_path are all required")
	}
	return &opts, nil
}

// LoadAgentConfig reads the [agent] table.
func LoadAgentConfig(configPath string) (*AgentConfig, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	var cfg AgentConfig
	sub := v.Sub("agent")
	if sub == nil {
		sub = viper.New()
	}
	sub.SetEnvPrefix("HIKARI")
	sub.AutomaticEnv()
	bindEnv(sub, "server_url", "reference_file_path")
	if err := sub.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing agent config: %w", err)
	}
	if cfg.ServerURL == "" || cfg.ReferenceFilePath == "" {
		return nil, fmt.Errorf("agent config: server_url and reference_file_path are both required")
	}
	return &cfg, nil
}

// LoadServerConfig reads the [server] table, applying AdminAPI defaults.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	cfg := defaultServerConfig()
	sub := v.Sub("server")
	if sub == nil {
		sub = viper.New()
	}
	sub.SetEnvPrefix("HIKARI")
	sub.AutomaticEnv()
	bindEnv(sub, "bind_address", "database_url", "api_key")
	if err := sub.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("server config: database_url is required")
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper, keys ...string) {
	for _, k := range keys {
		v.BindEnv(k) //nolint:errcheck
	}
}
