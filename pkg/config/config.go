// Package config manages the persistent datum configuration under
// ~/.datum and resolves per-invocation settings with viper precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ConfigFileName is the global configuration file under ~/.datum.
	ConfigFileName = "config.json"

	// schemaVersion is the current on-disk config schema. Version 1
	// stored flat "token.<host>" / "username.<host>" keys; version 2
	// nests them under "auth".
	schemaVersion = 2
)

// KnownKeys maps settable config keys to the descriptions shown by
// `datum config list`.
var KnownKeys = map[string]string{
	"registry": "Default registry URL or local path",
	"output":   "Default output format  (table | json | plain)",
}

// AuthEntry holds stored credentials for one registry host.
type AuthEntry struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
}

// Config is the parsed global configuration file.
type Config struct {
	SchemaVersion int                  `json:"_version,omitempty"`
	Registry      string               `json:"registry,omitempty"`
	Output        string               `json:"output,omitempty"`
	Auth          map[string]AuthEntry `json:"auth,omitempty"`
}

// Dir returns the path to ~/.datum, creating it if necessary.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	dir := filepath.Join(home, ".datum")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// Path returns the path to the global config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Load reads the global config file, migrating v1 layouts in place. A
// missing file yields an empty config.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads and migrates the config at path. A v1 file is
// rewritten in the v2 layout so later writers never see legacy keys.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{SchemaVersion: schemaVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config file %s is corrupted: %w", path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config file %s is corrupted: %w", path, err)
	}

	if migrateLegacyAuth(cfg, raw) {
		if err := SaveFile(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// migrateLegacyAuth folds v1 flat "token.<host>" and "username.<host>"
// keys into the nested auth map. Returns true when anything changed.
func migrateLegacyAuth(cfg *Config, raw map[string]json.RawMessage) bool {
	if cfg.SchemaVersion >= schemaVersion {
		return false
	}

	changed := false
	for key, val := range raw {
		var host string
		var isToken bool
		switch {
		case strings.HasPrefix(key, "token."):
			host, isToken = strings.TrimPrefix(key, "token."), true
		case strings.HasPrefix(key, "username."):
			host, isToken = strings.TrimPrefix(key, "username."), false
		default:
			continue
		}
		if host == "" {
			continue
		}

		var s string
		if err := json.Unmarshal(val, &s); err != nil || s == "" {
			continue
		}
		if cfg.Auth == nil {
			cfg.Auth = make(map[string]AuthEntry)
		}
		entry := cfg.Auth[host]
		if isToken {
			if entry.Token == "" {
				entry.Token = s
			}
		} else if entry.Username == "" {
			entry.Username = s
		}
		cfg.Auth[host] = entry
		changed = true
	}

	cfg.SchemaVersion = schemaVersion
	return changed
}

// Save writes the config to the global config file.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(path, c)
}

// SaveFile writes the config as indented JSON to path.
func SaveFile(path string, cfg *Config) error {
	cfg.SchemaVersion = schemaVersion
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// Token returns the stored token for host, or "".
func (c *Config) Token(host string) string { return c.Auth[host].Token }

// Username returns the stored username for host, or "".
func (c *Config) Username(host string) string { return c.Auth[host].Username }

// SetAuth stores credentials for host. An empty username leaves any
// existing one in place.
func (c *Config) SetAuth(host, token, username string) {
	if c.Auth == nil {
		c.Auth = make(map[string]AuthEntry)
	}
	entry := c.Auth[host]
	entry.Token = token
	if username != "" {
		entry.Username = username
	}
	c.Auth[host] = entry
}

// ClearAuth removes stored credentials for host.
func (c *Config) ClearAuth(host string) {
	delete(c.Auth, host)
}

// Get returns the value of a known key, or "" when unset.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "registry":
		return c.Registry, nil
	case "output":
		return c.Output, nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// Set assigns a known key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "registry":
		c.Registry = value
	case "output":
		c.Output = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// Unset clears a known key.
func (c *Config) Unset(key string) error {
	return c.Set(key, "")
}
