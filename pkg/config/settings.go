package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// LocalSettingsFile is the project-local override filename. It holds
// per-directory defaults (registry, output, parallelism) and is not
// meant to be committed.
const LocalSettingsFile = "datum.local.toml"

// Settings is the resolved runtime configuration for one invocation,
// with viper precedence: CLI flags > environment (DATUM_REGISTRY,
// DATUM_OUTPUT) > datum.local.toml > ~/.datum/config.json > defaults.
type Settings struct {
	// Registry is a URL (remote) or filesystem path (local registry).
	Registry string `mapstructure:"registry" toml:"registry,omitempty"`

	// Output is the default rendering mode: table, json, or plain.
	Output string `mapstructure:"output" toml:"output,omitempty"`

	// Parallelism bounds concurrent transfers during pull, clamped to
	// [1, 8] by the pull pipeline.
	Parallelism int `mapstructure:"parallelism" toml:"parallelism,omitempty"`
}

// LoadSettings resolves settings for the current directory. flagRegistry
// and flagOutput, when non-empty, take highest precedence (set via the
// global --registry / --output flags).
func LoadSettings(flagRegistry, flagOutput string) (*Settings, error) {
	globalPath, err := Path()
	if err != nil {
		return nil, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return loadSettings(flagRegistry, flagOutput, globalPath, filepath.Join(wd, LocalSettingsFile))
}

// loadSettings is the internal implementation that accepts explicit
// paths, making it testable without touching the real home directory.
func loadSettings(flagRegistry, flagOutput, globalPath, localPath string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("output", "table")
	v.SetDefault("parallelism", 1)

	// Lowest priority: global config; ignore if missing.
	v.SetConfigFile(globalPath)
	_ = v.ReadInConfig()

	// Higher priority: project-local overrides.
	if _, err := os.Stat(localPath); err == nil {
		v.SetConfigFile(localPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", localPath, err)
		}
	}

	// Environment overrides the files.
	_ = v.BindEnv("registry", "DATUM_REGISTRY")
	_ = v.BindEnv("output", "DATUM_OUTPUT")

	// Highest priority: CLI flags.
	if flagRegistry != "" {
		v.Set("registry", flagRegistry)
	}
	if flagOutput != "" {
		v.Set("output", flagOutput)
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return s, nil
}

// LoadLocalSettings reads a project-local datum.local.toml. A missing
// file yields zero Settings, so read-modify-write always works.
func LoadLocalSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	s := &Settings{}
	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

// SaveLocalSettings writes s as TOML to path.
func SaveLocalSettings(path string, s *Settings) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// DefaultRegistryPath returns the local registry root used when no
// registry is configured (~/.datum/registry).
func DefaultRegistryPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "registry"), nil
}
