// Package config manages the chrysalis configuration file, its defaults,
// and the viper/cobra plumbing that layers flags and environment variables
// on top of it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chrysalislabs/chrysalis/pkg/dotdir"
)

const (
	// CurrentV is the current supported config schema version.
	CurrentV = DefaultVersion

	// configFileName is the name of the config file inside the .chrysalis dir.
	configFileName = "config.toml"
)

// Configer loads and persists the config file for a resolved .chrysalis
// directory.
type Configer struct {
	dir string
}

// NewConfiger resolves the target .chrysalis directory (override, local,
// then home) and returns a Configer bound to it.
func NewConfiger(overrideDir string) (*Configer, error) {
	ddm := dotdir.NewManager()
	dir, err := ddm.Target(overrideDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	return &Configer{dir: dir}, nil
}

// Dir returns the resolved .chrysalis directory this Configer operates on.
func (c *Configer) Dir() string {
	return c.dir
}

// LoadConfig reads config.toml from the configer's directory. Missing file
// yields the default config. Fields absent from the file are backfilled
// with defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	path := filepath.Join(c.dir, configFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// SaveConfig writes the config as TOML to config.toml in the configer's
// directory, overwriting any existing file.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	path := filepath.Join(c.dir, configFileName)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given dotted key to the given
// value, and saves it back.
func (c *Configer) SetConfigValue(key, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the value of the given dotted
// key as a string.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %s", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// ParseConfigTOML parses raw TOML into a Config and rejects unsupported
// schema versions. Version 0 (omitted) is accepted for older files.
func ParseConfigTOML(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version > CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (max supported %d)", cfg.Version, CurrentV)
	}

	return &cfg, nil
}

// Validate checks the config for values that would make a replica
// unable to run. The instance id stamps CRDT writes, so it cannot be empty
// once the replica starts serving.
func (cfg *Config) Validate() error {
	if cfg.Instance.ID == "" {
		return errors.New("instance.id is required: set it with `chrysalis config set instance.id <id>` or CHRYSALIS_INSTANCE_ID")
	}

	switch cfg.Storage.Provider {
	case "sqlite", "postgres", "inmemory":
	default:
		return fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}

	if cfg.Storage.Provider == "postgres" && cfg.Storage.PostgresDSN == "" {
		return errors.New("storage.postgres_dsn is required when storage.provider is postgres")
	}

	if cfg.Sync.Enabled && cfg.Sync.GatewayURL == "" {
		return errors.New("sync.gateway_url is required when sync is enabled")
	}

	return nil
}

// ValidConfigKeys returns the sorted list of all supported config keys.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsValidConfigKey reports whether the given dotted key is a supported
// config key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// applyDefaults backfills zero-valued fields with defaults so partial config
// files behave like fully-specified ones.
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = d.Storage.Provider
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = d.Storage.SQLitePath
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = d.API.Listen
	}
	if cfg.Sync.IntervalSeconds == 0 {
		cfg.Sync.IntervalSeconds = d.Sync.IntervalSeconds
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = d.Sync.BatchSize
	}
	if cfg.VectorIndex.Provider == "" {
		cfg.VectorIndex.Provider = d.VectorIndex.Provider
	}
	if cfg.VectorIndex.DBPath == "" {
		cfg.VectorIndex.DBPath = d.VectorIndex.DBPath
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = d.Embedding.Provider
	}
	if cfg.Embedding.Target == "" {
		cfg.Embedding.Target = d.Embedding.Target
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = d.Embedding.Model
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = d.Embedding.Dimensions
	}
	if cfg.Events.Provider == "" {
		cfg.Events.Provider = d.Events.Provider
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = d.Events.Topic
	}
	if cfg.Memory.PromotionThreshold == 0 {
		cfg.Memory.PromotionThreshold = d.Memory.PromotionThreshold
	}
}
