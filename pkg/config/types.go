package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent chrysalis configuration stored as
// config.toml in the .chrysalis/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Instance    InstanceConfig    `toml:"instance"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Sync        SyncConfig        `toml:"sync"`
	VectorIndex VectorIndexConfig `toml:"vector_index"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Events      EventsConfig      `toml:"events"`
	Memory      MemoryConfig      `toml:"memory"`
}

// InstanceConfig identifies this replica. The id stamps every CRDT write, so
// it must be unique across the replica set and stable across restarts.
type InstanceConfig struct {
	ID string `toml:"id,omitempty"`
}

// StorageConfig holds the storage backend settings.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// SyncConfig holds gateway reconciliation settings.
type SyncConfig struct {
	Enabled         bool   `toml:"enabled,omitempty"`
	GatewayURL      string `toml:"gateway_url,omitempty"`
	IntervalSeconds uint   `toml:"interval_seconds,omitempty"`
	BatchSize       uint   `toml:"batch_size,omitempty"`
}

// VectorIndexConfig holds KNN index settings.
type VectorIndexConfig struct {
	Provider string `toml:"provider,omitempty"`
	DBPath   string `toml:"db_path,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// MemoryConfig holds memory policy settings.
type MemoryConfig struct {
	PromotionThreshold uint `toml:"promotion_threshold,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"instance.id": {
		get: func(c *Config) string { return c.Instance.ID },
		set: func(c *Config, v string) error { c.Instance.ID = v; return nil },
	},
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"sync.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Sync.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for sync.enabled: %w", err)
			}
			c.Sync.Enabled = b
			return nil
		},
	},
	"sync.gateway_url": {
		get: func(c *Config) string { return c.Sync.GatewayURL },
		set: func(c *Config, v string) error { c.Sync.GatewayURL = v; return nil },
	},
	"sync.interval_seconds": {
		get: func(c *Config) string { return formatUint(c.Sync.IntervalSeconds) },
		set: func(c *Config, v string) error {
			n, err := parseUint("sync.interval_seconds", v)
			if err != nil {
				return err
			}
			c.Sync.IntervalSeconds = n
			return nil
		},
	},
	"sync.batch_size": {
		get: func(c *Config) string { return formatUint(c.Sync.BatchSize) },
		set: func(c *Config, v string) error {
			n, err := parseUint("sync.batch_size", v)
			if err != nil {
				return err
			}
			c.Sync.BatchSize = n
			return nil
		},
	},
	"vector_index.provider": {
		get: func(c *Config) string { return c.VectorIndex.Provider },
		set: func(c *Config, v string) error { c.VectorIndex.Provider = v; return nil },
	},
	"vector_index.db_path": {
		get: func(c *Config) string { return c.VectorIndex.DBPath },
		set: func(c *Config, v string) error { c.VectorIndex.DBPath = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string { return formatUint(c.Embedding.Dimensions) },
		set: func(c *Config, v string) error {
			n, err := parseUint("embedding.dimensions", v)
			if err != nil {
				return err
			}
			c.Embedding.Dimensions = n
			return nil
		},
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"memory.promotion_threshold": {
		get: func(c *Config) string { return formatUint(c.Memory.PromotionThreshold) },
		set: func(c *Config, v string) error {
			n, err := parseUint("memory.promotion_threshold", v)
			if err != nil {
				return err
			}
			c.Memory.PromotionThreshold = n
			return nil
		},
	},
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return uint(n), nil
}
