package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/chrysalislabs/chrysalis/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHRYSALIS_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHRYSALIS_INSTANCE_ID, CHRYSALIS_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CHRYSALIS_INSTANCE_ID, CHRYSALIS_STORAGE_PROVIDER, etc.
	v.SetEnvPrefix("CHRYSALIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the resolved viper state, after flags,
// environment, config file, and defaults have been layered.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Instance: InstanceConfig{
			ID: v.GetString("instance.id"),
		},
		Storage: StorageConfig{
			Provider:    v.GetString("storage.provider"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Sync: SyncConfig{
			Enabled:         v.GetBool("sync.enabled"),
			GatewayURL:      v.GetString("sync.gateway_url"),
			IntervalSeconds: v.GetUint("sync.interval_seconds"),
			BatchSize:       v.GetUint("sync.batch_size"),
		},
		VectorIndex: VectorIndexConfig{
			Provider: v.GetString("vector_index.provider"),
			DBPath:   v.GetString("vector_index.db_path"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetStringSlice("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		Memory: MemoryConfig{
			PromotionThreshold: v.GetUint("memory.promotion_threshold"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Sync
	v.SetDefault("sync.enabled", d.Sync.Enabled)
	v.SetDefault("sync.gateway_url", d.Sync.GatewayURL)
	v.SetDefault("sync.interval_seconds", d.Sync.IntervalSeconds)
	v.SetDefault("sync.batch_size", d.Sync.BatchSize)

	// Vector index
	v.SetDefault("vector_index.provider", d.VectorIndex.Provider)
	v.SetDefault("vector_index.db_path", d.VectorIndex.DBPath)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.topic", d.Events.Topic)

	// Memory policy
	v.SetDefault("memory.promotion_threshold", d.Memory.PromotionThreshold)
}
