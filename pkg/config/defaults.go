package config

// Defaults for the config.
const (
	DefaultVersion = 1

	DefaultStorageProvider = "sqlite"
	DefaultSQLitePath      = "memories.db"

	DefaultAPIListen = "localhost:7761"

	DefaultSyncIntervalSeconds = 30
	DefaultSyncBatchSize       = 100

	DefaultVectorIndexProvider = "sqlitevec"
	DefaultVectorIndexDBPath   = "vectors.db"

	DefaultEmbeddingProvider   = "ollama"
	DefaultEmbeddingTarget     = "http://localhost:11434"
	DefaultEmbeddingModel      = "nomic-embed-text"
	DefaultEmbeddingDimensions = 768

	DefaultEventsProvider = "nop"
	DefaultEventsTopic    = "chrysalis.memory.events"

	DefaultPromotionThreshold = 3
)

// NewDefaultConfig returns a Config populated with defaults. The instance id
// is deliberately left empty, each replica must choose its own.
func NewDefaultConfig() *Config {
	return &Config{
		Version: DefaultVersion,
		Storage: StorageConfig{
			Provider:   DefaultStorageProvider,
			SQLitePath: DefaultSQLitePath,
		},
		API: APIConfig{
			Listen: DefaultAPIListen,
		},
		Sync: SyncConfig{
			IntervalSeconds: DefaultSyncIntervalSeconds,
			BatchSize:       DefaultSyncBatchSize,
		},
		VectorIndex: VectorIndexConfig{
			Provider: DefaultVectorIndexProvider,
			DBPath:   DefaultVectorIndexDBPath,
		},
		Embedding: EmbeddingConfig{
			Provider:   DefaultEmbeddingProvider,
			Target:     DefaultEmbeddingTarget,
			Model:      DefaultEmbeddingModel,
			Dimensions: DefaultEmbeddingDimensions,
		},
		Events: EventsConfig{
			Provider: DefaultEventsProvider,
			Topic:    DefaultEventsTopic,
		},
		Memory: MemoryConfig{
			PromotionThreshold: DefaultPromotionThreshold,
		},
	}
}
