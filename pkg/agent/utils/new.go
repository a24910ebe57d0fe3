// Package agentutils is the agent memory utility package. It assembles the
// full replica stack (storage, embeddings, vector index, event stream, sync)
// from a resolved configuration.
package agentutils

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/agent"
	"github.com/chrysalislabs/chrysalis/pkg/config"
	"github.com/chrysalislabs/chrysalis/pkg/embeddings"
	embeddingutils "github.com/chrysalislabs/chrysalis/pkg/embeddings/utils"
	"github.com/chrysalislabs/chrysalis/pkg/eventstream"
	"github.com/chrysalislabs/chrysalis/pkg/eventstream/kafka"
	"github.com/chrysalislabs/chrysalis/pkg/eventstream/nop"
	storageutils "github.com/chrysalislabs/chrysalis/pkg/storage/utils"
	storagesync "github.com/chrysalislabs/chrysalis/pkg/sync"
	"github.com/chrysalislabs/chrysalis/pkg/sync/ws"
	"github.com/chrysalislabs/chrysalis/pkg/vector"
	vectorutils "github.com/chrysalislabs/chrysalis/pkg/vector/utils"
)

type NewAgentMemoryOpts struct {
	// Config is the resolved replica configuration.
	Config *config.Config

	// ConfigDir anchors relative database paths (usually the .chrysalis dir).
	ConfigDir string

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// NewAgentMemory assembles the replica stack described by the config and
// returns the memory facade plus a close function releasing every resource
// the factory opened. Callers stop the facade before closing.
func NewAgentMemory(ctx context.Context, o *NewAgentMemoryOpts) (*agent.AgentMemory, func() error, error) {
	cfg := o.Config

	store, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{
		Provider:    cfg.Storage.Provider,
		SQLitePath:  resolvePath(o.ConfigDir, cfg.Storage.SQLitePath),
		PostgresDSN: cfg.Storage.PostgresDSN,
		Logger:      o.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating storage driver: %w", err)
	}

	var embedder embeddings.Embedder
	if cfg.Embedding.Provider != "" && cfg.Embedding.Provider != "none" {
		embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: cfg.Embedding.Provider,
			TargetURL:    cfg.Embedding.Target,
			Model:        cfg.Embedding.Model,
			Logger:       o.Logger,
		})
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("creating embedder: %w", err)
		}
	}

	var index vector.Driver
	if embedder != nil && cfg.VectorIndex.Provider != "" && cfg.VectorIndex.Provider != "none" {
		index, err = vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
			ProviderType: cfg.VectorIndex.Provider,
			DBPath:       resolvePath(o.ConfigDir, cfg.VectorIndex.DBPath),
			Dimensions:   cfg.Embedding.Dimensions,
			Logger:       o.Logger,
		})
		if err != nil {
			embedder.Close()
			store.Close()
			return nil, nil, fmt.Errorf("creating vector index: %w", err)
		}
	}

	publisher, err := newPublisher(cfg, o.Logger)
	if err != nil {
		closeAll(o.Logger, index, embedder, store)
		return nil, nil, err
	}

	var manager *storagesync.Manager
	if cfg.Sync.Enabled {
		gateway, err := ws.NewGateway(&ws.Config{
			URL:        cfg.Sync.GatewayURL,
			InstanceID: cfg.Instance.ID,
			Logger:     o.Logger,
		})
		if err != nil {
			closeAll(o.Logger, publisher, index, embedder, store)
			return nil, nil, fmt.Errorf("creating sync gateway: %w", err)
		}

		manager, err = storagesync.NewManager(&storagesync.Config{
			Storage:    store,
			Gateway:    gateway,
			InstanceID: cfg.Instance.ID,
			BatchSize:  int(cfg.Sync.BatchSize),
			Logger:     o.Logger,
		})
		if err != nil {
			closeAll(o.Logger, publisher, index, embedder, store)
			return nil, nil, fmt.Errorf("creating sync manager: %w", err)
		}
	}

	mem, err := agent.NewAgentMemory(&agent.Config{
		Storage:            store,
		InstanceID:         cfg.Instance.ID,
		Sync:               manager,
		SyncInterval:       time.Duration(cfg.Sync.IntervalSeconds) * time.Second,
		Embedder:           embedder,
		Vector:             index,
		Publisher:          publisher,
		PromotionThreshold: uint64(cfg.Memory.PromotionThreshold),
		Logger:             o.Logger,
	})
	if err != nil {
		closeAll(o.Logger, publisher, index, embedder, store)
		return nil, nil, err
	}

	closeFn := func() error {
		closeAll(o.Logger, publisher, index, embedder, store)
		return nil
	}

	return mem, closeFn, nil
}

func newPublisher(cfg *config.Config, logger *zap.Logger) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Events.Provider)
	}
}

// resolvePath anchors relative paths at the config directory so every replica
// artifact lives under .chrysalis/ by default.
func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

type closer interface {
	Close() error
}

func closeAll(logger *zap.Logger, closers ...closer) {
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && logger != nil {
			logger.Warn("closing resource failed", zap.Error(err))
		}
	}
}
