// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/embeddings"
	"github.com/chrysalislabs/chrysalis/pkg/embeddings/ollama"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Logger       *zap.Logger
}

// NewEmbedder builds the configured provider wrapped in the content-hash
// cache.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var inner embeddings.Embedder

	switch o.ProviderType {
	case "ollama":
		var err error
		inner, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}

	return embeddings.NewCache(inner, embeddings.CacheConfig{Logger: o.Logger})
}
