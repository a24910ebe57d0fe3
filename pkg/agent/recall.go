package agent

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
)

// Recall returns up to k memories ranked by relevance to the query. Ranking
// degrades through three levels: KNN over the vector index when one is
// configured, cosine similarity against stored embeddings when only an
// embedder is available, and token overlap against the content as the floor.
func (a *AgentMemory) Recall(ctx context.Context, query string, k int, filters RecallFilters) ([]RecallResult, error) {
	if k <= 0 {
		k = 10
	}

	candidates, err := a.candidates(ctx, filters)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var queryVec []float32
	if a.config.Embedder != nil && query != "" {
		queryVec, err = a.config.Embedder.Embed(ctx, query)
		if err != nil {
			a.logger.Warn("query embedding failed, falling back to token overlap",
				zap.Error(err),
			)
			queryVec = nil
		}
	}

	// KNN scores from the index, when present. The index is global, so the
	// hits are intersected with the filtered candidate set below.
	knnScores := map[string]float64{}
	if a.config.Vector != nil && queryVec != nil {
		// Over-fetch so filtered-out hits do not starve the result.
		hits, err := a.config.Vector.Query(ctx, queryVec, k*4)
		if err != nil {
			a.logger.Warn("vector query failed, falling back to cosine scoring",
				zap.Error(err),
			)
		} else {
			for _, hit := range hits {
				knnScores[hit.MemoryID] = float64(hit.Score)
			}
		}
	}

	results := make([]RecallResult, 0, len(candidates))
	for _, doc := range candidates {
		score := a.score(ctx, doc, query, queryVec, knnScores)
		if score <= 0 {
			continue
		}
		results = append(results, RecallResult{Document: doc, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// candidates narrows the search space through the cheapest storage index that
// applies, then applies the remaining filters in memory.
func (a *AgentMemory) candidates(ctx context.Context, f RecallFilters) ([]*memory.Document, error) {
	var (
		docs []*memory.Document
		err  error
	)

	switch {
	case f.Tag != "":
		docs, err = a.config.Storage.QueryByTag(ctx, f.Tag)
	case f.Type != "":
		docs, err = a.config.Storage.QueryByType(ctx, f.Type)
	case f.MinImportance > 0:
		docs, err = a.config.Storage.QueryByImportance(ctx, f.MinImportance)
	default:
		docs, err = a.config.Storage.All(ctx)
	}
	if err != nil {
		return nil, err
	}

	filtered := docs[:0]
	for _, doc := range docs {
		if f.Type != "" && doc.Type != f.Type {
			continue
		}
		if f.Tag != "" && !doc.Tags.Contains(f.Tag) {
			continue
		}
		if f.MinImportance > 0 && doc.Importance.Value < f.MinImportance {
			continue
		}
		filtered = append(filtered, doc)
	}
	return filtered, nil
}

// score picks the best available relevance signal for one candidate.
func (a *AgentMemory) score(ctx context.Context, doc *memory.Document, query string, queryVec []float32, knnScores map[string]float64) float64 {
	if s, ok := knnScores[doc.ID]; ok {
		return s
	}

	if queryVec != nil && doc.EmbeddingRef.Value != "" {
		emb, err := a.config.Storage.GetEmbeddingByHash(ctx, doc.EmbeddingRef.Value)
		if err == nil {
			if s := emb.CosineSimilarity(queryVec); s > 0 {
				return s
			}
			return 0
		}
	}

	return tokenOverlap(query, doc.Content.Value)
}

// tokenOverlap is the zero-dependency fallback: the Jaccard index of the
// lowercased token sets of query and content.
func tokenOverlap(query, content string) float64 {
	qTokens := tokenize(query)
	cTokens := tokenize(content)
	if len(qTokens) == 0 || len(cTokens) == 0 {
		return 0
	}

	shared := 0
	for token := range qTokens {
		if _, ok := cTokens[token]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}

	union := len(qTokens) + len(cTokens) - shared
	return float64(shared) / float64(union)
}

func tokenize(s string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, field := range strings.Fields(strings.ToLower(s)) {
		token := strings.Trim(field, ".,;:!?\"'()[]{}")
		if token != "" {
			tokens[token] = struct{}{}
		}
	}
	return tokens
}
