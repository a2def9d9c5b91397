package rag

import (
	"context"
	"log/slog"
)

// Retriever performs coarse retrieval: it embeds the query and runs an
// exhaustive nearest-neighbor search against the store.
type Retriever struct {
	store    *Store
	embedder Embedder
	logger   *slog.Logger
}

func NewRetriever(store *Store, embedder Embedder, logger *slog.Logger) *Retriever {
	return &Retriever{store: store, embedder: embedder, logger: logger}
}

// Retrieve returns up to k candidates in ascending distance order, each
// carrying the similarity score 1/(1+distance). A query embedding failure
// or an empty store yields an empty result, never an error: the caller
// surfaces a "no information" answer instead.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) []SearchResult {
	if r.store.Len() == 0 {
		r.logger.Warn("retrieval against empty index")
		return nil
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Error("query embedding failed", "error", err)
		return nil
	}

	results, err := r.store.Search(vec, k)
	if err != nil {
		r.logger.Error("index search failed", "error", err)
		return nil
	}

	for i := range results {
		results[i].Score = 1 / (1 + results[i].Distance)
	}
	return results
}
