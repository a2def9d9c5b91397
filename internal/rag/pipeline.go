// Package rag implements the retrieval-augmented generation engine:
// chunking, task-typed embeddings, a persistent flat vector index, coarse
// retrieval, LLM re-ranking, and grounded answer synthesis.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// NoInfoAnswer is returned whenever retrieval produces nothing to ground
// an answer on. It is a deterministic non-error response.
const NoInfoAnswer = "I don't have enough information in my knowledge base to answer this question accurately. Please try uploading relevant legal documents first."

// Config holds the pipeline knobs. Dimension must match the embedding
// model's output; ChunkOverlap must be strictly smaller than ChunkSize.
type Config struct {
	IndexDir      string
	Dimension     int
	ChunkSize     int
	ChunkOverlap  int
	MinChunkChars int
	TopK          int
	RerankModel   string
	AnswerModel   string
}

// Pipeline is the single entry point for ingest and query. It owns the
// store and serializes all mutations; construct one per process at the
// composition root and share it.
type Pipeline struct {
	cfg       Config
	store     *Store
	embedder  Embedder
	generator Generator
	retriever *Retriever
	reranker  *Reranker
	logger    *slog.Logger

	// ingestMu enforces the single-writer discipline across whole ingest
	// batches (embed, add, persist), not just individual store calls.
	ingestMu sync.Mutex
}

func NewPipeline(cfg Config, embedder Embedder, generator Generator, logger *slog.Logger) (*Pipeline, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", cfg.ChunkOverlap)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MinChunkChars <= 0 {
		cfg.MinChunkChars = 50
	}

	store, err := NewStore(cfg.IndexDir, cfg.Dimension, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:       cfg,
		store:     store,
		embedder:  embedder,
		generator: generator,
		retriever: NewRetriever(store, embedder, logger),
		reranker:  NewReranker(generator, cfg.RerankModel, logger),
		logger:    logger,
	}, nil
}

// Chunk splits document text using the configured window parameters.
func (p *Pipeline) Chunk(text string) []string {
	return ChunkText(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap, p.cfg.MinChunkChars)
}

// Ingest embeds the given chunk texts and appends them to the index,
// persisting afterwards. Chunks whose embedding fails are skipped, not
// fatal; the batch reports how many were added and skipped. A count
// mismatch between texts and metas is a caller bug and is rejected.
func (p *Pipeline) Ingest(ctx context.Context, texts []string, metas []ChunkMeta) (added, skipped int, err error) {
	if len(texts) != len(metas) {
		return 0, 0, fmt.Errorf("%w: %d texts, %d metas", ErrCountMismatch, len(texts), len(metas))
	}
	if len(texts) == 0 {
		return 0, 0, nil
	}

	p.ingestMu.Lock()
	defer p.ingestMu.Unlock()

	vectors := make([][]float32, 0, len(texts))
	chunks := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		vec, embedErr := p.embedder.EmbedDocument(ctx, text)
		if embedErr != nil {
			p.logger.Warn("chunk embedding failed, skipping",
				"filename", metas[i].Filename, "chunk", metas[i].Index, "error", embedErr)
			skipped++
			continue
		}
		vectors = append(vectors, vec)
		chunks = append(chunks, Chunk{Text: text, Meta: metas[i]})
	}

	if len(vectors) == 0 {
		p.logger.Warn("no valid embeddings generated for batch", "skipped", skipped)
		return 0, skipped, nil
	}

	if err := p.store.Add(vectors, chunks); err != nil {
		return 0, skipped, err
	}
	if err := p.store.Persist(); err != nil {
		// The in-memory index is still consistent; the next successful
		// ingest will rewrite both artifacts.
		p.logger.Error("persisting index failed", "error", err)
	}

	added = len(vectors)
	p.logger.Info("ingested chunk batch",
		"added", added, "skipped", skipped, "total", p.store.Len())
	return added, skipped, nil
}

// Query answers a question from indexed knowledge. It over-fetches 2*topK
// coarse candidates, re-ranks them down to topK when enabled, and asks the
// answer model for a grounded response. The returned answer is always
// usable text: empty retrieval yields NoInfoAnswer and a generation
// failure yields the sources with an error-annotated message.
func (p *Pipeline) Query(ctx context.Context, question string, topK int, useRerank bool) ([]SearchResult, string) {
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	results := p.retriever.Retrieve(ctx, question, topK*2)
	if len(results) == 0 {
		return nil, NoInfoAnswer
	}

	if useRerank && len(results) > topK {
		results = p.reranker.Rerank(ctx, question, results, topK)
	} else {
		results = truncate(results, topK)
	}

	answer, err := p.synthesize(ctx, question, results)
	if err != nil {
		p.logger.Error("answer generation failed", "error", err)
		return results, fmt.Sprintf("I found relevant information but encountered an error generating the response: %v", err)
	}
	return results, answer
}

func (p *Pipeline) Stats() Stats {
	return p.store.Stats()
}

// Reset deletes the persisted index and empties in-memory state.
func (p *Pipeline) Reset() error {
	p.ingestMu.Lock()
	defer p.ingestMu.Unlock()
	return p.store.Clear()
}
