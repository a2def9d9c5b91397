package rag

import "context"

// ChunkMeta identifies where a chunk came from.
type ChunkMeta struct {
	Filename   string `json:"filename"`
	UserID     uint   `json:"user_id"`
	DocumentID uint   `json:"document_id"`
	Index      int    `json:"index"`
}

// Chunk is the atomic unit stored in the index: a text segment plus its
// provenance. Chunks are immutable once added; each occupies exactly one
// index row.
type Chunk struct {
	Text string    `json:"text"`
	Meta ChunkMeta `json:"metadata"`
}

// SearchResult is a chunk with its raw distance to the query vector, the
// derived similarity score, and, after re-ranking, an LLM relevance score.
type SearchResult struct {
	Chunk       Chunk   `json:"chunk"`
	Distance    float64 `json:"distance"`
	Score       float64 `json:"score"`
	RerankScore float64 `json:"rerank_score,omitempty"`
}

// Embedder converts text into fixed-dimension vectors. The two methods
// select the asymmetric embedding task type; stored chunks must use
// EmbedDocument and search queries EmbedQuery.
//
// Interface defined by the consumer; ai.GeminiClient satisfies it.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a text completion from a single-turn prompt.
type Generator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// ScoreGenerator is implemented by providers that support
// schema-constrained numeric output. When available it is preferred over
// parsing a number out of free text.
type ScoreGenerator interface {
	GenerateScore(ctx context.Context, model, prompt string) (float64, error)
}

// Stats describes the state of the index. TotalDocuments counts chunk
// registry entries (the original API called chunks "documents"); IndexSize
// is the index row count and equals TotalDocuments unless the store is
// corrupted.
type Stats struct {
	TotalDocuments   int  `json:"total_documents"`
	IndexInitialized bool `json:"index_initialized"`
	IndexSize        int  `json:"index_size"`
}
