package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pleader/internal/logging"
)

func testPipelineConfig(dir string) Config {
	return Config{
		IndexDir:      dir,
		Dimension:     3,
		ChunkSize:     500,
		ChunkOverlap:  100,
		MinChunkChars: 50,
		TopK:          3,
		RerankModel:   "scorer",
		AnswerModel:   "writer",
	}
}

func newTestPipeline(t *testing.T, dir string, embedder Embedder, generator Generator) *Pipeline {
	t.Helper()
	p, err := NewPipeline(testPipelineConfig(dir), embedder, generator, logging.NewNop())
	require.NoError(t, err)
	return p
}

func TestNewPipelineRejectsBadChunking(t *testing.T) {
	cfg := testPipelineConfig(t.TempDir())
	cfg.ChunkOverlap = cfg.ChunkSize
	_, err := NewPipeline(cfg, &stubEmbedder{}, nil, logging.NewNop())
	assert.Error(t, err)
}

func TestPipelineShortDocumentYieldsNoChunks(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), &stubEmbedder{}, nil)

	chunks := p.Chunk(strings.Repeat("a", 40))
	assert.Empty(t, chunks)

	added, skipped, err := p.Ingest(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, skipped)

	stats := p.Stats()
	assert.Equal(t, 0, stats.TotalDocuments)
	assert.False(t, stats.IndexInitialized)
}

func TestPipelineIngestIndexesEveryChunk(t *testing.T) {
	text := strings.Repeat("abcdefghij", 120)
	embedder := &stubEmbedder{docVectors: map[string][]float32{}}

	p := newTestPipeline(t, t.TempDir(), embedder, nil)
	chunks := p.Chunk(text)
	require.Len(t, chunks, 3)

	metas := make([]ChunkMeta, len(chunks))
	for i, c := range chunks {
		embedder.docVectors[c] = []float32{float32(i), 0, 0}
		metas[i] = ChunkMeta{Filename: "act.pdf", UserID: 1, DocumentID: 1, Index: i}
	}

	added, skipped, err := p.Ingest(context.Background(), chunks, metas)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, 0, skipped)

	stats := p.Stats()
	assert.Equal(t, 3, stats.TotalDocuments)
	assert.Equal(t, 3, stats.IndexSize)
	assert.True(t, stats.IndexInitialized)
}

func TestPipelineIngestRejectsCountMismatch(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), &stubEmbedder{}, nil)
	_, _, err := p.Ingest(context.Background(), []string{"a"}, nil)
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestPipelineIngestSkipsFailedEmbeddings(t *testing.T) {
	embedder := &stubEmbedder{docVectors: map[string][]float32{
		"good chunk": {1, 0, 0},
	}}
	p := newTestPipeline(t, t.TempDir(), embedder, nil)

	added, skipped, err := p.Ingest(context.Background(),
		[]string{"good chunk", "bad chunk"},
		[]ChunkMeta{{Index: 0}, {Index: 1}})

	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, p.Stats().TotalDocuments)
}

func TestPipelineIngestAllEmbeddingsFailing(t *testing.T) {
	embedder := &stubEmbedder{docErr: errors.New("provider down")}
	p := newTestPipeline(t, t.TempDir(), embedder, nil)

	added, skipped, err := p.Ingest(context.Background(),
		[]string{"a", "b"}, []ChunkMeta{{}, {}})

	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 0, p.Stats().TotalDocuments)
}

func TestPipelineQueryEmptyStore(t *testing.T) {
	embedder := &stubEmbedder{queryVectors: map[string][]float32{"q": {0, 0, 0}}}
	p := newTestPipeline(t, t.TempDir(), embedder, nil)

	sources, answer := p.Query(context.Background(), "q", 3, true)
	assert.Empty(t, sources)
	assert.Equal(t, NoInfoAnswer, answer)
}

func seedPipeline(t *testing.T, p *Pipeline, embedder *stubEmbedder, n int) {
	t.Helper()
	texts := make([]string, n)
	metas := make([]ChunkMeta, n)
	for i := 0; i < n; i++ {
		texts[i] = fmt.Sprintf("clause %d of the act", i)
		metas[i] = ChunkMeta{Filename: "act.pdf", Index: i}
		embedder.docVectors[texts[i]] = []float32{float32(i), 0, 0}
	}
	added, _, err := p.Ingest(context.Background(), texts, metas)
	require.NoError(t, err)
	require.Equal(t, n, added)
}

func TestPipelineQueryRerankSelectsByRelevance(t *testing.T) {
	embedder := &stubEmbedder{
		docVectors:   map[string][]float32{},
		queryVectors: map[string][]float32{"q": {0, 0, 0}},
	}
	gen := &stubGenerator{fn: func(model, prompt string) (string, error) {
		if model == "scorer" {
			// The farthest of the over-fetched candidates (2*topK = 4,
			// clauses 0 through 3) is the most relevant one.
			if strings.Contains(prompt, "clause 3") {
				return "9", nil
			}
			return "1", nil
		}
		return "grounded answer", nil
	}}

	p := newTestPipeline(t, t.TempDir(), embedder, gen)
	seedPipeline(t, p, embedder, 6)

	sources, answer := p.Query(context.Background(), "q", 2, true)
	require.Len(t, sources, 2)
	assert.Equal(t, "clause 3 of the act", sources[0].Chunk.Text)
	assert.Equal(t, float64(9), sources[0].RerankScore)
	assert.Equal(t, "grounded answer", answer)
}

func TestPipelineQueryWithoutRerankKeepsDistanceOrder(t *testing.T) {
	embedder := &stubEmbedder{
		docVectors:   map[string][]float32{},
		queryVectors: map[string][]float32{"q": {0, 0, 0}},
	}
	gen := &stubGenerator{fn: func(model, prompt string) (string, error) {
		require.NotEqual(t, "scorer", model, "re-ranking must be skipped")
		return "grounded answer", nil
	}}

	p := newTestPipeline(t, t.TempDir(), embedder, gen)
	seedPipeline(t, p, embedder, 6)

	sources, answer := p.Query(context.Background(), "q", 2, false)
	require.Len(t, sources, 2)
	assert.Equal(t, "clause 0 of the act", sources[0].Chunk.Text)
	assert.Equal(t, "clause 1 of the act", sources[1].Chunk.Text)
	assert.Equal(t, "grounded answer", answer)
}

func TestPipelineQueryGenerationFailureStillReturnsSources(t *testing.T) {
	embedder := &stubEmbedder{
		docVectors:   map[string][]float32{},
		queryVectors: map[string][]float32{"q": {0, 0, 0}},
	}
	gen := &stubGenerator{fn: func(model, _ string) (string, error) {
		if model == "writer" {
			return "", errors.New("quota exceeded")
		}
		return "5", nil
	}}

	p := newTestPipeline(t, t.TempDir(), embedder, gen)
	seedPipeline(t, p, embedder, 2)

	sources, answer := p.Query(context.Background(), "q", 3, true)
	assert.NotEmpty(t, sources)
	assert.Contains(t, answer, "error generating the response")
	assert.Contains(t, answer, "quota exceeded")
}

func TestPipelineQueryGroundsPromptInSources(t *testing.T) {
	embedder := &stubEmbedder{
		docVectors:   map[string][]float32{},
		queryVectors: map[string][]float32{"what is clause 0?": {0, 0, 0}},
	}
	var answerPrompt string
	gen := &stubGenerator{fn: func(model, prompt string) (string, error) {
		if model == "writer" {
			answerPrompt = prompt
		}
		return "ok", nil
	}}

	p := newTestPipeline(t, t.TempDir(), embedder, gen)
	seedPipeline(t, p, embedder, 1)

	_, _ = p.Query(context.Background(), "what is clause 0?", 3, false)
	assert.Contains(t, answerPrompt, "Document 1 (from act.pdf):")
	assert.Contains(t, answerPrompt, "clause 0 of the act")
	assert.Contains(t, answerPrompt, "what is clause 0?")
}

func TestPipelineSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	embedder := &stubEmbedder{
		docVectors:   map[string][]float32{},
		queryVectors: map[string][]float32{"q": {0, 0, 0}},
	}

	p := newTestPipeline(t, dir, embedder, nil)
	seedPipeline(t, p, embedder, 3)

	reopened := newTestPipeline(t, dir, embedder, &stubGenerator{
		fn: func(_, _ string) (string, error) { return "answer", nil },
	})
	assert.Equal(t, 3, reopened.Stats().TotalDocuments)

	sources, answer := reopened.Query(context.Background(), "q", 2, false)
	require.Len(t, sources, 2)
	assert.Equal(t, "clause 0 of the act", sources[0].Chunk.Text)
	assert.Equal(t, "answer", answer)
}

func TestPipelineResetClearsEverything(t *testing.T) {
	dir := t.TempDir()
	embedder := &stubEmbedder{
		docVectors:   map[string][]float32{},
		queryVectors: map[string][]float32{"q": {0, 0, 0}},
	}
	p := newTestPipeline(t, dir, embedder, nil)
	seedPipeline(t, p, embedder, 2)

	require.NoError(t, p.Reset())

	stats := p.Stats()
	assert.Equal(t, 0, stats.TotalDocuments)
	assert.False(t, stats.IndexInitialized)

	// The wipe must survive a restart too.
	reopened := newTestPipeline(t, dir, embedder, nil)
	assert.Equal(t, 0, reopened.Stats().TotalDocuments)
}
