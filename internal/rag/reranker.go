package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// rerankExcerptRunes bounds the chunk excerpt sent to the scoring model.
const rerankExcerptRunes = 500

// Reranker re-scores coarse candidates with an LLM relevance judgment.
// It trades an extra model call per candidate for noticeably better
// ordering when vector scores are close together.
type Reranker struct {
	generator Generator
	model     string
	logger    *slog.Logger
}

func NewReranker(generator Generator, model string, logger *slog.Logger) *Reranker {
	return &Reranker{generator: generator, model: model, logger: logger}
}

// Rerank scores each candidate in [0,10] and returns the best topK in
// relevance order, ties broken by the original retrieval order. A failed
// scoring call falls back to 10x the candidate's similarity score (the
// two scales are then comparable) and never drops the candidate. If the
// scoring model is unavailable altogether, the coarse ranking is
// truncated to topK unchanged.
func (r *Reranker) Rerank(ctx context.Context, query string, results []SearchResult, topK int) []SearchResult {
	if len(results) == 0 {
		return nil
	}
	if r.generator == nil || r.model == "" {
		r.logger.Warn("reranking unavailable, keeping coarse ranking")
		return truncate(results, topK)
	}

	for i := range results {
		score, err := r.scoreCandidate(ctx, query, results[i].Chunk.Text)
		if err != nil {
			r.logger.Debug("rerank scoring failed, falling back to similarity",
				"candidate", i, "error", err)
			score = results[i].Score * 10
		}
		results[i].RerankScore = score
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RerankScore > results[j].RerankScore
	})
	return truncate(results, topK)
}

func (r *Reranker) scoreCandidate(ctx context.Context, query, text string) (float64, error) {
	prompt := fmt.Sprintf(`On a scale of 0-10, rate how relevant this text is to the query.
Only respond with a number.

Query: %s

Text: %s

Relevance score (0-10):`, query, excerpt(text, rerankExcerptRunes))

	// Structured output first; free-text parsing only when the provider
	// cannot constrain the response or the constrained call fails.
	if sg, ok := r.generator.(ScoreGenerator); ok {
		if score, err := sg.GenerateScore(ctx, r.model, prompt); err == nil {
			return clamp(score, 0, 10), nil
		}
	}

	raw, err := r.generator.GenerateText(ctx, r.model, prompt)
	if err != nil {
		return 0, err
	}
	return parseScore(raw)
}

// parseScore extracts a number from free-form model output by stripping
// everything but digits and dots, then clamps it into [0,10].
func parseScore(raw string) (float64, error) {
	var sb strings.Builder
	for _, c := range strings.TrimSpace(raw) {
		if (c >= '0' && c <= '9') || c == '.' {
			sb.WriteRune(c)
		}
	}
	score, err := strconv.ParseFloat(sb.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("no numeric score in %q", raw)
	}
	return clamp(score, 0, 10), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

func truncate(results []SearchResult, topK int) []SearchResult {
	if topK > 0 && topK < len(results) {
		return results[:topK]
	}
	return results
}
