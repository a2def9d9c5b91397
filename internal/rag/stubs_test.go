package rag

import (
	"context"
	"errors"
)

// stubEmbedder maps texts to fixed vectors; unknown texts fail like a
// provider error would.
type stubEmbedder struct {
	docVectors   map[string][]float32
	queryVectors map[string][]float32
	docErr       error
	queryErr     error
}

func (s *stubEmbedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	if s.docErr != nil {
		return nil, s.docErr
	}
	if v, ok := s.docVectors[text]; ok {
		return v, nil
	}
	return nil, errors.New("stub: unknown document text")
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if v, ok := s.queryVectors[text]; ok {
		return v, nil
	}
	return nil, errors.New("stub: unknown query text")
}

// stubGenerator delegates to a function so tests can script completions
// per prompt.
type stubGenerator struct {
	fn func(model, prompt string) (string, error)
}

func (s *stubGenerator) GenerateText(_ context.Context, model, prompt string) (string, error) {
	return s.fn(model, prompt)
}

// stubScoreGenerator additionally supports constrained numeric output.
type stubScoreGenerator struct {
	stubGenerator
	scoreFn func(model, prompt string) (float64, error)
}

func (s *stubScoreGenerator) GenerateScore(_ context.Context, model, prompt string) (float64, error) {
	return s.scoreFn(model, prompt)
}
