// Package ai implements the Gemini API client used for embeddings and
// text generation. Only the two endpoints the application needs are
// wrapped: embedContent (with retrieval task types) and generateContent.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Embedding task types. Document and query embeddings are asymmetric:
// chunks must be embedded with TaskRetrievalDocument and search queries
// with TaskRetrievalQuery, or retrieval quality degrades.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

type GeminiConfig struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	Timeout        time.Duration
}

type GeminiClient struct {
	cfg        GeminiConfig
	httpClient *http.Client
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GeminiClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type embedContentRequest struct {
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// EmbedDocument embeds a stored chunk with the document retrieval task type.
func (c *GeminiClient) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, TaskRetrievalDocument)
}

// EmbedQuery embeds a search query with the query retrieval task type.
func (c *GeminiClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, TaskRetrievalQuery)
}

func (c *GeminiClient) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}

	reqBody := embedContentRequest{
		Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType: taskType,
	}
	url := fmt.Sprintf("%s/models/%s:embedContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.EmbeddingModel)

	raw, err := c.post(ctx, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("embed content failed: %w", err)
	}

	var parsed embedContentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding json failed: %w", err)
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return parsed.Embedding.Values, nil
}

type generateContentRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   *responseSchema `json:"responseSchema,omitempty"`
}

type responseSchema struct {
	Type string `json:"type"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GenerateText sends a single-turn prompt to the given model and returns
// the concatenated text of the first candidate.
func (c *GeminiClient) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	return c.generate(ctx, model, prompt, nil)
}

// GenerateScore sends a single-turn prompt constrained to a numeric JSON
// response and returns the parsed number.
func (c *GeminiClient) GenerateScore(ctx context.Context, model, prompt string) (float64, error) {
	raw, err := c.generate(ctx, model, prompt, &generationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   &responseSchema{Type: "NUMBER"},
	})
	if err != nil {
		return 0, err
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric response %q failed: %w", raw, err)
	}
	return score, nil
}

func (c *GeminiClient) generate(ctx context.Context, model, prompt string, genCfg *generationConfig) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", fmt.Errorf("generation model is empty")
	}

	reqBody := generateContentRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: genCfg,
	}
	url := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), model)

	raw, err := c.post(ctx, url, reqBody)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse generation json failed: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidates in response")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

func (c *GeminiClient) post(ctx context.Context, url string, body any) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("response status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
