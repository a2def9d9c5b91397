package app

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pleader/internal/model"
	"pleader/internal/rag"
)

func TestBuildChatPromptInterleavesHistory(t *testing.T) {
	history := []model.Message{
		{Role: "user", Content: "what is section 420?"},
		{Role: "assistant", Content: "Section 420 of the IPC covers cheating."},
	}
	prompt := buildChatPrompt(history, "and the punishment?")

	assert.Contains(t, prompt, "User: what is section 420?")
	assert.Contains(t, prompt, "Assistant: Section 420 of the IPC covers cheating.")
	assert.True(t, strings.HasSuffix(prompt, "User: and the punishment?\nAssistant:"))
	assert.Less(t,
		strings.Index(prompt, "section 420"),
		strings.Index(prompt, "punishment"),
		"history must precede the current question")
}

func TestSourcesFromResultsTruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("a", 500)
	results := []rag.SearchResult{
		{
			Chunk:       rag.Chunk{Text: long, Meta: rag.ChunkMeta{Filename: "act.pdf", Index: 2}},
			Score:       0.5,
			RerankScore: 8,
		},
	}

	sources := sourcesFromResults(results)
	require.Len(t, sources, 1)
	assert.Equal(t, "act.pdf", sources[0].Filename)
	assert.Equal(t, 2, sources[0].ChunkIndex)
	assert.Equal(t, strings.Repeat("a", sourceExcerptRunes)+"...", sources[0].Excerpt)
}

func TestEncodeSourcesRoundTrips(t *testing.T) {
	assert.Empty(t, encodeSources(nil))

	raw := encodeSources([]MessageSource{{Filename: "coi.pdf", Score: 0.25}})
	var decoded []MessageSource
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "coi.pdf", decoded[0].Filename)
}

func TestTrimMessagesKeepsNewest(t *testing.T) {
	messages := []model.Message{{ID: 1}, {ID: 2}, {ID: 3}}

	assert.Len(t, trimMessages(messages, 0), 3)
	assert.Len(t, trimMessages(messages, 5), 3)

	trimmed := trimMessages(messages, 2)
	require.Len(t, trimmed, 2)
	assert.Equal(t, uint(2), trimmed[0].ID)
	assert.Equal(t, uint(3), trimmed[1].ID)
}
