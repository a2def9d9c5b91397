package rag

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pleader/internal/logging"
)

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := NewStore(dir, 3, logging.NewNop())
	require.NoError(t, err)
	return store
}

func testChunk(text string) Chunk {
	return Chunk{Text: text, Meta: ChunkMeta{Filename: "act.pdf", UserID: 1, DocumentID: 1}}
}

func TestStoreAddRejectsCountMismatch(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	err := store.Add([][]float32{{1, 0, 0}}, []Chunk{testChunk("a"), testChunk("b")})
	assert.ErrorIs(t, err, ErrCountMismatch)
	assert.Equal(t, 0, store.Len())
}

func TestStoreAddRejectsWrongDimension(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	err := store.Add([][]float32{{1, 0}}, []Chunk{testChunk("a")})
	assert.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestStoreRegistryMatchesIndexAfterAdds(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	for i := 0; i < 4; i++ {
		vecs := [][]float32{{float32(i), 0, 0}, {0, float32(i), 0}}
		chunks := []Chunk{testChunk(fmt.Sprintf("a%d", i)), testChunk(fmt.Sprintf("b%d", i))}
		require.NoError(t, store.Add(vecs, chunks))

		stats := store.Stats()
		assert.Equal(t, stats.TotalDocuments, stats.IndexSize)
	}
	assert.Equal(t, 8, store.Len())
}

func TestStoreSearchOrdersByDistanceAndCapsAtRows(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	vecs := [][]float32{
		{5, 0, 0},
		{1, 0, 0},
		{3, 0, 0},
		{2, 0, 0},
		{4, 0, 0},
	}
	chunks := make([]Chunk, len(vecs))
	for i := range chunks {
		chunks[i] = testChunk(fmt.Sprintf("chunk-%d", i))
	}
	require.NoError(t, store.Add(vecs, chunks))

	// k larger than the row count returns every row.
	results, err := store.Search([]float32{0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
	assert.Equal(t, "chunk-1", results[0].Chunk.Text)
	assert.Equal(t, "chunk-0", results[4].Chunk.Text)
}

func TestStoreSearchEmptyStore(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	results, err := store.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStoreSearchRejectsWrongQueryDimension(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	_, err := store.Search([]float32{1, 0}, 5)
	assert.Error(t, err)
}

func TestStorePersistLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)

	vecs := [][]float32{{0.25, -1.5, 3.75}, {1, 2, 3}}
	chunks := []Chunk{
		{Text: "section 420 of the IPC", Meta: ChunkMeta{Filename: "ipc.pdf", UserID: 7, DocumentID: 9, Index: 0}},
		{Text: "article 21 of the constitution", Meta: ChunkMeta{Filename: "coi.pdf", UserID: 7, DocumentID: 10, Index: 1}},
	}
	require.NoError(t, store.Add(vecs, chunks))
	require.NoError(t, store.Persist())

	reloaded := newTestStore(t, dir)
	assert.Equal(t, 2, reloaded.Len())

	results, err := reloaded.Search([]float32{0.25, -1.5, 3.75}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunks[0], results[0].Chunk)
	assert.Equal(t, float64(0), results[0].Distance)
}

func TestStoreLoadMissingCounterpartStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	require.NoError(t, store.Add([][]float32{{1, 0, 0}}, []Chunk{testChunk("a")}))
	require.NoError(t, store.Persist())

	// Without the chunk registry the index alone must not be trusted.
	require.NoError(t, os.Remove(filepath.Join(dir, chunksFileName)))
	reloaded := newTestStore(t, dir)
	assert.Equal(t, 0, reloaded.Len())
}

func TestStoreLoadCorruptArtifactStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	require.NoError(t, store.Add([][]float32{{1, 0, 0}}, []Chunk{testChunk("a")}))
	require.NoError(t, store.Persist())

	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), []byte("not gob"), 0o644))
	reloaded := newTestStore(t, dir)
	assert.Equal(t, 0, reloaded.Len())
}

func TestStoreClearRemovesArtifactsAndState(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	require.NoError(t, store.Add([][]float32{{1, 0, 0}}, []Chunk{testChunk("a")}))
	require.NoError(t, store.Persist())

	require.NoError(t, store.Clear())

	stats := store.Stats()
	assert.Equal(t, 0, stats.TotalDocuments)
	assert.False(t, stats.IndexInitialized)
	assert.Equal(t, 0, stats.IndexSize)

	_, err := os.Stat(filepath.Join(dir, indexFileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, chunksFileName))
	assert.True(t, os.IsNotExist(err))
}
