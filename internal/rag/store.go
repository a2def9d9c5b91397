package rag

import (
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	indexFileName  = "index.gob"
	chunksFileName = "chunks.gob"
)

// ErrCountMismatch is returned by Add when vectors and chunks differ in
// length; accepting such a batch would break the row/registry pairing.
var ErrCountMismatch = errors.New("vectors and chunks count mismatch")

// Store is a flat (exhaustive) vector index with an ordered chunk registry.
// Row i of the index always corresponds to chunks[i]; the pair is guarded
// by a single lock so readers never observe one half of a mutation.
//
// The store is append-only: individual rows cannot be removed, only the
// whole index cleared.
type Store struct {
	mu      sync.RWMutex
	dim     int
	dir     string
	vectors [][]float32
	chunks  []Chunk
	logger  *slog.Logger
}

// NewStore creates a store persisting under dir and loads any existing
// index. Missing or unreadable artifacts are not fatal: the store starts
// empty and logs a warning.
func NewStore(dir string, dim int, logger *slog.Logger) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("store dimension must be positive, got %d", dim)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir failed: %w", err)
	}
	s := &Store{dim: dim, dir: dir, logger: logger}
	s.load()
	return s, nil
}

func (s *Store) indexPath() string  { return filepath.Join(s.dir, indexFileName) }
func (s *Store) chunksPath() string { return filepath.Join(s.dir, chunksFileName) }

// Add appends vectors and chunks in lock-step. The batch is rejected as a
// whole on count or dimension mismatch, leaving the store untouched.
func (s *Store) Add(vectors [][]float32, chunks []Chunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors, %d chunks", ErrCountMismatch, len(vectors), len(chunks))
	}
	if len(vectors) == 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), s.dim)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = append(s.vectors, vectors...)
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Search returns up to k chunks closest to query by squared Euclidean
// distance, ascending. An empty store yields an empty result; callers
// that need a canned "no knowledge" answer must check emptiness first.
func (s *Store) Search(query []float32, k int) ([]SearchResult, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(query), s.dim)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if k > len(s.vectors) {
		k = len(s.vectors)
	}

	type scored struct {
		idx  int
		dist float64
	}
	all := make([]scored, len(s.vectors))
	for i, v := range s.vectors {
		all[i] = scored{idx: i, dist: squaredL2(query, v)}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].dist < all[j].dist })

	results := make([]SearchResult, 0, k)
	for _, sc := range all[:k] {
		results = append(results, SearchResult{
			Chunk:    s.chunks[sc.idx],
			Distance: sc.dist,
		})
	}
	return results, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Persist writes both artifacts. Each file is written to a temp path and
// renamed so a crash mid-write never leaves a truncated artifact behind.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeGob(s.indexPath(), s.vectors); err != nil {
		return fmt.Errorf("persist index failed: %w", err)
	}
	if err := writeGob(s.chunksPath(), s.chunks); err != nil {
		return fmt.Errorf("persist chunks failed: %w", err)
	}
	s.logger.Info("index persisted", "chunks", len(s.chunks))
	return nil
}

// load restores the index/registry pair. Both artifacts must be present
// and consistent; anything else resets the store to empty.
func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var vectors [][]float32
	var chunks []Chunk

	if err := readGob(s.indexPath(), &vectors); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not load existing index, starting empty", "error", err)
		}
		return
	}
	if err := readGob(s.chunksPath(), &chunks); err != nil {
		s.logger.Warn("could not load chunk registry, starting empty", "error", err)
		return
	}
	if len(vectors) != len(chunks) {
		s.logger.Warn("persisted index and registry disagree, starting empty",
			"index_rows", len(vectors), "chunks", len(chunks))
		return
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			s.logger.Warn("persisted vector has wrong dimension, starting empty",
				"row", i, "dimension", len(v), "want", s.dim)
			return
		}
	}

	s.vectors = vectors
	s.chunks = chunks
	s.logger.Info("loaded index", "chunks", len(chunks))
}

// Clear deletes both persisted artifacts and resets in-memory state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vectors = nil
	s.chunks = nil

	var errs []error
	for _, path := range []string{s.indexPath(), s.chunksPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("clear index failed: %w", errors.Join(errs...))
	}
	s.logger.Info("index cleared")
	return nil
}

// Len returns the number of chunks in the registry.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalDocuments:   len(s.chunks),
		IndexInitialized: len(s.vectors) > 0,
		IndexSize:        len(s.vectors),
	}
}

func writeGob(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}
