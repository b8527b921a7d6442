// Package vecstore is the embeddable public API for the vector store: an
// on-disk key/vector/value store with crash-safe append-only storage and
// brute-force exact k-nearest-neighbor search.
//
// A typical program:
//
//	s, err := vecstore.Open("/var/lib/myapp/vectors", 128, vecstore.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	id, err := s.Put("doc-1", embedding, payload)
//	vec, payload, err := s.Get("doc-1")
//	hits, err := s.Search(queryEmbedding, 10)
package vecstore

import (
	"github.com/driftlock/vecstore/internal/store"
	"github.com/driftlock/vecstore/internal/vfs"
)

// ID identifies a vector slot. It equals the slot's offset-index from the
// start of vector data in vectors.bin.
type ID = uint32

// Vector is a dense, fixed-dimension embedding.
type Vector = []float32

// Metric selects the Search scoring function.
type Metric = store.Metric

// The three supported metrics. See [Metric].
const (
	Cosine = store.Cosine
	Dot    = store.Dot
	L2     = store.L2
)

// CompactionMode selects when compaction runs relative to the operation
// that triggers it.
type CompactionMode = store.CompactionMode

// The two supported compaction modes. See [CompactionMode].
const (
	Inline     = store.Inline
	Background = store.Background
)

// Options configures a [Store] at Open time.
type Options = store.Options

// DefaultOptions returns the documented defaults: compaction threshold 0.5,
// inline compaction, cosine similarity.
func DefaultOptions() Options { return store.DefaultOptions() }

// SearchResult is one ranked hit from [Store.Search].
type SearchResult = store.SearchResult

// Store is an open vector store, safe for concurrent use by multiple
// goroutines within this process. It must not be opened from more than one
// process against the same directory at a time; [Open] enforces this with
// an advisory lock file.
type Store struct {
	inner *store.Store
}

// Open opens (creating if necessary) a store rooted at dir, with vectors of
// dimension D. It recovers from any prior crash before returning.
func Open(dir string, dimension uint32, opts Options) (*Store, error) {
	inner, err := store.Open(vfs.NewReal(), dir, dimension, opts)
	if err != nil {
		return nil, err
	}

	return &Store{inner: inner}, nil
}

// Put writes (key, vec, value), returning the vector slot id it occupies.
// vec must have exactly the store's configured dimension; key must be
// non-empty.
func (s *Store) Put(key string, vec Vector, value []byte) (ID, error) {
	return s.inner.Put(key, vec, value)
}

// Get returns key's vector and value, or [ErrNotFound] if key is absent or
// was deleted.
func (s *Store) Get(key string) (Vector, []byte, error) {
	return s.inner.Get(key)
}

// Delete tombstones key, reporting whether it had been live. May trigger
// compaction if the store's dead ratio crosses its configured threshold.
func (s *Store) Delete(key string) (bool, error) {
	return s.inner.Delete(key)
}

// Search returns up to k live entries ranked by descending score against
// query.
func (s *Store) Search(query Vector, k uint32) ([]SearchResult, error) {
	return s.inner.Search(query, k)
}

// Stats returns a snapshot of the store's current on-disk shape.
func (s *Store) Stats() store.Stats {
	return s.inner.Stats()
}

// Close flushes and releases both files and the directory lock.
func (s *Store) Close() error {
	return s.inner.Close()
}
