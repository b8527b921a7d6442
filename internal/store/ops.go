package store

import (
	"fmt"
	"math"

	"github.com/driftlock/vecstore/internal/codec"
	"github.com/driftlock/vecstore/internal/index"
)

// Put writes (key, vec, value), returning the vector slot id it occupies.
// Implements spec §4.5 put under the exclusive lock.
func (s *Store) Put(key string, vec []float32, value []byte) (uint32, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}
	if uint32(len(vec)) != s.dimension {
		return 0, fmt.Errorf("%w: vector has %d dims, want %d", ErrInvalidArgument, len(vec), s.dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.idx.Lookup(key)
	wasResurrection := exists && existing.Tombstone

	var id uint32
	isNewSlot := false

	switch {
	case exists:
		id = existing.ID
		if wasResurrection {
			s.idx.RemoveFree(id)
		}
	default:
		if popped, ok := s.idx.PopFree(); ok {
			id = popped
		} else {
			if s.vecs.SlotCount() == math.MaxUint32 {
				return 0, ErrCapacity
			}
			id = s.vecs.SlotCount()
			isNewSlot = true
		}
	}

	if isNewSlot {
		gotID, err := s.vecs.Append(vec)
		if err != nil {
			return 0, fmt.Errorf("vecstore: put append: %w", err)
		}
		if gotID != id {
			return 0, fmt.Errorf("vecstore: internal error: appended id %d, predicted %d", gotID, id)
		}
	} else {
		if err := s.vecs.Overwrite(id, vec); err != nil {
			return 0, fmt.Errorf("vecstore: put overwrite: %w", err)
		}
	}

	offset, err := s.log.Append(codec.Record{ID: id, Key: []byte(key), Value: value, Tombstone: false})
	if err != nil {
		// Per §7: failure of step 3 rolls back the mirror/file write only if
		// step 2 was an append; overwrites of an existing live slot are left
		// in place for a retry or reclamation via compaction.
		if isNewSlot {
			if truncErr := s.vecs.TruncateTo(id); truncErr != nil {
				return 0, fmt.Errorf("vecstore: put log append failed (%v) and rollback truncate failed: %w", err, truncErr)
			}
		}
		return 0, fmt.Errorf("vecstore: put log append: %w", err)
	}

	s.idx.Put(key, id, offset)

	if wasResurrection {
		s.maybeCompact()
	}

	return id, nil
}

// Get looks up key, verifying the stored record's CRC and tombstone bit by
// re-decoding it at its recorded offset.
func (s *Store) Get(key string) (vec []float32, value []byte, err error) {
	if key == "" {
		return nil, nil, fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.idx.Lookup(key)
	if !ok || e.Tombstone {
		return nil, nil, ErrNotFound
	}

	rec, err := s.log.ReadAt(e.Offset)
	if err != nil {
		return nil, nil, fmt.Errorf("vecstore: get: %w", err)
	}
	if rec.Tombstone || string(rec.Key) != key {
		return nil, nil, ErrNotFound
	}

	mirrored := s.vecs.Mirror(e.ID)
	out := make([]float32, len(mirrored))
	copy(out, mirrored)

	return out, rec.Value, nil
}

// Delete tombstones key, reporting whether it had been live.
func (s *Store) Delete(key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.idx.Lookup(key)
	if !ok || e.Tombstone {
		return false, nil
	}

	offset, err := s.log.Append(codec.Record{ID: e.ID, Key: []byte(key), Value: nil, Tombstone: true})
	if err != nil {
		return false, fmt.Errorf("vecstore: delete: %w", err)
	}

	s.idx.Delete(key, offset)
	s.maybeCompact()

	return true, nil
}

// SearchResult is one ranked hit from Search.
type SearchResult struct {
	Key   string
	Score float32
	Value []byte
}

// Search returns up to k live entries ranked by descending score against
// query, ties broken by ascending id. Implements spec §4.5 search: scans
// every live slot via the in-memory mirror, keeping a bounded min-heap of
// the k best, then materializes value bytes via positional log reads only
// for the surviving candidates.
func (s *Store) Search(query []float32, k uint32) ([]SearchResult, error) {
	if uint32(len(query)) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dims, want %d", ErrInvalidArgument, len(query), s.dimension)
	}
	if k == 0 {
		return nil, fmt.Errorf("%w: k must be >= 1", ErrInvalidArgument)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	h := newTopKHeap(int(k))

	s.idx.Range(func(key string, e index.Entry) {
		if e.Tombstone {
			return
		}
		score := s.opts.Metric.score(query, s.vecs.Mirror(e.ID))
		h.Offer(e.ID, key, score)
	})

	ranked := h.Sorted()
	results := make([]SearchResult, 0, len(ranked))

	for _, cand := range ranked {
		e, ok := s.idx.Lookup(cand.key)
		if !ok || e.Tombstone {
			continue // deleted mid-scan is impossible under RLock, defensive only
		}

		rec, err := s.log.ReadAt(e.Offset)
		if err != nil {
			return nil, fmt.Errorf("vecstore: search: reading value for %q: %w", cand.key, err)
		}

		results = append(results, SearchResult{Key: cand.key, Score: cand.score, Value: rec.Value})
	}

	return results, nil
}
