// Package store implements the vecstore coordinator: put, get, delete,
// search, recovery, and compaction, all serialized through a single
// process-wide reader-writer lock (spec §4.5, §5).
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/driftlock/vecstore/internal/codec"
	"github.com/driftlock/vecstore/internal/index"
	"github.com/driftlock/vecstore/internal/logfile"
	"github.com/driftlock/vecstore/internal/vecfile"
	"github.com/driftlock/vecstore/internal/vfs"
)

const (
	vectorsFileName = "vectors.bin"
	logFileName     = "data.log"
	lockFileName    = "LOCK"
)

// Store is the coordinator. One Store exclusively owns both on-disk files
// and the in-memory index/mirror for a directory; all access goes through
// it under mu.
type Store struct {
	mu sync.RWMutex

	fs  vfs.FS
	dir string

	dimension uint32
	opts      Options

	vecs *vecfile.File
	log  *logfile.File
	idx  *index.Index

	lock *vfs.Lock // advisory inter-process lock; nil if locking was skipped

	generation uint64 // incremented each time compaction runs
}

// Stats summarizes the store's current on-disk shape, for operational
// visibility without forcing a full scan (§9, the one feature this repo
// adds beyond the wire-format spec).
type Stats struct {
	LiveCount  int
	SlotCount  uint32
	FreeCount  int
	DeadRatio  float64
	Generation uint64
}

// Open opens (creating if necessary) a store rooted at dir, recovering from
// any prior crash per spec §4.5.
func Open(fsys vfs.FS, dir string, dimension uint32, opts Options) (*Store, error) {
	if dimension == 0 {
		return nil, fmt.Errorf("%w: dimension must be > 0", ErrInvalidArgument)
	}

	opts = opts.withDefaults()

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("vecstore: creating %s: %w", dir, err)
	}

	lock, err := acquireLock(fsys, dir)
	if err != nil {
		return nil, err
	}

	vecsPath := filepath.Join(dir, vectorsFileName)
	logPath := filepath.Join(dir, logFileName)

	vecs, err := vecfile.Open(fsys, vecsPath, dimension)
	if err != nil {
		releaseLock(lock)
		return nil, err
	}

	log, err := logfile.Open(fsys, logPath, dimension)
	if err != nil {
		_ = vecs.Close()
		releaseLock(lock)
		return nil, err
	}

	s := &Store{
		fs:        fsys,
		dir:       dir,
		dimension: dimension,
		opts:      opts,
		vecs:      vecs,
		log:       log,
		idx:       index.New(),
		lock:      lock,
	}

	if err := s.recover(); err != nil {
		_ = s.vecs.Close()
		_ = s.log.Close()
		releaseLock(lock)
		return nil, err
	}

	return s, nil
}

func acquireLock(fsys vfs.FS, dir string) (*vfs.Lock, error) {
	lockPath := filepath.Join(dir, lockFileName)
	locker := vfs.NewLocker(fsys)

	lock, err := locker.TryLock(lockPath)
	if err != nil {
		if errors.Is(err, vfs.ErrWouldBlock) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
		}
		return nil, fmt.Errorf("vecstore: acquiring lock: %w", err)
	}

	return lock, nil
}

func releaseLock(lock *vfs.Lock) {
	if lock != nil {
		_ = lock.Close()
	}
}

// recover implements spec §4.5 Recovery, steps 3-6 (step 1, header check,
// and step 2, vector slot alignment, already happened inside
// vecfile.Open/logfile.Open).
func (s *Store) recover() error {
	vecCount := s.vecs.SlotCount()

	type idRecord struct {
		seen      bool
		tombstone bool
	}
	idStates := make(map[uint32]*idRecord)
	keyLatest := make(map[string]index.Entry)

	var maxIDSeen int64 = -1

	tornAt, scanErr := s.log.Scan(func(offset int64, rec codec.Record) error {
		key := string(rec.Key)

		keyLatest[key] = index.Entry{ID: rec.ID, Offset: offset, Tombstone: rec.Tombstone}

		st, ok := idStates[rec.ID]
		if !ok {
			st = &idRecord{}
			idStates[rec.ID] = st
		}
		st.seen = true
		st.tombstone = rec.Tombstone

		if int64(rec.ID) > maxIDSeen {
			maxIDSeen = int64(rec.ID)
		}

		return nil
	})
	if scanErr != nil {
		return fmt.Errorf("vecstore: recovery log scan: %w", scanErr)
	}

	if tornAt < s.log.End() {
		if err := s.log.TruncateTo(tornAt); err != nil {
			return fmt.Errorf("vecstore: truncating torn log tail: %w", err)
		}
	}

	if maxIDSeen >= int64(vecCount) {
		return fmt.Errorf("%w: max_id_seen=%d >= vec_count=%d (Vector First violated)", ErrCorrupt, maxIDSeen, vecCount)
	}

	s.idx.Reset()
	for key, entry := range keyLatest {
		s.idx.SetRaw(key, entry)
	}

	for id := uint32(0); id < vecCount; id++ {
		st, seen := idStates[id]
		if !seen || st.tombstone {
			s.idx.PushFree(id)
		}
	}

	return nil
}

// Stats returns a snapshot of the store's current shape.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.statsLocked()
}

func (s *Store) statsLocked() Stats {
	slotCount := s.vecs.SlotCount()
	free := s.idx.FreeCount()

	live := 0
	s.idx.Range(func(_ string, e index.Entry) {
		if !e.Tombstone {
			live++
		}
	})

	var deadRatio float64
	if slotCount > 0 {
		deadRatio = float64(free) / float64(slotCount)
	}

	return Stats{
		LiveCount:  live,
		SlotCount:  slotCount,
		FreeCount:  free,
		DeadRatio:  deadRatio,
		Generation: s.generation,
	}
}

// Close flushes and releases both files and the directory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	if err := s.vecs.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.log.Close(); err != nil {
		errs = append(errs, err)
	}

	releaseLock(s.lock)
	s.lock = nil

	return errors.Join(errs...)
}
