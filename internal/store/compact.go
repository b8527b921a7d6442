package store

import (
	"fmt"
	"path/filepath"

	"github.com/driftlock/vecstore/internal/codec"
	"github.com/driftlock/vecstore/internal/index"
	"github.com/driftlock/vecstore/internal/logfile"
	"github.com/driftlock/vecstore/internal/vecfile"
)

const (
	vectorsShadowName = vectorsFileName + ".tmp"
	logShadowName     = logFileName + ".tmp"
)

// maybeCompact runs compaction if the current dead ratio is at or above the
// configured threshold. Called with mu already held exclusively, after a
// delete or a put that resurrected a tombstoned key (spec §4.5 "Trigger").
func (s *Store) maybeCompact() {
	slotCount := s.vecs.SlotCount()
	if slotCount == 0 {
		return
	}

	deadRatio := float64(s.idx.FreeCount()) / float64(slotCount)
	if deadRatio < s.opts.CompactionThreshold {
		return
	}

	// Compaction errors are not returned to the operation that triggered it.
	// A failure while writing the shadow files leaves the live files
	// untouched (see compact), so the store keeps running with its
	// pre-compaction, merely space-inefficient, state. Errors from the swap
	// step are discarded in the same way.
	_ = s.compact()
}

type liveEntry struct {
	key       string
	oldID     uint32
	newID     uint32
	newOffset int64
	vec       []float32
}

// compact implements spec §4.5's compaction procedure: snapshot live
// entries, rewrite them densely into shadow files, then atomically swap
// the shadow files over the live ones. CompactionMode.Background is
// accepted at the API level but executes exactly this inline sequence — see
// DESIGN.md.
func (s *Store) compact() error {
	live := s.snapshotLiveAscending()

	vecsShadowPath := filepath.Join(s.dir, vectorsShadowName)
	logShadowPath := filepath.Join(s.dir, logShadowName)

	// Step 1-4: write shadow files with dense, fresh content. On any failure
	// here the live files were never touched; just clean up the shadows.
	if err := s.writeShadow(live, vecsShadowPath, logShadowPath); err != nil {
		_ = s.fs.Remove(vecsShadowPath)
		_ = s.fs.Remove(logShadowPath)
		return err
	}

	// Step 5: swap. Vectors first, then log, per spec ("ordering is: rename
	// vectors first, then log"). A crash between the two renames leaves a
	// state recovery must handle like any other crash (§4.6): the next open
	// sees either the old or the new vectors.bin, each paired consistently
	// enough with its own recovery pass against whichever data.log is live
	// at the time.
	if err := s.swapShadowIn(live, vecsShadowPath, logShadowPath); err != nil {
		return err
	}

	s.generation++

	return nil
}

func (s *Store) snapshotLiveAscending() []liveEntry {
	var live []liveEntry

	s.idx.Range(func(key string, e index.Entry) {
		if e.Tombstone {
			return
		}
		mirrored := s.vecs.Mirror(e.ID)
		vec := make([]float32, len(mirrored))
		copy(vec, mirrored)
		live = append(live, liveEntry{key: key, oldID: e.ID, vec: vec})
	})

	// Stable ascending order by existing id, per spec step 3.
	for i := 1; i < len(live); i++ {
		for j := i; j > 0 && live[j-1].oldID > live[j].oldID; j-- {
			live[j-1], live[j] = live[j], live[j-1]
		}
	}

	for i := range live {
		live[i].newID = uint32(i)
	}

	return live
}

func (s *Store) writeShadow(live []liveEntry, vecsPath, logPath string) error {
	shadowVecs, err := vecfile.Open(s.fs, vecsPath, s.dimension)
	if err != nil {
		return fmt.Errorf("vecstore: compact: opening shadow vectors file: %w", err)
	}
	defer shadowVecs.Close()

	shadowLog, err := logfile.Open(s.fs, logPath, s.dimension)
	if err != nil {
		return fmt.Errorf("vecstore: compact: opening shadow log file: %w", err)
	}
	defer shadowLog.Close()

	for i := range live {
		e := &live[i]

		value, err := s.valueForLiveEntry(e.key, e.oldID)
		if err != nil {
			return err
		}

		gotID, err := shadowVecs.Append(e.vec)
		if err != nil {
			return fmt.Errorf("vecstore: compact: writing shadow slot: %w", err)
		}
		if gotID != e.newID {
			return fmt.Errorf("vecstore: compact: internal error: shadow id %d, want %d", gotID, e.newID)
		}

		offset, err := shadowLog.Append(codec.Record{ID: e.newID, Key: []byte(e.key), Value: value, Tombstone: false})
		if err != nil {
			return fmt.Errorf("vecstore: compact: writing shadow record: %w", err)
		}
		e.newOffset = offset
	}

	return nil
}

func (s *Store) valueForLiveEntry(key string, id uint32) ([]byte, error) {
	e, ok := s.idx.Lookup(key)
	if !ok || e.Tombstone || e.ID != id {
		return nil, fmt.Errorf("vecstore: compact: index changed under write lock for key %q (invariant violation)", key)
	}

	rec, err := s.log.ReadAt(e.Offset)
	if err != nil {
		return nil, fmt.Errorf("vecstore: compact: reading live value for %q: %w", key, err)
	}

	return rec.Value, nil
}

func (s *Store) swapShadowIn(live []liveEntry, vecsShadowPath, logShadowPath string) error {
	vecsPath := filepath.Join(s.dir, vectorsFileName)
	logPath := filepath.Join(s.dir, logFileName)

	if err := s.fs.Rename(vecsShadowPath, vecsPath); err != nil {
		return fmt.Errorf("vecstore: compact: renaming vectors file: %w", err)
	}

	if err := s.fs.Rename(logShadowPath, logPath); err != nil {
		return fmt.Errorf("vecstore: compact: renaming log file: %w", err)
	}

	if err := s.vecs.Close(); err != nil {
		return fmt.Errorf("vecstore: compact: closing old vectors file: %w", err)
	}
	if err := s.log.Close(); err != nil {
		return fmt.Errorf("vecstore: compact: closing old log file: %w", err)
	}

	newVecs, err := vecfile.Open(s.fs, vecsPath, s.dimension)
	if err != nil {
		return fmt.Errorf("vecstore: compact: reopening vectors file: %w", err)
	}

	newLog, err := logfile.Open(s.fs, logPath, s.dimension)
	if err != nil {
		return fmt.Errorf("vecstore: compact: reopening log file: %w", err)
	}

	s.vecs = newVecs
	s.log = newLog

	s.idx.Reset()
	for _, e := range live {
		s.idx.SetRaw(e.key, index.Entry{ID: e.newID, Offset: e.newOffset, Tombstone: false})
	}

	return nil
}
