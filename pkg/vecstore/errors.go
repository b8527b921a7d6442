package vecstore

import "github.com/driftlock/vecstore/internal/store"

// Sentinel errors, errors.Is-compatible. Callers should check against these
// rather than internal/store's copies; the two are the same values.
var (
	// ErrInvalidArgument: dimension mismatch, empty key, k == 0.
	ErrInvalidArgument = store.ErrInvalidArgument

	// ErrNotFound: Get of an absent or tombstoned key. Delete of such a key
	// returns false with a nil error instead.
	ErrNotFound = store.ErrNotFound

	// ErrCorrupt: header mismatch, dimension mismatch across files, or a
	// durable Vector First violation detected during recovery.
	ErrCorrupt = store.ErrCorrupt

	// ErrCapacity: the id space (2^32 slots) is exhausted.
	ErrCapacity = store.ErrCapacity

	// ErrLocked: another process already holds the directory's lock file.
	ErrLocked = store.ErrLocked
)
