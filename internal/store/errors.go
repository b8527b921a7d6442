package store

import (
	"errors"

	"github.com/driftlock/vecstore/internal/codec"
)

var (
	// ErrInvalidArgument is returned for dimension mismatches, empty keys,
	// k == 0, and similar caller errors. No mutation occurs.
	ErrInvalidArgument = errors.New("vecstore: invalid argument")

	// ErrNotFound is returned by Get for an absent or tombstoned key. Delete
	// of such a key returns false with a nil error instead.
	ErrNotFound = errors.New("vecstore: not found")

	// ErrCapacity is returned when the id space (2^32 slots) is exhausted.
	ErrCapacity = errors.New("vecstore: id space exhausted")

	// ErrLocked is returned by Open when another process already holds the
	// directory's lock file.
	ErrLocked = errors.New("vecstore: store directory is locked by another process")

	// ErrCorrupt is [codec.ErrCorrupt], re-exported here so callers can
	// errors.Is against the store package without importing internal/codec.
	ErrCorrupt = codec.ErrCorrupt
)
