// Package index holds the in-memory key index and free-id list. Both are
// pure in-memory state: no file handles, no I/O. The store coordinator
// rebuilds them from scratch on every open by replaying the log.
package index

// Entry is the index's view of one key: which vector slot it occupies, the
// log offset of its latest (live) record, and whether that record is a
// tombstone.
type Entry struct {
	ID        uint32
	Offset    int64
	Tombstone bool
}

// Index maps key to Entry and tracks the free id list (ids whose latest
// state is tombstone, eligible for reuse on the next put).
type Index struct {
	entries map[string]Entry
	free    []uint32 // LIFO: last deleted, first reused
}

// New returns an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Lookup returns the entry for key, if present.
func (ix *Index) Lookup(key string) (Entry, bool) {
	e, ok := ix.entries[key]
	return e, ok
}

// Put records key as live at (id, offset), clearing any tombstone bit. If
// id was previously on the free list (a resurrection of a just-deleted
// id), the caller is responsible for having already removed it via
// [Index.RemoveFree] (or drawn it via [Index.PopFree]); Put itself never
// touches the free list.
func (ix *Index) Put(key string, id uint32, offset int64) {
	ix.entries[key] = Entry{ID: id, Offset: offset, Tombstone: false}
}

// Delete marks key's entry as tombstoned at the given offset (the offset of
// the tombstone record just appended) and pushes its id onto the free list.
// Delete is a no-op if key is absent or already tombstoned; callers should
// check [Index.Lookup] first per spec semantics (delete of an
// absent/tombstoned key returns false without mutation).
func (ix *Index) Delete(key string, offset int64) {
	e, ok := ix.entries[key]
	if !ok || e.Tombstone {
		return
	}

	e.Offset = offset
	e.Tombstone = true
	ix.entries[key] = e

	ix.PushFree(e.ID)
}

// PushFree adds id to the free list (LIFO).
func (ix *Index) PushFree(id uint32) {
	ix.free = append(ix.free, id)
}

// RemoveFree removes id from the free list if present, reporting whether it
// was found. Used when a put resurrects a tombstoned key directly (reusing
// its own id rather than drawing a fresh one from the pool).
func (ix *Index) RemoveFree(id uint32) bool {
	for i, v := range ix.free {
		if v == id {
			ix.free = append(ix.free[:i], ix.free[i+1:]...)
			return true
		}
	}
	return false
}

// PopFree removes and returns the most recently freed id, if any.
func (ix *Index) PopFree() (uint32, bool) {
	if len(ix.free) == 0 {
		return 0, false
	}

	n := len(ix.free) - 1
	id := ix.free[n]
	ix.free = ix.free[:n]

	return id, true
}

// FreeCount returns the number of ids currently on the free list.
func (ix *Index) FreeCount() int { return len(ix.free) }

// Len returns the number of keys tracked (live and tombstoned).
func (ix *Index) Len() int { return len(ix.entries) }

// Reset clears all entries and the free list, for rebuilding after
// recovery or compaction.
func (ix *Index) Reset() {
	ix.entries = make(map[string]Entry)
	ix.free = nil
}

// Range calls fn for every key/entry pair. Iteration order is unspecified.
func (ix *Index) Range(fn func(key string, e Entry)) {
	for k, e := range ix.entries {
		fn(k, e)
	}
}

// SetRaw installs key directly at entry, bypassing the live-update rules in
// [Index.Put]/[Index.Delete]. Used only by recovery, which replays history
// it has already validated rather than re-deriving free-list transitions.
func (ix *Index) SetRaw(key string, e Entry) {
	ix.entries[key] = e
}
