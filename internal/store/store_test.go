package store_test

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/vecstore/internal/store"
	"github.com/driftlock/vecstore/internal/vfs"
)

func openTestStore(t *testing.T, dim uint32, opts store.Options) (*store.Store, string) {
	t.Helper()

	dir := t.TempDir()
	s, err := store.Open(vfs.NewReal(), dir, dim, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, dir
}

// Scenario 1 (spec §8): open empty dir D=4; put("a", ...); get/search round-trip.
func Test_Scenario_Put_Get_Search_SingleKey(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t, 4, store.DefaultOptions())

	id, err := s.Put("a", []float32{1, 0, 0, 0}, []byte(`{"t":1}`))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)

	vec, value, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, vec)
	assert.Equal(t, `{"t":1}`, string(value))

	results, err := s.Search([]float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Key)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

// Scenario 2 (spec §8): 10 orthonormal unit vectors (one-hot in 10-D); query
// one of them with k=3 returns it first at score 1.0, then two ties at 0.0
// broken by ascending id.
func Test_Scenario_Search_OrthonormalVectors_TiesBrokenByAscendingId(t *testing.T) {
	t.Parallel()

	const dim = 10
	s, _ := openTestStore(t, dim, store.DefaultOptions())

	for i := 0; i < dim; i++ {
		vec := make([]float32, dim)
		vec[i] = 1
		_, err := s.Put(keyFor(i), vec, nil)
		require.NoError(t, err)
	}

	query := make([]float32, dim)
	query[0] = 1

	results, err := s.Search(query, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, keyFor(0), results[0].Key)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	assert.InDelta(t, 0.0, results[1].Score, 1e-6)
	assert.InDelta(t, 0.0, results[2].Score, 1e-6)
	assert.Equal(t, keyFor(1), results[1].Key)
	assert.Equal(t, keyFor(2), results[2].Key)
}

func keyFor(i int) string {
	return string(rune('a' + i))
}

// Scenario 3 (spec §8): put a, put b, delete a, reopen: get(a) not-found,
// free list contains id 0, slot_count == 2. Deleting 1 of 2 ids gives a dead
// ratio of 0.5, which would trigger compaction at the default threshold, so
// the first open raises the threshold to keep both slots on disk.
func Test_Scenario_Delete_Then_Reopen_FreesId(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := vfs.NewReal()

	opts := store.DefaultOptions()
	opts.CompactionThreshold = 0.75

	s, err := store.Open(fsys, dir, 2, opts)
	require.NoError(t, err)

	_, err = s.Put("a", []float32{1, 1}, nil)
	require.NoError(t, err)
	_, err = s.Put("b", []float32{2, 2}, nil)
	require.NoError(t, err)

	ok, err := s.Delete("a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Close())

	s2, err := store.Open(fsys, dir, 2, store.DefaultOptions())
	require.NoError(t, err)
	defer s2.Close()

	_, _, err = s2.Get("a")
	require.ErrorIs(t, err, store.ErrNotFound)

	stats := s2.Stats()
	assert.Equal(t, uint32(2), stats.SlotCount)
	assert.Equal(t, 1, stats.FreeCount)
}

// Scenario 4 (spec §8): put 10 keys, delete 6. Compaction triggers eagerly
// (dead_ratio >= threshold, checked after every delete), not just once at
// the end: the 5th delete brings free={0..4}, dead_ratio=5/10=0.5 >= 0.5,
// so compaction fires mid-sequence and densifies the 5 still-live keys
// (indices 5-9) down to ids 0-4. The 6th delete then removes one of
// *those* (index 5, now id 0), leaving slot_count=5, free=1, live=4.
func Test_Scenario_Compaction_Triggers_At_DeadRatio(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t, 2, store.DefaultOptions())

	for i := 0; i < 10; i++ {
		_, err := s.Put(keyFor(i), []float32{float32(i), float32(i)}, []byte(keyFor(i)))
		require.NoError(t, err)
	}

	for i := 0; i < 6; i++ {
		ok, err := s.Delete(keyFor(i))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	stats := s.Stats()
	assert.Equal(t, uint32(5), stats.SlotCount)
	assert.Equal(t, 1, stats.FreeCount)
	assert.Equal(t, 4, stats.LiveCount)

	for i := 6; i < 10; i++ {
		_, _, err := s.Get(keyFor(i))
		require.NoError(t, err)
	}
}

// Scenario 5 (spec §8): write a put, then truncate the log by 3 bytes to
// simulate a torn tail; reopen succeeds, that key is absent, its vector
// slot is in the free list.
func Test_Scenario_TornLogTail_RecoversToFreeSlot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := vfs.NewReal()

	s, err := store.Open(fsys, dir, 4, store.DefaultOptions())
	require.NoError(t, err)

	_, err = s.Put("a", []float32{1, 2, 3, 4}, []byte("value"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	logPath := filepath.Join(dir, "data.log")
	raw, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(logPath, raw[:len(raw)-3], 0o644))

	s2, err := store.Open(fsys, dir, 4, store.DefaultOptions())
	require.NoError(t, err)
	defer s2.Close()

	_, _, err = s2.Get("a")
	require.ErrorIs(t, err, store.ErrNotFound)

	stats := s2.Stats()
	assert.Equal(t, 1, stats.FreeCount)
}

// Scenario 6 (spec §8): corrupt the vector file by appending half a slot's
// worth of bytes; reopen truncates to the last whole slot and succeeds.
func Test_Scenario_TornVectorSlot_TruncatesAndRecovers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := vfs.NewReal()

	s, err := store.Open(fsys, dir, 4, store.DefaultOptions())
	require.NoError(t, err)

	_, err = s.Put("a", []float32{1, 2, 3, 4}, []byte("value"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	vecsPath := filepath.Join(dir, "vectors.bin")
	raw, err := os.ReadFile(vecsPath)
	require.NoError(t, err)
	raw = append(raw, 0, 0, 0, 0, 0, 0, 0, 0) // half a 4*4=16-byte slot
	require.NoError(t, os.WriteFile(vecsPath, raw, 0o644))

	s2, err := store.Open(fsys, dir, 4, store.DefaultOptions())
	require.NoError(t, err)
	defer s2.Close()

	vec, _, err := s2.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, vec)
}

// Crash test (spec §8): fault after vector append, before log append:
// recovery succeeds, key is absent, slot id is in the free list.
func Test_Crash_VectorAppendedWithoutLogRecord_RecoversToFreeSlot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := vfs.NewReal()

	s, err := store.Open(fsys, dir, 4, store.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Simulate step 2 of put succeeding (vector slot durable) with step 3
	// (log append) never happening, by appending a raw slot directly.
	appendRawSlot(t, filepath.Join(dir, "vectors.bin"), []float32{9, 9, 9, 9})

	s2, err := store.Open(fsys, dir, 4, store.DefaultOptions())
	require.NoError(t, err)
	defer s2.Close()

	stats := s2.Stats()
	assert.Equal(t, uint32(1), stats.SlotCount)
	assert.Equal(t, 1, stats.FreeCount)
	assert.Equal(t, 0, stats.LiveCount)

	// The freed slot is reused on the next put.
	id, err := s2.Put("a", []float32{1, 1, 1, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)
}

func appendRawSlot(t *testing.T, path string, vec []float32) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer f.Close()

	info, err := f.Stat()
	require.NoError(t, err)

	raw := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], math.Float32bits(v))
	}

	_, err = f.WriteAt(raw, info.Size())
	require.NoError(t, err)
	require.NoError(t, f.Sync())
}

func Test_Put_Rejects_Empty_Key_And_Wrong_Dimension(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t, 3, store.DefaultOptions())

	_, err := s.Put("", []float32{1, 2, 3}, nil)
	require.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = s.Put("a", []float32{1, 2}, nil)
	require.ErrorIs(t, err, store.ErrInvalidArgument)
}

func Test_Search_Rejects_Zero_K(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t, 3, store.DefaultOptions())

	_, err := s.Put("a", []float32{1, 2, 3}, nil)
	require.NoError(t, err)

	_, err = s.Search([]float32{1, 2, 3}, 0)
	require.ErrorIs(t, err, store.ErrInvalidArgument)
}

func Test_Open_Second_Instance_Same_Dir_Returns_ErrLocked(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fsys := vfs.NewReal()

	s1, err := store.Open(fsys, dir, 2, store.DefaultOptions())
	require.NoError(t, err)
	defer s1.Close()

	_, err = store.Open(fsys, dir, 2, store.DefaultOptions())
	require.ErrorIs(t, err, store.ErrLocked)
}
