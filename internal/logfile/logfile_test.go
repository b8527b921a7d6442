package logfile_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/vecstore/internal/codec"
	"github.com/driftlock/vecstore/internal/logfile"
	"github.com/driftlock/vecstore/internal/vfs"
)

func Test_Append_Then_ReadAt_RoundTrips(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.log")
	f, err := logfile.Open(vfs.NewReal(), path, 4)
	require.NoError(t, err)
	defer f.Close()

	offset, err := f.Append(codec.Record{ID: 0, Key: []byte("a"), Value: []byte(`{"t":1}`)})
	require.NoError(t, err)

	rec, err := f.ReadAt(offset)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), rec.ID)
	assert.Equal(t, "a", string(rec.Key))
	assert.Equal(t, `{"t":1}`, string(rec.Value))
	assert.False(t, rec.Tombstone)
}

func Test_Scan_Yields_Records_In_Order(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.log")
	f, err := logfile.Open(vfs.NewReal(), path, 4)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append(codec.Record{ID: 0, Key: []byte("a"), Value: []byte("1")})
	require.NoError(t, err)
	_, err = f.Append(codec.Record{ID: 1, Key: []byte("b"), Value: []byte("2")})
	require.NoError(t, err)
	_, err = f.Append(codec.Record{ID: 0, Key: []byte("a"), Value: nil, Tombstone: true})
	require.NoError(t, err)

	var keys []string
	var tombstones []bool
	tornAt, err := f.Scan(func(offset int64, rec codec.Record) error {
		keys = append(keys, string(rec.Key))
		tombstones = append(tombstones, rec.Tombstone)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, f.End(), tornAt)
	assert.Equal(t, []string{"a", "b", "a"}, keys)
	assert.Equal(t, []bool{false, false, true}, tombstones)
}

func Test_Scan_Stops_At_Torn_Record_And_Reports_Its_Offset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "data.log")
	real := vfs.NewReal()

	f, err := logfile.Open(real, path, 4)
	require.NoError(t, err)

	goodOffset, err := f.Append(codec.Record{ID: 0, Key: []byte("a"), Value: []byte("1")})
	require.NoError(t, err)
	tornOffset, err := f.Append(codec.Record{ID: 1, Key: []byte("b"), Value: []byte("2")})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Simulate a torn tail: truncate the last 3 bytes off the file.
	raw, err := real.ReadFile(path)
	require.NoError(t, err)
	raw = raw[:len(raw)-3]
	require.NoError(t, real.WriteFileAtomic(path, raw, 0o644))

	f2, err := logfile.Open(real, path, 4)
	require.NoError(t, err)
	defer f2.Close()

	var seen []int64
	tornAt, err := f2.Scan(func(offset int64, rec codec.Record) error {
		seen = append(seen, offset)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{goodOffset}, seen)
	assert.Equal(t, tornOffset, tornAt)
}

func Test_TruncateTo_Discards_Torn_Tail(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.log")
	f, err := logfile.Open(vfs.NewReal(), path, 4)
	require.NoError(t, err)
	defer f.Close()

	goodOffset, err := f.Append(codec.Record{ID: 0, Key: []byte("a"), Value: []byte("1")})
	require.NoError(t, err)
	_, err = f.Append(codec.Record{ID: 1, Key: []byte("b"), Value: []byte("2")})
	require.NoError(t, err)

	require.NoError(t, f.TruncateTo(goodOffset+int64(len(codec.Encode(codec.Record{ID: 0, Key: []byte("a"), Value: []byte("1")})))))

	var keys []string
	_, err = f.Scan(func(offset int64, rec codec.Record) error {
		keys = append(keys, string(rec.Key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
}
