package vecfile_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/vecstore/internal/vecfile"
	"github.com/driftlock/vecstore/internal/vfs"
)

func Test_Append_Assigns_Dense_Ids_And_Updates_Mirror(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vectors.bin")
	f, err := vecfile.Open(vfs.NewReal(), path, 3)
	require.NoError(t, err)
	defer f.Close()

	id0, err := f.Append([]float32{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id0)

	id1, err := f.Append([]float32{0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id1)

	assert.Equal(t, uint32(2), f.SlotCount())
	assert.Equal(t, []float32{1, 0, 0}, f.Mirror(id0))
	assert.Equal(t, []float32{0, 1, 0}, f.Mirror(id1))
}

func Test_Overwrite_Rewrites_Slot_In_Place(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vectors.bin")
	f, err := vecfile.Open(vfs.NewReal(), path, 2)
	require.NoError(t, err)
	defer f.Close()

	id, err := f.Append([]float32{1, 1})
	require.NoError(t, err)

	require.NoError(t, f.Overwrite(id, []float32{9, 9}))
	assert.Equal(t, []float32{9, 9}, f.Mirror(id))
	assert.Equal(t, uint32(1), f.SlotCount())
}

func Test_Reopen_Loads_Mirror_From_Disk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")

	f1, err := vecfile.Open(vfs.NewReal(), path, 4)
	require.NoError(t, err)

	_, err = f1.Append([]float32{1, 2, 3, 4})
	require.NoError(t, err)
	_, err = f1.Append([]float32{5, 6, 7, 8})
	require.NoError(t, err)
	require.NoError(t, f1.Close())

	f2, err := vecfile.Open(vfs.NewReal(), path, 4)
	require.NoError(t, err)
	defer f2.Close()

	assert.Equal(t, uint32(2), f2.SlotCount())
	assert.Equal(t, []float32{1, 2, 3, 4}, f2.Mirror(0))
	assert.Equal(t, []float32{5, 6, 7, 8}, f2.Mirror(1))
}

func Test_Open_Truncates_Torn_Trailing_Slot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")
	real := vfs.NewReal()

	f1, err := vecfile.Open(real, path, 4)
	require.NoError(t, err)
	_, err = f1.Append([]float32{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, f1.Close())

	// Simulate a crash mid-append: append 6 extra (half-slot) bytes directly.
	raw, err := real.ReadFile(path)
	require.NoError(t, err)
	raw = append(raw, 0, 0, 0, 0, 0, 0)
	require.NoError(t, real.WriteFileAtomic(path, raw, 0o644))

	f2, err := vecfile.Open(real, path, 4)
	require.NoError(t, err)
	defer f2.Close()

	assert.Equal(t, uint32(1), f2.SlotCount())
	assert.Equal(t, []float32{1, 2, 3, 4}, f2.Mirror(0))
}

func Test_TruncateTo_Shrinks_File_And_Mirror(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vectors.bin")
	f, err := vecfile.Open(vfs.NewReal(), path, 2)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append([]float32{1, 1})
	require.NoError(t, err)
	_, err = f.Append([]float32{2, 2})
	require.NoError(t, err)

	require.NoError(t, f.TruncateTo(1))
	assert.Equal(t, uint32(1), f.SlotCount())
	assert.Equal(t, []float32{1, 1}, f.Mirror(0))
}

func Test_Append_Rejects_Wrong_Dimension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vectors.bin")
	f, err := vecfile.Open(vfs.NewReal(), path, 3)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append([]float32{1, 2})
	require.Error(t, err)
}
