package index_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlock/vecstore/internal/index"
)

func Test_Put_Then_Lookup_Returns_Live_Entry(t *testing.T) {
	t.Parallel()

	ix := index.New()
	ix.Put("a", 5, 100)

	e, ok := ix.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, index.Entry{ID: 5, Offset: 100, Tombstone: false}, e)
}

func Test_Delete_Tombstones_And_Frees_Id(t *testing.T) {
	t.Parallel()

	ix := index.New()
	ix.Put("a", 5, 100)
	ix.Delete("a", 200)

	e, ok := ix.Lookup("a")
	require.True(t, ok)
	assert.True(t, e.Tombstone)
	assert.Equal(t, int64(200), e.Offset)
	assert.Equal(t, 1, ix.FreeCount())

	id, ok := ix.PopFree()
	require.True(t, ok)
	assert.Equal(t, uint32(5), id)
}

func Test_Delete_Is_NoOp_For_Absent_Or_Tombstoned_Key(t *testing.T) {
	t.Parallel()

	ix := index.New()
	ix.Delete("missing", 100) // absent: no-op
	assert.Equal(t, 0, ix.FreeCount())

	ix.Put("a", 0, 10)
	ix.Delete("a", 20)
	assert.Equal(t, 1, ix.FreeCount())

	ix.Delete("a", 30) // already tombstoned: no-op
	assert.Equal(t, 1, ix.FreeCount())
}

func Test_PopFree_Is_LIFO(t *testing.T) {
	t.Parallel()

	ix := index.New()
	ix.PushFree(1)
	ix.PushFree(2)
	ix.PushFree(3)

	first, ok := ix.PopFree()
	require.True(t, ok)
	assert.Equal(t, uint32(3), first)

	second, ok := ix.PopFree()
	require.True(t, ok)
	assert.Equal(t, uint32(2), second)
}

func Test_RemoveFree_Removes_Specific_Id(t *testing.T) {
	t.Parallel()

	ix := index.New()
	ix.PushFree(1)
	ix.PushFree(2)
	ix.PushFree(3)

	require.True(t, ix.RemoveFree(2))
	assert.Equal(t, 2, ix.FreeCount())

	require.False(t, ix.RemoveFree(2))
}

func Test_Reset_Clears_Entries_And_Free_List(t *testing.T) {
	t.Parallel()

	ix := index.New()
	ix.Put("a", 0, 10)
	ix.PushFree(1)

	ix.Reset()

	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 0, ix.FreeCount())
	_, ok := ix.Lookup("a")
	assert.False(t, ok)
}
