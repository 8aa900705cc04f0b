package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollisionGrid_StaticMask(t *testing.T) {
	g := NewCollisionGrid(RowMask{
		"....",
		".#..",
		"...#",
	})
	assert.Equal(t, 4, g.Width())
	assert.Equal(t, 3, g.Height())
	assert.True(t, g.IsBlocked(Pos{1, 1}))
	assert.True(t, g.IsBlocked(Pos{3, 2}))
	assert.False(t, g.IsBlocked(Pos{0, 0}))
	assert.False(t, g.IsOccupied(Pos{1, 1}))
}

func TestCollisionGrid_OccupancyNeverNegative(t *testing.T) {
	g := NewCollisionGrid(OpenMask{W: 4, H: 4})
	p := Pos{2, 2}

	ops := []struct {
		occupy  bool
		count   int
		blocked bool
	}{
		{false, 0, false},
		{true, 1, true},
		{true, 2, true},
		{false, 1, true},
		{false, 0, false},
		{false, 0, false},
		{true, 1, true},
	}
	for i, op := range ops {
		if op.occupy {
			require.NoError(t, g.SetOccupied(p))
		} else {
			require.NoError(t, g.SetFree(p))
		}
		assert.Equal(t, op.count, g.Occupancy(p), "step %d", i)
		assert.Equal(t, op.blocked, g.IsBlocked(p), "step %d", i)
	}
}

func TestCollisionGrid_StaticStaysBlockedWhenFreed(t *testing.T) {
	g := NewCollisionGrid(RowMask{"#."})
	require.NoError(t, g.SetOccupied(Pos{0, 0}))
	require.NoError(t, g.SetFree(Pos{0, 0}))
	assert.True(t, g.IsBlocked(Pos{0, 0}))
	assert.False(t, g.IsOccupied(Pos{0, 0}))
}

func TestCollisionGrid_OutOfBounds(t *testing.T) {
	g := NewCollisionGrid(OpenMask{W: 3, H: 3})
	assert.ErrorIs(t, g.SetOccupied(Pos{-1, 0}), ErrOutOfBounds)
	assert.ErrorIs(t, g.SetFree(Pos{3, 0}), ErrOutOfBounds)
	assert.True(t, g.IsBlocked(Pos{0, 3}))
	assert.Equal(t, 0, g.Occupancy(Pos{9, 9}))
}

func TestCollisionGrid_SnapshotIsDetached(t *testing.T) {
	g := NewCollisionGrid(OpenMask{W: 3, H: 3})
	require.NoError(t, g.SetOccupied(Pos{1, 1}))

	q := g.Snapshot()
	assert.True(t, q.IsBlocked(Pos{1, 1}))

	q.SetWalkable(Pos{1, 1}, true)
	assert.False(t, q.IsBlocked(Pos{1, 1}))
	assert.True(t, g.IsBlocked(Pos{1, 1}))

	require.NoError(t, g.SetOccupied(Pos{0, 0}))
	assert.False(t, q.IsBlocked(Pos{0, 0}))
}
