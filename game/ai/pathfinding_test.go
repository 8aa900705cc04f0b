package ai

import (
	"testing"

	"github.com/kasuganosora/isoarpg/game/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertValidPath(t *testing.T, g grid.Blocker, path []grid.Pos, patched grid.Pos) {
	t.Helper()
	for i := 1; i < len(path); i++ {
		require.Equal(t, 1, grid.Distance(path[i-1], path[i]), "step %d", i)
		if path[i] != patched {
			require.False(t, g.IsBlocked(path[i]), "cell %s blocked", path[i])
		}
	}
}

func TestFindPath_Open(t *testing.T) {
	g := grid.NewCollisionGrid(grid.OpenMask{W: 10, H: 10})
	path := FindPath(g, grid.Pos{0, 0}, grid.Pos{5, 5}, DefaultPathOptions)
	require.Len(t, path, 6)
	assert.Equal(t, grid.Pos{0, 0}, path[0])
	assert.Equal(t, grid.Pos{5, 5}, path[5])
	assertValidPath(t, g, path, grid.Pos{-1, -1})
}

func TestFindPath_AroundWall(t *testing.T) {
	g := grid.NewCollisionGrid(grid.RowMask{
		"........",
		"..#.....",
		"..#.....",
		"..#.....",
		"........",
	})
	path := FindPath(g, grid.Pos{0, 2}, grid.Pos{5, 2}, DefaultPathOptions)
	require.NotEmpty(t, path)
	assert.Equal(t, grid.Pos{5, 2}, path[len(path)-1])
	assertValidPath(t, g, path, grid.Pos{-1, -1})
}

func TestFindPath_NoCornerCutting(t *testing.T) {
	g := grid.NewCollisionGrid(grid.RowMask{
		".#",
		"..",
	})
	path := FindPath(g, grid.Pos{0, 0}, grid.Pos{1, 1}, DefaultPathOptions)
	require.Equal(t, []grid.Pos{{0, 0}, {0, 1}, {1, 1}}, path)

	loose := FindPath(g, grid.Pos{0, 0}, grid.Pos{1, 1}, PathOptions{AllowDiagonal: true})
	assert.Equal(t, []grid.Pos{{0, 0}, {1, 1}}, loose)
}

func TestFindPath_DiagonalBetweenTwoWalls(t *testing.T) {
	g := grid.NewCollisionGrid(grid.RowMask{
		".#",
		"#.",
	})
	assert.Nil(t, FindPath(g, grid.Pos{0, 0}, grid.Pos{1, 1}, DefaultPathOptions))
}

func TestFindPath_StartOccupiedGoalBlocked(t *testing.T) {
	g := grid.NewCollisionGrid(grid.OpenMask{W: 6, H: 6})
	require.NoError(t, g.SetOccupied(grid.Pos{1, 1}))
	require.NoError(t, g.SetOccupied(grid.Pos{4, 4}))

	assert.Nil(t, FindPath(g, grid.Pos{1, 1}, grid.Pos{4, 4}, DefaultPathOptions))

	q := g.Snapshot()
	q.SetWalkable(grid.Pos{4, 4}, true)
	path := FindPath(q, grid.Pos{1, 1}, grid.Pos{4, 4}, DefaultPathOptions)
	require.Len(t, path, 4)
	assertValidPath(t, q, path, grid.Pos{4, 4})
	assert.True(t, g.IsBlocked(grid.Pos{4, 4}))
}

func TestFindPath_Degenerate(t *testing.T) {
	g := grid.NewCollisionGrid(grid.OpenMask{W: 3, H: 3})
	assert.Len(t, FindPath(g, grid.Pos{1, 1}, grid.Pos{1, 1}, DefaultPathOptions), 1)
	assert.Nil(t, FindPath(g, grid.Pos{1, 1}, grid.Pos{5, 1}, DefaultPathOptions))
	assert.Nil(t, FindPath(nil, grid.Pos{1, 1}, grid.Pos{2, 1}, DefaultPathOptions))
}

func TestFindPath_Unreachable(t *testing.T) {
	g := grid.NewCollisionGrid(grid.RowMask{
		"..#..",
		"..#..",
		"###..",
		".....",
	})
	assert.Nil(t, FindPath(g, grid.Pos{0, 0}, grid.Pos{4, 3}, DefaultPathOptions))
}
