package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProjection() Projection {
	return Projection{TileWidth: 64, TileHeight: 32, Width: 50, Height: 50}
}

func TestGridToWorld_RoundTrip(t *testing.T) {
	pr := testProjection()
	for y := 0; y < pr.Height; y++ {
		for x := 0; x < pr.Width; x++ {
			p := Pos{x, y}
			require.Equal(t, p, pr.WorldToGrid(pr.GridToWorld(p)), "cell %s", p)
		}
	}
}

func TestGridToWorld_Anchor(t *testing.T) {
	pr := testProjection()
	assert.Equal(t, Vec2{0, -16}, pr.GridToWorld(Pos{0, 0}))
	assert.Equal(t, Vec2{32, -32}, pr.GridToWorld(Pos{1, 0}))
	assert.Equal(t, Vec2{-32, -32}, pr.GridToWorld(Pos{0, 1}))
}

func TestWorldToGrid_ClampsOffMap(t *testing.T) {
	pr := testProjection()
	assert.Equal(t, Pos{0, 0}, pr.WorldToGrid(Vec2{0, 5000}))
	assert.Equal(t, Pos{49, 49}, pr.WorldToGrid(Vec2{0, -50000}))
	assert.Equal(t, Pos{49, 0}, pr.WorldToGrid(Vec2{90000, 0}))
}

func TestDirectionOf(t *testing.T) {
	origin := Pos{5, 5}
	cases := []struct {
		to   Pos
		want Direction
	}{
		{Pos{6, 6}, 0},
		{Pos{5, 9}, 1},
		{Pos{1, 8}, 2},
		{Pos{2, 5}, 3},
		{Pos{4, 4}, 4},
		{Pos{5, 0}, 5},
		{Pos{9, 1}, 6},
		{Pos{7, 5}, 7},
		{Pos{5, 5}, DirNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DirectionOf(origin, tc.to), "to %s", tc.to)
	}
}

func TestDirection_OffsetInverse(t *testing.T) {
	for d := Direction(0); d < 8; d++ {
		p := Pos{3, 3}
		assert.Equal(t, d, DirectionOf(p, p.Add(d.Offset())))
	}
	assert.Equal(t, Pos{}, DirNone.Offset())
}

func TestDirection_Rotate(t *testing.T) {
	assert.Equal(t, Direction(1), Direction(0).Rotate(1))
	assert.Equal(t, Direction(7), Direction(0).Rotate(-1))
	assert.Equal(t, Direction(0), Direction(7).Rotate(1))
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 1, Distance(Pos{0, 0}, Pos{1, 1}))
	assert.Equal(t, 4, Distance(Pos{0, 0}, Pos{-4, 2}))
	assert.Equal(t, 0, Distance(Pos{3, 3}, Pos{3, 3}))
	assert.Equal(t, 6, AxisSum(Pos{0, 0}, Pos{-4, 2}))
}

func TestMoveSpeed(t *testing.T) {
	pr := testProjection()
	assert.Equal(t, 100.0, pr.MoveSpeed(0, 150, 100))
	assert.Equal(t, 100.0, pr.MoveSpeed(4, 150, 100))
	assert.Equal(t, 150.0, pr.MoveSpeed(2, 150, 100))
	assert.Equal(t, 150.0, pr.MoveSpeed(6, 150, 100))
	blend := 150*64.0/96 + 100*32.0/96
	for _, d := range []Direction{1, 3, 5, 7} {
		assert.InDelta(t, blend, pr.MoveSpeed(d, 150, 100), 1e-9)
	}
}

func TestScreenToWorld(t *testing.T) {
	vp := Viewport{Width: 800, Height: 600}
	cam := Camera{Center: Vec2{100, -50}, Zoom: 1}
	assert.Equal(t, Vec2{100, -50}, ScreenToWorld(Vec2{400, 300}, vp, cam))
	assert.Equal(t, Vec2{-300, 250}, ScreenToWorld(Vec2{0, 0}, vp, cam))

	cam.Zoom = 2
	assert.Equal(t, Vec2{300, -200}, ScreenToWorld(Vec2{800, 600}, vp, cam))
}
