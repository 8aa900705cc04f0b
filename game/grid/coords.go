package grid

import (
	"fmt"
	"math"
)

// Pos is a grid cell coordinate (column, row).
type Pos struct {
	X, Y int
}

// Add returns p offset by o.
func (p Pos) Add(o Pos) Pos {
	return Pos{p.X + o.X, p.Y + o.Y}
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Vec2 is a continuous world or screen space coordinate.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }
func (v Vec2) DistanceTo(o Vec2) float64 { return v.Sub(o).Len() }

// Normalize returns the unit vector of v, or the zero vector when v has no length.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Direction is one of the 8 compass facings. DirNone means "no direction".
type Direction int

const DirNone Direction = -1

var dirOffsets = [8]Pos{
	{1, 1},   // 0
	{0, 1},   // 1
	{-1, 1},  // 2
	{-1, 0},  // 3
	{-1, -1}, // 4
	{0, -1},  // 5
	{1, -1},  // 6
	{1, 0},   // 7
}

// dirLookup is indexed by [dy+1][dx+1].
var dirLookup = [3][3]Direction{
	{4, 5, 6},
	{3, DirNone, 7},
	{2, 1, 0},
}

// Valid reports whether d is one of the 8 facings.
func (d Direction) Valid() bool {
	return d >= 0 && d < 8
}

// Offset returns the unit grid step for d. DirNone yields the zero offset.
func (d Direction) Offset() Pos {
	if !d.Valid() {
		return Pos{}
	}
	return dirOffsets[d]
}

// Rotate turns d by n steps, wrapping into [0,8).
func (d Direction) Rotate(n int) Direction {
	return Direction(((int(d)+n)%8 + 8) % 8)
}

// DirectionOf maps the sign of to-from onto a facing.
// Returns DirNone when from == to; callers keep their previous facing.
func DirectionOf(from, to Pos) Direction {
	return dirLookup[sign(to.Y-from.Y)+1][sign(to.X-from.X)+1]
}

// Distance is the Chebyshev distance; every 8-neighbour is at distance 1.
func Distance(a, b Pos) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

// AxisSum is |dx|+|dy|, used for coarse range checks.
func AxisSum(a, b Pos) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Projection holds the isometric tile metrics and the level extent.
type Projection struct {
	TileWidth  float64
	TileHeight float64
	Width      int
	Height     int
}

// InBounds reports whether p lies inside the level.
func (pr Projection) InBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < pr.Width && p.Y < pr.Height
}

// WorldToGrid converts a world position into the cell under it.
// Positions outside the level are clamped onto the nearest edge cell.
func (pr Projection) WorldToGrid(w Vec2) Pos {
	col := w.X/pr.TileWidth - w.Y/pr.TileHeight
	row := -2*w.Y/pr.TileHeight - col
	return Pos{
		X: clamp(int(math.Floor(col)), 0, pr.Width-1),
		Y: clamp(int(math.Floor(row)), 0, pr.Height-1),
	}
}

// GridToWorld returns the world anchor (top corner) of a cell.
func (pr Projection) GridToWorld(p Pos) Vec2 {
	return Vec2{
		X: float64(p.X-p.Y) * pr.TileWidth / 2,
		Y: -pr.TileHeight/2 - float64(p.X+p.Y)*pr.TileHeight/2,
	}
}

// MoveSpeed returns the travel speed for one step in direction d.
// Directions 0 and 4 run vertically on screen, 2 and 6 horizontally; the
// grid-axis steps are screen diagonals and get a blended speed so that a
// step takes comparable wall-clock time whatever the facing.
func (pr Projection) MoveSpeed(d Direction, xSpeed, ySpeed float64) float64 {
	switch d {
	case 0, 4:
		return ySpeed
	case 2, 6:
		return xSpeed
	}
	sum := pr.TileWidth + pr.TileHeight
	return xSpeed*(pr.TileWidth/sum) + ySpeed*(pr.TileHeight/sum)
}

// Viewport is the screen size in pixels.
type Viewport struct {
	Width, Height float64
}

// Camera is an orthographic camera looking down on the z=0 world plane.
type Camera struct {
	Center Vec2
	Zoom   float64
}

// ScreenToWorld un-projects a screen pixel (origin top-left, y down) onto the world plane.
func ScreenToWorld(screen Vec2, vp Viewport, cam Camera) Vec2 {
	zoom := cam.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	ndcX := screen.X/vp.Width*2 - 1
	ndcY := 1 - screen.Y/vp.Height*2
	return Vec2{
		X: cam.Center.X + ndcX*vp.Width/2/zoom,
		Y: cam.Center.Y + ndcY*vp.Height/2/zoom,
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
