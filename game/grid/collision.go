package grid

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when a mutation targets a cell outside the level.
var ErrOutOfBounds = errors.New("grid: position out of bounds")

// Mask describes the static terrain of a level.
type Mask interface {
	Size() (width, height int)
	Blocked(p Pos) bool
}

// Blocker answers collision queries.
type Blocker interface {
	IsBlocked(p Pos) bool
}

// Grid is a bounded Blocker.
type Grid interface {
	Blocker
	InBounds(p Pos) bool
}

// RowMask is a Mask written as text rows; '#' marks a blocked cell.
type RowMask []string

func (m RowMask) Size() (int, int) {
	w := 0
	for _, r := range m {
		w = max(w, len(r))
	}
	return w, len(m)
}

func (m RowMask) Blocked(p Pos) bool {
	if p.Y < 0 || p.Y >= len(m) || p.X < 0 || p.X >= len(m[p.Y]) {
		return false
	}
	return m[p.Y][p.X] == '#'
}

// OpenMask is an unobstructed level of the given size.
type OpenMask struct{ W, H int }

func (m OpenMask) Size() (int, int) { return m.W, m.H }
func (m OpenMask) Blocked(Pos) bool { return false }

// CollisionGrid merges the static terrain with reference-counted dynamic
// occupancy. A cell is blocked when it is static-blocked or its count is > 0.
// Not safe for concurrent use; the owning level serialises access.
type CollisionGrid struct {
	width, height int
	static        []bool
	occupancy     []int
}

// NewCollisionGrid builds the static layer from mask with every occupancy count at zero.
func NewCollisionGrid(mask Mask) *CollisionGrid {
	w, h := mask.Size()
	g := &CollisionGrid{
		width:     w,
		height:    h,
		static:    make([]bool, w*h),
		occupancy: make([]int, w*h),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.static[y*w+x] = mask.Blocked(Pos{x, y})
		}
	}
	return g
}

func (g *CollisionGrid) Width() int { return g.width }
func (g *CollisionGrid) Height() int { return g.height }

func (g *CollisionGrid) InBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}

func (g *CollisionGrid) index(p Pos) (int, error) {
	if !g.InBounds(p) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	return p.Y*g.width + p.X, nil
}

// SetOccupied adds one occupant to p.
func (g *CollisionGrid) SetOccupied(p Pos) error {
	i, err := g.index(p)
	if err != nil {
		return err
	}
	g.occupancy[i]++
	return nil
}

// SetFree removes one occupant from p. The count never drops below zero.
func (g *CollisionGrid) SetFree(p Pos) error {
	i, err := g.index(p)
	if err != nil {
		return err
	}
	if g.occupancy[i] > 0 {
		g.occupancy[i]--
	}
	return nil
}

// Occupancy returns the occupant count of p, or 0 outside the level.
func (g *CollisionGrid) Occupancy(p Pos) int {
	i, err := g.index(p)
	if err != nil {
		return 0
	}
	return g.occupancy[i]
}

// IsStaticBlocked reports terrain collision. Out-of-bounds cells are blocked.
func (g *CollisionGrid) IsStaticBlocked(p Pos) bool {
	i, err := g.index(p)
	if err != nil {
		return true
	}
	return g.static[i]
}

// IsOccupied reports dynamic collision only.
func (g *CollisionGrid) IsOccupied(p Pos) bool {
	return g.Occupancy(p) > 0
}

// IsBlocked reports merged collision. Out-of-bounds cells are blocked.
func (g *CollisionGrid) IsBlocked(p Pos) bool {
	i, err := g.index(p)
	if err != nil {
		return true
	}
	return g.static[i] || g.occupancy[i] > 0
}

// Snapshot copies the merged collision state for one path query.
// Patches applied to the copy never reach g.
func (g *CollisionGrid) Snapshot() *QueryGrid {
	q := &QueryGrid{width: g.width, height: g.height, blocked: make([]bool, len(g.static))}
	for i := range g.static {
		q.blocked[i] = g.static[i] || g.occupancy[i] > 0
	}
	return q
}

// QueryGrid is a detached, patchable copy of a CollisionGrid.
type QueryGrid struct {
	width, height int
	blocked       []bool
}

func (q *QueryGrid) InBounds(p Pos) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < q.width && p.Y < q.height
}

func (q *QueryGrid) IsBlocked(p Pos) bool {
	if !q.InBounds(p) {
		return true
	}
	return q.blocked[p.Y*q.width+p.X]
}

// SetWalkable patches a single cell. Out-of-bounds patches are ignored.
func (q *QueryGrid) SetWalkable(p Pos, walkable bool) {
	if q.InBounds(p) {
		q.blocked[p.Y*q.width+p.X] = !walkable
	}
}
