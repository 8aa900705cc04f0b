package ai

import (
	"container/heap"
	"math"

	"github.com/kasuganosora/isoarpg/game/grid"
)

// PathOptions selects the neighbourhood used by FindPath.
type PathOptions struct {
	AllowDiagonal    bool
	DontCrossCorners bool
}

// DefaultPathOptions is 8-connected movement that never clips a blocked corner.
var DefaultPathOptions = PathOptions{AllowDiagonal: true, DontCrossCorners: true}

// FindPath runs A* over g and returns the cells from `from` to `to`, both inclusive.
// The start cell is never tested for collision since the mover usually occupies it.
// Returns nil when no path exists or either endpoint is outside the grid.
func FindPath(g grid.Grid, from, to grid.Pos, opt PathOptions) []grid.Pos {
	if g == nil || !g.InBounds(from) || !g.InBounds(to) {
		return nil
	}
	if from == to {
		return []grid.Pos{from}
	}
	if g.IsBlocked(to) {
		return nil
	}

	h := octile
	if !opt.AllowDiagonal {
		h = manhattan
	}

	open := &nodeHeap{}
	nodes := map[grid.Pos]*pathNode{}
	start := &pathNode{pos: from, f: h(from, to)}
	nodes[from] = start
	heap.Push(open, start)

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		cur.closed = true

		if cur.pos == to {
			var path []grid.Pos
			for n := cur; n != nil; n = n.parent {
				path = append(path, n.pos)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}

		for _, step := range neighbours(g, cur.pos, opt) {
			np := cur.pos.Add(step)
			cost := 1.0
			if step.X != 0 && step.Y != 0 {
				cost = math.Sqrt2
			}
			ng := cur.g + cost
			n, seen := nodes[np]
			if seen && (n.closed || ng >= n.g) {
				continue
			}
			if !seen {
				n = &pathNode{pos: np, index: -1}
				nodes[np] = n
			}
			n.g = ng
			n.f = ng + h(np, to)
			n.parent = cur
			if n.index >= 0 {
				heap.Fix(open, n.index)
			} else {
				heap.Push(open, n)
			}
		}
	}
	return nil
}

var (
	orthoSteps = [4]grid.Pos{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
	diagSteps  = [4]grid.Pos{{1, -1}, {1, 1}, {-1, 1}, {-1, -1}}
)

func neighbours(g grid.Grid, p grid.Pos, opt PathOptions) []grid.Pos {
	walkable := func(d grid.Pos) bool {
		q := p.Add(d)
		return g.InBounds(q) && !g.IsBlocked(q)
	}
	out := make([]grid.Pos, 0, 8)
	for _, d := range orthoSteps {
		if walkable(d) {
			out = append(out, d)
		}
	}
	if !opt.AllowDiagonal {
		return out
	}
	for _, d := range diagSteps {
		if !walkable(d) {
			continue
		}
		a, b := walkable(grid.Pos{X: d.X}), walkable(grid.Pos{Y: d.Y})
		if opt.DontCrossCorners && !(a && b) {
			continue
		}
		if !a && !b {
			continue
		}
		out = append(out, d)
	}
	return out
}

func octile(a, b grid.Pos) float64 {
	dx := math.Abs(float64(a.X - b.X))
	dy := math.Abs(float64(a.Y - b.Y))
	return math.Max(dx, dy) + (math.Sqrt2-1)*math.Min(dx, dy)
}

func manhattan(a, b grid.Pos) float64 {
	return math.Abs(float64(a.X-b.X)) + math.Abs(float64(a.Y-b.Y))
}

type pathNode struct {
	pos    grid.Pos
	g, f   float64
	parent *pathNode
	closed bool
	index  int
}

type nodeHeap []*pathNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].f == h[j].f {
		return h[i].g > h[j].g
	}
	return h[i].f < h[j].f
}
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *nodeHeap) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	n.index = -1
	*h = old[:len(old)-1]
	return n
}
