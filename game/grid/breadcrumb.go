package grid

// Breadcrumb is a position an entity left behind, aged by Trail.Tick.
type Breadcrumb struct {
	Owner   int64
	Pos     Pos
	Elapsed float64
}

// Trail is the time-decayed breadcrumb list of one level.
type Trail struct {
	decay  float64
	crumbs []Breadcrumb
}

// NewTrail creates a trail whose crumbs vanish once they are decay seconds old.
func NewTrail(decay float64) *Trail {
	return &Trail{decay: decay}
}

// Drop records owner at p with zero age.
func (t *Trail) Drop(owner int64, p Pos) {
	t.crumbs = append(t.crumbs, Breadcrumb{Owner: owner, Pos: p})
}

// Tick ages every crumb by dt and prunes the expired ones.
func (t *Trail) Tick(dt float64) {
	kept := t.crumbs[:0]
	for _, c := range t.crumbs {
		c.Elapsed += dt
		if c.Elapsed < t.decay {
			kept = append(kept, c)
		}
	}
	clear(t.crumbs[len(kept):])
	t.crumbs = kept
}

// Newest returns the youngest crumb of owner that is visible from `from`.
func (t *Trail) Newest(owner int64, from Pos, b Blocker) (Breadcrumb, bool) {
	var (
		best  Breadcrumb
		found bool
	)
	for _, c := range t.crumbs {
		if c.Owner != owner || (found && c.Elapsed >= best.Elapsed) {
			continue
		}
		if ok, _ := LineOfSight(b, from, c.Pos); ok {
			best, found = c, true
		}
	}
	return best, found
}

// Clear drops every crumb of owner.
func (t *Trail) Clear(owner int64) {
	kept := t.crumbs[:0]
	for _, c := range t.crumbs {
		if c.Owner != owner {
			kept = append(kept, c)
		}
	}
	clear(t.crumbs[len(kept):])
	t.crumbs = kept
}

// Len returns the number of live crumbs.
func (t *Trail) Len() int { return len(t.crumbs) }

// Crumbs returns a copy of the live crumbs.
func (t *Trail) Crumbs() []Breadcrumb {
	return append([]Breadcrumb(nil), t.crumbs...)
}
