package ai

// Status is the result of a behavior tree node tick.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusRunning:
		return "running"
	}
	return "unknown"
}

// Node is a single node in a behavior tree.
type Node interface {
	Tick(ctx *Context) Status
}

// Guard decides whether a PrioritySelector branch may be entered.
type Guard func(ctx *Context) bool

// ---- Composite nodes ----

// Selector succeeds as soon as one child succeeds (logical OR).
type Selector struct {
	Children []Node
}

func (s *Selector) Tick(ctx *Context) Status {
	for _, c := range s.Children {
		switch c.Tick(ctx) {
		case StatusSuccess:
			return StatusSuccess
		case StatusRunning:
			return StatusRunning
		}
	}
	return StatusFailure
}

// Sequence succeeds only when all children succeed (logical AND).
// A running child is resumed on the next tick instead of restarting from the first child.
type Sequence struct {
	Children []Node
	current  int
}

// NewSequence builds a Sequence over children.
func NewSequence(children ...Node) *Sequence {
	return &Sequence{Children: children}
}

func (s *Sequence) Tick(ctx *Context) Status {
	for s.current < len(s.Children) {
		switch s.Children[s.current].Tick(ctx) {
		case StatusRunning:
			return StatusRunning
		case StatusFailure:
			s.current = 0
			return StatusFailure
		}
		s.current++
	}
	s.current = 0
	return StatusSuccess
}

// Reset forgets a suspended child.
func (s *Sequence) Reset() {
	s.current = 0
	for _, c := range s.Children {
		if r, ok := c.(resetter); ok {
			r.Reset()
		}
	}
}

type priorityBranch struct {
	guard Guard
	node  Node
}

// PrioritySelector ticks the first child whose guard passes, in insertion
// order. A child left Running is resumed directly on the next tick without
// re-evaluating any guard, even a higher one. A child that fails lets later
// children be tried within the same tick; the next tick starts at the top.
type PrioritySelector struct {
	branches []priorityBranch
	running  int
}

// NewPrioritySelector returns an empty selector.
func NewPrioritySelector() *PrioritySelector {
	return &PrioritySelector{running: -1}
}

// Add appends a branch. A nil guard always passes.
func (p *PrioritySelector) Add(node Node, guard Guard) *PrioritySelector {
	p.branches = append(p.branches, priorityBranch{guard: guard, node: node})
	return p
}

func (p *PrioritySelector) Tick(ctx *Context) Status {
	start := 0
	if p.running >= 0 {
		i := p.running
		p.running = -1
		st := p.branches[i].node.Tick(ctx)
		switch st {
		case StatusRunning:
			p.running = i
			return st
		case StatusSuccess:
			return st
		}
		start = i + 1
	}
	for i := start; i < len(p.branches); i++ {
		b := p.branches[i]
		if b.guard != nil && !b.guard(ctx) {
			continue
		}
		st := b.node.Tick(ctx)
		switch st {
		case StatusRunning:
			p.running = i
			return st
		case StatusSuccess:
			return st
		}
	}
	return StatusFailure
}

// Running returns the index of the suspended branch, or -1.
func (p *PrioritySelector) Running() int {
	return p.running
}

// Reset abandons a suspended branch.
func (p *PrioritySelector) Reset() {
	p.running = -1
	for _, b := range p.branches {
		if r, ok := b.node.(resetter); ok {
			r.Reset()
		}
	}
}

type resetter interface {
	Reset()
}

// ---- Leaf nodes ----

// ConditionNode evaluates a boolean predicate.
type ConditionNode struct {
	Fn func(*Context) bool
}

func (cn *ConditionNode) Tick(ctx *Context) Status {
	if cn.Fn(ctx) {
		return StatusSuccess
	}
	return StatusFailure
}

// ActionNode executes an action and returns its status.
type ActionNode struct {
	Fn func(*Context) Status
}

func (an *ActionNode) Tick(ctx *Context) Status {
	return an.Fn(ctx)
}

// Action wraps fn in an ActionNode.
func Action(fn func(*Context) Status) *ActionNode {
	return &ActionNode{Fn: fn}
}

// Wait stays Running until Seconds of simulation time have elapsed.
type Wait struct {
	Seconds float64
	elapsed float64
}

func (w *Wait) Tick(ctx *Context) Status {
	w.elapsed += ctx.DT
	if w.elapsed < w.Seconds {
		return StatusRunning
	}
	w.elapsed = 0
	return StatusSuccess
}

func (w *Wait) Reset() { w.elapsed = 0 }

// ---- Decorator nodes ----

// Inverter negates the result of its child.
type Inverter struct {
	Child Node
}

func (i *Inverter) Tick(ctx *Context) Status {
	switch i.Child.Tick(ctx) {
	case StatusSuccess:
		return StatusFailure
	case StatusFailure:
		return StatusSuccess
	default:
		return StatusRunning
	}
}

// ---- BehaviorTree root ----

// BehaviorTree wraps the root node.
type BehaviorTree struct {
	Root Node
}

// Tick runs one frame of the behavior tree.
func (bt *BehaviorTree) Tick(ctx *Context) Status {
	if bt.Root == nil {
		return StatusFailure
	}
	return bt.Root.Tick(ctx)
}

// Reset abandons any suspended branch.
func (bt *BehaviorTree) Reset() {
	if r, ok := bt.Root.(resetter); ok {
		r.Reset()
	}
}
