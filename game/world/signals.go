package world

import "github.com/kasuganosora/isoarpg/game/grid"

// SignalKind tags a cross-entity notification.
type SignalKind int

const (
	SignalDamage SignalKind = iota
	SignalWarp
	SignalTarget
	SignalInteract
)

func (k SignalKind) String() string {
	switch k {
	case SignalDamage:
		return "damage"
	case SignalWarp:
		return "warp"
	case SignalTarget:
		return "target"
	case SignalInteract:
		return "interact"
	}
	return "unknown"
}

// Signal is delivered synchronously to every listener of its kind.
type Signal struct {
	Kind   SignalKind
	Amount int      // damage
	From   *Entity  // damage, interact
	Cell   grid.Pos // warp
}

// Signals is the per-entity listener table.
type Signals struct {
	listeners map[SignalKind][]func(Signal)
}

// Listen registers fn for kind.
func (s *Signals) Listen(kind SignalKind, fn func(Signal)) {
	if s.listeners == nil {
		s.listeners = make(map[SignalKind][]func(Signal))
	}
	s.listeners[kind] = append(s.listeners[kind], fn)
}

// Send dispatches sig in registration order and returns how many listeners ran.
func (s *Signals) Send(sig Signal) int {
	fns := s.listeners[sig.Kind]
	for _, fn := range fns {
		fn(sig)
	}
	return len(fns)
}

// SendDamage hits to for amount on behalf of from.
func SendDamage(to, from *Entity, amount int) {
	to.Signals.Send(Signal{Kind: SignalDamage, Amount: amount, From: from})
}

// SendWarp moves to onto cell.
func SendWarp(to *Entity, cell grid.Pos) {
	to.Signals.Send(Signal{Kind: SignalWarp, Cell: cell})
}

// SendTarget highlights to for the current tick.
func SendTarget(to *Entity) {
	to.Signals.Send(Signal{Kind: SignalTarget})
}

// SendInteract tells to that from interacted with it.
func SendInteract(from, to *Entity) {
	to.Signals.Send(Signal{Kind: SignalInteract, From: from})
}
