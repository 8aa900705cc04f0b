package world

import (
	"github.com/kasuganosora/isoarpg/game/grid"
	"go.uber.org/zap"
)

// Control is the input-level state of a player, layered over its actor state.
type Control int

const (
	ControlIdle Control = iota
	ControlMove
	ControlAttack
	ControlMoveToTarget
)

func (c Control) String() string {
	switch c {
	case ControlIdle:
		return "idle"
	case ControlMove:
		return "move"
	case ControlAttack:
		return "attack"
	case ControlMoveToTarget:
		return "move_to_target"
	}
	return "unknown"
}

// controlTransition reports whether from may switch to `to`. Every state
// reaches every other one; no state re-enters itself.
func controlTransition(from, to Control) (Control, bool) {
	if from == to {
		return from, false
	}
	return to, true
}

// IntentKind is what a client asked its player to do.
type IntentKind int

const (
	IntentMove IntentKind = iota
	IntentAttack
	IntentEngage
)

// Intent is one client command. Cell is used by move and attack, Target by engage.
type Intent struct {
	Kind   IntentKind
	Cell   grid.Pos
	Target int64
}

// Player is the controller component of a player entity. It turns intents
// into actor commands and queues at most one follow-up while busy.
type Player struct {
	level     *Level
	entity    *Entity
	AccountID int64

	control  Control
	input    *Intent
	next     *Intent
	engaged  *Entity
	lastSeen grid.Pos

	crumbTimer float64

	Kills     int
	HitsTaken int
}

func newPlayer(l *Level, e *Entity, accountID int64) *Player {
	p := &Player{level: l, entity: e, AccountID: accountID}
	e.Signals.Listen(SignalDamage, p.onDamage)
	e.Signals.Listen(SignalInteract, p.onInteract)
	e.Actor.OnStrike = p.strike
	l.trail.Drop(e.ID, e.Cell())
	return p
}

func (p *Player) Entity() *Entity { return p.entity }
func (p *Player) Control() Control { return p.control }
func (p *Player) Engaged() *Entity { return p.engaged }

// Submit records the intent for the next tick. A later intent in the same tick replaces it.
func (p *Player) Submit(in Intent) {
	p.input = &in
}

func (p *Player) update(dt float64) {
	// Crumbs fall on the interval whether or not the player moves.
	p.crumbTimer += dt
	if p.crumbTimer >= p.level.cfg.BreadcrumbInterval {
		p.crumbTimer = 0
		p.level.trail.Drop(p.entity.ID, p.entity.Cell())
	}

	in := p.input
	p.input = nil
	switch p.control {
	case ControlIdle:
		p.updateIdle(in)
	case ControlMove:
		p.updateMove(in)
	case ControlAttack:
		p.updateAttack(in)
	case ControlMoveToTarget:
		p.updateMoveToTarget(in)
	}
	p.entity.Actor.Update(dt)
}

func (p *Player) enter(c Control) {
	next, ok := controlTransition(p.control, c)
	if !ok {
		return
	}
	if p.control == ControlMoveToTarget {
		p.engaged = nil
	}
	p.control = next
	if next == ControlMoveToTarget && p.engaged != nil {
		p.lastSeen = p.engaged.Cell()
	}
}

// target resolves an engage intent to a live, targetable entity other than p.
func (p *Player) target(id int64) *Entity {
	e := p.level.Entity(id)
	if e == nil || e == p.entity || !e.Targetable {
		return nil
	}
	return e
}

func (p *Player) engage(t *Entity) bool {
	if !p.entity.Actor.RequestMove(t.Cell(), true) {
		return false
	}
	p.engaged = t
	p.enter(ControlMoveToTarget)
	return true
}

func (p *Player) updateIdle(in *Intent) {
	if in == nil {
		return
	}
	actor := p.entity.Actor
	if !actor.IsIdle() {
		return
	}
	switch in.Kind {
	case IntentAttack:
		actor.AttackInDirection(in.Cell)
		p.enter(ControlAttack)
	case IntentEngage:
		if t := p.target(in.Target); t != nil {
			p.engage(t)
		}
	case IntentMove:
		if actor.RequestMove(in.Cell, false) {
			p.enter(ControlMove)
		}
	}
}

func (p *Player) updateMove(in *Intent) {
	actor := p.entity.Actor
	if in != nil {
		switch in.Kind {
		case IntentAttack, IntentEngage:
			actor.StopMoving()
			p.next = in
		case IntentMove:
			if !p.canMove() || !actor.RequestMove(in.Cell, false) {
				actor.StopMoving()
			}
			p.next = nil
		}
	}
	if actor.IsMoving() {
		return
	}
	if p.applyNext(false) {
		return
	}
	p.enter(ControlIdle)
}

func (p *Player) updateAttack(in *Intent) {
	if in != nil {
		p.next = in
	}
	if p.entity.Actor.IsAttacking() {
		return
	}
	if p.applyNext(true) {
		return
	}
	p.enter(ControlIdle)
}

func (p *Player) updateMoveToTarget(in *Intent) {
	actor := p.entity.Actor
	if in != nil {
		switch in.Kind {
		case IntentAttack:
			actor.StopMoving()
			p.next = in
		case IntentEngage:
			if t := p.target(in.Target); t != nil {
				p.engaged = t
			}
		case IntentMove:
			if !p.canMove() || !actor.RequestMove(in.Cell, false) {
				actor.StopMoving()
			}
			p.next = nil
			p.enter(ControlMove)
			return
		}
	}

	t := p.engaged
	if t == nil || p.level.Entity(t.ID) == nil || !t.Targetable {
		actor.StopMoving()
		p.enter(ControlMove)
		return
	}

	tc := t.Cell()
	if tc != p.lastSeen {
		if !p.canMove() || !actor.RequestMove(tc, true) {
			actor.StopMoving()
		}
		p.lastSeen = tc
	}

	if actor.IsMoving() || !actor.IsIdle() {
		return
	}
	if p.next != nil && p.next.Kind == IntentAttack {
		actor.AttackInDirection(p.next.Cell)
		p.next = nil
		p.enter(ControlAttack)
		return
	}
	p.next = nil

	if grid.Distance(tc, actor.Cell()) != 1 {
		p.enter(ControlIdle)
		return
	}
	if t.Kind == KindEnemy {
		actor.AttackInDirection(tc)
		p.enter(ControlAttack)
		return
	}
	actor.FaceDirection(tc)
	SendInteract(p.entity, t)
	p.enter(ControlIdle)
}

// applyNext runs the queued intent once the actor has settled. Move intents
// are only honoured after an attack, matching the click-to-move flow.
func (p *Player) applyNext(allowMove bool) bool {
	in := p.next
	p.next = nil
	if in == nil || !p.entity.Actor.IsIdle() {
		return false
	}
	actor := p.entity.Actor
	switch in.Kind {
	case IntentAttack:
		actor.AttackInDirection(in.Cell)
		p.enter(ControlAttack)
		return true
	case IntentEngage:
		if t := p.target(in.Target); t != nil {
			return p.engage(t)
		}
	case IntentMove:
		if allowMove && actor.RequestMove(in.Cell, false) {
			p.enter(ControlMove)
			return true
		}
	}
	return false
}

func (p *Player) canMove() bool {
	a := p.entity.Actor
	return a.IsIdle() || a.IsMoving()
}

func (p *Player) strike(cell grid.Pos) {
	if e := p.level.EnemyAt(cell); e != nil {
		SendDamage(e, p.entity, 1)
	}
}

func (p *Player) onDamage(sig Signal) {
	p.HitsTaken += sig.Amount
	p.level.logger.Debug("player hit",
		zap.Int64("entity_id", p.entity.ID),
		zap.Int("amount", sig.Amount))
}

func (p *Player) onInteract(sig Signal) {
	if sig.From == nil {
		return
	}
	cell := p.entity.Cell()
	p.level.raise(Event{Type: EventInteract, ActorID: sig.From.ID, TargetID: p.entity.ID, X: cell.X, Y: cell.Y})
}

func (p *Player) onEnemyKilled(victim *Entity) {
	p.Kills++
	cell := victim.Cell()
	p.level.raise(Event{
		Type:      EventKill,
		ActorID:   p.entity.ID,
		TargetID:  victim.ID,
		X:         cell.X,
		Y:         cell.Y,
		AccountID: p.AccountID,
	})
}
