package action

import (
	"fmt"

	"github.com/kasuganosora/isoarpg/game/ai"
	"github.com/kasuganosora/isoarpg/game/grid"
	"go.uber.org/zap"
)

// Steering selects how an actor advances toward a move target.
type Steering int

const (
	// SteerPath plans a full A* path and follows it node by node.
	SteerPath Steering = iota
	// SteerDirect steps straight toward the destination one cell at a time,
	// strafing around a freshly blocked cell.
	SteerDirect
)

// Config is the per-kind tuning of an actor.
type Config struct {
	SpeedX      float64
	SpeedY      float64
	Steering    Steering
	Anims       AnimSet
	AttackFrame int
	// Strict turns contract violations into panics.
	Strict bool
}

// Space is the part of a level an actor moves through.
type Space struct {
	Projection grid.Projection
	Collision  *grid.CollisionGrid
}

// Actor owns the movement/action state of one entity. It is the only writer
// of its own cell occupancy in the collision grid.
type Actor struct {
	cfg    Config
	space  Space
	anim   *Timeline
	logger *zap.Logger

	state  State
	placed bool
	cell   grid.Pos
	pos    grid.Vec2
	facing grid.Direction

	path      []grid.Pos
	pathIndex int
	dest      grid.Pos

	speed     float64
	targetPos grid.Vec2
	remaining float64
	moveDir   grid.Vec2

	// OnStrike is called at the attack frame with the single cell the attack lands on.
	OnStrike func(cell grid.Pos)
}

// NewActor creates an idle, unplaced actor and wires its animation callbacks.
func NewActor(cfg Config, space Space, logger *zap.Logger) *Actor {
	a := &Actor{
		cfg:    cfg,
		space:  space,
		anim:   NewTimeline(cfg.Anims.Clips()),
		logger: logger,
	}
	a.registerAnimEvents()
	return a
}

func (a *Actor) registerAnimEvents() {
	for d := 0; d < 8; d++ {
		if a.cfg.Anims.Attack.Prefix != "" {
			name := a.cfg.Anims.Attack.Name(d)
			if err := a.anim.RegisterFrameCallback(name, a.cfg.AttackFrame, a.strike); err != nil {
				a.logger.Warn("attack frame callback skipped", zap.String("clip", name), zap.Error(err))
			}
			if err := a.anim.RegisterEndCallback(name, a.attackEnd); err != nil {
				a.logger.Warn("attack end callback skipped", zap.String("clip", name), zap.Error(err))
			}
		}
		if a.cfg.Anims.Hit.Prefix != "" {
			name := a.cfg.Anims.Hit.Name(d)
			if err := a.anim.RegisterEndCallback(name, a.damageEnd); err != nil {
				a.logger.Warn("hit end callback skipped", zap.String("clip", name), zap.Error(err))
			}
		}
	}
}

// ---- queries ----

func (a *Actor) State() State { return a.state }
func (a *Actor) IsIdle() bool { return a.state == Idle }
func (a *Actor) IsMoving() bool { return a.state == Move }
func (a *Actor) IsAttacking() bool { return a.state == Attack }
func (a *Actor) IsDead() bool { return a.state == Dead }
func (a *Actor) Cell() grid.Pos { return a.cell }
func (a *Actor) WorldPos() grid.Vec2 { return a.pos }
func (a *Actor) Facing() grid.Direction { return a.facing }
func (a *Actor) Placed() bool { return a.placed }
func (a *Actor) Animation() *Timeline { return a.anim }

// Path returns a copy of the remaining path, current leg first.
func (a *Actor) Path() []grid.Pos {
	if a.path == nil || a.pathIndex >= len(a.path) {
		return nil
	}
	return append([]grid.Pos(nil), a.path[a.pathIndex:]...)
}

// Destination returns the final cell of the current move, if moving.
func (a *Actor) Destination() (grid.Pos, bool) {
	if a.state != Move {
		return grid.Pos{}, false
	}
	if a.cfg.Steering == SteerDirect {
		return a.dest, true
	}
	if len(a.path) == 0 {
		return grid.Pos{}, false
	}
	return a.path[len(a.path)-1], true
}

// ---- placement ----

// Place puts the actor on cell and claims it in the collision grid.
func (a *Actor) Place(cell grid.Pos) error {
	if a.placed {
		return fmt.Errorf("action: actor already placed at %s", a.cell)
	}
	if err := a.space.Collision.SetOccupied(cell); err != nil {
		return err
	}
	a.placed = true
	a.cell = cell
	a.pos = a.space.Projection.GridToWorld(cell)
	a.targetPos = a.pos
	a.dest = cell
	return nil
}

// Warp moves the actor instantly to cell and leaves it Idle.
func (a *Actor) Warp(cell grid.Pos) error {
	if !a.space.Collision.InBounds(cell) {
		return fmt.Errorf("%w: %s", grid.ErrOutOfBounds, cell)
	}
	if !a.placed {
		return a.Place(cell)
	}
	a.setCell(cell)
	a.pos = a.space.Projection.GridToWorld(cell)
	a.targetPos = a.pos
	a.remaining = 0
	a.path = nil
	a.dest = cell
	if a.state != Dead {
		a.enter(EventReset)
	}
	return nil
}

// Remove releases the actor's cell.
func (a *Actor) Remove() {
	if !a.placed {
		return
	}
	if err := a.space.Collision.SetFree(a.cell); err != nil {
		a.logger.Error("free cell on remove", zap.Error(err))
	}
	a.placed = false
	a.path = nil
}

// ---- commands ----

// RequestMove starts or redirects movement toward target. It reports false
// when no route exists, leaving the state unchanged.
func (a *Actor) RequestMove(target grid.Pos, ignoreTargetCollision bool) bool {
	if a.state != Idle && a.state != Move {
		a.violation("RequestMove")
		return false
	}
	if a.cfg.Steering == SteerDirect {
		if a.state != Move {
			a.targetPos = a.pos
			a.remaining = 0
		}
		a.enter(EventMove)
		a.dest = target
		return true
	}

	if a.state == Move && len(a.path) > 0 && a.path[len(a.path)-1] == target {
		return true
	}
	if ignoreTargetCollision && a.state != Move && grid.Distance(a.cell, target) == 1 {
		return true
	}

	q := a.space.Collision.Snapshot()
	if ignoreTargetCollision {
		q.SetWalkable(target, true)
	}
	path := ai.FindPath(q, a.cell, target, ai.DefaultPathOptions)
	if len(path) < 2 {
		return false
	}

	a.enter(EventMove)
	a.path = path
	a.pathIndex = 0
	a.setTarget(path[0])
	return true
}

// StopMoving lets the in-flight leg finish and then settles to Idle.
func (a *Actor) StopMoving() {
	if a.state != Move {
		return
	}
	if a.cfg.Steering == SteerDirect {
		a.dest = a.cell
		return
	}
	if a.pathIndex+1 < len(a.path) {
		a.path = []grid.Pos{a.path[a.pathIndex]}
		a.pathIndex = 0
	}
}

// AttackInDirection faces target and starts the attack animation. Requires Idle.
func (a *Actor) AttackInDirection(target grid.Pos) {
	if a.state != Idle {
		a.violation("AttackInDirection")
		return
	}
	a.face(target)
	a.enter(EventAttack)
	if !a.play(a.cfg.Anims.Attack) {
		a.strike()
		a.attackEnd()
	}
}

// FaceDirection turns toward target without moving. Requires Idle.
func (a *Actor) FaceDirection(target grid.Pos) {
	if a.state != Idle {
		a.violation("FaceDirection")
		return
	}
	a.face(target)
}

// TakeDamage plays the hit reaction. Only Idle and Move actors react; the
// call reports whether the actor entered Damage.
func (a *Actor) TakeDamage() bool {
	if !a.enter(EventDamage) {
		return false
	}
	a.path = nil
	if !a.play(a.cfg.Anims.Hit) {
		a.damageEnd()
	}
	return true
}

// Die enters the terminal Dead state.
func (a *Actor) Die() {
	if !a.enter(EventDie) {
		return
	}
	a.path = nil
	a.play(a.cfg.Anims.Death)
}

// Idle forces the actor back to Idle, e.g. on respawn.
func (a *Actor) Idle() {
	a.enter(EventReset)
	a.path = nil
	a.dest = a.cell
}

// Update advances movement and animation by dt seconds.
func (a *Actor) Update(dt float64) {
	if a.state == Move {
		a.followPath(dt)
	}
	switch a.state {
	case Idle:
		a.play(a.cfg.Anims.Idle)
	case Move:
		a.play(a.cfg.Anims.Walk)
	}
	a.anim.Update(dt)
}

// NextNode returns the next cell on a straight line toward dest, strafing
// to facing+1 then facing-1 when that cell is blocked. A blocked dest is
// never strafed around.
func (a *Actor) NextNode(dest grid.Pos) (grid.Pos, bool) {
	dir := grid.DirectionOf(a.cell, dest)
	if dir == grid.DirNone {
		return grid.Pos{}, false
	}
	coll := a.space.Collision
	next := a.cell.Add(dir.Offset())
	if !coll.IsBlocked(next) {
		return next, true
	}
	if next == dest {
		return grid.Pos{}, false
	}
	for _, turn := range [2]int{1, -1} {
		next = a.cell.Add(dir.Rotate(turn).Offset())
		if !coll.IsBlocked(next) {
			return next, true
		}
	}
	return grid.Pos{}, false
}

// ---- internals ----

func (a *Actor) followPath(dt float64) {
	step := a.speed * dt
	a.remaining -= step
	if a.remaining > 0 {
		a.pos = a.pos.Add(a.moveDir.Scale(step))
		return
	}
	a.pos = a.targetPos

	if a.cfg.Steering == SteerDirect {
		if a.cell == a.dest {
			a.enter(EventArrive)
			return
		}
		next, ok := a.NextNode(a.dest)
		if !ok {
			a.enter(EventArrive)
			return
		}
		a.setTarget(next)
		return
	}

	if a.endOfPath() {
		a.path = nil
		a.enter(EventArrive)
		return
	}
	a.pathIndex++
	a.setTarget(a.path[a.pathIndex])
}

// endOfPath is checked only on node arrival; an obstruction that appears
// mid-leg is noticed at the next boundary.
func (a *Actor) endOfPath() bool {
	if a.pathIndex+1 >= len(a.path) {
		return true
	}
	return a.space.Collision.IsBlocked(a.path[a.pathIndex+1])
}

func (a *Actor) setTarget(p grid.Pos) {
	a.face(p)
	a.speed = a.space.Projection.MoveSpeed(a.facing, a.cfg.SpeedX, a.cfg.SpeedY)
	a.setCell(p)
	a.targetPos = a.space.Projection.GridToWorld(p)
	a.remaining = a.pos.DistanceTo(a.targetPos)
	a.moveDir = a.targetPos.Sub(a.pos).Normalize()
}

// setCell moves the actor's occupancy claim; repeated calls for the same cell are ignored.
func (a *Actor) setCell(p grid.Pos) {
	if p == a.cell {
		return
	}
	coll := a.space.Collision
	if err := coll.SetFree(a.cell); err != nil {
		a.logger.Error("free cell", zap.Stringer("cell", a.cell), zap.Error(err))
	}
	if err := coll.SetOccupied(p); err != nil {
		a.logger.Error("occupy cell", zap.Stringer("cell", p), zap.Error(err))
	}
	a.cell = p
}

func (a *Actor) face(p grid.Pos) {
	if d := grid.DirectionOf(a.cell, p); d != grid.DirNone {
		a.facing = d
	}
}

func (a *Actor) enter(e Event) bool {
	next, ok := Transition(a.state, e)
	if ok {
		a.state = next
	}
	return ok
}

// play starts the facing variant of spec. It reports false when the clip is
// missing so callers can finish the sub-state without waiting on it.
func (a *Actor) play(spec ClipSpec) bool {
	if spec.Prefix == "" {
		return false
	}
	name := spec.Name(int(a.facing))
	if err := a.anim.Play(name); err != nil {
		a.logger.Warn("clip missing", zap.String("clip", name), zap.Error(err))
		return false
	}
	return true
}

func (a *Actor) strike() {
	if a.OnStrike != nil {
		a.OnStrike(a.cell.Add(a.facing.Offset()))
	}
}

func (a *Actor) attackEnd() {
	a.enter(EventAttackEnd)
}

func (a *Actor) damageEnd() {
	a.enter(EventDamageEnd)
}

func (a *Actor) violation(op string) {
	if a.cfg.Strict {
		panic(fmt.Sprintf("action: %s called in state %s", op, a.state))
	}
	a.logger.Error("action contract violated", zap.String("op", op), zap.Stringer("state", a.state))
}
