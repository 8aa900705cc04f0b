package world

import (
	"github.com/kasuganosora/isoarpg/game/ai"
	"github.com/kasuganosora/isoarpg/game/grid"
	"go.uber.org/zap"
)

// Enemy is the AI component of an enemy entity.
type Enemy struct {
	level  *Level
	entity *Entity

	health      int
	dead        bool
	deadElapsed float64

	// ShouldRetreat is raised when another enemy of the level dies.
	ShouldRetreat bool

	target *Entity
	tree   *ai.BehaviorTree
	ctx    ai.Context
}

func newEnemy(l *Level, e *Entity) *Enemy {
	en := &Enemy{
		level:  l,
		entity: e,
		health: l.cfg.EnemyHealth,
		tree:   buildFallenTree(l.cfg.RetreatWait),
	}
	en.ctx.Agent = en
	e.Signals.Listen(SignalDamage, en.onDamage)
	e.Actor.OnStrike = en.strike
	return en
}

// buildFallenTree wires retreat > attack > idle.
func buildFallenTree(retreatWait float64) *ai.BehaviorTree {
	retreat := ai.NewSequence(
		ai.Action(selectRetreatPointAction),
		ai.Action(moveToRetreatPointAction),
		&ai.Wait{Seconds: retreatWait},
	)
	attack := ai.NewSequence(
		ai.Action(moveToTargetAction),
		ai.NewSequence(
			ai.Action(attackTargetAction),
			ai.Action(attackTargetWaitAction),
		),
	)
	idle := ai.NewSequence(ai.Action(idleAction))

	return &ai.BehaviorTree{Root: ai.NewPrioritySelector().
		Add(retreat, checkRetreatCondition).
		Add(attack, checkAttackCondition).
		Add(idle, nil)}
}

func (en *Enemy) Entity() *Entity { return en.entity }
func (en *Enemy) Health() int { return en.health }
func (en *Enemy) Dead() bool { return en.dead }
func (en *Enemy) Target() *Entity { return en.target }

func (en *Enemy) update(dt float64) {
	if en.dead {
		en.deadElapsed += dt
		if en.deadElapsed >= en.level.cfg.RespawnDelay {
			en.respawn()
		}
	}
	if !en.dead {
		en.ctx.DT = dt
		en.tree.Tick(&en.ctx)
	}
	en.entity.Actor.Update(dt)
}

func (en *Enemy) onDamage(sig Signal) {
	if en.dead {
		return
	}
	en.health -= sig.Amount
	if en.health > 0 {
		en.entity.Actor.TakeDamage()
		return
	}

	en.dead = true
	en.deadElapsed = 0
	en.entity.Targetable = false
	en.entity.Targeted = false
	en.target = nil
	en.tree.Reset()
	en.entity.Actor.Die()

	if sig.From != nil && sig.From.Player != nil {
		sig.From.Player.onEnemyKilled(en.entity)
	}
	for _, other := range en.level.enemies {
		if other != en.entity && !other.Enemy.dead {
			other.Enemy.ShouldRetreat = true
		}
	}
	en.level.logger.Debug("enemy killed", zap.Int64("entity_id", en.entity.ID))
}

func (en *Enemy) respawn() {
	en.health = en.level.cfg.EnemyHealth
	en.entity.Actor.Idle()
	en.dead = false
	en.entity.Targetable = true
}

func (en *Enemy) strike(cell grid.Pos) {
	if p := en.level.PlayerAt(cell); p != nil {
		SendDamage(p, en.entity, 1)
	}
}

// ---- behavior tree leaves ----

func fallen(ctx *ai.Context) *Enemy {
	return ctx.Agent.(*Enemy)
}

func idleAction(ctx *ai.Context) ai.Status {
	fallen(ctx).entity.Actor.StopMoving()
	return ai.StatusSuccess
}

func checkRetreatCondition(ctx *ai.Context) bool {
	en := fallen(ctx)
	return en.entity.Actor.IsIdle() && en.ShouldRetreat
}

func selectRetreatPointAction(ctx *ai.Context) ai.Status {
	en := fallen(ctx)
	l := en.level
	offset := func() int {
		v := l.randInt(3, 5)
		if l.rng.IntN(2) == 0 {
			v = -v
		}
		return v
	}
	cur := en.entity.Cell()
	pr := l.space.Projection
	dest := grid.Pos{
		X: min(max(cur.X-offset(), 0), pr.Width-1),
		Y: min(max(cur.Y-offset(), 0), pr.Height-1),
	}
	en.entity.Actor.RequestMove(dest, false)
	l.logger.Debug("retreat", zap.Int64("entity_id", en.entity.ID), zap.Stringer("dest", dest))
	return ai.StatusSuccess
}

func moveToRetreatPointAction(ctx *ai.Context) ai.Status {
	en := fallen(ctx)
	if en.entity.Actor.IsMoving() {
		return ai.StatusRunning
	}
	en.ShouldRetreat = false
	return ai.StatusSuccess
}

func checkAttackCondition(ctx *ai.Context) bool {
	en := fallen(ctx)
	if !en.entity.Actor.IsIdle() {
		return false
	}
	en.target = en.level.NearestPlayerInRange(en.entity.Cell(), en.level.cfg.FollowRange)
	return en.target != nil
}

// moveToTargetAction closes in on the target: exact position when adjacent,
// otherwise the newest breadcrumb this enemy can see.
func moveToTargetAction(ctx *ai.Context) ai.Status {
	en := fallen(ctx)
	actor := en.entity.Actor
	if en.target == nil || en.level.Entity(en.target.ID) == nil {
		return ai.StatusFailure
	}
	tc, mc := en.target.Cell(), en.entity.Cell()
	dx, dy := abs(tc.X-mc.X), abs(tc.Y-mc.Y)

	if dx+dy > en.level.cfg.FollowRange*2 {
		return ai.StatusFailure
	}
	if dx <= 1 && dy <= 1 {
		if actor.IsMoving() {
			actor.StopMoving()
			return ai.StatusRunning
		}
		if !actor.IsIdle() {
			return ai.StatusRunning
		}
		return ai.StatusSuccess
	}

	crumb, ok := en.level.NewestBreadcrumb(en.target.ID, mc)
	if !ok {
		return ai.StatusFailure
	}
	if actor.IsIdle() || actor.IsMoving() {
		actor.RequestMove(crumb.Pos, false)
	}
	return ai.StatusRunning
}

func attackTargetAction(ctx *ai.Context) ai.Status {
	en := fallen(ctx)
	if !en.entity.Actor.IsIdle() || en.target == nil {
		return ai.StatusFailure
	}
	en.entity.Actor.AttackInDirection(en.target.Cell())
	return ai.StatusSuccess
}

func attackTargetWaitAction(ctx *ai.Context) ai.Status {
	if fallen(ctx).entity.Actor.IsAttacking() {
		return ai.StatusRunning
	}
	return ai.StatusSuccess
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
