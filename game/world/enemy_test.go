package world

import (
	"testing"

	"github.com/kasuganosora/isoarpg/game/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countDamage(e *Entity) *int {
	n := new(int)
	e.Signals.Listen(SignalDamage, func(Signal) { *n++ })
	return n
}

func TestEnemy_DamageThenDeath(t *testing.T) {
	l := newTestLevel(t, grid.OpenMask{W: 30, H: 30})
	e := mustEnemy(t, l, grid.Pos{X: 10, Y: 10})

	SendDamage(e, nil, 1)
	assert.Equal(t, 1, e.Enemy.Health())
	assert.Equal(t, "damage", e.Actor.State().String())
	assert.False(t, e.Enemy.Dead())

	SendDamage(e, nil, 1)
	assert.True(t, e.Enemy.Dead())
	assert.True(t, e.Actor.IsDead())
	assert.False(t, e.Targetable)
	assert.Nil(t, l.EnemyAt(grid.Pos{X: 10, Y: 10}))
	// The corpse keeps its cell.
	assert.True(t, l.Collision().IsOccupied(grid.Pos{X: 10, Y: 10}))

	// Further hits on a corpse are ignored.
	SendDamage(e, nil, 1)
	assert.Equal(t, 0, e.Enemy.Health())
}

func TestEnemy_DeathFlagsPackRetreat(t *testing.T) {
	l := newTestLevel(t, grid.OpenMask{W: 30, H: 30})
	victim := mustEnemy(t, l, grid.Pos{X: 2, Y: 2})
	a := mustEnemy(t, l, grid.Pos{X: 15, Y: 15})
	b := mustEnemy(t, l, grid.Pos{X: 25, Y: 5})

	SendDamage(victim, nil, 2)
	assert.False(t, victim.Enemy.ShouldRetreat)
	assert.True(t, a.Enemy.ShouldRetreat)
	assert.True(t, b.Enemy.ShouldRetreat)
}

func TestEnemy_RetreatsThenClearsFlag(t *testing.T) {
	l := newTestLevel(t, grid.OpenMask{W: 30, H: 30})
	victim := mustEnemy(t, l, grid.Pos{X: 2, Y: 2})
	e := mustEnemy(t, l, grid.Pos{X: 15, Y: 15})
	start := e.Cell()

	SendDamage(victim, nil, 2)
	l.Tick(0.05)
	assert.True(t, e.Actor.IsMoving())

	tickN(l, 160, 0.05)
	assert.False(t, e.Enemy.ShouldRetreat)
	assert.True(t, e.Actor.IsIdle())
	d := grid.Distance(start, e.Cell())
	assert.GreaterOrEqual(t, d, 3)
	assert.LessOrEqual(t, d, 5)
}

func TestEnemy_RespawnAfterDelay(t *testing.T) {
	l := newTestLevel(t, grid.OpenMask{W: 30, H: 30})
	e := mustEnemy(t, l, grid.Pos{X: 10, Y: 10})
	SendDamage(e, nil, 2)

	tickN(l, 45, 0.1)
	assert.True(t, e.Enemy.Dead())

	tickN(l, 10, 0.1)
	assert.False(t, e.Enemy.Dead())
	assert.True(t, e.Targetable)
	assert.Equal(t, 2, e.Enemy.Health())
	assert.False(t, e.Actor.IsDead())
	assert.Equal(t, grid.Pos{X: 10, Y: 10}, e.Cell())
	assert.Equal(t, 1, l.Collision().Occupancy(grid.Pos{X: 10, Y: 10}))
}

func TestEnemy_KillCreditsPlayer(t *testing.T) {
	l := newTestLevel(t, grid.OpenMask{W: 30, H: 30})
	p := mustPlayer(t, l, grid.Pos{X: 1, Y: 1})
	e := mustEnemy(t, l, grid.Pos{X: 20, Y: 20})

	SendDamage(e, p, 2)
	assert.Equal(t, 1, p.Player.Kills)

	events := l.DrainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventKill, events[0].Type)
	assert.Equal(t, "test", events[0].Level)
	assert.Equal(t, p.ID, events[0].ActorID)
	assert.Equal(t, e.ID, events[0].TargetID)
	assert.Equal(t, p.Player.AccountID, events[0].AccountID)
	assert.Empty(t, l.DrainEvents())
}

func TestEnemy_AttackLandsOncePerSwing(t *testing.T) {
	l := newTestLevel(t, grid.OpenMask{W: 20, H: 20})
	p := mustPlayer(t, l, grid.Pos{X: 5, Y: 5})
	e := mustEnemy(t, l, grid.Pos{X: 6, Y: 5})
	hits := countDamage(p)

	l.Tick(0.05)
	assert.Same(t, p, e.Enemy.Target())
	assert.True(t, e.Actor.IsAttacking())
	assert.Equal(t, grid.Direction(3), e.Actor.Facing())

	tickN(l, 11, 0.05)
	assert.Equal(t, 1, *hits)
	assert.Equal(t, 1, p.Player.HitsTaken)

	tickN(l, 28, 0.05)
	assert.Equal(t, 2, *hits)
}

func TestEnemy_ChasesBreadcrumbs(t *testing.T) {
	l := newTestLevel(t, grid.OpenMask{W: 20, H: 20})
	p := mustPlayer(t, l, grid.Pos{X: 2, Y: 2})
	e := mustEnemy(t, l, grid.Pos{X: 8, Y: 2})

	l.Tick(0.05)
	require.Same(t, p, e.Enemy.Target())
	dest, ok := e.Actor.Destination()
	require.True(t, ok)
	assert.Equal(t, grid.Pos{X: 2, Y: 2}, dest)

	tickN(l, 120, 0.05)
	assert.Equal(t, 1, grid.Distance(p.Cell(), e.Cell()))
	assert.GreaterOrEqual(t, p.Player.HitsTaken, 1)
}

func TestEnemy_IgnoresPlayersOutOfRange(t *testing.T) {
	l := newTestLevel(t, grid.OpenMask{W: 30, H: 30})
	mustPlayer(t, l, grid.Pos{X: 1, Y: 1})
	e := mustEnemy(t, l, grid.Pos{X: 10, Y: 1})

	tickN(l, 20, 0.05)
	assert.Nil(t, e.Enemy.Target())
	assert.Equal(t, grid.Pos{X: 10, Y: 1}, e.Cell())
	assert.True(t, e.Actor.IsIdle())
}
