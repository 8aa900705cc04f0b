package world

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/kasuganosora/isoarpg/game/action"
	"github.com/kasuganosora/isoarpg/game/grid"
	"go.uber.org/zap"
)

// LevelConfig is the gameplay tuning of one level instance.
type LevelConfig struct {
	ID                 string
	TileWidth          float64
	TileHeight         float64
	BreadcrumbInterval float64
	BreadcrumbDecay    float64
	FollowRange        int
	EnemyHealth        int
	RespawnDelay       float64
	RetreatWait        float64
	PlayerSpeedX       float64
	PlayerSpeedY       float64
	EnemySpeedX        float64
	EnemySpeedY        float64
	AttackFrame        int
	PlayerAnims        action.AnimSet
	EnemyAnims         action.AnimSet
	Strict             bool
	Seed               uint64
}

// DefaultLevelConfig returns the stock tuning.
func DefaultLevelConfig(id string) LevelConfig {
	return LevelConfig{
		ID:                 id,
		TileWidth:          64,
		TileHeight:         32,
		BreadcrumbInterval: 0.5,
		BreadcrumbDecay:    5,
		FollowRange:        8,
		EnemyHealth:        2,
		RespawnDelay:       5,
		RetreatWait:        2,
		PlayerSpeedX:       150,
		PlayerSpeedY:       100,
		EnemySpeedX:        80,
		EnemySpeedY:        40,
		AttackFrame:        9,
		PlayerAnims:        action.PlayerAnims,
		EnemyAnims:         action.FallenAnims,
	}
}

// EventType names a level event.
type EventType string

const (
	EventKill     EventType = "kill"
	EventInteract EventType = "interact"
)

// Event is a notable gameplay fact raised during a tick.
type Event struct {
	Type     EventType `json:"type"`
	Level    string    `json:"level"`
	ActorID  int64     `json:"actor_id"`
	TargetID int64     `json:"target_id"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
	// AccountID is the actor's account for player actors.
	AccountID int64 `json:"account_id,omitempty"`
}

// Level owns everything a single level instance simulates: the collision
// grid, the breadcrumb trail, and every mobile entity. It is not safe for
// concurrent use; one Room goroutine drives it.
type Level struct {
	cfg    LevelConfig
	space  action.Space
	trail  *grid.Trail
	rng    *rand.Rand
	logger *zap.Logger

	nextID   int64
	tick     uint64
	entities map[int64]*Entity
	players  []*Entity // ascending ID
	enemies  []*Entity // ascending ID
	events   []Event
}

// NewLevel builds the collision grid from mask.
func NewLevel(cfg LevelConfig, mask grid.Mask, logger *zap.Logger) *Level {
	w, h := mask.Size()
	seed := cfg.Seed
	return &Level{
		cfg: cfg,
		space: action.Space{
			Projection: grid.Projection{TileWidth: cfg.TileWidth, TileHeight: cfg.TileHeight, Width: w, Height: h},
			Collision:  grid.NewCollisionGrid(mask),
		},
		trail:    grid.NewTrail(cfg.BreadcrumbDecay),
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:   logger.With(zap.String("level", cfg.ID)),
		entities: make(map[int64]*Entity),
	}
}

func (l *Level) ID() string { return l.cfg.ID }
func (l *Level) Config() LevelConfig { return l.cfg }
func (l *Level) Projection() grid.Projection { return l.space.Projection }
func (l *Level) Collision() *grid.CollisionGrid { return l.space.Collision }
func (l *Level) Trail() *grid.Trail { return l.trail }
func (l *Level) Players() []*Entity { return l.players }
func (l *Level) Enemies() []*Entity { return l.enemies }

// Entity returns the entity with id, or nil.
func (l *Level) Entity(id int64) *Entity {
	return l.entities[id]
}

func (l *Level) newEntity(kind Kind, name string, cfg action.Config, at grid.Pos) (*Entity, error) {
	actor := action.NewActor(cfg, l.space, l.logger)
	if err := actor.Place(at); err != nil {
		return nil, fmt.Errorf("place %s at %s: %w", kind, at, err)
	}
	l.nextID++
	e := &Entity{
		ID:              l.nextID,
		Kind:            kind,
		Name:            name,
		Actor:           actor,
		Targetable:      true,
		CollisionOffset: grid.Vec2{Y: l.cfg.TileHeight},
		CollisionRect:   grid.Vec2{X: l.cfg.TileWidth / 2, Y: l.cfg.TileHeight * 2},
	}
	e.Signals.Listen(SignalWarp, func(sig Signal) { l.warp(e, sig.Cell) })
	e.Signals.Listen(SignalTarget, func(Signal) { l.markTargeted(e) })
	l.entities[e.ID] = e
	return e, nil
}

// SpawnPlayer places a player-controlled entity on at.
func (l *Level) SpawnPlayer(name string, accountID int64, at grid.Pos) (*Entity, error) {
	e, err := l.newEntity(KindPlayer, name, action.Config{
		SpeedX:      l.cfg.PlayerSpeedX,
		SpeedY:      l.cfg.PlayerSpeedY,
		Steering:    action.SteerPath,
		Anims:       l.cfg.PlayerAnims,
		AttackFrame: l.cfg.AttackFrame,
		Strict:      l.cfg.Strict,
	}, at)
	if err != nil {
		return nil, err
	}
	e.Player = newPlayer(l, e, accountID)
	l.players = append(l.players, e)
	return e, nil
}

// SpawnEnemy places an AI-controlled enemy on at.
func (l *Level) SpawnEnemy(name string, at grid.Pos) (*Entity, error) {
	e, err := l.newEntity(KindEnemy, name, action.Config{
		SpeedX:      l.cfg.EnemySpeedX,
		SpeedY:      l.cfg.EnemySpeedY,
		Steering:    action.SteerDirect,
		Anims:       l.cfg.EnemyAnims,
		AttackFrame: l.cfg.AttackFrame,
		Strict:      l.cfg.Strict,
	}, at)
	if err != nil {
		return nil, err
	}
	e.Enemy = newEnemy(l, e)
	l.enemies = append(l.enemies, e)
	return e, nil
}

// Remove takes an entity out of the level and releases its cell.
func (l *Level) Remove(id int64) {
	e, ok := l.entities[id]
	if !ok {
		return
	}
	delete(l.entities, id)
	e.Actor.Remove()
	switch e.Kind {
	case KindPlayer:
		l.players = removeEntity(l.players, id)
		l.trail.Clear(id)
	case KindEnemy:
		l.enemies = removeEntity(l.enemies, id)
	}
}

func removeEntity(list []*Entity, id int64) []*Entity {
	i := sort.Search(len(list), func(i int) bool { return list[i].ID >= id })
	if i < len(list) && list[i].ID == id {
		return append(list[:i], list[i+1:]...)
	}
	return list
}

// Tick advances the level by dt seconds: the trail first, then players, then enemies.
func (l *Level) Tick(dt float64) {
	l.tick++
	l.trail.Tick(dt)
	for _, e := range l.players {
		e.Player.update(dt)
	}
	for _, e := range l.enemies {
		e.Enemy.update(dt)
	}
	for _, e := range l.entities {
		if e.Targeted && e.targetTick != l.tick {
			e.Targeted = false
		}
	}
}

// TickCount is the number of ticks simulated so far.
func (l *Level) TickCount() uint64 { return l.tick }

// DrainEvents returns and forgets the events raised since the last drain.
func (l *Level) DrainEvents() []Event {
	ev := l.events
	l.events = nil
	return ev
}

func (l *Level) raise(ev Event) {
	ev.Level = l.cfg.ID
	l.events = append(l.events, ev)
}

// PlayerAt returns the player standing on cell, or nil.
func (l *Level) PlayerAt(cell grid.Pos) *Entity {
	for _, e := range l.players {
		if e.Cell() == cell {
			return e
		}
	}
	return nil
}

// EnemyAt returns the targetable enemy standing on cell, or nil.
func (l *Level) EnemyAt(cell grid.Pos) *Entity {
	for _, e := range l.enemies {
		if e.Targetable && e.Cell() == cell {
			return e
		}
	}
	return nil
}

// NearestPlayerInRange returns the player with the smallest |dx|+|dy| from
// `from` that is strictly below maxRange. Ties go to the lowest entity ID.
func (l *Level) NearestPlayerInRange(from grid.Pos, maxRange int) *Entity {
	var (
		best     *Entity
		bestDist int
	)
	for _, e := range l.players {
		d := grid.AxisSum(from, e.Cell())
		if d < maxRange && (best == nil || d < bestDist) {
			best, bestDist = e, d
		}
	}
	return best
}

// PickEnemy returns the targetable enemy whose picking box contains world point p.
// Overlapping boxes resolve to the enemy spawned last.
func (l *Level) PickEnemy(p grid.Vec2) *Entity {
	var hit *Entity
	for _, e := range l.enemies {
		if e.Targetable && e.contains(p) {
			hit = e
		}
	}
	return hit
}

// NewestBreadcrumb returns the youngest crumb of owner visible from `from`.
func (l *Level) NewestBreadcrumb(owner int64, from grid.Pos) (grid.Breadcrumb, bool) {
	return l.trail.Newest(owner, from, l.space.Collision)
}

// Snapshot returns the client view of every entity, ordered by ID.
func (l *Level) Snapshot() []EntityState {
	out := make([]EntityState, 0, len(l.entities))
	for _, e := range l.entities {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close removes every entity, leaving the collision grid empty of occupants.
func (l *Level) Close() {
	for id := range l.entities {
		l.Remove(id)
	}
}

func (l *Level) warp(e *Entity, cell grid.Pos) {
	if err := e.Actor.Warp(cell); err != nil {
		l.logger.Warn("warp rejected", zap.Int64("entity_id", e.ID), zap.Stringer("cell", cell), zap.Error(err))
		return
	}
	if e.Kind == KindPlayer {
		l.trail.Clear(e.ID)
	}
}

func (l *Level) markTargeted(e *Entity) {
	if !e.Targetable {
		return
	}
	e.Targeted = true
	e.targetTick = l.tick + 1
}

// randInt returns a uniform int in [lo, hi].
func (l *Level) randInt(lo, hi int) int {
	return lo + l.rng.IntN(hi-lo+1)
}
