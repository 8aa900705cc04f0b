package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kasuganosora/isoarpg/game/grid"
	"github.com/kasuganosora/isoarpg/game/player"
	"github.com/kasuganosora/isoarpg/resource"
	"go.uber.org/zap"
)

// DefaultTickInterval is the room loop period (20 TPS).
const DefaultTickInterval = 50 * time.Millisecond

// ErrRoomStopped is returned by commands sent to a room whose loop has exited.
var ErrRoomStopped = errors.New("world: room stopped")

// EventSink receives the events of every tick that raised any. It is
// called from the room goroutine and must not block.
type EventSink interface {
	Publish(events []Event)
}

// LevelInit is the payload sent to a session when it joins a room.
type LevelInit struct {
	Level      string        `json:"level"`
	Name       string        `json:"name"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	TileWidth  float64       `json:"tile_width"`
	TileHeight float64       `json:"tile_height"`
	Tiles      []int         `json:"tiles"`
	EntityID   int64         `json:"entity_id"`
	Entities   []EntityState `json:"entities"`
}

// LevelSync is broadcast after every tick.
type LevelSync struct {
	Tick     uint64        `json:"tick"`
	Entities []EntityState `json:"entities"`
}

// Room runs one Level on its own goroutine. Every access to the level
// goes through the command channel, so the level itself needs no locks.
type Room struct {
	ID string

	def      *resource.Level
	level    *Level
	interval time.Duration
	sink     EventSink

	cmds   chan func(*Level)
	stopCh chan struct{}
	done   chan struct{}

	mu         sync.RWMutex
	sessions   map[int64]*player.PlayerSession // entityID → session
	lastActive time.Time

	logger *zap.Logger
}

// NewRoom builds the level from def and spawns its enemies. The loop is not started.
func NewRoom(def *resource.Level, cfg LevelConfig, interval time.Duration, sink EventSink, logger *zap.Logger) *Room {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	cfg.ID = def.ID
	cfg.TileWidth, cfg.TileHeight = def.TileWidth, def.TileHeight
	if def.Anims.Player != nil {
		cfg.PlayerAnims = *def.Anims.Player
	}
	if def.Anims.Enemy != nil {
		cfg.EnemyAnims = *def.Anims.Enemy
	}
	logger = logger.With(zap.String("level", def.ID))
	room := &Room{
		ID:         def.ID,
		def:        def,
		level:      NewLevel(cfg, def, logger),
		interval:   interval,
		sink:       sink,
		cmds:       make(chan func(*Level)),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		sessions:   make(map[int64]*player.PlayerSession),
		lastActive: time.Now(),
		logger:     logger,
	}
	SpawnAll(room.level, def.Enemies, logger)
	return room
}

// Run drives the level until Stop is called. Call in a goroutine.
func (room *Room) Run() {
	defer close(room.done)
	ticker := time.NewTicker(room.interval)
	defer ticker.Stop()
	dt := room.interval.Seconds()
	for {
		select {
		case <-ticker.C:
			room.step(dt)
		case fn := <-room.cmds:
			fn(room.level)
		case <-room.stopCh:
			room.shutdown()
			return
		}
	}
}

// Stop signals the loop to exit.
func (room *Room) Stop() {
	select {
	case <-room.stopCh:
	default:
		close(room.stopCh)
	}
}

// Done is closed once the loop has exited.
func (room *Room) Done() <-chan struct{} {
	return room.done
}

// Do runs fn on the room goroutine and waits for its result. ctx bounds
// only the wait to hand fn over; once the loop has taken it, fn runs to
// completion and its result is returned.
func (room *Room) Do(ctx context.Context, fn func(*Level) error) error {
	errCh := make(chan error, 1)
	select {
	case room.cmds <- func(l *Level) { errCh <- fn(l) }:
	case <-room.stopCh:
		return ErrRoomStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errCh
}

// post queues fn without waiting for it to run.
func (room *Room) post(fn func(*Level)) error {
	select {
	case room.cmds <- fn:
		return nil
	case <-room.stopCh:
		return ErrRoomStopped
	}
}

// Projection returns the level's coordinate metrics. It is immutable and
// safe to call from any goroutine.
func (room *Room) Projection() grid.Projection {
	w, h := room.def.Size()
	return grid.Projection{TileWidth: room.def.TileWidth, TileHeight: room.def.TileHeight, Width: w, Height: h}
}

// Submit forwards an intent to the player entity entityID.
func (room *Room) Submit(entityID int64, in Intent) error {
	return room.post(func(l *Level) {
		if e := l.Entity(entityID); e != nil && e.Player != nil {
			e.Player.Submit(in)
		}
	})
}

// Hover highlights the enemy under world point p for one tick.
func (room *Room) Hover(p grid.Vec2) error {
	return room.post(func(l *Level) {
		if e := l.PickEnemy(p); e != nil {
			SendTarget(e)
		}
	})
}

// Warp teleports entityID onto cell.
func (room *Room) Warp(entityID int64, cell grid.Pos) error {
	return room.post(func(l *Level) {
		if e := l.Entity(entityID); e != nil {
			SendWarp(e, cell)
		}
	})
}

// Join spawns a player for s next to the level's spawn point and sends it
// the level_init packet.
func (room *Room) Join(ctx context.Context, s *player.PlayerSession) (int64, error) {
	var id int64
	err := room.Do(ctx, func(l *Level) error {
		cell, ok := FreeCellNear(l.Collision(), room.def.PlayerSpawn.Cell())
		if !ok {
			return fmt.Errorf("world: level %s is full", room.ID)
		}
		e, err := l.SpawnPlayer(s.Username, s.AccountID, cell)
		if err != nil {
			return err
		}
		id = e.ID
		s.Bind(room.ID, id)

		room.mu.Lock()
		room.sessions[id] = s
		room.lastActive = time.Now()
		room.mu.Unlock()

		w, h := room.def.Size()
		pkt, err := player.NewPacket("level_init", LevelInit{
			Level:      room.ID,
			Name:       room.def.Name,
			Width:      w,
			Height:     h,
			TileWidth:  room.def.TileWidth,
			TileHeight: room.def.TileHeight,
			Tiles:      room.def.Walkable(),
			EntityID:   id,
			Entities:   l.Snapshot(),
		})
		if err != nil {
			return err
		}
		s.Send(pkt)
		return nil
	})
	if err != nil {
		return 0, err
	}
	room.logger.Info("player joined",
		zap.Int64("account_id", s.AccountID),
		zap.Int64("entity_id", id))
	return id, nil
}

// Leave removes the entity bound to s.
func (room *Room) Leave(ctx context.Context, s *player.PlayerSession) error {
	_, id := s.Binding()
	return room.Do(ctx, func(l *Level) error {
		room.remove(l, id)
		s.Unbind()
		return nil
	})
}

func (room *Room) remove(l *Level, entityID int64) {
	l.Remove(entityID)
	room.mu.Lock()
	delete(room.sessions, entityID)
	room.lastActive = time.Now()
	room.mu.Unlock()

	pkt, _ := player.NewPacket("entity_leave", map[string]int64{"entity_id": entityID})
	room.broadcast(pkt)
}

// Snapshot returns the current entity states.
func (room *Room) Snapshot(ctx context.Context) ([]EntityState, error) {
	var out []EntityState
	err := room.Do(ctx, func(l *Level) error {
		out = l.Snapshot()
		return nil
	})
	return out, err
}

// PlayerCount returns the number of sessions in the room.
func (room *Room) PlayerCount() int {
	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.sessions)
}

// IdleSince reports when the room last had a session join or leave.
// The second result is false while any session is present.
func (room *Room) IdleSince() (time.Time, bool) {
	room.mu.RLock()
	defer room.mu.RUnlock()
	return room.lastActive, len(room.sessions) == 0
}

// step advances the level one tick and fans the result out.
func (room *Room) step(dt float64) {
	room.cleanStaleSessions()

	l := room.level
	l.Tick(dt)

	events := l.DrainEvents()
	for i := range events {
		pkt, err := player.NewPacket("level_event", events[i])
		if err != nil {
			continue
		}
		room.broadcast(pkt)
	}
	if len(events) > 0 && room.sink != nil {
		room.sink.Publish(events)
	}

	if room.PlayerCount() == 0 {
		return
	}
	pkt, err := player.NewPacket("level_sync", LevelSync{Tick: l.TickCount(), Entities: l.Snapshot()})
	if err != nil {
		room.logger.Error("encode level_sync", zap.Error(err))
		return
	}
	room.broadcast(pkt)
}

// cleanStaleSessions removes the entities of sessions whose connection closed.
func (room *Room) cleanStaleSessions() {
	room.mu.RLock()
	var stale []int64
	for id, s := range room.sessions {
		if s.IsClosed() {
			stale = append(stale, id)
		}
	}
	room.mu.RUnlock()

	for _, id := range stale {
		room.remove(room.level, id)
		room.logger.Info("removed stale player from room", zap.Int64("entity_id", id))
	}
}

func (room *Room) broadcast(pkt *player.Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		return
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	for _, s := range room.sessions {
		s.SendRaw(data)
	}
}

func (room *Room) shutdown() {
	pkt, _ := player.NewPacket("level_closed", map[string]string{"level": room.ID})
	room.mu.Lock()
	for id, s := range room.sessions {
		s.Unbind()
		if pkt != nil {
			s.Send(pkt)
		}
		delete(room.sessions, id)
	}
	room.mu.Unlock()
	room.level.Close()
}
