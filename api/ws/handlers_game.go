package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kasuganosora/isoarpg/game/grid"
	"github.com/kasuganosora/isoarpg/game/player"
	"github.com/kasuganosora/isoarpg/game/world"
	"github.com/kasuganosora/isoarpg/resource"
	"go.uber.org/zap"
)

// GameHandlers turns client packets into room commands.
type GameHandlers struct {
	wm         *world.WorldManager
	startLevel string
	logger     *zap.Logger
}

// NewGameHandlers creates GameHandlers; startLevel is entered when enter_level names none.
func NewGameHandlers(wm *world.WorldManager, startLevel string, logger *zap.Logger) *GameHandlers {
	return &GameHandlers{wm: wm, startLevel: startLevel, logger: logger}
}

// RegisterHandlers registers every in-game handler on r.
func (gh *GameHandlers) RegisterHandlers(r *Router) {
	r.On("ping", gh.HandlePing)
	r.On("enter_level", gh.HandleEnterLevel)
	r.On("leave_level", gh.HandleLeaveLevel)
	r.On("move", gh.HandleMove)
	r.On("attack", gh.HandleAttack)
	r.On("engage", gh.HandleEngage)
	r.On("hover", gh.HandleHover)
}

// ------------------------------------------------------------------ ping

type pingReq struct {
	TS int64 `json:"ts"`
}

// HandlePing answers client heartbeats.
func (gh *GameHandlers) HandlePing(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var p pingReq
	_ = json.Unmarshal(raw, &p)
	s.SendHeartbeatPong(p.TS)
	return nil
}

// ------------------------------------------------------------------ enter / leave

type enterLevelReq struct {
	Level string `json:"level"`
}

// HandleEnterLevel moves the session into a level, leaving its current one first.
func (gh *GameHandlers) HandleEnterLevel(ctx context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	var req enterLevelReq
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			return clientErr("bad enter_level payload")
		}
	}
	if req.Level == "" {
		req.Level = gh.startLevel
	}
	if cur, _ := s.Binding(); cur == req.Level {
		return clientErr("already in level " + req.Level)
	}

	room, err := gh.wm.GetOrCreate(req.Level)
	if errors.Is(err, resource.ErrLevelNotFound) {
		return clientErr("unknown level " + req.Level)
	}
	if err != nil {
		return err
	}
	if err := leaveLevel(ctx, s, gh.wm); err != nil {
		return err
	}
	if _, err := room.Join(ctx, s); err != nil {
		return fmt.Errorf("join %s: %w", req.Level, err)
	}
	return nil
}

// HandleLeaveLevel removes the session's entity from its level.
func (gh *GameHandlers) HandleLeaveLevel(ctx context.Context, s *player.PlayerSession, _ json.RawMessage) error {
	if level, _ := s.Binding(); level == "" {
		return clientErr("not in a level")
	}
	return leaveLevel(ctx, s, gh.wm)
}

// leaveLevel is a no-op for unbound sessions or rooms that already stopped.
func leaveLevel(ctx context.Context, s *player.PlayerSession, wm *world.WorldManager) error {
	level, _ := s.Binding()
	if level == "" {
		return nil
	}
	room := wm.Get(level)
	if room == nil {
		s.Unbind()
		return nil
	}
	err := room.Leave(ctx, s)
	if errors.Is(err, world.ErrRoomStopped) {
		s.Unbind()
		return nil
	}
	return err
}

// ------------------------------------------------------------------ pointer intents

type vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type cameraReq struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// pointerReq addresses a cell directly, by world point, or by screen pixel
// with the client's viewport and camera.
type pointerReq struct {
	X        *int       `json:"x,omitempty"`
	Y        *int       `json:"y,omitempty"`
	World    *vec       `json:"world,omitempty"`
	Screen   *vec       `json:"screen,omitempty"`
	Viewport *vec       `json:"viewport,omitempty"`
	Camera   *cameraReq `json:"camera,omitempty"`
}

func (p pointerReq) worldPoint() (grid.Vec2, bool) {
	switch {
	case p.World != nil:
		return grid.Vec2{X: p.World.X, Y: p.World.Y}, true
	case p.Screen != nil && p.Viewport != nil && p.Viewport.X > 0 && p.Viewport.Y > 0:
		cam := grid.Camera{Zoom: 1}
		if p.Camera != nil {
			cam = grid.Camera{Center: grid.Vec2{X: p.Camera.X, Y: p.Camera.Y}, Zoom: p.Camera.Zoom}
		}
		return grid.ScreenToWorld(
			grid.Vec2{X: p.Screen.X, Y: p.Screen.Y},
			grid.Viewport{Width: p.Viewport.X, Height: p.Viewport.Y},
			cam,
		), true
	}
	return grid.Vec2{}, false
}

func (p pointerReq) cell(pr grid.Projection) (grid.Pos, error) {
	if p.X != nil && p.Y != nil {
		c := grid.Pos{X: *p.X, Y: *p.Y}
		if !pr.InBounds(c) {
			return grid.Pos{}, clientErr(fmt.Sprintf("cell %s out of bounds", c))
		}
		return c, nil
	}
	if w, ok := p.worldPoint(); ok {
		return pr.WorldToGrid(w), nil
	}
	return grid.Pos{}, clientErr("missing target cell")
}

// boundRoom returns the room and entity the session controls.
func (gh *GameHandlers) boundRoom(s *player.PlayerSession) (*world.Room, int64, error) {
	level, id := s.Binding()
	if level == "" {
		return nil, 0, clientErr("not in a level")
	}
	room := gh.wm.Get(level)
	if room == nil {
		s.Unbind()
		return nil, 0, clientErr("level closed")
	}
	return room, id, nil
}

func (gh *GameHandlers) submitCell(s *player.PlayerSession, raw json.RawMessage, kind world.IntentKind) error {
	room, id, err := gh.boundRoom(s)
	if err != nil {
		return err
	}
	var req pointerReq
	if err := json.Unmarshal(raw, &req); err != nil {
		return clientErr("bad pointer payload")
	}
	c, err := req.cell(room.Projection())
	if err != nil {
		return err
	}
	return room.Submit(id, world.Intent{Kind: kind, Cell: c})
}

// HandleMove asks the player to walk to a cell.
func (gh *GameHandlers) HandleMove(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	return gh.submitCell(s, raw, world.IntentMove)
}

// HandleAttack asks the player to swing toward a cell without moving.
func (gh *GameHandlers) HandleAttack(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	return gh.submitCell(s, raw, world.IntentAttack)
}

type engageReq struct {
	EntityID int64 `json:"entity_id"`
}

// HandleEngage asks the player to close on an entity and act on it.
func (gh *GameHandlers) HandleEngage(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	room, id, err := gh.boundRoom(s)
	if err != nil {
		return err
	}
	var req engageReq
	if err := json.Unmarshal(raw, &req); err != nil || req.EntityID == 0 {
		return clientErr("bad engage payload")
	}
	return room.Submit(id, world.Intent{Kind: world.IntentEngage, Target: req.EntityID})
}

// HandleHover highlights the enemy under the pointer for the next sync.
func (gh *GameHandlers) HandleHover(_ context.Context, s *player.PlayerSession, raw json.RawMessage) error {
	room, _, err := gh.boundRoom(s)
	if err != nil {
		return err
	}
	var req pointerReq
	if err := json.Unmarshal(raw, &req); err != nil {
		return clientErr("bad pointer payload")
	}
	w, ok := req.worldPoint()
	if !ok {
		return clientErr("hover needs a world or screen point")
	}
	return room.Hover(w)
}
