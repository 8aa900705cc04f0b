package world

import (
	"github.com/kasuganosora/isoarpg/game/action"
	"github.com/kasuganosora/isoarpg/game/grid"
)

// Kind distinguishes the two mobile entity kinds.
type Kind int

const (
	KindPlayer Kind = iota
	KindEnemy
)

func (k Kind) String() string {
	if k == KindPlayer {
		return "player"
	}
	return "enemy"
}

// Entity is a struct of components. Exactly one of Player or Enemy is set, matching Kind.
type Entity struct {
	ID      int64
	Kind    Kind
	Name    string
	Actor   *action.Actor
	Signals Signals

	Targetable bool
	Targeted   bool
	targetTick uint64

	// Screen-picking box, relative to the world anchor.
	CollisionOffset grid.Vec2
	CollisionRect   grid.Vec2

	Player *Player
	Enemy  *Enemy
}

// Cell is the entity's current grid cell.
func (e *Entity) Cell() grid.Pos {
	return e.Actor.Cell()
}

// contains reports whether world point p lies in the picking box.
func (e *Entity) contains(p grid.Vec2) bool {
	c := e.Actor.WorldPos().Add(e.CollisionOffset)
	hw, hh := e.CollisionRect.X/2, e.CollisionRect.Y/2
	return p.X >= c.X-hw && p.X <= c.X+hw && p.Y >= c.Y-hh && p.Y <= c.Y+hh
}

// EntityState is the per-tick client view of one entity.
type EntityState struct {
	ID       int64   `json:"id"`
	Kind     string  `json:"kind"`
	Name     string  `json:"name,omitempty"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	WX       float64 `json:"wx"`
	WY       float64 `json:"wy"`
	Facing   int     `json:"facing"`
	State    string  `json:"state"`
	Anim     string  `json:"anim"`
	Frame    int     `json:"frame"`
	Targeted bool    `json:"targeted,omitempty"`
	Kills    int     `json:"kills,omitempty"`
	Health   int     `json:"health,omitempty"`
}

func (e *Entity) snapshot() EntityState {
	cell, wp := e.Actor.Cell(), e.Actor.WorldPos()
	st := EntityState{
		ID:       e.ID,
		Kind:     e.Kind.String(),
		Name:     e.Name,
		X:        cell.X,
		Y:        cell.Y,
		WX:       wp.X,
		WY:       wp.Y,
		Facing:   int(e.Actor.Facing()),
		State:    e.Actor.State().String(),
		Anim:     e.Actor.Animation().Current(),
		Frame:    e.Actor.Animation().Frame(),
		Targeted: e.Targeted,
	}
	if e.Player != nil {
		st.Kills = e.Player.Kills
	}
	if e.Enemy != nil {
		st.Health = e.Enemy.health
	}
	return st
}
