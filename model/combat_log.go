package model

import (
	"time"

	"gorm.io/datatypes"
)

// CombatLog records one gameplay event (kill, interact) raised in a level.
type CombatLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID   string         `gorm:"index:idx_combat_trace;size:36;not null" json:"trace_id"`
	Level     string         `gorm:"index:idx_combat_level;size:64;not null" json:"level"`
	Event     string         `gorm:"size:32;not null" json:"event"`
	AccountID *int64         `gorm:"index:idx_combat_account" json:"account_id"`
	ActorID   int64          `json:"actor_id"`
	TargetID  int64          `json:"target_id"`
	X         int            `json:"x"`
	Y         int            `json:"y"`
	Detail    datatypes.JSON `json:"detail"`
	CreatedAt time.Time      `gorm:"index:idx_combat_created;autoCreateTime:milli" json:"created_at"`
}
