package model

import "time"

// PlayerStats is the persistent combat record of one account.
type PlayerStats struct {
	AccountID int64     `gorm:"primaryKey" json:"account_id"`
	Username  string    `gorm:"size:32" json:"username"`
	Kills     int64     `gorm:"index:idx_stats_kills;not null;default:0" json:"kills"`
	LastLevel string    `gorm:"size:64" json:"last_level"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
