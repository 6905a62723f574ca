package models

import "time"

// CachedMatch is a full Riot match document (timeline included when fetched) keyed by
// its match ID. Rows are written by upsert only and never deleted by the fetch path.
type CachedMatch struct {
	MatchID      string    `gorm:"primaryKey;type:varchar(64)" json:"match_id"`
	GameMode     string    `gorm:"type:varchar(32);index" json:"game_mode"`
	GameCreation int64     `json:"game_creation"`
	Document     string    `gorm:"type:jsonb;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
