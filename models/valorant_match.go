package models

import (
	"errors"
	"time"
)

// ValorantMatch is a seeded Valorant match summary for the requesting player.
type ValorantMatch struct {
	ID          string              `gorm:"primaryKey" json:"id"`
	Map         string              `gorm:"not null" json:"map"`
	Result      string              `gorm:"not null" json:"result"`
	Date        string              `gorm:"not null" json:"date"`
	PlayerStats ValorantPlayerStats `gorm:"embedded;embeddedPrefix:player_" json:"playerStats"`
	CreatedAt   time.Time           `json:"-" gorm:"autoCreateTime"`
}

type ValorantPlayerStats struct {
	Agent              string  `gorm:"not null" json:"agent"`
	Role               string  `gorm:"not null" json:"role"`
	Score              int     `json:"score"`
	Kills              int     `json:"kills"`
	Deaths             int     `json:"deaths"`
	Assists            int     `json:"assists"`
	HeadshotPercentage float64 `json:"headshotPercentage"`
	FirstKills         int     `json:"firstKills"`
}

// Validate checks the fields every seeded match must carry.
func (m ValorantMatch) Validate() error {
	switch {
	case m.ID == "":
		return errors.New("match id is required")
	case m.Map == "":
		return errors.New("map is required")
	case m.Result == "":
		return errors.New("result is required")
	case m.Date == "":
		return errors.New("date is required")
	case m.PlayerStats.Agent == "" || m.PlayerStats.Role == "":
		return errors.New("playerStats.agent and playerStats.role are required")
	}
	return nil
}
