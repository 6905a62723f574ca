package models

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Player is a Riot account resolved through the player lookup route.
type Player struct {
	PUUID     string `gorm:"primaryKey;type:varchar(100)" json:"puuid"`
	GameName  string `gorm:"not null" json:"gameName"`
	TagLine   string `gorm:"not null" json:"tagLine"`
	LookupKey string `gorm:"index;not null" json:"-"` // folded "gamename#tagline"

	LastLookupAt time.Time `json:"lastLookupAt"`

	Timestamps
}

// PlayerLookupKey normalizes a Riot ID so "Faker#KR1" and "faker#kr1" collide.
func PlayerLookupKey(gameName, tagLine string) string {
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(gameName)) + "#" + fold.String(strings.TrimSpace(tagLine))
}
