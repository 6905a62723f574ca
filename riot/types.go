package riot

import (
	"encoding/json"
	"fmt"
)

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// Match is a typed view over a /lol/match/v5/matches/{matchId} document.
// The full upstream document is what gets cached; this struct only carries
// the fields the server reads.
type Match struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation int64              `json:"gameCreation"`
	GameDuration int                `json:"gameDuration"`
	GameMode     string             `json:"gameMode"`
	GameVersion  string             `json:"gameVersion"`
	QueueID      int                `json:"queueId"`
	Participants []MatchParticipant `json:"participants"`
}

type MatchParticipant struct {
	ParticipantID  int    `json:"participantId"`
	PUUID          string `json:"puuid"`
	RiotIdGameName string `json:"riotIdGameName"`
	RiotIdTagline  string `json:"riotIdTagline"`
	ChampionID     int    `json:"championId"`
	ChampionName   string `json:"championName"`
	TeamPosition   string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY
	Win            bool   `json:"win"`

	Kills   int `json:"kills"`
	Deaths  int `json:"deaths"`
	Assists int `json:"assists"`

	// Features read by the model scripts
	GoldEarned                  int `json:"goldEarned"`
	TotalMinionsKilled          int `json:"totalMinionsKilled"`
	VisionScore                 int `json:"visionScore"`
	WardsPlaced                 int `json:"wardsPlaced"`
	TotalDamageDealtToChampions int `json:"totalDamageDealtToChampions"`
	TurretTakedowns             int `json:"turretTakedowns"`
}

// Participant returns the participant entry for puuid, or nil.
func (m *Match) Participant(puuid string) *MatchParticipant {
	for i := range m.Info.Participants {
		if m.Info.Participants[i].PUUID == puuid {
			return &m.Info.Participants[i]
		}
	}
	return nil
}

// DecodeMatch parses a cached or freshly fetched match document.
func DecodeMatch(raw json.RawMessage) (*Match, error) {
	var m Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	return &m, nil
}

// MatchID extracts metadata.matchId from a raw match document.
// Returns "" when the document has no usable ID.
func MatchID(raw json.RawMessage) string {
	var envelope struct {
		Metadata struct {
			MatchID string `json:"matchId"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	return envelope.Metadata.MatchID
}

// AttachTimeline returns the match document with the timeline document stored
// under its "timeline" key.
func AttachTimeline(match, timeline json.RawMessage) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(match, &doc); err != nil {
		return nil, fmt.Errorf("decode match document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("match document is not an object")
	}
	doc["timeline"] = timeline
	return json.Marshal(doc)
}

// statusBody is the error envelope returned by every Riot endpoint.
type statusBody struct {
	Status struct {
		Message    string `json:"message"`
		StatusCode int    `json:"status_code"`
	} `json:"status"`
}

// APIError is a non-200 response from the Riot API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("riot api returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("riot api returned %d", e.StatusCode)
}
