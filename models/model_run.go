package models

import "time"

const (
	ModelRunSucceeded = "succeeded"
	ModelRunFailed    = "failed"
)

// ModelRun records one invocation of a model script.
type ModelRun struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	Script     string    `gorm:"type:varchar(128);index;not null" json:"script"`
	Args       string    `json:"args"`
	Status     string    `gorm:"type:varchar(16);check:status IN ('succeeded','failed')" json:"status"`
	ExitCode   int       `json:"exit_code"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `gorm:"index;autoCreateTime" json:"created_at"`
}
