// Package events defines the payloads exported through the outbox.
package events

import "time"

// Outbox event types.
const (
	TypeSessionCompleted = "session.completed"
	TypeSessionDeleted   = "session.deleted"
)

// SessionCompleted is emitted when a workout session enters history.
type SessionCompleted struct {
	SessionID      string          `json:"session_id"`
	AccountID      string          `json:"account_id,omitempty"`
	Name           string          `json:"name"`
	Date           time.Time       `json:"date"`
	CompletedAt    time.Time       `json:"completed_at"`
	TemplateID     string          `json:"template_id,omitempty"`
	SetCount       int             `json:"set_count"`
	Volume         float64         `json:"volume"`
	Exercises      []ExerciseTotal `json:"exercises"`
	RunMode        string          `json:"run_mode,omitempty"`
	DistanceMeters float64         `json:"distance_m,omitempty"`
	DurationSec    int64           `json:"duration_s,omitempty"`
}

// ExerciseTotal summarises one exercise inside a completed session.
type ExerciseTotal struct {
	ExerciseID string  `json:"exercise_id"`
	Sets       int     `json:"sets"`
	TopWeight  float64 `json:"top_weight"`
}

// SessionDeleted is emitted when a completed session is removed from history.
type SessionDeleted struct {
	SessionID string    `json:"session_id"`
	AccountID string    `json:"account_id,omitempty"`
	DeletedAt time.Time `json:"deleted_at"`
}
