package domain

import (
	"math"
	"time"
)

// Account is the single local owner of the installation's data.
type Account struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Exercise is a library entry that sets and templates point at.
type Exercise struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Custom    bool      `json:"custom,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TemplateItem is one planned exercise inside a template.
type TemplateItem struct {
	ExerciseID string `json:"exercise_id"`
	TargetSets int    `json:"target_sets"`
}

// Template is a reusable plan used to start sessions quickly.
type Template struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Items     []TemplateItem `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Folder groups templates. A template belongs to at most one folder.
type Folder struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	TemplateIDs []string `json:"template_ids"`
}

// SessionState tracks where a workout session is in its lifecycle.
type SessionState string

const (
	SessionStateDraft     SessionState = "draft"
	SessionStateActive    SessionState = "active"
	SessionStateCompleted SessionState = "completed"
)

// SetType classifies a logged set.
type SetType string

const (
	SetTypeWarmUp  SetType = "warm_up"
	SetTypeWorking SetType = "working"
	SetTypeFailure SetType = "failure"
	SetTypeDropSet SetType = "drop_set"
)

// OrDefault returns Working for an unset type.
func (t SetType) OrDefault() SetType {
	if t == "" {
		return SetTypeWorking
	}
	return t
}

// Valid reports whether t is one of the known set types.
func (t SetType) Valid() bool {
	switch t {
	case SetTypeWarmUp, SetTypeWorking, SetTypeFailure, SetTypeDropSet:
		return true
	}
	return false
}

// Set is a single logged effort for an exercise.
type Set struct {
	ID         string  `json:"id"`
	ExerciseID string  `json:"exercise_id"`
	Reps       int     `json:"reps"`
	Weight     float64 `json:"weight"`
	Type       SetType `json:"type"`
	Notes      string  `json:"notes,omitempty"`
	// Planned marks a template placeholder with no prior performance that
	// has not been filled in yet.
	Planned bool `json:"planned,omitempty"`
}

// ExerciseEntry holds the ordered sets logged for one exercise in a session.
type ExerciseEntry struct {
	ExerciseID string `json:"exercise_id"`
	Sets       []Set  `json:"sets"`
}

// RunMode distinguishes manually entered runs from GPS-recorded ones.
type RunMode string

const (
	RunModeManual RunMode = "manual"
	RunModeGPS    RunMode = "gps"
)

// Valid reports whether m is a known run mode.
func (m RunMode) Valid() bool {
	return m == RunModeManual || m == RunModeGPS
}

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Valid reports whether c is a finite position inside WGS84 bounds.
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Latitude) && !math.IsNaN(c.Longitude) &&
		c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// RoutePoint is one sampled position recorded during a GPS run.
type RoutePoint struct {
	Coordinate
	Timestamp time.Time `json:"ts"`
}

// Run is the optional cardio portion of a session.
type Run struct {
	ID             string        `json:"id"`
	Mode           RunMode       `json:"mode"`
	DistanceMeters float64       `json:"distance_m"`
	Duration       time.Duration `json:"duration"`
	StartedAt      time.Time     `json:"started_at"`
	Recording      bool          `json:"recording,omitempty"`
	Route          []RoutePoint  `json:"route,omitempty"`
}

// WorkoutSession is a dated workout: lifting entries plus an optional run.
type WorkoutSession struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Date        time.Time       `json:"date"`
	TemplateID  string          `json:"template_id,omitempty"`
	Entries     []ExerciseEntry `json:"entries"`
	Run         *Run            `json:"run,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	State       SessionState    `json:"state"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// SetCount returns the number of sets across all entries.
func (s WorkoutSession) SetCount() int {
	n := 0
	for _, entry := range s.Entries {
		n += len(entry.Sets)
	}
	return n
}

// Volume returns the sum of reps × weight over every set.
func (s WorkoutSession) Volume() float64 {
	var total float64
	for _, entry := range s.Entries {
		for _, set := range entry.Sets {
			total += float64(set.Reps) * set.Weight
		}
	}
	return total
}

// References reports whether any set or entry in the session uses exerciseID.
func (s WorkoutSession) References(exerciseID string) bool {
	for _, entry := range s.Entries {
		if entry.ExerciseID == exerciseID {
			return true
		}
		for _, set := range entry.Sets {
			if set.ExerciseID == exerciseID {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the session.
func (s WorkoutSession) Clone() WorkoutSession {
	out := s
	if s.Entries != nil {
		out.Entries = make([]ExerciseEntry, len(s.Entries))
		for i, entry := range s.Entries {
			out.Entries[i] = ExerciseEntry{ExerciseID: entry.ExerciseID}
			if entry.Sets != nil {
				out.Entries[i].Sets = append([]Set(nil), entry.Sets...)
			}
		}
	}
	if s.Run != nil {
		run := *s.Run
		if s.Run.Route != nil {
			run.Route = append([]RoutePoint(nil), s.Run.Route...)
		}
		out.Run = &run
	}
	if s.CompletedAt != nil {
		ts := *s.CompletedAt
		out.CompletedAt = &ts
	}
	return out
}
