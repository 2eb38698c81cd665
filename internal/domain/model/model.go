// Package model contains domain models passed between layers.
package model

import "time"

// Slot tokens with a fixed meaning.
const (
	SlotAllDay         = "toute-la-journee"
	SlotUnavailableDay = "indisponible-toute-la-journee"
)

// ActivityStatus is the lifecycle state of a scheduled event.
type ActivityStatus string

const (
	StatusPending   ActivityStatus = "pending"
	StatusAssigned  ActivityStatus = "assigned"
	StatusCompleted ActivityStatus = "completed"
	StatusCancelled ActivityStatus = "cancelled"
)

// GameMaster is a staff member who can run events.
type GameMaster struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Email       string `json:"email" yaml:"email"`
	IsActive    bool   `json:"is_active" yaml:"is_active"`
	IsAvailable bool   `json:"is_available" yaml:"is_available"` // system-wide toggle, not date specific
}

// Availability lists the slot tokens a GM declared for one date.
// Date uses the YYYY-MM-DD layout.
type Availability struct {
	GMID      string   `json:"gm_id" yaml:"gm_id"`
	Date      string   `json:"date" yaml:"date"`
	TimeSlots []string `json:"time_slots" yaml:"time_slots"`
}

// Competency rates a GM on a game. Level 0 means no competency.
type Competency struct {
	GMID   string `json:"gm_id" yaml:"gm_id"`
	GameID string `json:"game_id" yaml:"game_id"`
	Level  int    `json:"level" yaml:"level"`
}

// Game is a catalog entry. A nil MinimumBreakMinutes means the configured
// default applies.
type Game struct {
	ID                  string `json:"id" yaml:"id"`
	Name                string `json:"name" yaml:"name"`
	AverageDuration     int    `json:"average_duration" yaml:"average_duration"`
	MinimumBreakMinutes *int   `json:"minimum_break_minutes,omitempty" yaml:"minimum_break_minutes"`
}

// GameMapping associates a title pattern with a game.
type GameMapping struct {
	Pattern         string `json:"pattern" yaml:"pattern"`
	GameID          string `json:"game_id" yaml:"game_id"`
	GameName        string `json:"game_name" yaml:"game_name"`
	AverageDuration int    `json:"average_duration" yaml:"average_duration"`
	IsActive        bool   `json:"is_active" yaml:"is_active"`
}

// Activity is a scheduled event. Times use HH:MM or HH:MM:SS.
type Activity struct {
	ID           string         `json:"id" yaml:"id"`
	Title        string         `json:"title" yaml:"title"`
	Date         string         `json:"date" yaml:"date"`
	StartTime    string         `json:"start_time" yaml:"start_time"`
	EndTime      string         `json:"end_time" yaml:"end_time"`
	AssignedGMID string         `json:"assigned_gm_id,omitempty" yaml:"assigned_gm_id"`
	Status       ActivityStatus `json:"status" yaml:"status"`
}

// Blocks reports whether the activity occupies its assigned GM's time.
func (a Activity) Blocks() bool {
	return a.AssignedGMID != "" && a.Status != StatusCancelled
}

// AssignmentNotice is emitted when an activity gets a GM.
type AssignmentNotice struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	Activity   Activity   `json:"activity"`
	GM         GameMaster `json:"gm"`
	GameName   string     `json:"game_name,omitempty"`
	AssignedAt time.Time  `json:"assigned_at"`
}

// Key identifies the notice for idempotency: one notice per activity and GM.
func (n AssignmentNotice) Key() string {
	return n.Activity.ID + "/" + n.GM.ID
}
