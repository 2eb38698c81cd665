// Package repository persists the roster, declared availability, the game
// catalog, activities and the assignment log.
package repository

import (
	"context"
	"time"

	"github.com/okian/gmassign/internal/domain/assignment"
	"github.com/okian/gmassign/internal/domain/model"
)

// LogEntry is one committed batch assignment.
type LogEntry struct {
	RunID      string    `json:"run_id"`
	ActivityID string    `json:"activity_id"`
	GMID       string    `json:"gm_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Stats summarizes stored state for the stats endpoint.
type Stats struct {
	GameMasters       int `json:"game_masters"`
	ActiveGameMasters int `json:"active_game_masters"`
	Games             int `json:"games"`
	GameMappings      int `json:"game_mappings"`
	Pending           int `json:"pending"`
	Assigned          int `json:"assigned"`
	LoggedAssignments int `json:"logged_assignments"`
}

// Store is the persistence surface used by the service.
type Store interface {
	UpsertGameMaster(ctx context.Context, gm model.GameMaster) error
	UpsertAvailability(ctx context.Context, a model.Availability) error
	UpsertCompetency(ctx context.Context, c model.Competency) error
	UpsertGame(ctx context.Context, g model.Game) error
	UpsertGameMapping(ctx context.Context, m model.GameMapping) error
	UpsertActivity(ctx context.Context, a model.Activity) error

	GetActivity(ctx context.Context, id string) (model.Activity, error)
	// ListUnassigned returns pending activities without a GM dated within
	// [from, to], ordered by date then start time. An empty bound is open.
	ListUnassigned(ctx context.Context, from, to string) ([]model.Activity, error)
	ActiveGameMappings(ctx context.Context) ([]model.GameMapping, error)
	LoadSnapshot(ctx context.Context) (assignment.Snapshot, error)

	// AssignActivity sets the GM, flips the status to assigned and appends to
	// the assignment log in one transaction.
	AssignActivity(ctx context.Context, activityID, gmID, runID string) error
	AssignmentLog(ctx context.Context, runID string) ([]LogEntry, error)
	Stats(ctx context.Context) (Stats, error)

	Close() error
}
