// Package api exposes the assignment engine over HTTP: diagnostics, manual
// assignment candidates, batch triggering and cache control.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/gmassign/internal/batch"
	"github.com/okian/gmassign/internal/domain/assignment"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Engine evaluates a single event against the current stored state.
type Engine interface {
	Decide(ctx context.Context, req assignment.Request) (assignment.Decision, error)
	Candidates(ctx context.Context, req assignment.Request) (assignment.Decision, error)
}

// BatchRunner triggers a batch run on demand.
type BatchRunner interface {
	RunBatch(ctx context.Context) (batch.Summary, error)
}

// MappingCache drops cached game resolutions.
type MappingCache interface {
	InvalidateGameMappings(ctx context.Context)
}

// StatsProvider reports service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) (map[string]any, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Engine
	BatchRunner
	MappingCache
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	assignmentsHandler *AssignmentsHandler
	mappingsHandler    *MappingsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		assignmentsHandler: NewAssignmentsHandler(deps, deps),
		mappingsHandler:    NewMappingsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/assignments/diagnose", MetricsMiddleware(s.assignmentsHandler.HandleDiagnose, "diagnose"))
	mux.HandleFunc("/assignments/candidates", MetricsMiddleware(s.assignmentsHandler.HandleCandidates, "candidates"))
	mux.HandleFunc("/assignments/run", MetricsMiddleware(s.assignmentsHandler.HandleRun, "run"))
	mux.HandleFunc("/game-mappings/invalidate", MetricsMiddleware(s.mappingsHandler.HandleInvalidate, "invalidate"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an error to its status code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrInvalidEvent):
		writeError(w, http.StatusUnprocessableEntity, "invalid_event", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeStrict decodes a JSON body, rejecting unknown fields.
func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
