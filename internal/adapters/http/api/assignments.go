package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/gmassign/internal/domain/assignment"
	"github.com/okian/gmassign/internal/domain/conflict"
	"github.com/okian/gmassign/internal/domain/eligibility"
	"github.com/okian/gmassign/internal/domain/gamematch"
	"github.com/okian/gmassign/internal/domain/model"
)

// eventRequest is the body of the diagnose and candidates endpoints.
type eventRequest struct {
	ActivityID string `json:"activity_id"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.Date) == "":
		return errors.New("missing date")
	case strings.TrimSpace(e.StartTime) == "":
		return errors.New("missing start_time")
	case strings.TrimSpace(e.EndTime) == "":
		return errors.New("missing end_time")
	}
	return nil
}

func (e eventRequest) toRequest() assignment.Request {
	return assignment.Request{
		ActivityID: e.ActivityID,
		Title:      e.Title,
		Date:       e.Date,
		StartTime:  e.StartTime,
		EndTime:    e.EndTime,
	}
}

type traceEntry struct {
	GMID           string             `json:"gm_id"`
	GMName         string             `json:"gm_name"`
	Eligible       bool               `json:"eligible"`
	Reason         eligibility.Reason `json:"reason"`
	Detail         string             `json:"detail"`
	Weight         float64            `json:"weight,omitempty"`
	Conflicts      *conflict.Report   `json:"conflicts,omitempty"`
	MalformedSlots []string           `json:"malformed_slots,omitempty"`
}

type decisionResponse struct {
	SelectedGM    *model.GameMaster    `json:"selected_gm"`
	EligibleGMs   []eligibility.Result `json:"eligible_gms"`
	GameMatch     gamematch.Match      `json:"game_match"`
	FailureReason string               `json:"failure_reason,omitempty"`
	Trace         []traceEntry         `json:"trace"`
}

func newDecisionResponse(d assignment.Decision) decisionResponse {
	resp := decisionResponse{
		SelectedGM:    d.SelectedGM,
		EligibleGMs:   d.EligibleGMs,
		GameMatch:     d.GameMatch,
		FailureReason: d.FailureReason,
		Trace:         make([]traceEntry, 0, len(d.Trace)),
	}
	if resp.EligibleGMs == nil {
		resp.EligibleGMs = []eligibility.Result{}
	}
	for _, v := range d.Trace {
		e := traceEntry{
			GMID:           v.GM.ID,
			GMName:         v.GM.Name,
			Eligible:       v.Eligible,
			Reason:         v.Reason,
			Detail:         v.Reason.Describe(),
			Conflicts:      v.Conflicts,
			MalformedSlots: v.MalformedSlots,
		}
		if v.Result != nil {
			e.Weight = v.Result.Weight
		}
		resp.Trace = append(resp.Trace, e)
	}
	return resp
}

// AssignmentsHandler serves the engine endpoints.
type AssignmentsHandler struct {
	engine Engine
	runner BatchRunner
}

// NewAssignmentsHandler creates the handler.
func NewAssignmentsHandler(engine Engine, runner BatchRunner) *AssignmentsHandler {
	return &AssignmentsHandler{engine: engine, runner: runner}
}

func (h *AssignmentsHandler) decodeEvent(op string, r *http.Request) (assignment.Request, error) {
	var req eventRequest
	if err := decodeStrict(r, &req); err != nil {
		return assignment.Request{}, WrapKind(op, ErrBadRequest, err)
	}
	if err := req.validate(); err != nil {
		return assignment.Request{}, WrapKind(op, ErrBadRequest, err)
	}
	return req.toRequest(), nil
}

func engineError(op string, err error) error {
	if errors.Is(err, assignment.ErrInvalidEvent) {
		return WrapKind(op, ErrInvalidEvent, err)
	}
	return WrapKind(op, ErrInternal, err)
}

// HandleDiagnose handles POST /assignments/diagnose: a full decision with
// per-GM reasons, drawing a winner without persisting it.
func (h *AssignmentsHandler) HandleDiagnose(w http.ResponseWriter, r *http.Request) {
	const op = "api.diagnose"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	req, err := h.decodeEvent(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	d, err := h.engine.Decide(r.Context(), req)
	if err != nil {
		writeFailure(w, engineError(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newDecisionResponse(d))
}

// HandleCandidates handles POST /assignments/candidates: every eligible GM,
// no draw, for manual assignment.
func (h *AssignmentsHandler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	const op = "api.candidates"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	req, err := h.decodeEvent(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	d, err := h.engine.Candidates(r.Context(), req)
	if err != nil {
		writeFailure(w, engineError(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newDecisionResponse(d))
}

// HandleRun handles POST /assignments/run.
func (h *AssignmentsHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.run_batch"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	sum, err := h.runner.RunBatch(r.Context())
	if err != nil {
		writeFailure(w, WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
