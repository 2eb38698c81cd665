// Package eligibility decides, GM by GM, who may run an event and with what
// selection weight.
package eligibility

import (
	"context"

	"github.com/okian/gmassign/internal/domain/conflict"
	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/internal/domain/slots"
	"github.com/okian/gmassign/internal/domain/timeofday"
	"github.com/okian/gmassign/pkg/logger"
	"github.com/okian/gmassign/pkg/metrics"
)

// DefaultWeight applies when no game was identified for the event.
const DefaultWeight = 1

// Reason explains a verdict. Gates are checked in declaration order.
type Reason string

const (
	ReasonEligible          Reason = "eligible"
	ReasonInactive          Reason = "inactive"
	ReasonSystemUnavailable Reason = "system_unavailable"
	ReasonNoAvailability    Reason = "no_availability"
	ReasonSlotMismatch      Reason = "slot_mismatch"
	ReasonConflict          Reason = "conflict"
	ReasonNoCompetency      Reason = "no_competency"
)

var descriptions = map[Reason]string{
	ReasonEligible:          "eligible",
	ReasonInactive:          "GM is inactive",
	ReasonSystemUnavailable: "GM is marked unavailable",
	ReasonNoAvailability:    "no declared availability",
	ReasonSlotMismatch:      "declared slots do not cover the event",
	ReasonConflict:          "scheduling conflict",
	ReasonNoCompetency:      "no competency for the game",
}

// Describe returns a human readable explanation.
func (r Reason) Describe() string {
	if d, ok := descriptions[r]; ok {
		return d
	}
	return string(r)
}

// Result is an admitted candidate.
type Result struct {
	GM                    model.GameMaster `json:"gm"`
	CompetencyLevel       int              `json:"competency_level"`
	Weight                float64          `json:"weight"`
	MatchedSlots          []string         `json:"matched_slots"`
	HasSpecificCompetency bool             `json:"has_specific_competency"`
}

// Verdict is the trace entry for one GM.
type Verdict struct {
	GM             model.GameMaster `json:"gm"`
	Eligible       bool             `json:"eligible"`
	Reason         Reason           `json:"reason"`
	Result         *Result          `json:"result,omitempty"`
	Conflicts      *conflict.Report `json:"conflicts,omitempty"`
	MalformedSlots []string         `json:"malformed_slots,omitempty"`
}

// Event is what every GM is evaluated against.
type Event struct {
	ActivityID string
	Date       string
	Window     timeofday.Window
	// GameID is empty when no game was identified.
	GameID string
	// MinimumBreak in minutes; nil lets the conflict checker decide.
	MinimumBreak *int
}

type key struct {
	gmID  string
	other string
}

// Index holds availabilities by (GM, date) and competency levels by
// (GM, game). It is read-only after construction.
type Index struct {
	availability map[key][]string
	competency   map[key]int
}

// NewIndex builds an index. A later record for the same key replaces an
// earlier one.
func NewIndex(availabilities []model.Availability, competencies []model.Competency) *Index {
	idx := &Index{
		availability: make(map[key][]string, len(availabilities)),
		competency:   make(map[key]int, len(competencies)),
	}
	for _, a := range availabilities {
		idx.availability[key{gmID: a.GMID, other: a.Date}] = a.TimeSlots
	}
	for _, c := range competencies {
		idx.competency[key{gmID: c.GMID, other: c.GameID}] = c.Level
	}
	return idx
}

// Slots returns the declared tokens for a GM on a date.
func (i *Index) Slots(gmID, date string) ([]string, bool) {
	s, ok := i.availability[key{gmID: gmID, other: date}]
	return s, ok
}

// Level returns the competency level, 0 when absent.
func (i *Index) Level(gmID, gameID string) int {
	return i.competency[key{gmID: gmID, other: gameID}]
}

// Evaluator applies the gates. It holds no mutable state and may be shared
// across goroutines.
type Evaluator struct {
	index     *Index
	conflicts conflict.Checker
	logger    logger.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for malformed slot warnings.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an evaluator.
func New(index *Index, conflicts conflict.Checker, opts ...Option) *Evaluator {
	e := &Evaluator{
		index:     index,
		conflicts: conflicts,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the gates for gm, stopping at the first failure.
func (e *Evaluator) Evaluate(ctx context.Context, gm model.GameMaster, ev Event) Verdict {
	v := Verdict{GM: gm}
	reject := func(r Reason) Verdict {
		v.Reason = r
		metrics.RecordIneligible(string(r))
		return v
	}

	if !gm.IsActive {
		return reject(ReasonInactive)
	}
	if !gm.IsAvailable {
		return reject(ReasonSystemUnavailable)
	}

	tokens, ok := e.index.Slots(gm.ID, ev.Date)
	if !ok {
		return reject(ReasonNoAvailability)
	}
	match := slots.Check(tokens, ev.Window)
	if len(match.Malformed) > 0 {
		v.MalformedSlots = match.Malformed
		metrics.RecordMalformedRecord("slot")
		e.logger.Warn(ctx, "skipping malformed slot tokens",
			logger.String("gm_id", gm.ID),
			logger.String("date", ev.Date),
			logger.Any("tokens", match.Malformed),
		)
	}
	if !match.Compatible {
		return reject(ReasonSlotMismatch)
	}

	report := e.conflicts.Check(ctx, conflict.Query{
		GMID:              gm.ID,
		Date:              ev.Date,
		Window:            ev.Window,
		MinimumBreak:      ev.MinimumBreak,
		ExcludeActivityID: ev.ActivityID,
	})
	if report.HasConflict() {
		v.Conflicts = &report
		return reject(ReasonConflict)
	}

	res := Result{GM: gm, MatchedSlots: match.Matched}
	if ev.GameID != "" {
		level := e.index.Level(gm.ID, ev.GameID)
		if level < 1 {
			return reject(ReasonNoCompetency)
		}
		res.CompetencyLevel = level
		res.Weight = float64(level)
		res.HasSpecificCompetency = true
	} else {
		res.CompetencyLevel = DefaultWeight
		res.Weight = DefaultWeight
	}

	v.Eligible = true
	v.Reason = ReasonEligible
	v.Result = &res
	return v
}
