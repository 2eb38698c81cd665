// Package assignment is the entry point of the engine: it resolves the game,
// evaluates the whole roster and draws the winner.
package assignment

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/gmassign/internal/domain/conflict"
	"github.com/okian/gmassign/internal/domain/eligibility"
	"github.com/okian/gmassign/internal/domain/gamematch"
	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/internal/domain/selection"
	"github.com/okian/gmassign/internal/domain/timeofday"
	"github.com/okian/gmassign/pkg/logger"
	"github.com/okian/gmassign/pkg/metrics"
)

// Decision outcomes recorded in metrics.
const (
	OutcomeAssigned    = "assigned"
	OutcomeNoCandidate = "no_candidate"
	OutcomeCandidates  = "candidates"
	OutcomeError       = "error"
)

// Resolver maps a title to a game. *gamematch.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, title string) (gamematch.Match, error)
}

// Request describes the event to staff.
type Request struct {
	// ActivityID is excluded from conflict checks when re-evaluating an
	// existing activity. Empty for a new event.
	ActivityID string `json:"activity_id,omitempty"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// RequestFor builds a Request from a stored activity.
func RequestFor(a model.Activity) Request {
	return Request{
		ActivityID: a.ID,
		Title:      a.Title,
		Date:       a.Date,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
	}
}

// Snapshot is the already-fetched state the engine evaluates against.
type Snapshot struct {
	GameMasters    []model.GameMaster   `json:"game_masters"`
	Availabilities []model.Availability `json:"availabilities"`
	Competencies   []model.Competency   `json:"competencies"`
	Activities     []model.Activity     `json:"activities"`
	Games          []model.Game         `json:"games"`
}

// Decision is the engine output. SelectedGM is nil when nobody is eligible,
// which is a normal outcome.
type Decision struct {
	SelectedGM    *model.GameMaster     `json:"selected_gm"`
	EligibleGMs   []eligibility.Result  `json:"eligible_gms"`
	GameMatch     gamematch.Match       `json:"game_match"`
	Trace         []eligibility.Verdict `json:"trace"`
	FailureReason string                `json:"failure_reason,omitempty"`
}

// Assigned reports whether a GM was selected.
func (d Decision) Assigned() bool { return d.SelectedGM != nil }

// Orchestrator runs the evaluation pipeline. It is safe for concurrent use.
type Orchestrator struct {
	resolver     Resolver
	parallelism  int
	defaultBreak int
	logger       logger.Logger

	srcMu sync.Mutex
	src   selection.Source
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithParallelism bounds concurrent per-GM evaluations.
func WithParallelism(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithDefaultMinimumBreak sets the break applied when the game has none.
func WithDefaultMinimumBreak(minutes int) Option {
	return func(o *Orchestrator) {
		if minutes >= 0 {
			o.defaultBreak = minutes
		}
	}
}

// WithSource injects the randomness used by the selector.
func WithSource(src selection.Source) Option {
	return func(o *Orchestrator) {
		if src != nil {
			o.src = src
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an orchestrator resolving games through resolver.
func New(resolver Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:     resolver,
		parallelism:  runtime.GOMAXPROCS(0),
		defaultBreak: conflict.DefaultMinimumBreakMinutes,
		logger:       logger.Nop(),
		src:          selection.NewSource(0),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Decide evaluates the roster and draws one GM among the eligible ones.
func (o *Orchestrator) Decide(ctx context.Context, req Request, snap Snapshot) (Decision, error) {
	start := time.Now()
	d, err := o.evaluate(ctx, req, snap)
	if err != nil {
		metrics.RecordDecision(OutcomeError)
		return Decision{}, err
	}
	defer func() {
		metrics.RecordDecisionLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if len(d.EligibleGMs) == 0 {
		metrics.RecordDecision(OutcomeNoCandidate)
		o.logger.Info(ctx, "no eligible game master",
			logger.String("title", req.Title),
			logger.String("date", req.Date),
			logger.String("reason", d.FailureReason),
		)
		return d, nil
	}

	o.srcMu.Lock()
	picked, err := selection.Select(o.src, d.EligibleGMs)
	o.srcMu.Unlock()
	if err != nil {
		metrics.RecordDecision(OutcomeError)
		return Decision{}, fmt.Errorf("select game master: %w", err)
	}
	gm := picked.GM
	d.SelectedGM = &gm
	metrics.RecordDecision(OutcomeAssigned)
	o.logger.Debug(ctx, "game master selected",
		logger.String("title", req.Title),
		logger.String("gm_id", gm.ID),
		logger.Int("eligible", len(d.EligibleGMs)),
	)
	return d, nil
}

// Candidates evaluates the roster without drawing, for manual assignment.
func (o *Orchestrator) Candidates(ctx context.Context, req Request, snap Snapshot) (Decision, error) {
	d, err := o.evaluate(ctx, req, snap)
	if err != nil {
		metrics.RecordDecision(OutcomeError)
		return Decision{}, err
	}
	metrics.RecordDecision(OutcomeCandidates)
	return d, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, req Request, snap Snapshot) (Decision, error) {
	if strings.TrimSpace(req.Date) == "" {
		return Decision{}, fmt.Errorf("%w: missing date", ErrInvalidEvent)
	}
	window, err := timeofday.ParseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if window.End <= window.Start {
		return Decision{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidEvent, window.End, window.Start)
	}

	match, err := o.resolver.Resolve(ctx, req.Title)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve game: %w", err)
	}

	event := eligibility.Event{
		ActivityID:   req.ActivityID,
		Date:         req.Date,
		Window:       window,
		GameID:       match.GameID,
		MinimumBreak: minimumBreak(snap.Games, match.GameID),
	}
	detector := conflict.NewDetector(snap.Activities,
		conflict.WithDefaultMinimumBreak(o.defaultBreak),
		conflict.WithLogger(o.logger),
	)
	evaluator := eligibility.New(
		eligibility.NewIndex(snap.Availabilities, snap.Competencies),
		detector,
		eligibility.WithLogger(o.logger),
	)

	verdicts := make([]eligibility.Verdict, len(snap.GameMasters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for i, gm := range snap.GameMasters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			verdicts[i] = evaluator.Evaluate(gctx, gm, event)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Decision{}, err
	}

	d := Decision{
		EligibleGMs: make([]eligibility.Result, 0, len(verdicts)),
		GameMatch:   match,
		Trace:       verdicts,
	}
	for _, v := range verdicts {
		if v.Eligible {
			d.EligibleGMs = append(d.EligibleGMs, *v.Result)
		}
	}
	metrics.RecordEligibleCount(len(d.EligibleGMs))
	if len(d.EligibleGMs) == 0 {
		d.FailureReason = failureReason(verdicts)
	}
	return d, nil
}

func minimumBreak(games []model.Game, gameID string) *int {
	if gameID == "" {
		return nil
	}
	for _, g := range games {
		if g.ID == gameID && g.MinimumBreakMinutes != nil {
			v := *g.MinimumBreakMinutes
			return &v
		}
	}
	return nil
}

var reasonOrder = []eligibility.Reason{
	eligibility.ReasonInactive,
	eligibility.ReasonSystemUnavailable,
	eligibility.ReasonNoAvailability,
	eligibility.ReasonSlotMismatch,
	eligibility.ReasonConflict,
	eligibility.ReasonNoCompetency,
}

// failureReason summarizes why every GM was excluded.
func failureReason(verdicts []eligibility.Verdict) string {
	if len(verdicts) == 0 {
		return "no game masters in roster"
	}
	counts := make(map[eligibility.Reason]int, len(reasonOrder))
	for _, v := range verdicts {
		counts[v.Reason]++
	}
	parts := make([]string, 0, len(counts))
	for _, r := range reasonOrder {
		if n := counts[r]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, r.Describe()))
		}
	}
	return "no eligible game master: " + strings.Join(parts, ", ")
}
