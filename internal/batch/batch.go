// Package batch staffs every unassigned upcoming activity, one at a time, so
// each commit is visible to the conflict checks of the next.
package batch

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gmassign/internal/domain/assignment"
	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/internal/domain/timeofday"
	"github.com/okian/gmassign/pkg/logger"
	"github.com/okian/gmassign/pkg/metrics"
)

const dateLayout = "2006-01-02"

// Status is the per-activity result of a run.
type Status string

const (
	StatusAssigned Status = "assigned"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Store is the persistence the runner needs.
type Store interface {
	ListUnassigned(ctx context.Context, from, to string) ([]model.Activity, error)
	LoadSnapshot(ctx context.Context) (assignment.Snapshot, error)
	AssignActivity(ctx context.Context, activityID, gmID, runID string) error
}

// Decider picks a GM. *assignment.Orchestrator satisfies it.
type Decider interface {
	Decide(ctx context.Context, req assignment.Request, snap assignment.Snapshot) (assignment.Decision, error)
}

// Notifier receives a notice for every committed assignment.
type Notifier interface {
	Enqueue(ctx context.Context, n model.AssignmentNotice) error
}

// Outcome reports what happened to one activity.
type Outcome struct {
	ActivityID string `json:"activity_id"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	Status     Status `json:"status"`
	GMID       string `json:"gm_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Summary is the result of one run.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Assigned   int       `json:"assigned"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Outcomes   []Outcome `json:"outcomes"`
}

func (s *Summary) add(o Outcome) {
	switch o.Status {
	case StatusAssigned:
		s.Assigned++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
	s.Outcomes = append(s.Outcomes, o)
	metrics.RecordBatchOutcome(string(o.Status))
}

// Runner executes batch runs. Concurrent calls to Run are serialized.
type Runner struct {
	store     Store
	decider   Decider
	notifier  Notifier
	logger    logger.Logger
	now       func() time.Time
	lookahead int

	mu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithNotifier sets where assignment notices go. Without one no notices are
// emitted.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		r.notifier = n
	}
}

// WithLogger sets the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now, which decides the first eligible date.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLookaheadDays limits runs to activities within days of today. Zero
// means no upper bound.
func WithLookaheadDays(days int) Option {
	return func(r *Runner) {
		if days >= 0 {
			r.lookahead = days
		}
	}
}

// New creates a runner.
func New(store Store, decider Decider, opts ...Option) *Runner {
	r := &Runner{
		store:   store,
		decider: decider,
		logger:  logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run staffs every pending, unassigned activity dated today or later. One
// activity failing never stops the run; only storage reads and context
// cancellation return an error.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()
	sum := Summary{RunID: uuid.NewString(), StartedAt: start, Outcomes: []Outcome{}}
	defer func() {
		metrics.RecordBatchRun(time.Since(start))
	}()

	from := start.Format(dateLayout)
	to := ""
	if r.lookahead > 0 {
		to = start.AddDate(0, 0, r.lookahead).Format(dateLayout)
	}
	activities, err := r.store.ListUnassigned(ctx, from, to)
	if err != nil {
		return sum, fmt.Errorf("list unassigned activities: %w", err)
	}
	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return sum, fmt.Errorf("load snapshot: %w", err)
	}
	Order(activities)

	log := r.logger.Named("run")
	log.Info(ctx, "batch run started",
		logger.String("run_id", sum.RunID),
		logger.Int("activities", len(activities)),
	)

	for _, a := range activities {
		if err := ctx.Err(); err != nil {
			sum.FinishedAt = r.now()
			return sum, err
		}
		o := r.process(ctx, log, sum.RunID, a, &snap)
		sum.add(o)
	}

	sum.FinishedAt = r.now()
	log.Info(ctx, "batch run finished",
		logger.String("run_id", sum.RunID),
		logger.Int("assigned", sum.Assigned),
		logger.Int("skipped", sum.Skipped),
		logger.Int("failed", sum.Failed),
	)
	return sum, nil
}

func (r *Runner) process(ctx context.Context, log logger.Logger, runID string, a model.Activity, snap *assignment.Snapshot) Outcome {
	o := Outcome{ActivityID: a.ID, Title: a.Title, Date: a.Date, StartTime: a.StartTime}

	d, err := r.decider.Decide(ctx, assignment.RequestFor(a), *snap)
	if err != nil {
		o.Status, o.Reason = StatusFailed, err.Error()
		log.Warn(ctx, "activity could not be evaluated",
			logger.String("activity_id", a.ID),
			logger.Error(err),
		)
		return o
	}
	if !d.Assigned() {
		o.Status, o.Reason = StatusSkipped, d.FailureReason
		log.Info(ctx, "activity left pending",
			logger.String("activity_id", a.ID),
			logger.String("reason", d.FailureReason),
		)
		return o
	}

	gm := *d.SelectedGM
	if err := r.store.AssignActivity(ctx, a.ID, gm.ID, runID); err != nil {
		o.Status, o.Reason = StatusFailed, err.Error()
		log.Error(ctx, "assignment commit failed",
			logger.String("activity_id", a.ID),
			logger.String("gm_id", gm.ID),
			logger.Error(err),
		)
		return o
	}

	a.AssignedGMID = gm.ID
	a.Status = model.StatusAssigned
	snap.Activities = append(snap.Activities, a)
	o.Status, o.GMID = StatusAssigned, gm.ID

	if r.notifier != nil {
		n := model.AssignmentNotice{
			ID:         uuid.NewString(),
			RunID:      runID,
			Activity:   a,
			GM:         gm,
			GameName:   d.GameMatch.GameName,
			AssignedAt: r.now(),
		}
		if err := r.notifier.Enqueue(ctx, n); err != nil {
			log.Warn(ctx, "assignment notice not queued",
				logger.String("activity_id", a.ID),
				logger.Error(err),
			)
		}
	}
	return o
}

// Order sorts activities by date then start time. Unparsable start times
// sort after valid ones on the same date.
func Order(activities []model.Activity) {
	slices.SortStableFunc(activities, func(x, y model.Activity) int {
		if c := cmp.Compare(x.Date, y.Date); c != 0 {
			return c
		}
		xs, xerr := timeofday.Parse(x.StartTime)
		ys, yerr := timeofday.Parse(y.StartTime)
		switch {
		case xerr != nil && yerr != nil:
			return 0
		case xerr != nil:
			return 1
		case yerr != nil:
			return -1
		}
		return cmp.Compare(xs, ys)
	})
}
