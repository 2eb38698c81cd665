// Package conflict detects scheduling clashes between a candidate event and a
// GM's existing assignments on the same date.
package conflict

import (
	"context"

	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/internal/domain/timeofday"
	"github.com/okian/gmassign/pkg/logger"
	"github.com/okian/gmassign/pkg/metrics"
)

// DefaultMinimumBreakMinutes applies when neither the query nor the detector
// sets a break.
const DefaultMinimumBreakMinutes = 30

// Query describes the window to check for one GM.
type Query struct {
	GMID   string
	Date   string
	Window timeofday.Window
	// MinimumBreak in minutes; nil means the detector default.
	MinimumBreak *int
	// ExcludeActivityID skips the activity being edited in place. Empty
	// excludes nothing.
	ExcludeActivityID string
}

// Clash describes one other activity that collides with the query.
type Clash struct {
	ActivityID string           `json:"activity_id"`
	Title      string           `json:"title"`
	Window     timeofday.Window `json:"-"`
	Span       string           `json:"span"`
	GapMinutes int              `json:"gap_minutes"`
}

// Report lists direct overlaps and break violations separately.
type Report struct {
	Conflicts              []Clash `json:"conflicts"`
	MinimumBreakViolations []Clash `json:"minimum_break_violations"`
}

// HasConflict is true when either list is non-empty.
func (r Report) HasConflict() bool {
	return len(r.Conflicts) > 0 || len(r.MinimumBreakViolations) > 0
}

// Checker is what the eligibility evaluator needs.
type Checker interface {
	Check(ctx context.Context, q Query) Report
}

type key struct {
	gmID string
	date string
}

// Detector indexes blocking activities by GM and date. It is read-only after
// construction and safe for concurrent use.
type Detector struct {
	byGMDate     map[key][]model.Activity
	defaultBreak int
	logger       logger.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithDefaultMinimumBreak overrides DefaultMinimumBreakMinutes.
func WithDefaultMinimumBreak(minutes int) Option {
	return func(d *Detector) {
		if minutes >= 0 {
			d.defaultBreak = minutes
		}
	}
}

// WithLogger sets the logger used for malformed activity warnings.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDetector builds a detector over the given activities. Only activities
// that block their GM (assigned and not cancelled) are indexed.
func NewDetector(activities []model.Activity, opts ...Option) *Detector {
	d := &Detector{
		byGMDate:     make(map[key][]model.Activity),
		defaultBreak: DefaultMinimumBreakMinutes,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, a := range activities {
		if !a.Blocks() {
			continue
		}
		k := key{gmID: a.AssignedGMID, date: a.Date}
		d.byGMDate[k] = append(d.byGMDate[k], a)
	}
	return d
}

// Check compares q against the GM's other activities on q.Date.
func (d *Detector) Check(ctx context.Context, q Query) Report {
	minBreak := d.defaultBreak
	if q.MinimumBreak != nil {
		minBreak = *q.MinimumBreak
	}
	var r Report
	for _, other := range d.byGMDate[key{gmID: q.GMID, date: q.Date}] {
		if q.ExcludeActivityID != "" && other.ID == q.ExcludeActivityID {
			continue
		}
		ow, err := timeofday.ParseWindow(other.StartTime, other.EndTime)
		if err != nil {
			metrics.RecordMalformedRecord("activity")
			d.logger.Warn(ctx, "skipping activity with malformed times",
				logger.String("activity_id", other.ID),
				logger.String("gm_id", q.GMID),
				logger.Error(err),
			)
			continue
		}
		c := Clash{ActivityID: other.ID, Title: other.Title, Window: ow, Span: ow.String()}
		if q.Window.Overlaps(ow) {
			r.Conflicts = append(r.Conflicts, c)
			continue
		}
		c.GapMinutes = q.Window.Gap(ow)
		if c.GapMinutes < minBreak {
			r.MinimumBreakViolations = append(r.MinimumBreakViolations, c)
		}
	}
	return r
}
