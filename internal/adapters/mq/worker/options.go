package worker

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/gmassign/internal/domain/dedupe"
	"github.com/okian/gmassign/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithLogger sets the pool logger. Workers log under named children.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithDeduper shares a deduper across workers.
func WithDeduper(d dedupe.Deduper) Option {
	return func(p *Pool) {
		if d != nil {
			p.deduper = d
		}
	}
}

// WithRatePerSecond throttles sends across the pool. Zero or less disables
// throttling.
func WithRatePerSecond(perSecond float64) Option {
	return func(p *Pool) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			p.limiter = rate.NewLimiter(rate.Inf, 0)
		}
	}
}

// WithFrom sets the sender address placed on outgoing mail.
func WithFrom(from string) Option {
	return func(p *Pool) {
		p.from = from
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for workers to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.shutdownTimeout = d
		}
	}
}
