// Package worker delivers assignment notices off the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/gmassign/internal/adapters/email"
	"github.com/okian/gmassign/internal/domain/dedupe"
	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/pkg/logger"
	"github.com/okian/gmassign/pkg/metrics"
)

const (
	defaultWorkerCount     = 2
	defaultShutdownTimeout = 30 * time.Second
)

// Notification outcomes recorded in metrics.
const (
	StatusSent        = "sent"
	StatusDuplicate   = "duplicate"
	StatusNoRecipient = "no_recipient"
	StatusFailed      = "failed"
)

// ErrNoRecipient is returned for notices whose GM has no email address.
var ErrNoRecipient = errors.New("game master has no email address")

// Queue is the consumer side of the notification queue.
type Queue interface {
	Notices() <-chan model.AssignmentNotice
	Close() error
}

// Worker sends notices from a shared queue.
type Worker struct {
	pool   *Pool
	logger logger.Logger
}

// Run consumes until the queue is closed and drained or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	notices := w.pool.queue.Notices()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			if err := w.Process(ctx, n); err != nil && !errors.Is(err, ErrNoRecipient) {
				w.logger.Error(ctx, "notification failed",
					logger.String("activity_id", n.Activity.ID),
					logger.String("gm_id", n.GM.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Process sends one notice unless its (activity, GM) key was already handled.
// A failed send forgets the key so the notice can be retried.
func (w *Worker) Process(ctx context.Context, n model.AssignmentNotice) error {
	p := w.pool
	key := n.Key()
	if p.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordNotification(StatusDuplicate)
		w.logger.Debug(ctx, "duplicate notice dropped", logger.String("key", key))
		return nil
	}
	if n.GM.Email == "" {
		metrics.RecordNotification(StatusNoRecipient)
		w.logger.Warn(ctx, "game master has no email, notice dropped", logger.String("gm_id", n.GM.ID))
		return ErrNoRecipient
	}

	msg, err := Render(n, p.from)
	if err != nil {
		p.deduper.Forget(ctx, key)
		metrics.RecordNotification(StatusFailed)
		return err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		p.deduper.Forget(ctx, key)
		metrics.RecordNotification(StatusFailed)
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	receipt, err := p.sender.Send(ctx, msg)
	metrics.RecordSendLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		p.deduper.Forget(ctx, key)
		metrics.RecordNotification(StatusFailed)
		return fmt.Errorf("send notice %s: %w", n.ID, err)
	}
	metrics.RecordNotification(StatusSent)
	w.logger.Info(ctx, "assignment notice sent",
		logger.String("activity_id", n.Activity.ID),
		logger.String("gm_id", n.GM.ID),
		logger.String("message_id", receipt.MessageID),
	)
	return nil
}

// Pool runs workers sharing one queue, deduper and rate limiter.
type Pool struct {
	queue           Queue
	sender          email.Sender
	deduper         dedupe.Deduper
	limiter         *rate.Limiter
	from            string
	shutdownTimeout time.Duration
	logger          logger.Logger

	workers []*Worker
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewPool creates count workers. A count below one uses the default.
func NewPool(count int, q Queue, sender email.Sender, opts ...Option) *Pool {
	if count < 1 {
		count = defaultWorkerCount
	}
	p := &Pool{
		queue:           q,
		sender:          sender,
		deduper:         dedupe.NewInMemory(),
		limiter:         rate.NewLimiter(rate.Inf, 0),
		shutdownTimeout: defaultShutdownTimeout,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.workers = make([]*Worker, count)
	for i := range count {
		p.workers[i] = &Worker{pool: p, logger: p.logger.Named("worker-" + strconv.Itoa(i))}
	}
	metrics.UpdateWorkerCount(count)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches the workers. They stop when ctx is cancelled or the queue
// is closed.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run(ctx)
		}()
	}
}

// Shutdown closes the queue and waits for workers to drain it. Workers still
// busy after the timeout are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.shutdownTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-done:
	case <-timer.C:
		err = errors.New("worker pool shutdown timed out")
	case <-ctx.Done():
		err = fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
	if p.cancel != nil {
		p.cancel()
	}
	if err != nil {
		p.logger.Warn(ctx, "workers did not drain in time", logger.Error(err))
	}
	metrics.UpdateWorkerCount(0)
	return err
}
