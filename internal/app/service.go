// Package service wires storage, the assignment engine, the batch runner and
// the notification pipeline, and implements the dependencies required by the
// HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gmassign/internal/adapters/email"
	"github.com/okian/gmassign/internal/adapters/mq/queue"
	"github.com/okian/gmassign/internal/adapters/mq/worker"
	"github.com/okian/gmassign/internal/adapters/repository"
	"github.com/okian/gmassign/internal/batch"
	"github.com/okian/gmassign/internal/config"
	"github.com/okian/gmassign/internal/domain/assignment"
	"github.com/okian/gmassign/internal/domain/dedupe"
	"github.com/okian/gmassign/internal/domain/gamematch"
	"github.com/okian/gmassign/internal/domain/selection"
	"github.com/okian/gmassign/pkg/logger"
	"github.com/okian/gmassign/pkg/metrics"
)

// Service owns the long-lived components of the assignment system.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	store    repository.Store
	resolver *gamematch.Resolver
	engine   *assignment.Orchestrator
	queue    *queue.InMemoryQueue
	sender   email.Sender
	pool     *worker.Pool
	runner   *batch.Runner

	noSchedule bool

	// State
	started    bool
	cancel     context.CancelFunc
	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStore uses an already opened store instead of opening DatabasePath.
// The service takes ownership and closes it on Stop; a later Start opens
// DatabasePath.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSender overrides the sender chosen from EmailProvider.
func WithSender(sender email.Sender) Option {
	return func(s *Service) {
		if sender != nil {
			s.sender = sender
		}
	}
}

// WithoutSchedule keeps Start from launching the periodic batch loop
// regardless of BatchIntervalSeconds. RunBatch still works.
func WithoutSchedule() Option {
	return func(s *Service) {
		s.noSchedule = true
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Components are created by Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage, builds the engine and launches the notification
// workers and, when an interval is configured, the periodic batch loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	cfg := s.cfg

	s.logger.Info(ctx, "starting assignment service...")

	if s.store == nil {
		store, err := repository.Open(ctx, cfg.DatabasePath, repository.WithLogger(s.logger.Named("store")))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.logger.Info(ctx, "using sqlite store", logger.String("path", cfg.DatabasePath))
	}

	s.resolver = gamematch.NewResolver(s.store,
		gamematch.WithTTL(cfg.GameCacheTTL()),
		gamematch.WithLogger(s.logger.Named("gamematch")),
	)
	s.engine = assignment.New(s.resolver,
		assignment.WithParallelism(cfg.EvalParallelism),
		assignment.WithDefaultMinimumBreak(cfg.DefaultMinimumBreakMinutes),
		assignment.WithSource(selection.NewSource(cfg.RandomSeed)),
		assignment.WithLogger(s.logger.Named("engine")),
	)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))
	if s.sender == nil {
		s.sender = newSender(cfg, s.logger.Named("email"))
	}
	s.pool = worker.NewPool(cfg.WorkerCount, s.queue, s.sender,
		worker.WithLogger(s.logger.Named("notify")),
		worker.WithDeduper(dedupe.NewInMemory(dedupe.WithMaxSize(cfg.DedupeSize))),
		worker.WithRatePerSecond(cfg.NotifyRatePerSecond),
		worker.WithFrom(cfg.EmailFrom),
	)

	s.runner = batch.New(s.store, s.engine,
		batch.WithNotifier(s.queue),
		batch.WithLookaheadDays(cfg.BatchLookaheadDays),
		batch.WithLogger(s.logger.Named("batch")),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	if interval := cfg.BatchInterval(); interval > 0 && !s.noSchedule {
		loopCtx, loopCancel := context.WithCancel(runCtx)
		s.loopCancel = loopCancel
		s.loopWG.Add(1)
		go s.batchLoop(loopCtx, interval)
	}

	s.started = true
	s.logger.Info(ctx, "assignment service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", cfg.QueueSize),
		logger.Int("dedupeSize", cfg.DedupeSize),
		logger.String("emailProvider", cfg.EmailProvider),
		logger.Duration("batchInterval", cfg.BatchInterval()),
		logger.Bool("scheduled", s.loopCancel != nil),
	)
	return nil
}

func newSender(cfg *config.Config, l logger.Logger) email.Sender {
	if cfg.EmailProvider == config.ProviderResend {
		return email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, l)
	}
	return email.NewNoopSender(l)
}

func (s *Service) batchLoop(ctx context.Context, interval time.Duration) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sum, err := s.runner.Run(ctx)
			if err != nil {
				s.logger.Error(ctx, "scheduled batch failed", logger.Error(err))
				continue
			}
			s.logger.Debug(ctx, "scheduled batch finished",
				logger.String("runID", sum.RunID),
				logger.Int("assigned", sum.Assigned),
			)
		}
	}
}

// Stop drains pending notifications and releases storage.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping assignment service...")

	// Stop scheduling new runs before draining notices they would emit.
	if s.loopCancel != nil {
		s.loopCancel()
		s.loopWG.Wait()
		s.loopCancel = nil
	}

	var firstErr error
	if err := s.pool.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}
	s.store = nil

	s.started = false
	s.logger.Info(ctx, "assignment service stopped")
	return firstErr
}

// Store exposes the underlying store for seeding and inspection.
func (s *Service) Store() repository.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

func (s *Service) ready() error {
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Decide evaluates req against the current stored state and draws a GM
// without persisting anything.
func (s *Service) Decide(ctx context.Context, req assignment.Request) (assignment.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return assignment.Decision{}, err
	}
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return assignment.Decision{}, fmt.Errorf("load snapshot: %w", err)
	}
	return s.engine.Decide(ctx, req, snap)
}

// Candidates lists every eligible GM for req without drawing.
func (s *Service) Candidates(ctx context.Context, req assignment.Request) (assignment.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return assignment.Decision{}, err
	}
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return assignment.Decision{}, fmt.Errorf("load snapshot: %w", err)
	}
	return s.engine.Candidates(ctx, req, snap)
}

// RunBatch assigns every pending activity in the lookahead window.
func (s *Service) RunBatch(ctx context.Context) (batch.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return batch.Summary{}, err
	}
	return s.runner.Run(ctx)
}

// InvalidateGameMappings drops cached title resolutions.
func (s *Service) InvalidateGameMappings(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.resolver == nil {
		return
	}
	s.resolver.Invalidate()
	s.logger.Info(ctx, "game mapping cache invalidated")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.QueueSize,
		"dedupeSize":  s.cfg.DedupeSize,
		"scheduled":   s.loopCancel != nil,
	}
	if !s.started {
		return stats, nil
	}

	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("store stats: %w", err)
	}
	queueLen := s.queue.Len()
	stats["queueLength"] = queueLen
	stats["workerCount"] = s.pool.Size()
	stats["gameMasters"] = st.GameMasters
	stats["activeGameMasters"] = st.ActiveGameMasters
	stats["games"] = st.Games
	stats["gameMappings"] = st.GameMappings
	stats["pending"] = st.Pending
	stats["assigned"] = st.Assigned
	stats["loggedAssignments"] = st.LoggedAssignments

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.pool.Size())
	return stats, nil
}
