package gamematch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/pkg/logger"
	"github.com/okian/gmassign/pkg/metrics"
)

// DefaultTTL bounds how long a loaded catalog and its results are reused.
const DefaultTTL = 5 * time.Minute

// Catalog supplies the active mappings.
type Catalog interface {
	ActiveGameMappings(ctx context.Context) ([]model.GameMapping, error)
}

// StaticCatalog serves a fixed slice, dropping inactive entries.
type StaticCatalog []model.GameMapping

// ActiveGameMappings implements Catalog.
func (c StaticCatalog) ActiveGameMappings(context.Context) ([]model.GameMapping, error) {
	out := make([]model.GameMapping, 0, len(c))
	for _, m := range c {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

// Resolver matches titles against a catalog and caches both the catalog and
// per-title results until the TTL elapses or Invalidate is called.
type Resolver struct {
	catalog Catalog
	ttl     time.Duration
	now     func() time.Time
	logger  logger.Logger

	mu       sync.Mutex
	mappings []model.GameMapping
	loadedAt time.Time
	loaded   bool
	results  map[string]Match
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL sets the cache lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver over catalog.
func NewResolver(catalog Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog: catalog,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  logger.Nop(),
		results: make(map[string]Match),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the best match for title.
func (r *Resolver) Resolve(ctx context.Context, title string) (Match, error) {
	key := Normalize(title)
	if key == "" {
		return Match{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded && r.now().Sub(r.loadedAt) >= r.ttl {
		r.resetLocked()
	}
	if m, ok := r.results[key]; ok {
		metrics.RecordGameCacheLookup(true)
		return m, nil
	}
	metrics.RecordGameCacheLookup(false)

	if !r.loaded {
		mappings, err := r.catalog.ActiveGameMappings(ctx)
		if err != nil {
			return Match{}, fmt.Errorf("load game mappings: %w", err)
		}
		r.mappings = mappings
		r.loadedAt = r.now()
		r.loaded = true
		r.logger.Debug(ctx, "game mapping catalog loaded", logger.Int("mappings", len(mappings)))
	}

	m := Best(title, r.mappings)
	r.results[key] = m
	return m, nil
}

// Invalidate drops the cached catalog and results.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

func (r *Resolver) resetLocked() {
	r.mappings = nil
	r.loaded = false
	r.loadedAt = time.Time{}
	clear(r.results)
}
