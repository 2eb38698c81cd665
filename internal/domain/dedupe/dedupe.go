// Package dedupe tracks notification keys so an assignment is announced at
// most once per (activity, GM) pair.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// DefaultMaxSize bounds the set when no option is given.
const DefaultMaxSize = 10000

// Deduper records keys that were already handled.
type Deduper interface {
	// SeenAndRecord reports whether key was seen before and records it if not.
	SeenAndRecord(ctx context.Context, key string) bool
	// Forget removes key so a failed delivery can be retried.
	Forget(ctx context.Context, key string)
	Len() int
}

// memory keeps keys in insertion order and evicts the oldest once full.
// A non-positive maxSize disables eviction.
type memory struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	index   map[string]*list.Element
}

// NewInMemory creates an in-memory deduper.
func NewInMemory(opts ...Option) Deduper {
	d := &memory{
		maxSize: DefaultMaxSize,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *memory) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.index, oldest.Value.(string))
	}
	d.index[key] = d.order.PushBack(key)
	return false
}

func (d *memory) Forget(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.index[key]; ok {
		d.order.Remove(el)
		delete(d.index, key)
	}
}

func (d *memory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
