package cache

import (
	"context"
	"sync"
	"time"

	"github.com/deusflow/desinews/internal/news"
)

// Store keeps aggregated article lists per filter key.
type Store interface {
	Get(ctx context.Context, key string) ([]news.Article, bool, error)
	Put(ctx context.Context, key string, articles []news.Article) error
	Clear(ctx context.Context) error
}

type entry struct {
	articles []news.Article
	storedAt time.Time
}

// Memory is a process-local Store. Entries go stale lazily on read, there is
// no cleanup goroutine.
type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewMemory creates an in-memory store with the given freshness window.
func NewMemory(ttl time.Duration, opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{
		items: make(map[string]entry),
		ttl:   ttl,
		now:   o.now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]news.Article, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if m.now().Sub(e.storedAt) >= m.ttl {
		m.mu.Lock()
		// Only drop it if nobody refreshed the key meanwhile.
		if cur, still := m.items[key]; still && cur.storedAt.Equal(e.storedAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return clone(e.articles), true, nil
}

func (m *Memory) Put(_ context.Context, key string, articles []news.Article) error {
	e := entry{articles: clone(articles), storedAt: m.now()}
	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.items = make(map[string]entry)
	m.mu.Unlock()
	return nil
}

// Len counts stored entries, fresh or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func clone(in []news.Article) []news.Article {
	if in == nil {
		return nil
	}
	out := make([]news.Article, len(in))
	for i, a := range in {
		if a.Tags != nil {
			a.Tags = append([]string(nil), a.Tags...)
		}
		out[i] = a
	}
	return out
}
