// Package aggregator fans a filter out to the configured sources, merges and
// deduplicates what comes back, and caches the result per filter key.
package aggregator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/deusflow/desinews/internal/cache"
	"github.com/deusflow/desinews/internal/metrics"
	"github.com/deusflow/desinews/internal/news"
)

const defaultRegionalCeiling = 10 * time.Second

// Source is anything that can produce normalized articles for a filter.
// Fetch must not fail: problems are reported as an empty slice.
type Source interface {
	Name() string
	Fetch(ctx context.Context, f news.Filter) []news.Article
}

type Aggregator struct {
	store           cache.Store
	primary         []Source
	regional        Source
	regionalCeiling time.Duration
	metrics         *metrics.Metrics
	log             *slog.Logger
	now             func() time.Time
}

type Option func(*Aggregator)

// WithRegional adds the source consulted only for india filters.
func WithRegional(s Source) Option { return func(a *Aggregator) { a.regional = s } }

// WithRegionalCeiling bounds how long the regional source may run.
func WithRegionalCeiling(d time.Duration) Option {
	return func(a *Aggregator) { a.regionalCeiling = d }
}

func WithMetrics(m *metrics.Metrics) Option { return func(a *Aggregator) { a.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(a *Aggregator) { a.log = l } }

func New(store cache.Store, primary []Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:           store,
		primary:         primary,
		regionalCeiling: defaultRegionalCeiling,
		log:             slog.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetAggregatedNews returns the merged, deduplicated, newest-first feed for
// f. It never fails and never invents articles; an empty result is returned
// as an empty slice and is not cached.
func (a *Aggregator) GetAggregatedNews(ctx context.Context, f news.Filter) []news.Article {
	// Only our own deadlines stop a fetch; a client hanging up mid-request
	// still warms the cache for the next one.
	ctx = context.WithoutCancel(ctx)
	f = f.Normalize()
	key := f.CacheKey()
	log := a.log.With("key", key)

	if a.store != nil {
		cached, ok, err := a.store.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("cache read failed, treating as miss", "error", err)
			a.metrics.RecordCacheError("get", err)
		case ok:
			log.Debug("cache hit", "articles", len(cached))
			a.metrics.RecordAggregation(metrics.ResultHit, 0, len(cached))
			return cached
		}
	}

	start := a.now()
	batches := a.fetchAll(ctx, f)

	var merged []news.Article
	for _, b := range batches {
		merged = append(merged, b...)
	}
	if len(merged) == 0 {
		log.Info("no articles from any source")
		a.metrics.RecordAggregation(metrics.ResultEmpty, a.now().Sub(start), 0)
		return []news.Article{}
	}

	articles := news.DedupeAndSort(merged)
	if a.store != nil {
		if err := a.store.Put(ctx, key, articles); err != nil {
			log.Warn("cache write failed", "error", err)
			a.metrics.RecordCacheError("put", err)
		}
	}

	log.Info("aggregated", "fetched", len(merged), "returned", len(articles), "took", a.now().Sub(start))
	a.metrics.RecordAggregation(metrics.ResultMiss, a.now().Sub(start), len(articles))
	return articles
}

// fetchAll runs every applicable source concurrently and returns their
// results in source order: primaries first, then the regional source.
func (a *Aggregator) fetchAll(ctx context.Context, f news.Filter) [][]news.Article {
	sources := append([]Source(nil), a.primary...)
	regionalIdx := -1
	if a.regional != nil && f.Region == news.RegionIndia {
		regionalIdx = len(sources)
		sources = append(sources, a.regional)
	}

	results := make([][]news.Article, len(sources))
	var wg sync.WaitGroup
	for i, s := range sources {
		i, s := i, s
		wg.Add(1)
		go func() {
			defer wg.Done()
			sctx := ctx
			if i == regionalIdx && a.regionalCeiling > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(ctx, a.regionalCeiling)
				defer cancel()
			}
			results[i] = a.fetchOne(sctx, s, f)
		}()
	}
	wg.Wait()
	return results
}

func (a *Aggregator) fetchOne(ctx context.Context, s Source, f news.Filter) (out []news.Article) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("source panicked", "source", s.Name(), "panic", r)
			a.metrics.RecordSourceFetch(s.Name(), metrics.StatusError)
			out = nil
		}
	}()
	return s.Fetch(ctx, f)
}

// ClearCache drops every cached aggregation.
func (a *Aggregator) ClearCache(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.Clear(ctx); err != nil {
		a.metrics.RecordCacheError("clear", err)
		return err
	}
	a.log.Info("cache cleared")
	return nil
}
