// Package rss is the regional source adapter. It fetches a handful of
// curated Indian feeds per request, each through a fallback chain of
// converters, under tight per-feed and overall deadlines.
package rss

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/desinews/internal/config"
	"github.com/deusflow/desinews/internal/metrics"
	"github.com/deusflow/desinews/internal/news"
	"github.com/deusflow/desinews/internal/ratelimit"
)

const sourceName = "rss"

// Settings bound the work done per Fetch. Zero fields take the defaults; a
// negative FeedPause disables pacing.
type Settings struct {
	FeedTimeout      time.Duration
	ConverterTimeout time.Duration
	OverallTimeout   time.Duration
	FeedPause        time.Duration
	MaxFeeds         int
	Concurrency      int
	MaxArticles      int
	ItemsPerFeed     int
	RSS2JSONEndpoint string
	AltEndpoint      string
}

func DefaultSettings() Settings {
	return Settings{
		FeedTimeout:      3 * time.Second,
		ConverterTimeout: 2 * time.Second,
		OverallTimeout:   10 * time.Second,
		FeedPause:        500 * time.Millisecond,
		MaxFeeds:         3,
		Concurrency:      3,
		MaxArticles:      5,
		ItemsPerFeed:     5,
		RSS2JSONEndpoint: "https://rss2json.com/api.json",
		AltEndpoint:      "https://rss-to-json-serverless-api.vercel.app/api",
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.FeedTimeout <= 0 {
		s.FeedTimeout = d.FeedTimeout
	}
	if s.ConverterTimeout <= 0 {
		s.ConverterTimeout = d.ConverterTimeout
	}
	if s.OverallTimeout <= 0 {
		s.OverallTimeout = d.OverallTimeout
	}
	switch {
	case s.FeedPause < 0:
		s.FeedPause = 0
	case s.FeedPause == 0:
		s.FeedPause = d.FeedPause
	}
	if s.MaxFeeds <= 0 {
		s.MaxFeeds = d.MaxFeeds
	}
	if s.Concurrency <= 0 {
		s.Concurrency = d.Concurrency
	}
	if s.MaxArticles <= 0 {
		s.MaxArticles = d.MaxArticles
	}
	if s.ItemsPerFeed <= 0 {
		s.ItemsPerFeed = d.ItemsPerFeed
	}
	if s.RSS2JSONEndpoint == "" {
		s.RSS2JSONEndpoint = d.RSS2JSONEndpoint
	}
	if s.AltEndpoint == "" {
		s.AltEndpoint = d.AltEndpoint
	}
	return s
}

// Fetcher implements the regional source over a feed catalogue.
type Fetcher struct {
	feeds      *config.FeedsConfig
	settings   Settings
	chain      []Strategy
	http       *http.Client
	normalizer *news.Normalizer
	metrics    *metrics.Metrics
	log        *slog.Logger
}

type Option func(*Fetcher)

// WithChain replaces the default rss2json -> alternate -> direct chain.
func WithChain(chain ...Strategy) Option { return func(f *Fetcher) { f.chain = chain } }

func WithHTTPClient(hc *http.Client) Option { return func(f *Fetcher) { f.http = hc } }

func WithNormalizer(n *news.Normalizer) Option { return func(f *Fetcher) { f.normalizer = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(f *Fetcher) { f.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.log = l } }

func New(feeds *config.FeedsConfig, s Settings, opts ...Option) *Fetcher {
	f := &Fetcher{
		feeds:      feeds,
		settings:   s.withDefaults(),
		http:       http.DefaultClient,
		normalizer: news.NewNormalizer(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.chain == nil {
		f.chain = []Strategy{
			NewRSS2JSON(f.settings.RSS2JSONEndpoint, f.settings.ItemsPerFeed, f.settings.ConverterTimeout, f.http),
			NewAltConverter(f.settings.AltEndpoint, f.settings.ConverterTimeout, f.http),
			NewDirect(f.http),
		}
	}
	f.log = f.log.With("source", sourceName)
	return f
}

func (f *Fetcher) Name() string { return sourceName }

// Fetch never fails. Feeds still running when the overall deadline passes
// are abandoned and contribute nothing.
func (f *Fetcher) Fetch(ctx context.Context, filter news.Filter) []news.Article {
	filter = filter.Normalize()
	// Every catalogue feed is Indian.
	filter.Region = news.RegionIndia
	feeds := f.feeds.For(string(filter.Category))
	if len(feeds) > f.settings.MaxFeeds {
		feeds = feeds[:f.settings.MaxFeeds]
	}
	if len(feeds) == 0 {
		f.log.Debug("no feeds for category", "category", filter.Category)
		f.metrics.RecordSourceFetch(sourceName, metrics.StatusEmpty)
		return []news.Article{}
	}

	ctx, cancel := context.WithTimeout(ctx, f.settings.OverallTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		closed  bool
		results = make([][]news.Article, len(feeds))
	)
	pacer := ratelimit.NewPacer(f.settings.FeedPause)
	done := make(chan struct{})

	go func() {
		defer close(done)
		// Plain Group: one feed failing must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(f.settings.Concurrency)
		for i, feed := range feeds {
			i, feed := i, feed
			g.Go(func() error {
				if err := pacer.Wait(ctx); err != nil {
					return nil
				}
				articles := f.fetchFeed(ctx, feed, filter)
				mu.Lock()
				if !closed {
					results[i] = articles
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		f.log.Warn("feed ceiling reached, abandoning unfinished feeds", "timeout", f.settings.OverallTimeout)
	}

	mu.Lock()
	closed = true
	articles := make([]news.Article, 0, f.settings.MaxArticles)
	for _, r := range results {
		articles = append(articles, r...)
	}
	mu.Unlock()

	if len(articles) > f.settings.MaxArticles {
		articles = articles[:f.settings.MaxArticles]
	}

	status := metrics.StatusOK
	if len(articles) == 0 {
		status = metrics.StatusEmpty
	}
	f.metrics.RecordSourceFetch(sourceName, status)
	f.log.Debug("fetched", "filter", filter.CacheKey(), "feeds", len(feeds), "kept", len(articles))
	return articles
}

// fetchFeed walks the strategy chain until one yields relevant articles.
func (f *Fetcher) fetchFeed(ctx context.Context, feed config.Feed, filter news.Filter) []news.Article {
	ctx, cancel := context.WithTimeout(ctx, f.settings.FeedTimeout)
	defer cancel()

	for _, s := range f.chain {
		items, err := s.Items(ctx, feed.URL)
		if err != nil {
			f.log.Debug("strategy failed", "feed", feed.URL, "strategy", s.Name(), "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if articles := f.toArticles(items, feed, filter); len(articles) > 0 {
			return articles
		}
		f.log.Debug("strategy yielded nothing relevant", "feed", feed.URL, "strategy", s.Name())
	}

	f.log.Warn("feed yielded no articles", "feed", feed.URL, "error", ctx.Err())
	return nil
}

func (f *Fetcher) toArticles(items []news.RawItem, feed config.Feed, filter news.Filter) []news.Article {
	if len(items) > f.settings.ItemsPerFeed {
		items = items[:f.settings.ItemsPerFeed]
	}
	articles := make([]news.Article, 0, len(items))
	for _, raw := range items {
		if strings.TrimSpace(raw.Title) == "" || strings.TrimSpace(raw.URL) == "" {
			continue
		}
		raw.SourceName = feed.Name
		raw.SourceID = sourceID(feed.Name)
		if !news.IsRelevantRegional(raw, filter) {
			continue
		}
		if a, ok := f.normalizer.Normalize(raw, filter); ok {
			articles = append(articles, a)
		}
	}
	return articles
}

func sourceID(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}
