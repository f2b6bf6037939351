// Package app wires configuration into the aggregation pipeline and serves
// it over HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deusflow/desinews/internal/aggregator"
	"github.com/deusflow/desinews/internal/cache"
	"github.com/deusflow/desinews/internal/config"
	"github.com/deusflow/desinews/internal/logger"
	"github.com/deusflow/desinews/internal/metrics"
	"github.com/deusflow/desinews/internal/newsapi"
	"github.com/deusflow/desinews/internal/newsdata"
	"github.com/deusflow/desinews/internal/proxy"
	"github.com/deusflow/desinews/internal/ratelimit"
	"github.com/deusflow/desinews/internal/rss"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired service.
type App struct {
	cfg        *config.Config
	log        *slog.Logger
	metrics    *metrics.Metrics
	aggregator *aggregator.Aggregator
	server     *Server
	redis      *redis.Client
}

type Option func(*App)

// WithLogger skips building the process logger from the config.
func WithLogger(l *slog.Logger) Option { return func(a *App) { a.log = l } }

// New builds every component from cfg. Only a Redis backend that cannot be
// reached is fatal; every other upstream degrades at request time.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.New(cfg.Debug, cfg.LogFormat)
	}
	a.metrics = metrics.New()

	store, err := a.newStore(ctx)
	if err != nil {
		return nil, err
	}

	primary := []aggregator.Source{a.newsAPI()}
	if cfg.NewsDataAPIKey != "" {
		primary = append(primary, newsdata.New(cfg.NewsDataAPIKey,
			newsdata.WithEndpoint(cfg.NewsDataEndpoint),
			newsdata.WithTimeout(cfg.NewsAPITimeout),
			newsdata.WithMetrics(a.metrics),
			newsdata.WithLogger(a.log),
		))
	} else {
		a.log.Info("NEWSDATA_API_KEY not set, NewsData source disabled")
	}

	aggOpts := []aggregator.Option{
		aggregator.WithMetrics(a.metrics),
		aggregator.WithLogger(a.log),
		aggregator.WithRegionalCeiling(cfg.RSSOverallTimeout),
	}
	if cfg.RSSEnabled {
		regional, err := a.newRegional()
		if err != nil {
			a.Close()
			return nil, err
		}
		aggOpts = append(aggOpts, aggregator.WithRegional(regional))
	}
	a.aggregator = aggregator.New(store, primary, aggOpts...)

	a.server = NewServer(a.aggregator, a.metrics,
		proxy.New(cfg.NewsAPIProxyUpstream, cfg.NewsAPIKey,
			proxy.WithTimeout(cfg.ProxyTimeout),
			proxy.WithLogger(a.log),
		),
		a.log,
	)
	return a, nil
}

func (a *App) newStore(ctx context.Context) (cache.Store, error) {
	if a.cfg.CacheBackend != "redis" {
		a.log.Info("using in-memory cache", "ttl", a.cfg.CacheTTL)
		return cache.NewMemory(a.cfg.CacheTTL), nil
	}
	client, err := cache.Dial(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect cache: %w", err)
	}
	a.redis = client
	a.log.Info("using redis cache", "ttl", a.cfg.CacheTTL)
	return cache.NewRedis(client, a.cfg.CacheTTL), nil
}

func (a *App) newsAPI() *newsapi.Client {
	opts := []newsapi.Option{
		newsapi.WithTimeout(a.cfg.NewsAPITimeout),
		newsapi.WithPageSize(a.cfg.NewsAPIPageSize),
		newsapi.WithMetrics(a.metrics),
		newsapi.WithLogger(a.log),
	}
	if a.cfg.NewsAPIDailyQuota > 0 {
		opts = append(opts, newsapi.WithQuota(ratelimit.NewQuota("newsapi", a.cfg.NewsAPIDailyQuota, time.Now, a.log)))
	}
	if a.cfg.NewsAPIKey == "" {
		a.log.Warn("NEWS_API_KEY not set, NewsAPI requests will be rejected upstream")
	}
	return newsapi.New(a.cfg.NewsAPIEndpoint, a.cfg.NewsAPIKey, opts...)
}

func (a *App) newRegional() (*rss.Fetcher, error) {
	feeds, err := config.LoadFeeds(a.cfg.FeedsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}
	pause := a.cfg.RSSFeedPause
	if pause == 0 {
		pause = -1
	}
	return rss.New(feeds, rss.Settings{
		FeedTimeout:      a.cfg.RSSFeedTimeout,
		ConverterTimeout: a.cfg.RSSConverterTimeout,
		OverallTimeout:   a.cfg.RSSOverallTimeout,
		FeedPause:        pause,
		MaxFeeds:         a.cfg.RSSMaxFeeds,
		Concurrency:      a.cfg.RSSConcurrency,
		MaxArticles:      a.cfg.RSSMaxArticles,
		RSS2JSONEndpoint: a.cfg.RSS2JSONEndpoint,
		AltEndpoint:      a.cfg.RSSAltEndpoint,
	}, rss.WithMetrics(a.metrics), rss.WithLogger(a.log)), nil
}

func (a *App) Aggregator() *aggregator.Aggregator { return a.aggregator }

func (a *App) Handler() http.Handler { return a.server.Handler() }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting server", "addr", a.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the cache connection, if any.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("closing redis", "error", err)
		}
		a.redis = nil
	}
}
