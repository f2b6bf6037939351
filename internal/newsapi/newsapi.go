// Package newsapi is the primary source adapter: a client for the
// NewsAPI.org "everything" endpoint, or for a proxy that mirrors it.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/deusflow/desinews/internal/metrics"
	"github.com/deusflow/desinews/internal/news"
	"github.com/deusflow/desinews/internal/ratelimit"
	"github.com/deusflow/desinews/internal/retry"
)

const (
	sourceName       = "newsapi"
	defaultEndpoint  = "https://newsapi.org/v2/everything"
	defaultTimeout   = 5 * time.Second
	defaultPageSize  = 30
	fallbackPageSize = 10
)

// ErrBadQuery matches a StatusError for HTTP 400, which NewsAPI returns when
// it rejects the query string.
var ErrBadQuery = errors.New("newsapi rejected the query")

// StatusError is a non-2xx (or status "error") upstream reply.
type StatusError struct {
	Code    int
	APICode string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("newsapi: HTTP %d", e.Code)
	}
	return fmt.Sprintf("newsapi: HTTP %d: %s", e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrBadQuery && e.Code == http.StatusBadRequest
}

// Params are the per-request knobs of a search.
type Params struct {
	Query    string
	PageSize int
	From     time.Time
}

// Response mirrors the upstream JSON body.
type Response struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Articles     []APIArticle `json:"articles"`
	Code         string       `json:"code,omitempty"`
	Message      string       `json:"message,omitempty"`
}

type APIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

func (a APIArticle) raw() news.RawItem {
	return news.RawItem{
		Title:       a.Title,
		Description: a.Description,
		Content:     a.Content,
		URL:         a.URL,
		ImageURL:    a.URLToImage,
		PublishedAt: a.PublishedAt,
		SourceID:    a.Source.ID,
		SourceName:  a.Source.Name,
		Author:      a.Author,
	}
}

// Client fetches and normalizes NewsAPI articles.
type Client struct {
	endpoint   string
	apiKey     string
	pageSize   int
	timeout    time.Duration
	http       *http.Client
	quota      *ratelimit.Quota
	normalizer *news.Normalizer
	metrics    *metrics.Metrics
	log        *slog.Logger
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout bounds each individual request.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

func WithPageSize(n int) Option { return func(c *Client) { c.pageSize = n } }

// WithQuota meters every request against a daily budget.
func WithQuota(q *ratelimit.Quota) Option { return func(c *Client) { c.quota = q } }

func WithNormalizer(n *news.Normalizer) Option { return func(c *Client) { c.normalizer = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// New builds a client. An empty apiKey sends no key header, which only makes
// sense when endpoint is a proxy that injects one.
func New(endpoint, apiKey string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		pageSize:   defaultPageSize,
		timeout:    defaultTimeout,
		http:       http.DefaultClient,
		normalizer: news.NewNormalizer(),
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("source", sourceName)
	return c
}

func (c *Client) Name() string { return sourceName }

// Fetch runs the filter's query and never fails: upstream problems are
// logged and produce an empty slice. A rejected query is retried once with
// a minimal one.
func (c *Client) Fetch(ctx context.Context, f news.Filter) []news.Article {
	f = f.Normalize()
	params := Params{
		Query:    news.SearchQuery(f),
		PageSize: c.pageSize,
		From:     f.Since(c.now()),
	}

	var resp *Response
	err := retry.WithRetry(ctx, retry.RetryConfig{
		MaxAttempts: 2,
		Retryable:   func(err error) bool { return errors.Is(err, ErrBadQuery) },
	}, func(attempt int) error {
		p := params
		if attempt > 1 {
			p.Query = news.SimpleQuery(f)
			p.PageSize = fallbackPageSize
			c.log.Warn("query rejected, retrying with simple query", "query", p.Query)
		}
		r, err := c.Search(ctx, p)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		if errors.Is(err, ratelimit.ErrQuotaExceeded) {
			c.log.Warn("skipping fetch", "error", err)
		} else {
			c.log.Error("fetch failed", "filter", f.CacheKey(), "error", err)
		}
		c.metrics.RecordSourceFetch(sourceName, metrics.StatusError)
		return []news.Article{}
	}

	articles := make([]news.Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		raw := a.raw()
		if !news.IsRelevant(raw, f) {
			continue
		}
		if article, ok := c.normalizer.Normalize(raw, f); ok {
			articles = append(articles, article)
		}
	}

	status := metrics.StatusOK
	if len(articles) == 0 {
		status = metrics.StatusEmpty
	}
	c.metrics.RecordSourceFetch(sourceName, status)
	c.log.Debug("fetched", "filter", f.CacheKey(), "upstream", len(resp.Articles), "kept", len(articles))
	return articles
}

// Search performs one upstream request.
func (c *Client) Search(ctx context.Context, p Params) (*Response, error) {
	if err := c.quota.Use(); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", p.Query)
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = c.pageSize
	}
	q.Set("pageSize", strconv.Itoa(pageSize))
	if !p.From.IsZero() {
		q.Set("from", p.From.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read newsapi body: %w", err)
	}

	var out Response
	decodeErr := json.Unmarshal(body, &out)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Code: res.StatusCode, APICode: out.Code, Message: out.Message}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode newsapi body: %w", decodeErr)
	}
	if out.Status == "error" {
		return nil, &StatusError{Code: res.StatusCode, APICode: out.Code, Message: out.Message}
	}
	return &out, nil
}
