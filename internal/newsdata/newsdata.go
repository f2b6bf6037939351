// Package newsdata is an optional secondary source backed by NewsData.io.
package newsdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/desinews/internal/metrics"
	"github.com/deusflow/desinews/internal/news"
)

const (
	sourceName      = "newsdata"
	defaultEndpoint = "https://newsdata.io/api/1/news"
	defaultTimeout  = 5 * time.Second

	// Free-tier placeholder for fields behind the paywall.
	paidOnly = "ONLY AVAILABLE IN PAID PLANS"
)

type response struct {
	Status  string   `json:"status"`
	Results []result `json:"results"`
}

type result struct {
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	PubDate     string   `json:"pubDate"`
	ImageURL    string   `json:"image_url"`
	SourceID    string   `json:"source_id"`
	SourceName  string   `json:"source_name"`
	Creator     []string `json:"creator"`
	Keywords    []string `json:"keywords"`
}

func (r result) raw() news.RawItem {
	item := news.RawItem{
		Title:       r.Title,
		Description: r.Description,
		Content:     r.Content,
		URL:         r.Link,
		ImageURL:    r.ImageURL,
		PublishedAt: r.PubDate,
		SourceID:    r.SourceID,
		SourceName:  r.SourceName,
	}
	if strings.EqualFold(strings.TrimSpace(item.Content), paidOnly) {
		item.Content = ""
	}
	if len(r.Creator) > 0 {
		item.Author = r.Creator[0]
	}
	return item
}

// Client queries NewsData.io and normalizes its results.
type Client struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	http       *http.Client
	normalizer *news.Normalizer
	metrics    *metrics.Metrics
	log        *slog.Logger
}

type Option func(*Client)

func WithEndpoint(u string) Option { return func(c *Client) { c.endpoint = u } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

func WithNormalizer(n *news.Normalizer) Option { return func(c *Client) { c.normalizer = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   defaultEndpoint,
		apiKey:     apiKey,
		timeout:    defaultTimeout,
		http:       http.DefaultClient,
		normalizer: news.NewNormalizer(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("source", sourceName)
	return c
}

func (c *Client) Name() string { return sourceName }

// Fetch never fails; errors are logged and yield an empty slice.
func (c *Client) Fetch(ctx context.Context, f news.Filter) []news.Article {
	f = f.Normalize()
	results, err := c.search(ctx, f)
	if err != nil {
		c.log.Error("fetch failed", "filter", f.CacheKey(), "error", err)
		c.metrics.RecordSourceFetch(sourceName, metrics.StatusError)
		return []news.Article{}
	}

	articles := make([]news.Article, 0, len(results))
	for _, r := range results {
		raw := r.raw()
		if !news.IsRelevant(raw, f) {
			continue
		}
		a, ok := c.normalizer.Normalize(raw, f)
		if !ok {
			continue
		}
		if len(r.Keywords) > 0 {
			a.Tags = append([]string(nil), r.Keywords...)
		}
		articles = append(articles, a)
	}

	status := metrics.StatusOK
	if len(articles) == 0 {
		status = metrics.StatusEmpty
	}
	c.metrics.RecordSourceFetch(sourceName, status)
	return articles
}

// Params builds the query string for a filter.
func Params(apiKey string, f news.Filter) url.Values {
	f = f.Normalize()
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("language", "en")
	q.Set("size", "10")
	if f.Region == news.RegionIndia {
		q.Set("country", "in")
	}
	switch f.Category {
	case news.CategoryAI:
		q.Set("category", "technology")
		q.Set("q", "AI OR artificial intelligence")
	case news.CategoryStartup:
		q.Set("category", "business")
		q.Set("q", "startup OR funding")
	}
	return q
}

func (c *Client) search(ctx context.Context, f news.Filter) ([]result, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = Params(c.apiKey, f).Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		// The URL carries the key; keep it out of the logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("newsdata request: %w", uerr.Err)
		}
		return nil, fmt.Errorf("newsdata request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
		return nil, fmt.Errorf("newsdata: HTTP %d", res.StatusCode)
	}

	var out response
	if err := json.NewDecoder(io.LimitReader(res.Body, 10<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode newsdata body: %w", err)
	}
	if out.Status != "" && out.Status != "success" {
		return nil, fmt.Errorf("newsdata: status %q", out.Status)
	}
	return out.Results, nil
}
