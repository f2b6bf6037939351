package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/desinews/internal/logger"
	"github.com/deusflow/desinews/internal/metrics"
	"github.com/deusflow/desinews/internal/news"
	"github.com/deusflow/desinews/internal/ratelimit"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (r *recorder) add(req *http.Request) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return len(r.requests)
}

func (r *recorder) all() []*http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*http.Request(nil), r.requests...)
}

func okBody(articles ...map[string]any) map[string]any {
	return map[string]any{"status": "ok", "totalResults": len(articles), "articles": articles}
}

func item(title, link string) map[string]any {
	return map[string]any{
		"source":      map[string]any{"id": nil, "name": "TechCrunch"},
		"author":      "Jane",
		"title":       title,
		"description": "A look at the newest model release and what it means for developers.",
		"url":         link,
		"urlToImage":  "https://images.example.com/pic.jpg",
		"publishedAt": "2026-03-14T08:00:00Z",
		"content":     "Body text [+1234 chars]",
	}
}

func newClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *recorder, *metrics.Metrics) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	m := metrics.New()
	base := []Option{
		WithLogger(logger.Discard()),
		WithMetrics(m),
		WithClock(func() time.Time { return fixedNow }),
		WithNormalizer(&news.Normalizer{Now: func() time.Time { return fixedNow }}),
	}
	return New(srv.URL+"/v2/everything", "secret", append(base, opts...)...), rec, m
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchSuccess(t *testing.T) {
	c, rec, m := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, okBody(
			item("OpenAI launches a new model", "https://techcrunch.com/openai"),
			item("Premier League AI referee trial", "https://example.com/football"),
			item("", "https://example.com/empty"),
		))
	})

	got := c.Fetch(context.Background(), news.Filter{Category: news.CategoryAI, Region: news.RegionWorld, TimeRange: news.TimeRangeToday})
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, news.ArticleID("https://techcrunch.com/openai"), a.ID)
	assert.Equal(t, "OpenAI launches a new model", a.Title)
	assert.Equal(t, "Body text", a.Content)
	assert.Equal(t, "unknown", a.Source.ID)
	assert.Equal(t, "TechCrunch", a.Source.Name)
	assert.Equal(t, news.CategoryAI, a.Category)
	assert.Equal(t, news.RegionWorld, a.Region)
	assert.True(t, a.PublishedAt.Equal(time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)))

	reqs := rec.all()
	require.Len(t, reqs, 1)
	q := reqs[0].URL.Query()
	assert.Equal(t, "/v2/everything", reqs[0].URL.Path)
	assert.Equal(t, "secret", reqs[0].Header.Get("X-Api-Key"))
	assert.Equal(t, news.SearchQuery(news.Filter{Category: news.CategoryAI}), q.Get("q"))
	assert.Equal(t, "en", q.Get("language"))
	assert.Equal(t, "publishedAt", q.Get("sortBy"))
	assert.Equal(t, "30", q.Get("pageSize"))
	assert.Equal(t, "2026-03-13T12:00:00Z", q.Get("from"))

	assert.Contains(t, scrape(t, m), `desinews_source_fetch_total{source="newsapi",status="ok"} 1`)
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestFetchBadQueryRetriesOnceWithSimpleQuery(t *testing.T) {
	c, rec, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageSize") == "30" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "code": "parameterInvalid", "message": "bad q"})
			return
		}
		writeJSON(w, http.StatusOK, okBody(item("Startup raises seed round", "https://example.com/seed")))
	})

	got := c.Fetch(context.Background(), news.Filter{Category: news.CategoryStartup})
	require.Len(t, got, 1)

	reqs := rec.all()
	require.Len(t, reqs, 2)
	assert.Equal(t, "startup", reqs[1].URL.Query().Get("q"))
	assert.Equal(t, "10", reqs[1].URL.Query().Get("pageSize"))
	assert.Empty(t, reqs[1].URL.Query().Get("from"))
}

func TestFetchBadQueryTwiceGivesEmpty(t *testing.T) {
	c, rec, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "bad q"})
	})

	got := c.Fetch(context.Background(), news.Filter{Category: news.CategoryAI})
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Len(t, rec.all(), 2)
}

func TestFetchServerErrorIsNotRetried(t *testing.T) {
	c, rec, m := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "boom"})
	})

	got := c.Fetch(context.Background(), news.Filter{Category: news.CategoryAI})
	assert.Empty(t, got)
	assert.Len(t, rec.all(), 1)
	assert.Contains(t, scrape(t, m), `desinews_source_fetch_total{source="newsapi",status="error"} 1`)
}

func TestFetchTimeoutGivesEmpty(t *testing.T) {
	release := make(chan struct{})
	c, _, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	start := time.Now()
	got := c.Fetch(context.Background(), news.Filter{Category: news.CategoryAI})
	assert.Empty(t, got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchMalformedBodyGivesEmpty(t *testing.T) {
	c, _, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>not json</html>"))
	})
	assert.Empty(t, c.Fetch(context.Background(), news.Filter{}))
}

func TestFetchQuotaExhaustedSkipsRequest(t *testing.T) {
	q := ratelimit.NewQuota("newsapi", 1, func() time.Time { return fixedNow }, logger.Discard())
	c, rec, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, okBody(item("OpenAI launches a new model", "https://example.com/a")))
	}, WithQuota(q))

	assert.Len(t, c.Fetch(context.Background(), news.Filter{Category: news.CategoryAI}), 1)
	assert.Empty(t, c.Fetch(context.Background(), news.Filter{Category: news.CategoryAI}))
	assert.Len(t, rec.all(), 1)
}

func TestFetchWithoutKeySendsNoHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Api-Key")
		writeJSON(w, http.StatusOK, okBody())
	}))
	defer srv.Close()

	c := New(srv.URL, "", WithLogger(logger.Discard()))
	assert.Empty(t, c.Fetch(context.Background(), news.Filter{}))
	assert.Empty(t, got)
}

func TestStatusErrorMatchesBadQuery(t *testing.T) {
	var err error = &StatusError{Code: http.StatusBadRequest, Message: "bad"}
	assert.True(t, errors.Is(err, ErrBadQuery))
	assert.False(t, errors.Is(&StatusError{Code: http.StatusUnauthorized}, ErrBadQuery))
	assert.Equal(t, "newsapi: HTTP 400: bad", err.Error())
}
