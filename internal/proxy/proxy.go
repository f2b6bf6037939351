// Package proxy forwards browser news searches to NewsAPI so the front-end
// never needs the API key or a cross-origin request.
package proxy

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

	"github.com/gin-gonic/gin"
)

const defaultTimeout = 10 * time.Second

// optional parameters are forwarded only when the caller set them.
var optional = []string{"q", "category", "country", "sources", "from", "to", "page"}

type Handler struct {
	upstream string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Handler)

func WithHTTPClient(hc *http.Client) Option { return func(h *Handler) { h.http = hc } }

func WithTimeout(d time.Duration) Option { return func(h *Handler) { h.timeout = d } }

func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.log = l } }

func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

// New builds a proxy to upstream, the NewsAPI base URL without an endpoint
// (e.g. https://newsapi.org/v2).
func New(upstream, apiKey string, opts ...Option) *Handler {
	h := &Handler{
		upstream: strings.TrimSuffix(upstream, "/"),
		apiKey:   apiKey,
		timeout:  defaultTimeout,
		http:     http.DefaultClient,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "proxy")
	return h
}

// Serve handles every method on the proxy route.
func (h *Handler) Serve(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusOK)
		return
	case http.MethodGet:
	default:
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
		return
	}

	target := h.Target(c.Request.URL.Query())
	body, err := h.forward(c.Request.Context(), target)
	if err != nil {
		h.log.Error("upstream request failed", "endpoint", endpointOf(target), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "NewsAPI request failed",
			"message":   err.Error(),
			"timestamp": h.now().UTC().Format(time.RFC3339),
		})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Target builds the upstream URL for the caller's query. Category or country
// selects top-headlines; anything else is an everything search.
func (h *Handler) Target(q url.Values) string {
	params := url.Values{}
	params.Set("language", valueOr(q, "language", "en"))
	params.Set("sortBy", valueOr(q, "sortBy", "publishedAt"))
	params.Set("pageSize", valueOr(q, "pageSize", "30"))
	for _, k := range optional {
		if v := q.Get(k); v != "" {
			params.Set(k, v)
		}
	}

	endpoint := "everything"
	if q.Get("category") != "" || q.Get("country") != "" {
		endpoint = "top-headlines"
	}
	return h.upstream + "/" + endpoint + "?" + params.Encode()
}

func (h *Handler) forward(ctx context.Context, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "desinews/1.0")
	if h.apiKey != "" {
		req.Header.Set("X-Api-Key", h.apiKey)
	}

	res, err := h.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.New("request timeout")
		}
		return nil, fmt.Errorf("request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", res.StatusCode, http.StatusText(res.StatusCode))
	}
	if !json.Valid(body) {
		return nil, errors.New("upstream returned invalid JSON")
	}
	return body, nil
}

func valueOr(q url.Values, key, fallback string) string {
	if v := q.Get(key); v != "" {
		return v
	}
	return fallback
}

// endpointOf strips the query so nothing caller-supplied ends up in logs.
func endpointOf(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
