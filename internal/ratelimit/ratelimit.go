package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrQuotaExceeded is returned by Quota.Use once the daily budget is spent.
var ErrQuotaExceeded = errors.New("daily request quota exceeded")

// Pacer spaces request starts at least interval apart. The first request
// goes through immediately.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a Pacer; a non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next start is allowed or ctx ends.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// Quota is a daily request budget for a metered upstream. A zero limit means
// unlimited.
type Quota struct {
	mu        sync.Mutex
	name      string
	used      int
	limit     int
	resetTime time.Time
	now       func() time.Time
	log       *slog.Logger
}

// NewQuota creates a quota whose window restarts every 24 hours.
func NewQuota(name string, limit int, now func() time.Time, log *slog.Logger) *Quota {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Quota{
		name:      name,
		limit:     limit,
		now:       now,
		log:       log,
		resetTime: now().Add(24 * time.Hour),
	}
}

// CanUse reports whether another request fits in the current window.
func (q *Quota) CanUse() bool {
	if q == nil {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.checkReset()
	return q.limit <= 0 || q.used < q.limit
}

// Use reserves one request.
func (q *Quota) Use() error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.checkReset()
	if q.limit > 0 && q.used >= q.limit {
		q.log.Warn("request quota reached", "source", q.name, "used", q.used, "limit", q.limit)
		return fmt.Errorf("%s: %w", q.name, ErrQuotaExceeded)
	}
	q.used++
	q.log.Debug("request quota usage", "source", q.name, "used", q.used, "limit", q.limit)
	return nil
}

// GetStats returns the current window's counters.
func (q *Quota) GetStats() map[string]interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.checkReset()
	return map[string]interface{}{
		"source":     q.name,
		"used":       q.used,
		"limit":      q.limit,
		"reset_time": q.resetTime.Format(time.RFC3339),
	}
}

// checkReset starts a new window once the reset time has passed.
func (q *Quota) checkReset() {
	now := q.now()
	if now.After(q.resetTime) {
		q.log.Info("resetting request quota", "source", q.name, "used", q.used)
		q.used = 0
		q.resetTime = now.Add(24 * time.Hour)
	}
}
