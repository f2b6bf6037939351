package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/deusflow/desinews/internal/metrics"
	"github.com/deusflow/desinews/internal/news"
	"github.com/deusflow/desinews/internal/proxy"
)

// NewsService is the aggregation pipeline as the HTTP layer sees it.
type NewsService interface {
	GetAggregatedNews(ctx context.Context, f news.Filter) []news.Article
	ClearCache(ctx context.Context) error
}

type Server struct {
	news    NewsService
	metrics *metrics.Metrics
	proxy   *proxy.Handler
	log     *slog.Logger
	now     func() time.Time
	engine  *gin.Engine
}

// NewServer builds the router. The gin mode is left to the caller.
func NewServer(svc NewsService, m *metrics.Metrics, p *proxy.Handler, log *slog.Logger) *Server {
	s := &Server{news: svc, metrics: m, proxy: p, log: log, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:              []string{"Content-Type"},
		OptionsResponseStatusCode: http.StatusOK,
	}))

	r.Any("/api/news", p.Serve)
	r.Any("/api/test", s.echo)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.getNews)
		v1.DELETE("/cache", s.clearCache)
	}

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

type newsQuery struct {
	Category  string `form:"category" binding:"omitempty,oneof=ai startup all"`
	Region    string `form:"region" binding:"omitempty,oneof=world india all"`
	TimeRange string `form:"timeRange" binding:"omitempty,oneof=today week month all"`
}

type newsResponse struct {
	Articles []news.Article `json:"articles"`
	Count    int            `json:"count"`
	CacheKey string         `json:"cacheKey"`
}

func (s *Server) getNews(c *gin.Context) {
	var q newsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter", "message": err.Error()})
		return
	}

	f := news.Filter{
		Category:  news.Category(q.Category),
		Region:    news.Region(q.Region),
		TimeRange: news.TimeRange(q.TimeRange),
	}.Normalize()

	articles := s.news.GetAggregatedNews(c.Request.Context(), f)
	c.JSON(http.StatusOK, newsResponse{
		Articles: articles,
		Count:    len(articles),
		CacheKey: f.CacheKey(),
	})
}

func (s *Server) clearCache(c *gin.Context) {
	if err := s.news.ClearCache(c.Request.Context()); err != nil {
		s.log.Error("clear cache failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache clear failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// echo is a debug endpoint reporting what the server received.
func (s *Server) echo(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		c.Status(http.StatusOK)
		return
	}

	query := make(map[string]any, len(c.Request.URL.Query()))
	for k, v := range c.Request.URL.Query() {
		if len(v) == 1 {
			query[k] = v[0]
		} else {
			query[k] = v
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "API function is working",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"method":    c.Request.Method,
		"query":     query,
		"headers": gin.H{
			"user-agent": c.Request.UserAgent(),
			"host":       c.Request.Host,
		},
	})
}

func (s *Server) health(c *gin.Context) {
	stats := s.metrics.GetStats()

	status := "ok"
	code := http.StatusOK
	if healthy, _ := stats["is_healthy"].(bool); !healthy {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
