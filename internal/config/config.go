// Package config loads service settings from the environment and an optional
// .env file, plus the YAML feed catalogue.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server settings
	HTTPAddr  string
	Debug     bool
	LogFormat string // text | json

	// NewsAPI settings
	NewsAPIKey           string
	NewsAPIEndpoint      string
	NewsAPIProxyUpstream string // base URL the /api/news proxy forwards to
	NewsAPITimeout       time.Duration
	NewsAPIPageSize      int
	NewsAPIDailyQuota    int // 0 = unlimited

	// NewsData settings
	NewsDataAPIKey   string
	NewsDataEndpoint string

	// Cache settings
	CacheTTL     time.Duration
	CacheBackend string // memory | redis
	RedisURL     string

	// RSS settings
	RSSEnabled          bool
	FeedsConfigPath     string
	RSSFeedTimeout      time.Duration
	RSSConverterTimeout time.Duration
	RSSOverallTimeout   time.Duration
	RSSMaxFeeds         int
	RSSConcurrency      int
	RSSFeedPause        time.Duration
	RSSMaxArticles      int
	RSS2JSONEndpoint    string
	RSSAltEndpoint      string

	// Proxy settings
	ProxyTimeout time.Duration
}

// Defaults returns a Config with every default applied and nothing read
// from the environment.
func Defaults() *Config {
	return &Config{
		HTTPAddr:             ":8080",
		LogFormat:            "text",
		NewsAPIEndpoint:      "https://newsapi.org/v2/everything",
		NewsAPIProxyUpstream: "https://newsapi.org/v2",
		NewsAPITimeout:       5 * time.Second,
		NewsAPIPageSize:      30,
		NewsDataEndpoint:     "https://newsdata.io/api/1/news",
		CacheTTL:             5 * time.Minute,
		CacheBackend:         "memory",
		RSSEnabled:           true,
		FeedsConfigPath:      "configs/feeds.yaml",
		RSSFeedTimeout:       3 * time.Second,
		RSSConverterTimeout:  2 * time.Second,
		RSSOverallTimeout:    10 * time.Second,
		RSSMaxFeeds:          3,
		RSSConcurrency:       3,
		RSSFeedPause:         500 * time.Millisecond,
		RSSMaxArticles:       5,
		RSS2JSONEndpoint:     "https://rss2json.com/api.json",
		RSSAltEndpoint:       "https://rss-to-json-serverless-api.vercel.app/api",
		ProxyTimeout:         10 * time.Second,
	}
}

// Load reads .env (if present) and the environment on top of Defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv is Load without the .env step.
func FromEnv() (*Config, error) {
	cfg := Defaults()
	var errs []error

	cfg.HTTPAddr = getEnvOrDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogFormat = strings.ToLower(getEnvOrDefault("LOG_FORMAT", cfg.LogFormat))
	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}

	cfg.NewsAPIKey = os.Getenv("NEWS_API_KEY")
	cfg.NewsAPIEndpoint = getEnvOrDefault("NEWSAPI_ENDPOINT", cfg.NewsAPIEndpoint)
	cfg.NewsAPIProxyUpstream = strings.TrimSuffix(getEnvOrDefault("NEWSAPI_PROXY_UPSTREAM", cfg.NewsAPIProxyUpstream), "/")
	cfg.NewsAPITimeout = getEnvDurationOrDefault("NEWSAPI_TIMEOUT", cfg.NewsAPITimeout, &errs)
	cfg.NewsAPIPageSize = getEnvIntOrDefault("NEWSAPI_PAGE_SIZE", cfg.NewsAPIPageSize, &errs)
	cfg.NewsAPIDailyQuota = getEnvIntOrDefault("NEWSAPI_DAILY_QUOTA", cfg.NewsAPIDailyQuota, &errs)

	cfg.NewsDataAPIKey = os.Getenv("NEWSDATA_API_KEY")
	cfg.NewsDataEndpoint = getEnvOrDefault("NEWSDATA_ENDPOINT", cfg.NewsDataEndpoint)

	cfg.CacheTTL = getEnvDurationOrDefault("CACHE_TTL", cfg.CacheTTL, &errs)
	cfg.CacheBackend = strings.ToLower(getEnvOrDefault("CACHE_BACKEND", cfg.CacheBackend))
	cfg.RedisURL = os.Getenv("REDIS_URL")

	if v := os.Getenv("RSS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RSS_ENABLED: %w", err))
		} else {
			cfg.RSSEnabled = b
		}
	}
	cfg.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", cfg.FeedsConfigPath)
	cfg.RSSFeedTimeout = getEnvDurationOrDefault("RSS_FEED_TIMEOUT", cfg.RSSFeedTimeout, &errs)
	cfg.RSSConverterTimeout = getEnvDurationOrDefault("RSS_CONVERTER_TIMEOUT", cfg.RSSConverterTimeout, &errs)
	cfg.RSSOverallTimeout = getEnvDurationOrDefault("RSS_OVERALL_TIMEOUT", cfg.RSSOverallTimeout, &errs)
	cfg.RSSMaxFeeds = getEnvIntOrDefault("RSS_MAX_FEEDS", cfg.RSSMaxFeeds, &errs)
	cfg.RSSConcurrency = getEnvIntOrDefault("RSS_CONCURRENCY", cfg.RSSConcurrency, &errs)
	cfg.RSSFeedPause = getEnvDurationOrDefault("RSS_FEED_PAUSE", cfg.RSSFeedPause, &errs)
	cfg.RSSMaxArticles = getEnvIntOrDefault("RSS_MAX_ARTICLES", cfg.RSSMaxArticles, &errs)
	cfg.RSS2JSONEndpoint = getEnvOrDefault("RSS2JSON_ENDPOINT", cfg.RSS2JSONEndpoint)
	cfg.RSSAltEndpoint = getEnvOrDefault("RSS_ALT_ENDPOINT", cfg.RSSAltEndpoint)

	cfg.ProxyTimeout = getEnvDurationOrDefault("PROXY_TIMEOUT", cfg.ProxyTimeout, &errs)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return intValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be 'text' or 'json'")
	}
	if err := validateURL("NEWSAPI_ENDPOINT", c.NewsAPIEndpoint); err != nil {
		return err
	}
	if err := validateURL("NEWSAPI_PROXY_UPSTREAM", c.NewsAPIProxyUpstream); err != nil {
		return err
	}
	if c.NewsAPIPageSize < 1 || c.NewsAPIPageSize > 100 {
		return fmt.Errorf("NEWSAPI_PAGE_SIZE must be between 1 and 100")
	}
	if c.NewsAPIDailyQuota < 0 {
		return fmt.Errorf("NEWSAPI_DAILY_QUOTA must not be negative")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	switch c.CacheBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be 'memory' or 'redis'")
	}
	for name, d := range map[string]time.Duration{
		"NEWSAPI_TIMEOUT":       c.NewsAPITimeout,
		"RSS_FEED_TIMEOUT":      c.RSSFeedTimeout,
		"RSS_CONVERTER_TIMEOUT": c.RSSConverterTimeout,
		"RSS_OVERALL_TIMEOUT":   c.RSSOverallTimeout,
		"PROXY_TIMEOUT":         c.ProxyTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.RSSFeedPause < 0 {
		return fmt.Errorf("RSS_FEED_PAUSE must not be negative")
	}
	if c.RSSMaxFeeds < 1 || c.RSSConcurrency < 1 || c.RSSMaxArticles < 1 {
		return fmt.Errorf("RSS_MAX_FEEDS, RSS_CONCURRENCY and RSS_MAX_ARTICLES must be at least 1")
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}
