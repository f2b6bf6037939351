package news

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// Category is the topical facet an article was fetched under.
type Category string

const (
	CategoryAI      Category = "ai"
	CategoryStartup Category = "startup"
)

// Region is the geographic facet an article was fetched under.
type Region string

const (
	RegionWorld Region = "world"
	RegionIndia Region = "india"
)

// TimeRange limits how far back upstream queries look.
type TimeRange string

const (
	TimeRangeToday TimeRange = "today"
	TimeRangeWeek  TimeRange = "week"
	TimeRangeMonth TimeRange = "month"
)

// all is the wildcard facet value: same as leaving the facet out.
const all = "all"

// Source identifies the upstream publisher of an article.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Article is the canonical record every adapter produces.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"urlToImage"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      Source    `json:"source"`
	Author      string    `json:"author"`
	Category    Category  `json:"category"`
	Region      Region    `json:"region"`
	Tags        []string  `json:"tags"`
	ReadTime    int       `json:"readTime"`
}

// Filter is the query facet key. Zero values mean "any".
type Filter struct {
	Category  Category  `json:"category,omitempty"`
	Region    Region    `json:"region,omitempty"`
	TimeRange TimeRange `json:"timeRange,omitempty"`
}

// Normalize lowercases facets and turns the "all" wildcard into the zero value.
func (f Filter) Normalize() Filter {
	clean := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == all {
			return ""
		}
		return s
	}
	return Filter{
		Category:  Category(clean(string(f.Category))),
		Region:    Region(clean(string(f.Region))),
		TimeRange: TimeRange(clean(string(f.TimeRange))),
	}
}

// CacheKey builds the category-region-timeRange key, "all" for absent facets.
func (f Filter) CacheKey() string {
	f = f.Normalize()
	part := func(s string) string {
		if s == "" {
			return all
		}
		return s
	}
	return part(string(f.Category)) + "-" + part(string(f.Region)) + "-" + part(string(f.TimeRange))
}

// Since returns the lower publication bound implied by the time range, or the
// zero time when the range is absent or unknown.
func (f Filter) Since(now time.Time) time.Time {
	switch f.Normalize().TimeRange {
	case TimeRangeToday:
		return now.Add(-24 * time.Hour)
	case TimeRangeWeek:
		return now.Add(-7 * 24 * time.Hour)
	case TimeRangeMonth:
		return now.Add(-30 * 24 * time.Hour)
	}
	return time.Time{}
}

// articleCategory is the category stamped on articles fetched under f.
func (f Filter) articleCategory() Category {
	if f.Category == "" {
		return CategoryAI
	}
	return f.Category
}

func (f Filter) articleRegion() Region {
	if f.Region == "" {
		return RegionWorld
	}
	return f.Region
}

// RawItem is the upstream-agnostic shape adapters hand to the relevance
// filter and the normalizer.
type RawItem struct {
	Title       string
	Description string
	Content     string
	URL         string
	ImageURL    string
	PublishedAt string
	SourceID    string
	SourceName  string
	Author      string
}

// ArticleID derives a stable id from the normalized URL.
func ArticleID(link string) string {
	h := sha256.Sum256([]byte(NormalizeURL(link)))
	return hex.EncodeToString(h[:16])
}

// NormalizeURL canonicalises a link for id derivation: lowercase scheme and
// host, no fragment, no utm_* tracking parameters, no trailing slash.
func NormalizeURL(link string) string {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(link), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			if strings.HasPrefix(strings.ToLower(k), "utm_") {
				q.Del(k)
			}
		}
		u.RawQuery = q.Encode()
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}
