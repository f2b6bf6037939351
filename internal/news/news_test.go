package news

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedNormalizer() *Normalizer {
	return &Normalizer{Now: func() time.Time { return fixedNow }}
}

func TestFilterCacheKey(t *testing.T) {
	tests := []struct {
		filter Filter
		want   string
	}{
		{Filter{Category: CategoryAI, Region: RegionIndia, TimeRange: TimeRangeToday}, "ai-india-today"},
		{Filter{}, "all-all-all"},
		{Filter{Category: "all", Region: "WORLD"}, "all-world-all"},
		{Filter{Category: CategoryStartup}, "startup-all-all"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.filter.CacheKey())
	}
}

func TestFilterSince(t *testing.T) {
	assert.Equal(t, fixedNow.Add(-24*time.Hour), Filter{TimeRange: TimeRangeToday}.Since(fixedNow))
	assert.Equal(t, fixedNow.Add(-7*24*time.Hour), Filter{TimeRange: TimeRangeWeek}.Since(fixedNow))
	assert.True(t, Filter{}.Since(fixedNow).IsZero())
}

func TestArticleIDStable(t *testing.T) {
	id1 := ArticleID("https://example.com/post-1")
	id2 := ArticleID("https://example.com/post-2")

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, id1, ArticleID("https://example.com/post-1"))
	assert.Equal(t, id1, ArticleID("https://EXAMPLE.com/post-1/?utm_source=x#top"))
	assert.Len(t, id1, 32)
}

func TestSearchQuery(t *testing.T) {
	q := SearchQuery(Filter{Category: CategoryAI})
	assert.True(t, strings.HasPrefix(q, `"artificial intelligence" OR "machine learning"`))
	assert.NotContains(t, q, "AND")

	q = SearchQuery(Filter{Category: CategoryStartup, Region: RegionIndia})
	assert.Contains(t, q, `startup OR "venture capital"`)
	assert.Contains(t, q, " AND (India OR Indian")
	assert.Contains(t, q, "Flipkart")

	assert.Equal(t, "technology AND India", SearchQuery(Filter{Region: RegionIndia}))
	assert.Equal(t, "technology", SearchQuery(Filter{}))

	assert.Equal(t, `"artificial intelligence"`, SimpleQuery(Filter{Category: CategoryAI}))
	assert.Equal(t, "startup", SimpleQuery(Filter{Category: CategoryStartup}))
}

func TestIsRelevantAI(t *testing.T) {
	f := Filter{Category: CategoryAI}
	tests := []struct {
		name string
		item RawItem
		want bool
	}{
		{"explicit ai term", RawItem{Title: "OpenAI ships a new model"}, true},
		{"short token needs word boundary", RawItem{Title: "Minister said nothing new today"}, false},
		{"tech keyword with context", RawItem{Title: "Microsoft expands its software platform", Description: "A broader look at the enterprise roadmap this year"}, true},
		{"tech keyword too short", RawItem{Title: "Google news"}, false},
		{"sports beats ai keyword", RawItem{Title: "AI picks the Premier League team of the week"}, false},
		{"sports domain", RawItem{Title: "Machine learning in scouting", URL: "https://www.espn.com/story/1"}, false},
		{"empty item", RawItem{URL: "https://example.com"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRelevant(tt.item, f))
		})
	}
}

func TestIsRelevantStartup(t *testing.T) {
	f := Filter{Category: CategoryStartup}
	assert.True(t, IsRelevant(RawItem{Title: "Bengaluru fintech raises Series A"}, f))
	assert.True(t, IsRelevant(RawItem{Title: "Enterprise company outlines plans", Description: "The business aims to double headcount across regions"}, f))
	assert.False(t, IsRelevant(RawItem{Title: "Company news"}, f))
	assert.False(t, IsRelevant(RawItem{Title: "Weather turns cold"}, f))
}

func TestIsRelevantNoCategoryAcceptsAll(t *testing.T) {
	assert.True(t, IsRelevant(RawItem{Title: "Weather turns cold"}, Filter{}))
	assert.True(t, IsRelevant(RawItem{Title: "Weather turns cold"}, Filter{Category: "all"}))
}

func TestIsRelevantRegional(t *testing.T) {
	assert.True(t, IsRelevantRegional(RawItem{Title: "Digital payments cross a milestone"}, Filter{Category: CategoryAI}))
	assert.False(t, IsRelevantRegional(RawItem{Title: "Monsoon arrives early"}, Filter{Category: CategoryAI}))
	assert.True(t, IsRelevantRegional(RawItem{Title: "Edtech firm plans expansion"}, Filter{Category: CategoryStartup}))
	assert.False(t, IsRelevantRegional(RawItem{Title: "Startup funding", URL: "https://goal.com/x"}, Filter{Category: CategoryStartup}))
}

func TestIsUsableImageURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/photo.jpg", true},
		{"https://example.com/a/b.webp?w=800", true},
		{"https://cdn.example.com/abc123", true},
		{"https://example.com/article/123", false},
		{"https://example.com/removed.png", false},
		{"https://img.example.com/placeholder-image.jpg", false},
		{"ftp://example.com/photo.jpg", false},
		{"/relative/photo.jpg", false},
		{"data:image/png;base64,AAAA", false},
		{"null", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsUsableImageURL(tt.in), tt.in)
	}
}

func TestPlaceholderLabel(t *testing.T) {
	assert.Equal(t, "AI News", PlaceholderLabel("How AI changes banking", CategoryStartup))
	assert.Equal(t, "Startup", PlaceholderLabel("Unicorn count doubles", CategoryAI))
	assert.Equal(t, "Zomato", PlaceholderLabel("Zomato posts profit", CategoryAI))
	assert.Equal(t, "Startup", PlaceholderLabel("Quarterly results", CategoryStartup))
	assert.Equal(t, "AI News", PlaceholderLabel("Quarterly results", CategoryAI))
	assert.Equal(t, "Tech News", PlaceholderLabel("Quarterly results", ""))
}

func TestPlaceholderImageDeterministic(t *testing.T) {
	a := PlaceholderImage("Infosys expands", CategoryAI)
	b := PlaceholderImage("Infosys expands", CategoryAI)
	require.Equal(t, a, b)
	require.True(t, strings.HasPrefix(a, "data:image/svg+xml;base64,"))

	svg, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(a, "data:image/svg+xml;base64,"))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "Infosys")
	assert.Contains(t, string(svg), "#0066CC")
	assert.Contains(t, string(svg), "#3399ff")
}

func TestLighten(t *testing.T) {
	assert.Equal(t, "#3399ff", lighten("#0066CC", 20))
	assert.Equal(t, "#ffffff", lighten("#F0F0F0", 50))
	assert.Equal(t, "nope", lighten("nope", 20))
}

func TestExtractTags(t *testing.T) {
	assert.Equal(t, []string{"AI", "funding", "venture capital"},
		ExtractTags("AI lab closes funding round led by venture capital firms"))
	assert.Equal(t, []string{}, ExtractTags("Nothing to see"))
}

func TestReadTimeFloor(t *testing.T) {
	assert.Equal(t, 1, ReadTime("one"))
	assert.Equal(t, 1, ReadTime("   "))
	assert.Equal(t, 1, ReadTime(strings.Repeat("w ", 200)))
	assert.Equal(t, 2, ReadTime(strings.Repeat("w ", 201)))
}

func TestParseDate(t *testing.T) {
	n := fixedNormalizer()
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-10T08:00:00Z", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)},
		{"Tue, 10 Mar 2026 08:00:00 +0000", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)},
		{"Tue, 3 Mar 2026 08:00:00 GMT", time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)},
		{"2026-03-10 08:00:00", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)},
		{"1773129600", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)},
		{"1773129600000", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)},
		{"not-a-date", fixedNow},
		{"", fixedNow},
	}
	for _, tt := range tests {
		assert.True(t, tt.want.Equal(n.ParseDate(tt.in)), "ParseDate(%q) = %v", tt.in, n.ParseDate(tt.in))
	}
}

func TestNormalize(t *testing.T) {
	n := fixedNormalizer()
	raw := RawItem{
		Title:       "<b>Infosys</b> bets on generative AI",
		Description: "The IT major &amp; its partners unveil a platform.",
		Content:     "Long body text here… [+1200 chars]",
		URL:         "https://example.com/infosys-genai",
		ImageURL:    "https://example.com/removed.png",
		PublishedAt: "not-a-date",
	}
	a, ok := n.Normalize(raw, Filter{Category: CategoryAI, Region: RegionIndia})
	require.True(t, ok)

	assert.Equal(t, ArticleID(raw.URL), a.ID)
	assert.Equal(t, "Infosys bets on generative AI", a.Title)
	assert.Equal(t, "The IT major & its partners unveil a platform.", a.Description)
	assert.Equal(t, "Long body text here…", a.Content)
	assert.True(t, strings.HasPrefix(a.ImageURL, "data:image/svg+xml;base64,"))
	assert.Equal(t, fixedNow, a.PublishedAt)
	assert.Equal(t, Source{ID: "unknown", Name: "Unknown Source"}, a.Source)
	assert.Equal(t, "Unknown Author", a.Author)
	assert.Equal(t, CategoryAI, a.Category)
	assert.Equal(t, RegionIndia, a.Region)
	assert.Equal(t, []string{"AI"}, a.Tags)
	assert.Equal(t, 1, a.ReadTime)
}

func TestNormalizeDefaultsAndSkips(t *testing.T) {
	n := fixedNormalizer()

	_, ok := n.Normalize(RawItem{Title: "No link"}, Filter{})
	assert.False(t, ok)
	_, ok = n.Normalize(RawItem{URL: "https://example.com/x"}, Filter{})
	assert.False(t, ok)

	a, ok := n.Normalize(RawItem{
		Title:       "Plain",
		Description: strings.Repeat("word ", 100),
		URL:         "https://example.com/plain",
		ImageURL:    "https://images.example.com/p.jpg",
		SourceName:  "Example",
	}, Filter{})
	require.True(t, ok)
	assert.Equal(t, CategoryAI, a.Category)
	assert.Equal(t, RegionWorld, a.Region)
	assert.Equal(t, "https://images.example.com/p.jpg", a.ImageURL)
	assert.Equal(t, "Example", a.Source.Name)
	assert.True(t, strings.HasSuffix(a.Description, "..."))
	assert.Len(t, []rune(strings.TrimSuffix(a.Description, "...")), 199)
	assert.Equal(t, 100, len(strings.Fields(a.Content)))
}

func article(id, title, url string, at time.Time) Article {
	return Article{ID: id, Title: title, URL: url, PublishedAt: at}
}

func TestDedupeSharedURL(t *testing.T) {
	in := []Article{
		article("a", "AI News", "https://example.com/1", fixedNow),
		article("b", "Completely different headline", "https://example.com/1", fixedNow),
	}
	out := DedupeAndSort(in)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestDedupeTitleAndID(t *testing.T) {
	in := []Article{
		article("a", "Same Title", "https://example.com/1", fixedNow),
		article("b", "  same title ", "https://example.com/2", fixedNow),
		article("a", "Other", "https://example.com/3", fixedNow),
		article("d", "Fresh", "https://example.com/4", fixedNow),
	}
	out := DedupeAndSort(in)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "d", out[1].ID)
}

func TestDedupeSortsNewestFirstStable(t *testing.T) {
	in := []Article{
		article("old", "Old", "https://example.com/old", fixedNow.Add(-2*time.Hour)),
		article("tie1", "Tie one", "https://example.com/t1", fixedNow),
		article("new", "New", "https://example.com/new", fixedNow.Add(time.Hour)),
		article("tie2", "Tie two", "https://example.com/t2", fixedNow),
	}
	out := DedupeAndSort(in)

	ids := make([]string, 0, len(out))
	for i, a := range out {
		ids = append(ids, a.ID)
		if i > 0 {
			assert.False(t, a.PublishedAt.After(out[i-1].PublishedAt))
		}
	}
	assert.Equal(t, []string{"new", "tie1", "tie2", "old"}, ids)
}

func TestDedupeIdempotent(t *testing.T) {
	in := []Article{
		article("1", "A", "https://example.com/a", fixedNow.Add(-time.Minute)),
		article("2", "a", "https://example.com/b", fixedNow),
		article("3", "C", "https://example.com/a", fixedNow.Add(time.Minute)),
		article("4", "D", "https://example.com/d", fixedNow.Add(-time.Hour)),
		article("4", "E", "https://example.com/e", fixedNow),
	}
	once := DedupeAndSort(in)
	assert.Equal(t, once, DedupeAndSort(once))
}
