package news

import (
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/desinews/internal/markup"
)

const (
	wordsPerMinute      = 200
	maxDescriptionRunes = 200

	defaultSourceID   = "unknown"
	defaultSourceName = "Unknown Source"
	defaultAuthor     = "Unknown Author"
)

var tagVocabulary = []struct {
	tag   string
	words *keywordSet
}{
	{"AI", newKeywordSet("ai")},
	{"startup", newKeywordSet("startup")},
	{"funding", newKeywordSet("funding")},
	{"machine learning", newKeywordSet("machine learning")},
	{"technology", newKeywordSet("technology")},
	{"innovation", newKeywordSet("innovation")},
	{"venture capital", newKeywordSet("venture capital")},
}

// Normalizer maps RawItems onto Articles. Now is consulted only when an
// upstream date is missing or unparseable.
type Normalizer struct {
	Now func() time.Time
}

// NewNormalizer returns a Normalizer on the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{Now: time.Now}
}

func (n *Normalizer) now() time.Time {
	if n == nil || n.Now == nil {
		return time.Now().UTC()
	}
	return n.Now().UTC()
}

// Normalize builds the canonical Article. It returns false for items without
// a title or a link; those are skipped, not errors.
func (n *Normalizer) Normalize(raw RawItem, f Filter) (Article, bool) {
	f = f.Normalize()
	title := markup.Text(raw.Title)
	link := strings.TrimSpace(raw.URL)
	if title == "" || link == "" {
		return Article{}, false
	}

	description := markup.Text(raw.Description)
	content := markup.ContentText(raw.Content)
	if content == "" {
		content = description
	}

	category := f.articleCategory()
	a := Article{
		ID:          ArticleID(link),
		Title:       title,
		Description: markup.Truncate(description, maxDescriptionRunes),
		Content:     content,
		URL:         link,
		ImageURL:    ResolveImage(raw.ImageURL, title, category),
		PublishedAt: n.ParseDate(raw.PublishedAt),
		Source: Source{
			ID:   firstNonEmpty(strings.TrimSpace(raw.SourceID), defaultSourceID),
			Name: firstNonEmpty(strings.TrimSpace(raw.SourceName), defaultSourceName),
		},
		Author:   firstNonEmpty(markup.Text(raw.Author), defaultAuthor),
		Category: category,
		Region:   f.articleRegion(),
		Tags:     ExtractTags(title + " " + description),
		ReadTime: ReadTime(content),
	}
	return a, true
}

// ExtractTags returns vocabulary hits in vocabulary order.
func ExtractTags(text string) []string {
	text = strings.ToLower(text)
	tags := make([]string, 0, len(tagVocabulary))
	for _, v := range tagVocabulary {
		if v.words.any(text) {
			tags = append(tags, v.tag)
		}
	}
	return tags
}

// ReadTime is ceil(words/200) minutes, never below one.
func ReadTime(text string) int {
	words := len(strings.Fields(text))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04 -0700",
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -0700",
	time.DateOnly,
}

// ParseDate accepts the date shapes the upstreams emit, including epoch
// seconds or milliseconds, and falls back to the current instant.
func (n *Normalizer) ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return n.now()
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
		if len(s) >= 13 {
			return time.UnixMilli(v).UTC()
		}
		return time.Unix(v, 0).UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return n.now()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
