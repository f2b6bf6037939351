// Package markup turns the HTML fragments upstream feeds embed in their text
// fields into plain text, and sniffs inline images out of them.
package markup

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var strict = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// NewsAPI appends "… [+1234 chars]" to truncated content.
var truncationMarker = regexp.MustCompile(`\s*\[\+\d+ chars\]\s*$`)

// Text strips tags and entities and collapses whitespace.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strict.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// ContentText is Text plus removal of upstream truncation markers.
func ContentText(s string) string {
	return truncationMarker.ReplaceAllString(Text(s), "")
}

// Truncate cuts s to n runes, appending "..." when something was dropped.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}

// FirstImage returns the first absolute http(s) <img> source in an HTML
// fragment, trying lazy-load attributes too.
func FirstImage(fragment string) string {
	if !strings.Contains(fragment, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var found string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
			v, ok := s.Attr(attr)
			if !ok {
				continue
			}
			v = strings.TrimSpace(v)
			if u, err := url.Parse(v); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
				found = v
				return false
			}
		}
		return true
	})
	return found
}
