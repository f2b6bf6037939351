package news

import (
	"sort"
	"strings"
)

// DedupeAndSort drops every article whose normalized title, URL or id was
// already seen, then orders the rest newest first. Ties keep input order.
func DedupeAndSort(articles []Article) []Article {
	seenTitles := make(map[string]struct{}, len(articles))
	seenURLs := make(map[string]struct{}, len(articles))
	seenIDs := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))

	for _, a := range articles {
		title := strings.ToLower(strings.TrimSpace(a.Title))
		if _, dup := seenTitles[title]; dup {
			continue
		}
		if _, dup := seenURLs[a.URL]; dup {
			continue
		}
		if _, dup := seenIDs[a.ID]; dup {
			continue
		}
		seenTitles[title] = struct{}{}
		seenURLs[a.URL] = struct{}{}
		seenIDs[a.ID] = struct{}{}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}
