package news

import (
	"regexp"
	"strings"
)

// keywordSet matches a fixed vocabulary against lowercase text. Phrases and
// long tokens are plain substring matches; short tokens (<=3 bytes) need word
// boundaries so "ai" does not fire on "said".
type keywordSet struct {
	words []string
	short map[string]*regexp.Regexp
}

func newKeywordSet(words ...string) *keywordSet {
	ks := &keywordSet{short: make(map[string]*regexp.Regexp)}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		ks.words = append(ks.words, w)
		if !strings.Contains(w, " ") && len(w) <= 3 {
			ks.short[w] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
		}
	}
	return ks
}

func (ks *keywordSet) match(text, w string) bool {
	if re, ok := ks.short[w]; ok {
		return re.MatchString(text)
	}
	return strings.Contains(text, w)
}

// any reports whether lowercase text contains at least one keyword.
func (ks *keywordSet) any(text string) bool {
	for _, w := range ks.words {
		if ks.match(text, w) {
			return true
		}
	}
	return false
}

// Query phrase lists used to build upstream search strings.
var (
	aiQueryPhrases = []string{
		`"artificial intelligence"`, `"machine learning"`, `"deep learning"`, `"neural network"`,
		`"AI technology"`, `"AI model"`, `"generative AI"`, `"ChatGPT"`, `"OpenAI"`,
	}
	startupQueryPhrases = []string{
		"startup", `"venture capital"`, `"series A"`, `"series B"`, `"series C"`,
		"funding", `"seed round"`, "unicorn",
	}
	indiaAIQueryTerms = []string{
		"India", "Indian", "Mumbai", "Bangalore", "Delhi", `"Tech Mahindra"`, "Infosys", "TCS", "Wipro",
		`"IIT"`, `"Indian Institute"`,
	}
	indiaStartupQueryTerms = []string{
		"India", "Indian", "Mumbai", "Bangalore", "Delhi", "Hyderabad", `"Indian startup"`,
		`"India funding"`, "Flipkart", "Paytm", "Zomato", "Swiggy", `"YourStory"`, `"Inc42"`,
	}
)

// SearchQuery builds the boolean upstream query for a filter.
func SearchQuery(f Filter) string {
	f = f.Normalize()
	var q string
	switch f.Category {
	case CategoryAI:
		q = strings.Join(aiQueryPhrases, " OR ")
	case CategoryStartup:
		q = strings.Join(startupQueryPhrases, " OR ")
	default:
		q = "technology"
	}
	if f.Region == RegionIndia {
		switch f.Category {
		case CategoryAI:
			q += " AND (" + strings.Join(indiaAIQueryTerms, " OR ") + ")"
		case CategoryStartup:
			q += " AND (" + strings.Join(indiaStartupQueryTerms, " OR ") + ")"
		default:
			q += " AND India"
		}
	}
	return q
}

// SimpleQuery is the single-keyword query used after an upstream rejects the
// full one as malformed.
func SimpleQuery(f Filter) string {
	if f.Normalize().Category == CategoryAI {
		return `"artificial intelligence"`
	}
	return "startup"
}
