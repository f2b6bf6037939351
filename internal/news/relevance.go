package news

import (
	"net/url"
	"strings"
)

// minContextLen is how long title+description must be before a broad
// (non-explicit) keyword counts as a hit.
const minContextLen = 50

var offTopicDomains = []string{
	"onefootball.com", "espn.com", "goal.com", "skysports.com", "marca.com", "espnfc.com",
	"football365.com", "transfermarkt.com", "premierleague.com", "uefa.com", "fifa.com",
}

var (
	aiKeywords = newKeywordSet(
		"artificial intelligence", "ai", "machine learning", "ml",
		"deep learning", "neural network", "chatgpt", "openai",
		"generative ai", "ai model", "ai technology", "automation",
		"robotics", "algorithm", "data science", "computer vision",
		"natural language", "gpt", "llm", "large language model",
	)
	techKeywords = newKeywordSet(
		"technology", "tech", "software", "digital", "innovation",
		"microsoft", "google", "apple", "meta", "nvidia", "tesla",
	)
	sportsKeywords = newKeywordSet(
		"football", "soccer", "madrid", "barcelona", "premier league",
		"champions league", "fifa", "uefa", "goal", "kit", "jersey",
		"match", "game", "score", "player", "team", "stadium",
	)
	startupKeywords = newKeywordSet(
		"startup", "venture capital", "funding", "investment",
		"series a", "series b", "series c", "seed round",
		"unicorn", "valuation", "ipo", "acquisition",
		"entrepreneur", "founder", "fintech", "saas",
	)
	businessKeywords = newKeywordSet(
		"business", "company", "enterprise", "innovation",
		"tech company", "technology company", "silicon valley",
	)

	// Regional feeds are already topical, so their vocabularies are broad.
	regionalAIKeywords = newKeywordSet(
		"artificial intelligence", "ai", "machine learning", "ml", "deep learning",
		"neural network", "chatgpt", "openai", "generative ai", "automation",
		"robotics", "algorithm", "data science", "analytics", "tech", "technology",
		"digital", "innovation", "software", "platform", "cloud", "api",
	)
	regionalStartupKeywords = newKeywordSet(
		"startup", "funding", "investment", "venture", "series", "seed",
		"unicorn", "valuation", "ipo", "acquisition", "entrepreneur", "founder",
		"fintech", "saas", "business", "company", "firm", "raise", "capital",
		"growth", "expansion", "launch", "partnership",
	)
)

// IsOffTopicDomain reports whether link points at a deny-listed host.
func IsOffTopicDomain(link string) bool {
	if link == "" {
		return false
	}
	host := strings.ToLower(link)
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		host = strings.ToLower(u.Hostname())
	}
	for _, d := range offTopicDomains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

func itemText(item RawItem) string {
	return strings.ToLower(strings.TrimSpace(item.Title + " " + item.Description))
}

// IsRelevant is the strict topical predicate applied to news-API items.
func IsRelevant(item RawItem, f Filter) bool {
	if strings.TrimSpace(item.Title) == "" && strings.TrimSpace(item.Description) == "" {
		return false
	}
	if IsOffTopicDomain(item.URL) {
		return false
	}
	text := itemText(item)

	switch f.Normalize().Category {
	case CategoryAI:
		if sportsKeywords.any(text) {
			return false
		}
		return aiKeywords.any(text) || (techKeywords.any(text) && len(text) > minContextLen)
	case CategoryStartup:
		return startupKeywords.any(text) || (businessKeywords.any(text) && len(text) > minContextLen)
	}
	return true
}

// IsRelevantRegional is the looser predicate used for curated regional feeds.
func IsRelevantRegional(item RawItem, f Filter) bool {
	if IsOffTopicDomain(item.URL) {
		return false
	}
	text := itemText(item)

	switch f.Normalize().Category {
	case CategoryAI:
		return regionalAIKeywords.any(text)
	case CategoryStartup:
		return regionalStartupKeywords.any(text)
	}
	return true
}
