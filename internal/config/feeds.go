package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Feed is one curated regional RSS source.
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// FeedsConfig is the YAML feed catalogue, keyed by category:
//
//	feeds:
//	  ai:
//	    - name: Analytics India Magazine
//	      url: https://analyticsindiamag.com/feed/
type FeedsConfig struct {
	Feeds map[string][]Feed `yaml:"feeds"`
}

// DefaultFeeds is used when no catalogue file exists.
func DefaultFeeds() *FeedsConfig {
	return &FeedsConfig{Feeds: map[string][]Feed{
		"ai": {
			{Name: "Analytics India Magazine", URL: "https://analyticsindiamag.com/feed/"},
			{Name: "Economic Times", URL: "https://economictimes.indiatimes.com/tech/rssfeeds/13357270.cms"},
			{Name: "LiveMint", URL: "https://www.livemint.com/rss/technology"},
		},
		"startup": {
			{Name: "Inc42", URL: "https://inc42.com/feed/"},
			{Name: "YourStory", URL: "https://yourstory.com/feed"},
			{Name: "Entrackr", URL: "https://entrackr.com/feed/"},
		},
	}}
}

// LoadFeeds reads the catalogue at path. A missing file yields the built-in
// defaults; a malformed one is an error.
func LoadFeeds(path string) (*FeedsConfig, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultFeeds(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open feeds config: %w", err)
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode feeds config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("feeds config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *FeedsConfig) Validate() error {
	for category, feeds := range c.Feeds {
		for i, feed := range feeds {
			if strings.TrimSpace(feed.URL) == "" {
				return fmt.Errorf("feed %d under %q has no url", i, category)
			}
		}
	}
	return nil
}

// For returns the feeds configured for a category, with names filled in.
// Unknown or empty categories have no feeds.
func (c *FeedsConfig) For(category string) []Feed {
	if c == nil {
		return nil
	}
	feeds := c.Feeds[strings.ToLower(category)]
	out := make([]Feed, 0, len(feeds))
	for _, f := range feeds {
		if f.Name == "" {
			f.Name = SourceName(f.URL)
		}
		out = append(out, f)
	}
	return out
}

var knownSources = []struct{ host, name string }{
	{"economictimes", "Economic Times"},
	{"livemint", "LiveMint"},
	{"timesofindia", "Times of India"},
	{"thehindu", "The Hindu"},
	{"business-standard", "Business Standard"},
	{"analyticsindiamag", "Analytics India Magazine"},
	{"inc42", "Inc42"},
	{"yourstory", "YourStory"},
	{"entrackr", "Entrackr"},
	{"vccircle", "VCCircle"},
	{"medianama", "MediaNama"},
	{"businesstoday", "Business Today"},
	{"financialexpress", "Financial Express"},
	{"news18", "News18"},
	{"zeenews", "Zee Business"},
}

// SourceName maps a known Indian feed URL to its publisher name.
func SourceName(feedURL string) string {
	for _, s := range knownSources {
		if strings.Contains(feedURL, s.host) {
			return s.name
		}
	}
	return "Indian Source"
}
