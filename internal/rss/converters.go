package rss

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/desinews/internal/markup"
	"github.com/deusflow/desinews/internal/news"
)

// Strategy turns a feed URL into raw items. A chain of strategies is tried
// in order for every feed.
type Strategy interface {
	Name() string
	Items(ctx context.Context, feedURL string) ([]news.RawItem, error)
}

var errNoItems = errors.New("no items")

// flexString decodes the loosely typed fields feed converters emit: plain
// strings, numbers, {"url": ...} style objects, or arrays of those.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
	case '{':
		var obj map[string]flexString
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*s = ""
		for _, k := range []string{"url", "link", "href", "name", "$t", "_"} {
			if v := obj[k]; v != "" {
				*s = v
				break
			}
		}
	case '[':
		var arr []flexString
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		*s = ""
		for _, v := range arr {
			if v != "" {
				*s = v
				break
			}
		}
	case 't', 'f':
		*s = ""
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*s = flexString(n.String())
	}
	return nil
}

func first(values ...flexString) string {
	for _, v := range values {
		if t := strings.TrimSpace(string(v)); t != "" {
			return t
		}
	}
	return ""
}

// imageFrom picks the thumbnail, then the enclosure, then the first <img>
// embedded in the HTML bodies.
func imageFrom(thumbnail, enclosure string, bodies ...string) string {
	if thumbnail != "" {
		return thumbnail
	}
	if enclosure != "" {
		return enclosure
	}
	for _, b := range bodies {
		if img := markup.FirstImage(b); img != "" {
			return img
		}
	}
	return ""
}

// jsonConverter calls a feed-to-JSON web service.
type jsonConverter struct {
	name     string
	endpoint string
	params   func(feedURL string) url.Values
	decode   func(body []byte) ([]news.RawItem, error)
	timeout  time.Duration
	http     *http.Client
}

func (c *jsonConverter) Name() string { return c.name }

func (c *jsonConverter) Items(ctx context.Context, feedURL string) ([]news.RawItem, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse %s endpoint: %w", c.name, err)
	}
	u.RawQuery = c.params(feedURL).Encode()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%s: HTTP %d", c.name, res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", c.name, err)
	}
	items, err := c.decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w", c.name, errNoItems)
	}
	return items, nil
}

// NewRSS2JSON is the primary converter (rss2json.com).
func NewRSS2JSON(endpoint string, count int, timeout time.Duration, hc *http.Client) Strategy {
	return &jsonConverter{
		name:     "rss2json",
		endpoint: endpoint,
		params: func(feedURL string) url.Values {
			return url.Values{"rss_url": {feedURL}, "count": {strconv.Itoa(count)}}
		},
		decode:  decodeRSS2JSON,
		timeout: timeout,
		http:    hc,
	}
}

type rss2jsonItem struct {
	Title       flexString `json:"title"`
	PubDate     flexString `json:"pubDate"`
	Link        flexString `json:"link"`
	GUID        flexString `json:"guid"`
	Author      flexString `json:"author"`
	Creator     flexString `json:"creator"`
	Thumbnail   flexString `json:"thumbnail"`
	Description flexString `json:"description"`
	Content     flexString `json:"content"`
	Summary     flexString `json:"summary"`
	Published   flexString `json:"published"`
	Enclosure   flexString `json:"enclosure"`
}

func decodeRSS2JSON(body []byte) ([]news.RawItem, error) {
	var resp struct {
		Status  string         `json:"status"`
		Message string         `json:"message"`
		Items   []rss2jsonItem `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if resp.Status != "ok" || resp.Items == nil {
		return nil, fmt.Errorf("invalid response status %q: %s", resp.Status, resp.Message)
	}

	items := make([]news.RawItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		description := first(it.Description, it.Content, it.Summary)
		items = append(items, news.RawItem{
			Title:       first(it.Title),
			Description: description,
			URL:         first(it.Link, it.GUID),
			ImageURL:    imageFrom(first(it.Thumbnail), first(it.Enclosure), description, first(it.Content)),
			PublishedAt: first(it.PubDate, it.Published),
			Author:      first(it.Author, it.Creator),
		})
	}
	return items, nil
}

// NewAltConverter is the secondary converter (rss-to-json-serverless-api).
// Its payload shape varies, so item fields are sniffed from several keys.
func NewAltConverter(endpoint string, timeout time.Duration, hc *http.Client) Strategy {
	return &jsonConverter{
		name:     "rss-to-json",
		endpoint: endpoint,
		params: func(feedURL string) url.Values {
			return url.Values{"feedURL": {feedURL}}
		},
		decode:  decodeAlt,
		timeout: timeout,
		http:    hc,
	}
}

type altItem map[string]flexString

func (it altItem) get(keys ...string) string {
	values := make([]flexString, 0, len(keys))
	for _, k := range keys {
		values = append(values, it[k])
	}
	return first(values...)
}

func decodeAlt(body []byte) ([]news.RawItem, error) {
	var resp struct {
		Items   []altItem `json:"items"`
		Entries []altItem `json:"entries"`
		Feed    struct {
			Entries []altItem `json:"entries"`
		} `json:"feed"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	raw := resp.Items
	if len(raw) == 0 {
		raw = resp.Entries
	}
	if len(raw) == 0 {
		raw = resp.Feed.Entries
	}

	items := make([]news.RawItem, 0, len(raw))
	for _, it := range raw {
		description := it.get("description", "content", "summary", "contentSnippet")
		items = append(items, news.RawItem{
			Title:       it.get("title", "name"),
			Description: description,
			URL:         it.get("link", "url", "guid", "id"),
			ImageURL:    imageFrom(it.get("thumbnail", "image"), it.get("enclosure", "enclosures"), description),
			PublishedAt: it.get("pubDate", "published", "date", "isoDate", "created"),
			Author:      it.get("author", "creator", "dc:creator"),
		})
	}
	return items, nil
}

// direct parses the feed itself with gofeed.
type direct struct {
	parser *gofeed.Parser
}

// NewDirect is the last-resort strategy: fetch and parse the feed XML.
func NewDirect(hc *http.Client) Strategy {
	p := gofeed.NewParser()
	p.Client = hc
	p.UserAgent = "desinews/1.0 (+https://github.com/deusflow/desinews)"
	return &direct{parser: p}
}

func (d *direct) Name() string { return "direct" }

func (d *direct) Items(ctx context.Context, feedURL string) ([]news.RawItem, error) {
	feed, err := d.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, errNoItems
	}

	items := make([]news.RawItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		var thumbnail, enclosure, author string
		if it.Image != nil {
			thumbnail = it.Image.URL
		}
		for _, enc := range it.Enclosures {
			if enc != nil && enc.URL != "" && (enc.Type == "" || strings.HasPrefix(enc.Type, "image/")) {
				enclosure = enc.URL
				break
			}
		}
		if it.Author != nil {
			author = it.Author.Name
		} else if len(it.Authors) > 0 && it.Authors[0] != nil {
			author = it.Authors[0].Name
		}

		published := it.Published
		if it.PublishedParsed != nil {
			published = it.PublishedParsed.UTC().Format(time.RFC3339)
		} else if published == "" && it.UpdatedParsed != nil {
			published = it.UpdatedParsed.UTC().Format(time.RFC3339)
		}

		link := it.Link
		if link == "" {
			link = it.GUID
		}

		items = append(items, news.RawItem{
			Title:       it.Title,
			Description: it.Description,
			Content:     it.Content,
			URL:         link,
			ImageURL:    imageFrom(thumbnail, enclosure, it.Content, it.Description),
			PublishedAt: published,
			Author:      author,
		})
	}
	return items, nil
}
