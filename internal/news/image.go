package news

import (
	"encoding/base64"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Sentinels some upstreams emit instead of a real picture.
var brokenImagePatterns = []string{
	"removed.png",
	"default.jpg",
	"placeholder",
	"no-image",
	"image-not-found",
	"facebook.com/tr",
	"sb.scorecardresearch.com",
}

var (
	imageExtension = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|svg)(\?.*)?$`)
	imageHostToken = regexp.MustCompile(`(?i)(images?|media|cdn|static|assets|img|photo|picture)`)
)

// IsUsableImageURL applies the upstream image acceptance policy.
func IsUsableImageURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "undefined" {
		return false
	}
	lower := strings.ToLower(raw)
	if strings.HasSuffix(lower, "/removed") {
		return false
	}
	for _, p := range brokenImagePatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return imageExtension.MatchString(raw) || imageHostToken.MatchString(raw)
}

type label struct {
	text  string
	words *keywordSet
}

// Checked in order; the first hit wins.
var placeholderLabels = []label{
	{"AI News", newKeywordSet("ai", "artificial", "machine learning", "ml")},
	{"Startup", newKeywordSet("startup", "funding", "unicorn", "venture")},
	{"Google", newKeywordSet("google", "alphabet")},
	{"Microsoft", newKeywordSet("microsoft")},
	{"OpenAI", newKeywordSet("openai", "chatgpt")},
	{"Tesla", newKeywordSet("tesla")},
	{"Meta", newKeywordSet("meta", "facebook")},
	{"Amazon", newKeywordSet("amazon")},
	{"Apple", newKeywordSet("apple")},
	{"NVIDIA", newKeywordSet("nvidia")},
	{"TCS", newKeywordSet("tcs")},
	{"Infosys", newKeywordSet("infosys")},
	{"Wipro", newKeywordSet("wipro")},
	{"Reliance", newKeywordSet("reliance")},
	{"Flipkart", newKeywordSet("flipkart")},
	{"Paytm", newKeywordSet("paytm")},
	{"BYJU'S", newKeywordSet("byju")},
	{"Zomato", newKeywordSet("zomato")},
	{"Swiggy", newKeywordSet("swiggy")},
	{"Robotics", newKeywordSet("robot", "automation")},
	{"Crypto", newKeywordSet("crypto", "bitcoin", "blockchain")},
	{"Cloud", newKeywordSet("cloud")},
	{"Mobile", newKeywordSet("mobile", "app")},
}

// PlaceholderLabel picks the short caption drawn on a generated image.
func PlaceholderLabel(title string, c Category) string {
	text := strings.ToLower(title)
	for _, l := range placeholderLabels {
		if l.words.any(text) {
			return l.text
		}
	}
	switch c {
	case CategoryAI:
		return "AI News"
	case CategoryStartup:
		return "Startup"
	}
	return "Tech News"
}

// PlaceholderColor is the background colour for a category.
func PlaceholderColor(c Category) string {
	switch c {
	case CategoryAI:
		return "#0066CC"
	case CategoryStartup:
		return "#00CC66"
	}
	return "#6B7280"
}

// lighten raises each RGB channel of a #rrggbb colour by percent of 255.
func lighten(hex string, percent int) string {
	n, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return hex
	}
	amt := int(float64(percent)*2.55 + 0.5)
	clamp := func(v int) int {
		if v > 255 {
			return 255
		}
		if v < 0 {
			return 0
		}
		return v
	}
	r := clamp(int(n>>16) + amt)
	g := clamp(int(n>>8&0xFF) + amt)
	b := clamp(int(n&0xFF) + amt)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="200" viewBox="0 0 400 200">` +
	`<defs><linearGradient id="grad" x1="0%%" y1="0%%" x2="100%%" y2="100%%">` +
	`<stop offset="0%%" style="stop-color:%s;stop-opacity:1"/>` +
	`<stop offset="100%%" style="stop-color:%s;stop-opacity:1"/>` +
	`</linearGradient></defs>` +
	`<rect width="400" height="200" fill="url(#grad)"/>` +
	`<circle cx="200" cy="80" r="25" fill="white" opacity="0.1"/>` +
	`<text x="50%%" y="65%%" font-family="Arial, sans-serif" font-size="18" font-weight="bold" fill="white" text-anchor="middle" dominant-baseline="middle">%s</text>` +
	`<text x="50%%" y="80%%" font-family="Arial, sans-serif" font-size="12" fill="white" text-anchor="middle" dominant-baseline="middle" opacity="0.8">News Article</text>` +
	`</svg>`

// PlaceholderImage renders the inline SVG data URI for a title and category.
// The output depends only on its inputs.
func PlaceholderImage(title string, c Category) string {
	color := PlaceholderColor(c)
	svg := fmt.Sprintf(placeholderSVG, color, lighten(color, 20), html.EscapeString(PlaceholderLabel(title, c)))
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

// ResolveImage keeps a usable upstream image or falls back to a placeholder.
func ResolveImage(upstream, title string, c Category) string {
	if IsUsableImageURL(upstream) {
		return strings.TrimSpace(upstream)
	}
	return PlaceholderImage(title, c)
}
