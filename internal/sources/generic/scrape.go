package generic

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/comicdl/internal/util"
)

const (
	DefaultImageSelector = "img"
	DefaultURLAttr       = "src"
	DefaultNextSelector  = `a[rel="next"], a.next`
	DefaultNumberPattern = `(\d+)`
)

// Config carries the markup knobs for the generic adapters. The zero value
// works for plain <img src> galleries with rel="next" pagination.
type Config struct {
	ImageSelector string
	URLAttr       string
	NextSelector  string
	AllowExt      []string

	// NumberAttr names an image attribute carrying the page number
	// (sites often use id="page-12"). When set, gallery images sort by
	// that number instead of document order.
	NumberAttr    string
	NumberPattern string
}

func (c Config) withDefaults() Config {
	if c.ImageSelector == "" {
		c.ImageSelector = DefaultImageSelector
	}
	if c.URLAttr == "" {
		c.URLAttr = DefaultURLAttr
	}
	if c.NextSelector == "" {
		c.NextSelector = DefaultNextSelector
	}
	if len(c.AllowExt) == 0 {
		c.AllowExt = []string{"jpg", "jpeg", "png", "webp", "gif"}
	}
	if c.NumberAttr != "" && c.NumberPattern == "" {
		c.NumberPattern = DefaultNumberPattern
	}

	return c
}

// scraper is the fetch-and-extract core shared by Gallery and Linked.
type scraper struct {
	client   *http.Client
	cfg      Config
	allowed  *regexp.Regexp
	numberRe *regexp.Regexp
	debug    bool
}

func newScraper(c *http.Client, debug bool, cfg Config) scraper {
	cfg = cfg.withDefaults()

	var numberRe *regexp.Regexp
	if cfg.NumberAttr != "" {
		numberRe, _ = regexp.Compile(cfg.NumberPattern)
	}

	return scraper{
		client:   c,
		cfg:      cfg,
		allowed:  buildExtRegex(normalizeExtList(cfg.AllowExt)),
		numberRe: numberRe,
		debug:    debug,
	}
}

func (s *scraper) fetchDOM(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := util.DoWithRetry(s.client, req, 3, 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

type pageImage struct {
	url      string
	number   int
	numbered bool
}

// images returns the image URLs found under the configured selector,
// deduplicated and resolved against base. Order is document order, unless
// a number attribute is configured: then numbered images sort by their
// extracted number and unnumbered ones follow in document order.
func (s *scraper) images(doc *goquery.Document, base string) []string {
	var found []pageImage
	seen := map[string]bool{}

	add := func(raw string, img *goquery.Selection) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "javascript:") || strings.HasPrefix(raw, "data:") {
			return
		}

		u := resolveURL(base, raw)
		lu := strings.ToLower(u)
		if !s.allowed.MatchString(lu) {
			return
		}
		if isDecorative(lu) {
			if s.debug {
				fmt.Printf("[debug] skipping non-page image: %s\n", u)
			}
			return
		}
		if seen[u] {
			return
		}

		seen[u] = true
		num, numbered := s.pageNumber(img)
		found = append(found, pageImage{url: u, number: num, numbered: numbered})
	}

	doc.Find(s.cfg.ImageSelector).Each(func(_ int, img *goquery.Selection) {
		if ss, ok := img.Attr("srcset"); ok && strings.TrimSpace(ss) != "" {
			for p := range strings.SplitSeq(ss, ",") {
				parts := strings.Fields(strings.TrimSpace(p))
				if len(parts) > 0 {
					add(parts[0], img)
					break
				}
			}
		}

		for _, k := range []string{s.cfg.URLAttr, "data-src", "data-lazy-src", "data-original"} {
			if v, ok := img.Attr(k); ok && strings.TrimSpace(v) != "" {
				add(v, img)
				break
			}
		}
	})

	if s.numberRe != nil {
		sort.SliceStable(found, func(i, j int) bool {
			if found[i].numbered != found[j].numbered {
				return found[i].numbered
			}
			return found[i].numbered && found[i].number < found[j].number
		})
	}

	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.url
	}

	return out
}

// pageNumber extracts the reading-order number from the configured
// attribute, e.g. id="page-12".
func (s *scraper) pageNumber(img *goquery.Selection) (int, bool) {
	if s.numberRe == nil {
		return 0, false
	}

	v, ok := img.Attr(s.cfg.NumberAttr)
	if !ok {
		return 0, false
	}

	m := s.numberRe.FindStringSubmatch(v)
	if m == nil {
		return 0, false
	}

	g := m[0]
	if len(m) > 1 {
		g = m[1]
	}

	n, err := strconv.Atoi(g)
	if err != nil {
		return 0, false
	}

	return n, true
}

// nextLink returns the resolved target of the first next-page link, or ""
// when the page has none.
func (s *scraper) nextLink(doc *goquery.Document, base string) string {
	var next string

	doc.Find(s.cfg.NextSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "javascript:") || href == "#" {
			return true
		}

		next = resolveURL(base, href)
		return false
	})

	if next == base {
		return ""
	}

	return next
}

func isDecorative(lu string) bool {
	return strings.Contains(lu, "logo") ||
		strings.Contains(lu, "cover") ||
		strings.Contains(lu, "profile") ||
		strings.Contains(lu, "avatar") ||
		strings.Contains(lu, "banner")
}

func normalizeExtList(list []string) []string {
	out := []string{}
	for _, ext := range list {
		ext = strings.ToLower(strings.TrimSpace(ext))
		ext = strings.TrimPrefix(ext, ".")
		if ext != "" {
			out = append(out, ext)
		}
	}

	return out
}

func buildExtRegex(exts []string) *regexp.Regexp {
	if len(exts) == 0 {
		return regexp.MustCompile(`$a`)
	}

	return regexp.MustCompile(`(?i)\.(` + strings.Join(exts, "|") + `)(?:\?[^?]*)?$`)
}

func resolveURL(baseURL, href string) string {
	if href == "" {
		return baseURL
	}

	u, err := url.Parse(href)
	if err == nil && u.IsAbs() {
		return u.String()
	}
	if err != nil {
		return href
	}

	b, err := url.Parse(baseURL)
	if err != nil {
		return href
	}

	return b.ResolveReference(u).String()
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return u.Scheme == "http" || u.Scheme == "https"
}
