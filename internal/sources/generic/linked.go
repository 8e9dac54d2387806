package generic

import (
	"context"
	"fmt"
	"net/http"

	"github.com/brogergvhs/comicdl/internal/sources"
)

var _ sources.Adapter = (*Linked)(nil)

// Linked adapts sites where each page links to the one after it. The entry
// URL is page zero and the chain ends at the first page without a next link.
type Linked struct {
	scraper
}

func NewLinked(c *http.Client, debug bool, cfg Config) *Linked {
	return &Linked{scraper: newScraper(c, debug, cfg)}
}

func (l *Linked) Name() string { return "generic-linked" }

func (l *Linked) Match(rawURL string) bool { return isHTTPURL(rawURL) }

func (l *Linked) EntryPage(entryURL string) (sources.PageRef, bool) {
	return sources.PageRef{URL: entryURL}, true
}

// NextPages follows the next-page link. An absent link means end of series,
// not a fault: final pages legitimately have nowhere to point.
func (l *Linked) NextPages(ctx context.Context, current string) ([]sources.PageRef, error) {
	doc, err := l.fetchDOM(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", current, err)
	}

	next := l.nextLink(doc, current)
	if next == "" {
		return nil, nil
	}

	return []sources.PageRef{{URL: next}}, nil
}

func (l *Linked) ResolveImage(ctx context.Context, pageURL string) (string, error) {
	doc, err := l.fetchDOM(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	urls := l.images(doc, pageURL)
	if len(urls) == 0 {
		return "", fmt.Errorf("no %q image on %s: %w", l.cfg.ImageSelector, pageURL, sources.ErrUnrecognizedLayout)
	}

	return urls[0], nil
}
