package generic

import (
	"context"
	"fmt"
	"net/http"

	"github.com/brogergvhs/comicdl/internal/sources"
)

var _ sources.Adapter = (*Gallery)(nil)

// Gallery adapts sites where the entry URL is an index page carrying every
// page image, the model the original single-page comic dumps use.
type Gallery struct {
	scraper
}

func NewGallery(c *http.Client, debug bool, cfg Config) *Gallery {
	return &Gallery{scraper: newScraper(c, debug, cfg)}
}

func (g *Gallery) Name() string { return "generic-gallery" }

func (g *Gallery) Match(rawURL string) bool { return isHTTPURL(rawURL) }

// EntryPage reports false: the entry URL is a listing, not a readable page.
func (g *Gallery) EntryPage(string) (sources.PageRef, bool) {
	return sources.PageRef{}, false
}

func (g *Gallery) NextPages(ctx context.Context, current string) ([]sources.PageRef, error) {
	doc, err := g.fetchDOM(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", current, err)
	}

	urls := g.images(doc, current)
	if len(urls) == 0 {
		return nil, fmt.Errorf("no %q images on %s: %w", g.cfg.ImageSelector, current, sources.ErrUnrecognizedLayout)
	}

	refs := make([]sources.PageRef, len(urls))
	for i, u := range urls {
		refs[i] = sources.PageRef{URL: current, ImageURL: u}
	}

	return refs, nil
}

func (g *Gallery) ResolveImage(ctx context.Context, pageURL string) (string, error) {
	doc, err := g.fetchDOM(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	urls := g.images(doc, pageURL)
	if len(urls) == 0 {
		return "", fmt.Errorf("no image on %s: %w", pageURL, sources.ErrUnrecognizedLayout)
	}

	return urls[0], nil
}
