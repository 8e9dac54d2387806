package sources

import (
	"context"
	"errors"
)

// ErrUnrecognizedLayout means the page was fetched but none of the expected
// markup was found. Callers must not retry it: the markup will not change.
var ErrUnrecognizedLayout = errors.New("unrecognized page layout")

// PageRef points at one comic page. ImageURL is set when the listing already
// exposes the image, otherwise ResolveImage fills it in later.
type PageRef struct {
	URL      string
	ImageURL string
}

// Adapter is the capability set one supported site layout has to provide:
// walking from a page to the pages that follow it, and pulling the image URL
// out of a single page.
type Adapter interface {
	// Name identifies the adapter in logs and summaries.
	Name() string

	// Match reports whether this adapter understands the given URL.
	Match(rawURL string) bool

	// EntryPage returns the entry URL as a readable page when the site
	// presents pages as a linked chain. Listing-style sites return false:
	// their entry URL is an index, not a page.
	EntryPage(entryURL string) (PageRef, bool)

	// NextPages returns the pages that follow current in reading order.
	// Listing sites return the complete ordered set on the first call;
	// linked sites return at most one ref. An empty result means end of
	// series. Returns ErrUnrecognizedLayout when the markup carries none
	// of the expected structure.
	NextPages(ctx context.Context, current string) ([]PageRef, error)

	// ResolveImage extracts the image URL from a page source URL.
	ResolveImage(ctx context.Context, pageURL string) (string, error)
}
