// Package discover walks a source adapter from an entry URL to the ordered
// page list a run will fetch.
package discover

import (
	"context"
	"errors"
	"fmt"

	"github.com/brogergvhs/comicdl/internal/sources"
)

// DefaultMaxPages caps a discovery walk so a malformed next-link loop cannot
// run forever.
const DefaultMaxPages = 1000

// ErrNoPages means the walk finished without finding a single page.
var ErrNoPages = errors.New("no pages discovered")

// Page is one unit of fetch work: a position in reading order plus the URLs
// needed to obtain its image. Indices are contiguous from zero.
type Page struct {
	Index     int
	SourceURL string
	ImageURL  string
}

// Error reports a discovery run that produced no usable pages.
type Error struct {
	EntryURL string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("discovering %s: %v", e.EntryURL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Discoverer struct {
	Adapter  sources.Adapter
	MaxPages int

	// Warnf, when set, receives notes about discovery cut short.
	Warnf func(format string, args ...any)
}

// Discover walks the adapter to a complete ordered page list. A walk that
// errors after at least one page was found is a success with a shortfall:
// the run proceeds with what there is and the summary reports the rest.
func (d *Discoverer) Discover(ctx context.Context, entryURL string) ([]Page, error) {
	maxPages := d.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var pages []Page
	seen := map[string]bool{}

	add := func(ref sources.PageRef) bool {
		key := ref.URL + "\x00" + ref.ImageURL
		if seen[key] {
			return false
		}

		seen[key] = true
		pages = append(pages, Page{
			Index:     len(pages),
			SourceURL: ref.URL,
			ImageURL:  ref.ImageURL,
		})

		return true
	}

	if ref, ok := d.Adapter.EntryPage(entryURL); ok {
		add(ref)
	}

	current := entryURL
	for len(pages) < maxPages {
		if err := ctx.Err(); err != nil {
			return nil, &Error{EntryURL: entryURL, Err: err}
		}

		refs, err := d.Adapter.NextPages(ctx, current)
		if err != nil {
			if len(pages) == 0 {
				return nil, &Error{EntryURL: entryURL, Err: err}
			}

			d.warnf("discovery stopped after %d pages: %v", len(pages), err)
			break
		}

		progressed := false
		for _, ref := range refs {
			if len(pages) >= maxPages {
				d.warnf("discovery capped at %d pages", maxPages)
				break
			}
			if add(ref) {
				progressed = true
			}
		}

		if !progressed {
			break
		}

		next := pages[len(pages)-1].SourceURL
		if next == current {
			// listing adapters leave the source URL on the entry page
			break
		}
		current = next
	}

	if len(pages) == 0 {
		return nil, &Error{EntryURL: entryURL, Err: ErrNoPages}
	}

	return pages, nil
}

func (d *Discoverer) warnf(format string, args ...any) {
	if d.Warnf != nil {
		d.Warnf(format, args...)
	}
}
