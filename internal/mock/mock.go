// Package mock provides function-field test doubles for the run
// collaborators and the source adapter interface.
package mock

import (
	"context"

	"github.com/brogergvhs/comicdl/internal/discover"
	"github.com/brogergvhs/comicdl/internal/fetch"
	"github.com/brogergvhs/comicdl/internal/sources"
)

type Discoverer struct {
	DiscoverFn func(ctx context.Context, entryURL string) ([]discover.Page, error)
}

func (d *Discoverer) Discover(ctx context.Context, entryURL string) ([]discover.Page, error) {
	return d.DiscoverFn(ctx, entryURL)
}

type Fetcher struct {
	FetchAllFn func(ctx context.Context, pages []discover.Page) []fetch.Result
}

func (f *Fetcher) FetchAll(ctx context.Context, pages []discover.Page) []fetch.Result {
	return f.FetchAllFn(ctx, pages)
}

type Assembler struct {
	BuildFn func(results []fetch.Result, dest string) error
}

func (a *Assembler) Build(results []fetch.Result, dest string) error {
	return a.BuildFn(results, dest)
}

// Adapter implements sources.Adapter with overridable behavior. The zero
// value matches everything and reports the entry URL as a listing.
type Adapter struct {
	NameFn         func() string
	MatchFn        func(rawURL string) bool
	EntryPageFn    func(entryURL string) (sources.PageRef, bool)
	NextPagesFn    func(ctx context.Context, current string) ([]sources.PageRef, error)
	ResolveImageFn func(ctx context.Context, pageURL string) (string, error)
}

func (a *Adapter) Name() string {
	if a.NameFn == nil {
		return "mock"
	}
	return a.NameFn()
}

func (a *Adapter) Match(rawURL string) bool {
	if a.MatchFn == nil {
		return true
	}
	return a.MatchFn(rawURL)
}

func (a *Adapter) EntryPage(entryURL string) (sources.PageRef, bool) {
	if a.EntryPageFn == nil {
		return sources.PageRef{}, false
	}
	return a.EntryPageFn(entryURL)
}

func (a *Adapter) NextPages(ctx context.Context, current string) ([]sources.PageRef, error) {
	if a.NextPagesFn == nil {
		return nil, nil
	}
	return a.NextPagesFn(ctx, current)
}

func (a *Adapter) ResolveImage(ctx context.Context, pageURL string) (string, error) {
	if a.ResolveImageFn == nil {
		return "", nil
	}
	return a.ResolveImageFn(ctx, pageURL)
}
