// Package stubsource provides a deterministic in-memory sources.Adapter.
// It backs the stub:// URL scheme in tests and gives end-to-end runs a
// source with no markup parsing involved.
package stubsource

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/brogergvhs/comicdl/internal/sources"
)

var _ sources.Adapter = (*Adapter)(nil)

// Adapter serves stub://<name>/<count> entry URLs. It lists count pages whose
// image URLs live under ImageBase, one <index>.png each. ImageBase normally
// points at an httptest server.
type Adapter struct {
	ImageBase string

	// ListErr, when set, is returned from NextPages instead of pages.
	ListErr error
}

func (a *Adapter) Name() string { return "stub" }

func (a *Adapter) Match(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme == "stub"
}

func (a *Adapter) EntryPage(string) (sources.PageRef, bool) {
	return sources.PageRef{}, false
}

func (a *Adapter) NextPages(_ context.Context, current string) ([]sources.PageRef, error) {
	if a.ListErr != nil {
		return nil, a.ListErr
	}

	n, err := pageCount(current)
	if err != nil {
		return nil, err
	}

	refs := make([]sources.PageRef, n)
	for i := range refs {
		refs[i] = sources.PageRef{
			URL:      current,
			ImageURL: fmt.Sprintf("%s/%d.png", strings.TrimSuffix(a.ImageBase, "/"), i),
		}
	}

	return refs, nil
}

func (a *Adapter) ResolveImage(_ context.Context, pageURL string) (string, error) {
	return "", fmt.Errorf("stub pages carry image URLs already: %w", sources.ErrUnrecognizedLayout)
}

func pageCount(rawURL string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, err
	}

	last := u.Path
	if i := strings.LastIndex(last, "/"); i >= 0 {
		last = last[i+1:]
	}

	n, err := strconv.Atoi(last)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("stub URL %q needs a trailing page count: %w", rawURL, sources.ErrUnrecognizedLayout)
	}

	return n, nil
}
