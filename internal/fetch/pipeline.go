// Package fetch retrieves page images concurrently. A bounded worker pool
// consumes the discovered page list; every page resolves and downloads
// independently, and results land in an index-addressed slice so output
// order never depends on completion order.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/brogergvhs/comicdl/internal/discover"
	"github.com/brogergvhs/comicdl/internal/sources"
)

const (
	DefaultWorkers  = 4
	DefaultAttempts = 3
	DefaultDelay    = 500 * time.Millisecond
	DefaultTimeout  = 30 * time.Second
)

// Result is the outcome for one page: either image bytes plus the detected
// extension, or the failure that exhausted its retries. Never mutated after
// FetchAll returns it.
type Result struct {
	Index int
	Data  []byte
	Ext   string
	Err   error
}

// ImageResolver turns a page source URL into its image URL. Satisfied by
// sources.Adapter.
type ImageResolver interface {
	ResolveImage(ctx context.Context, pageURL string) (string, error)
}

// ProgressFunc receives running fetch totals. Called under the pipeline's
// lock; keep it cheap.
type ProgressFunc func(done, total int, bytes int64)

type Pipeline struct {
	Client   *http.Client
	Resolver ImageResolver
	Limiter  *DomainLimiter

	Workers  int
	Attempts uint
	Delay    time.Duration
	Timeout  time.Duration

	Progress ProgressFunc
}

// FetchAll fetches every page once and returns one Result per page, index
// for index. It never fails as a whole: per-page failures are recorded in
// place and cancellation marks the pages it stranded.
func (p *Pipeline) FetchAll(ctx context.Context, pages []discover.Page) []Result {
	results := make([]Result, len(pages))

	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(pages) && len(pages) > 0 {
		workers = len(pages)
	}

	var mu sync.Mutex
	var done int
	var bytesDone int64

	finish := func(i int, res Result) {
		mu.Lock()
		results[i] = res
		done++
		if p.Progress != nil {
			p.Progress(done, len(pages), bytesDone)
		}
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				finish(i, Result{Index: pages[i].Index, Err: err})
				return nil
			}

			var last int64
			streamed := func(total int64) {
				delta := total - last
				if delta <= 0 {
					return
				}
				last = total

				mu.Lock()
				bytesDone += delta
				if p.Progress != nil {
					p.Progress(done, len(pages), bytesDone)
				}
				mu.Unlock()
			}

			finish(i, p.fetchPage(ctx, pages[i], streamed))
			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (p *Pipeline) fetchPage(ctx context.Context, page discover.Page, streamed func(int64)) Result {
	res := Result{Index: page.Index}

	imageURL := page.ImageURL
	if imageURL == "" {
		err := p.withRetry(ctx, func() error {
			u, err := p.Resolver.ResolveImage(ctx, page.SourceURL)
			if err != nil {
				if errors.Is(err, sources.ErrUnrecognizedLayout) {
					return retry.Unrecoverable(err)
				}
				return err
			}

			imageURL = u
			return nil
		})
		if err != nil {
			res.Err = fmt.Errorf("page %d: resolve image: %w", page.Index, err)
			return res
		}
	}

	err := p.withRetry(ctx, func() error {
		data, ext, err := p.download(ctx, imageURL, page.SourceURL, streamed)
		if err != nil {
			return err
		}

		res.Data = data
		res.Ext = ext
		return nil
	})
	if err != nil {
		res.Data = nil
		res.Err = fmt.Errorf("page %d: download %s: %w", page.Index, imageURL, err)
	}

	return res
}

func (p *Pipeline) withRetry(ctx context.Context, fn retry.RetryableFunc) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = DefaultAttempts
	}
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}

	return retry.Do(fn,
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

func (p *Pipeline) download(ctx context.Context, imageURL, referer string, streamed func(int64)) ([]byte, string, error) {
	if p.Limiter != nil {
		if host := hostOf(imageURL); host != "" {
			if err := p.Limiter.Wait(ctx, host); err != nil {
				return nil, "", retry.Unrecoverable(err)
			}
		}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, "", retry.Unrecoverable(err)
	}

	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP %d", resp.StatusCode)
		if !transientStatus(resp.StatusCode) {
			err = retry.Unrecoverable(err)
		}
		return nil, "", err
	}

	var mediaType string
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, _ := mime.ParseMediaType(ct); mt != "" {
			if !strings.HasPrefix(mt, "image/") {
				return nil, "", retry.Unrecoverable(fmt.Errorf("unexpected MIME: %s", ct))
			}
			mediaType = mt
		}
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := copyWithProgress(&buf, resp.Body, streamed); err != nil {
		return nil, "", err
	}
	if buf.Len() == 0 {
		return nil, "", retry.Unrecoverable(fmt.Errorf("empty image body"))
	}

	return buf.Bytes(), extFor(mediaType, imageURL), nil
}

// transientStatus mirrors the retry taxonomy: server-side and throttling
// responses are worth another attempt, other 4xx are not.
func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}

	return code >= 500
}

func extFor(mediaType, imageURL string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/avif":
		return ".avif"
	}

	if u, err := url.Parse(imageURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return strings.ToLower(ext)
		}
	}

	return ".jpg"
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return u.Hostname()
}
