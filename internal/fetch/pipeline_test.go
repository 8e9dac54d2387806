package fetch_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/comicdl/internal/discover"
	"github.com/brogergvhs/comicdl/internal/fetch"
	"github.com/brogergvhs/comicdl/internal/mock"
	"github.com/brogergvhs/comicdl/internal/sources"
)

func fastPipeline(client *http.Client) *fetch.Pipeline {
	return &fetch.Pipeline{
		Client:  client,
		Workers: 4,
		Delay:   time.Millisecond,
		Timeout: 5 * time.Second,
	}
}

func pagesFor(srv *httptest.Server, n int) []discover.Page {
	pages := make([]discover.Page, n)
	for i := range pages {
		pages[i] = discover.Page{
			Index:     i,
			SourceURL: srv.URL,
			ImageURL:  fmt.Sprintf("%s/img/%d.png", srv.URL, i),
		}
	}
	return pages
}

func TestPipeline_FetchAll(t *testing.T) {
	t.Parallel()

	t.Run("results keep index order regardless of completion order", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var i int
			_, _ = fmt.Sscanf(r.URL.Path, "/img/%d.png", &i)
			// later pages answer faster
			time.Sleep(time.Duration(10-i) * time.Millisecond)
			w.Header().Set("Content-Type", "image/png")
			_, _ = fmt.Fprintf(w, "png-bytes-%d", i)
		}))
		defer srv.Close()

		p := fastPipeline(srv.Client())
		results := p.FetchAll(context.Background(), pagesFor(srv, 8))

		require.Len(t, results, 8)
		for i, res := range results {
			require.NoError(t, res.Err)
			assert.Equal(t, i, res.Index)
			assert.Equal(t, fmt.Sprintf("png-bytes-%d", i), string(res.Data))
			assert.Equal(t, ".png", res.Ext)
		}
	})

	t.Run("transient failure retries and succeeds invisibly", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		}))
		defer srv.Close()

		p := fastPipeline(srv.Client())
		results := p.FetchAll(context.Background(), pagesFor(srv, 1))

		require.NoError(t, results[0].Err)
		assert.Equal(t, "jpeg-bytes", string(results[0].Data))
		assert.Equal(t, ".jpg", results[0].Ext)
		assert.Equal(t, int64(2), hits.Load())
	})

	t.Run("404 fails the page without retrying", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.NotFound(w, r)
		}))
		defer srv.Close()

		p := fastPipeline(srv.Client())
		results := p.FetchAll(context.Background(), pagesFor(srv, 1))

		require.Error(t, results[0].Err)
		assert.Contains(t, results[0].Err.Error(), "HTTP 404")
		assert.Equal(t, int64(1), hits.Load())
	})

	t.Run("one bad page does not stop its siblings", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/img/2.png" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		p := fastPipeline(srv.Client())
		results := p.FetchAll(context.Background(), pagesFor(srv, 5))

		for i, res := range results {
			if i == 2 {
				assert.Error(t, res.Err)
				continue
			}
			assert.NoError(t, res.Err, "page %d", i)
		}
	})

	t.Run("non-image content type is a permanent failure", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>not an image</html>"))
		}))
		defer srv.Close()

		p := fastPipeline(srv.Client())
		results := p.FetchAll(context.Background(), pagesFor(srv, 1))

		require.Error(t, results[0].Err)
		assert.Contains(t, results[0].Err.Error(), "unexpected MIME")
		assert.Equal(t, int64(1), hits.Load())
	})

	t.Run("resolver fills in missing image URLs", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("resolved"))
		}))
		defer srv.Close()

		p := fastPipeline(srv.Client())
		p.Resolver = &mock.Adapter{
			ResolveImageFn: func(_ context.Context, pageURL string) (string, error) {
				return srv.URL + "/resolved.png", nil
			},
		}

		results := p.FetchAll(context.Background(), []discover.Page{{Index: 0, SourceURL: srv.URL + "/page/0"}})

		require.NoError(t, results[0].Err)
		assert.Equal(t, "resolved", string(results[0].Data))
	})

	t.Run("unrecognized layout from the resolver is not retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int64
		p := fastPipeline(http.DefaultClient)
		p.Resolver = &mock.Adapter{
			ResolveImageFn: func(_ context.Context, _ string) (string, error) {
				calls.Add(1)
				return "", fmt.Errorf("no image: %w", sources.ErrUnrecognizedLayout)
			},
		}

		results := p.FetchAll(context.Background(), []discover.Page{{Index: 0, SourceURL: "https://example.com/p0"}})

		require.Error(t, results[0].Err)
		assert.ErrorIs(t, results[0].Err, sources.ErrUnrecognizedLayout)
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("canceled context records every page as failed", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := fastPipeline(srv.Client())
		results := p.FetchAll(ctx, pagesFor(srv, 4))

		require.Len(t, results, 4)
		for _, res := range results {
			assert.Error(t, res.Err)
		}
	})

	t.Run("progress reports monotonically growing counts", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("0123456789"))
		}))
		defer srv.Close()

		var lastDone int
		var lastBytes int64
		p := fastPipeline(srv.Client())
		p.Workers = 1
		p.Progress = func(done, total int, bytes int64) {
			assert.GreaterOrEqual(t, done, lastDone)
			assert.GreaterOrEqual(t, bytes, lastBytes)
			assert.Equal(t, 3, total)
			lastDone, lastBytes = done, bytes
		}

		results := p.FetchAll(context.Background(), pagesFor(srv, 3))

		for _, res := range results {
			require.NoError(t, res.Err)
		}
		assert.Equal(t, 3, lastDone)
		assert.Equal(t, int64(30), lastBytes)
	})
}

func TestDomainLimiter(t *testing.T) {
	t.Parallel()

	t.Run("waits between requests to one domain", func(t *testing.T) {
		t.Parallel()

		l := fetch.NewDomainLimiter(50)

		start := time.Now()
		for range 3 {
			require.NoError(t, l.Wait(context.Background(), "example.com"))
		}

		// 50 rps with burst 1 => ~20ms per extra token
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("domains do not share buckets", func(t *testing.T) {
		t.Parallel()

		l := fetch.NewDomainLimiter(1)

		start := time.Now()
		require.NoError(t, l.Wait(context.Background(), "a.example.com"))
		require.NoError(t, l.Wait(context.Background(), "b.example.com"))
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("canceled context unblocks the wait", func(t *testing.T) {
		t.Parallel()

		l := fetch.NewDomainLimiter(0.001)
		require.NoError(t, l.Wait(context.Background(), "example.com"))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		assert.Error(t, l.Wait(ctx, "example.com"))
	})
}
