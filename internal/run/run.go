// Package run drives one download end to end: discover the page list,
// fetch the images, assemble the archive, and report what happened.
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/brogergvhs/comicdl/internal/discover"
	"github.com/brogergvhs/comicdl/internal/fetch"
)

// State is the phase a run is in. Transitions only move forward:
// Discovering → Fetching → Assembling → Done, with Failed reachable from
// Discovering and Assembling (and from cancellation during Fetching).
type State int

const (
	StateDiscovering State = iota
	StateFetching
	StateAssembling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateFetching:
		return "fetching"
	case StateAssembling:
		return "assembling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Discoverer produces the ordered page list for an entry URL.
type Discoverer interface {
	Discover(ctx context.Context, entryURL string) ([]discover.Page, error)
}

// Fetcher retrieves one result per page; it records failures instead of
// returning them.
type Fetcher interface {
	FetchAll(ctx context.Context, pages []discover.Page) []fetch.Result
}

// Assembler writes the successful results to dest.
type Assembler interface {
	Build(results []fetch.Result, dest string) error
}

// PageFailure names one page that stayed out of the archive and why.
type PageFailure struct {
	Index  int
	Reason string
}

// Summary is the final report handed back to the CLI.
type Summary struct {
	State      State
	EntryURL   string
	OutputPath string
	Discovered int
	Succeeded  int
	Failed     []PageFailure
	Bytes      int64
	Elapsed    time.Duration
	Err        error
}

type Runner struct {
	Discoverer Discoverer
	Fetcher    Fetcher
	Assembler  Assembler
}

// Run executes the state machine for one entry URL. Per-page fetch
// failures never abort the run; discovery with zero pages, cancellation,
// and assembly errors do. On failure nothing exists at dest.
func (r *Runner) Run(ctx context.Context, entryURL, dest string) Summary {
	start := time.Now()
	sum := Summary{State: StateDiscovering, EntryURL: entryURL}

	fail := func(err error) Summary {
		sum.State = StateFailed
		sum.Err = err
		sum.Elapsed = time.Since(start)
		return sum
	}

	pages, err := r.Discoverer.Discover(ctx, entryURL)
	if err != nil {
		return fail(err)
	}
	sum.Discovered = len(pages)

	sum.State = StateFetching
	results := r.Fetcher.FetchAll(ctx, pages)

	for _, res := range results {
		if res.Err != nil {
			sum.Failed = append(sum.Failed, PageFailure{Index: res.Index, Reason: res.Err.Error()})
			continue
		}

		sum.Succeeded++
		sum.Bytes += int64(len(res.Data))
	}

	// a canceled run must not commit anything to dest
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	sum.State = StateAssembling
	if err := r.Assembler.Build(results, dest); err != nil {
		return fail(err)
	}

	sum.State = StateDone
	sum.OutputPath = dest
	sum.Elapsed = time.Since(start)

	return sum
}
