package ui

import "sync/atomic"

// Stats aggregates totals across every archive built in one invocation.
type Stats struct {
	TotalArchives atomic.Int64
	TotalPages    atomic.Int64
	TotalFailed   atomic.Int64
	TotalBytes    atomic.Int64
}
