package util

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// NotifyInterrupt cancels ctx on SIGINT/SIGTERM. A second signal exits
// immediately without waiting for in-flight work to drain.
func NotifyInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		fmt.Fprintln(os.Stderr, "\nInterrupt received, abandoning in-flight downloads...")
		cancel()

		<-sig
		os.Exit(1)
	}()

	return ctx, cancel
}

// CleanupStaleTemps removes half-written archive temp files a previous run
// left behind in dir. Temp names carry a ".cbz.tmp-" marker.
func CleanupStaleTemps(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.Contains(name, ".cbz.tmp-") {
			continue
		}

		full := filepath.Join(dir, name)
		if err := os.Remove(full); err != nil {
			fmt.Printf("Error cleaning up %s: %v\n", full, err)
		} else {
			fmt.Printf("Removed stale temp file %s\n", full)
		}
	}
}

func RemoveIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err == nil {
			fmt.Printf("Removed empty output folder: %s\n", dir)
		}
	}
}
