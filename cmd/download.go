package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/brogergvhs/comicdl/internal/archive"
	"github.com/brogergvhs/comicdl/internal/config"
	"github.com/brogergvhs/comicdl/internal/discover"
	"github.com/brogergvhs/comicdl/internal/fetch"
	"github.com/brogergvhs/comicdl/internal/run"
	"github.com/brogergvhs/comicdl/internal/sources"
	"github.com/brogergvhs/comicdl/internal/sources/generic"
	"github.com/brogergvhs/comicdl/internal/ui"
	"github.com/brogergvhs/comicdl/internal/util"

	"github.com/spf13/cobra"
)

var (
	// runtime
	flagOutput    string
	flagWorkers   int
	flagRetries   int
	flagTimeout   string
	flagRateLimit float64
	flagMaxPages  int
	flagDryRun    bool

	// site layout
	flagMode          string
	flagImageSelector string
	flagURLAttr       string
	flagNextSelector  string
	flagAllowExt      string
	flagNumberAttr    string
	flagNumberPattern string

	// archive naming
	flagNamePattern string
	flagNameNumber  bool
	flagNamePadding int

	// headers/auth
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download [URL...]",
		Short: "Download comic pages into CBZ archives. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runDownload,
	}

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder, or an explicit .cbz path for a single URL")
	downloadCmd.Flags().IntVar(&flagWorkers, "workers", 4, "parallel page downloads")
	downloadCmd.Flags().IntVar(&flagRetries, "retries", 3, "attempts per page before recording a failure")
	downloadCmd.Flags().StringVar(&flagTimeout, "timeout", "", "per-request timeout (e.g. 30s)")
	downloadCmd.Flags().Float64Var(&flagRateLimit, "rate-limit", 0, "max requests per second per domain (0 = unlimited)")
	downloadCmd.Flags().IntVar(&flagMaxPages, "max-pages", 0, "cap on discovered pages per URL")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "list what would be downloaded, don't download")

	// site layout
	downloadCmd.Flags().StringVar(&flagMode, "mode", "", "site layout: gallery (entry lists all images) or linked (next-page chain)")
	downloadCmd.Flags().StringVar(&flagImageSelector, "image-selector", "", "CSS selector for page images (default: img)")
	downloadCmd.Flags().StringVar(&flagURLAttr, "url-attr", "", "image attribute holding the URL (default: src)")
	downloadCmd.Flags().StringVar(&flagNextSelector, "next-selector", "", "CSS selector for the next-page link")
	downloadCmd.Flags().StringVar(&flagAllowExt, "allow-ext", "", "allowed image extensions (e.g. \"webp|jpg|png\")")
	downloadCmd.Flags().StringVar(&flagNumberAttr, "number-attr", "", "image attribute carrying the page number (e.g. id); orders gallery pages by number instead of document order")
	downloadCmd.Flags().StringVar(&flagNumberPattern, "number-pattern", "", "regexp extracting the page number from the number attribute (default: first digit run)")

	// archive naming
	downloadCmd.Flags().StringVar(&flagNamePattern, "name-pattern", "", "regexp with 1 capture group deriving the archive name from the URL")
	downloadCmd.Flags().BoolVar(&flagNameNumber, "name-number", false, "narrow the derived name to its first run of digits")
	downloadCmd.Flags().IntVar(&flagNamePadding, "name-padding", 0, "zero-pad the derived archive name to this width")

	// headers/auth
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, usedPath, err := config.LoadMerged(config.Options{
		IgnoreConfig:  flagIgnoreConfig,
		Debug:         flagDebug,
		Output:        flagOutput,
		Timeout:       flagTimeout,
		RateLimit:     flagRateLimit,
		MaxPages:      flagMaxPages,
		Mode:          flagMode,
		ImageSelector: flagImageSelector,
		URLAttr:       flagURLAttr,
		NextSelector:  flagNextSelector,
		NumberAttr:    flagNumberAttr,
		NumberPattern: flagNumberPattern,
		NamePattern:   flagNamePattern,
		NameNumber:    flagNameNumber,
		NamePadding:   flagNamePadding,
		Cookie:        flagCookie,
		CookieFile:    flagCookieFile,
		UserAgent:     flagUserAgent,
	})
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("workers") && flagWorkers > 0 {
		cfg.PageWorkers = flagWorkers
	}
	if cmd.Flags().Changed("retries") && flagRetries > 0 {
		cfg.Retries = flagRetries
	}
	if flagAllowExt != "" {
		cfg.AllowExt = splitExt(flagAllowExt)
	}
	if cfg.NumberPattern != "" {
		if _, err := regexp.Compile(cfg.NumberPattern); err != nil {
			return fmt.Errorf("bad number pattern %q: %w", cfg.NumberPattern, err)
		}
	}

	logSvc := ui.NewLogger(cfg.Debug)
	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}

	urls := args
	if len(urls) == 0 && cfg.DefaultURL != "" {
		urls = []string{cfg.DefaultURL}
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URL given and no default_url in config")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return fmt.Errorf("bad timeout %q: %w", cfg.Timeout, err)
	}

	outDir := cfg.Output
	if outDir == "" {
		outDir = "."
	}

	// --output ending in .cbz names the one archive directly
	explicitDest := ""
	if strings.HasSuffix(strings.ToLower(outDir), ".cbz") {
		if len(urls) > 1 {
			return fmt.Errorf("--output %q names a file but %d URLs were given", outDir, len(urls))
		}
		explicitDest = outDir
		outDir = filepath.Dir(outDir)
		if outDir == "" {
			outDir = "."
		}
	}

	createdOutDir := false
	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		createdOutDir = true
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	fmt.Println("Full config:")
	cfg.Print()
	fmt.Println()

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     timeout,
		UserAgent:   util.PickUserAgent(cfg.UserAgent),
		Cookie:      cfg.Cookie,
		CookieFile:  cfg.CookieFile,
		DebugLogger: logSvc,
	})
	if err != nil {
		return err
	}

	gcfg := generic.Config{
		ImageSelector: cfg.ImageSelector,
		URLAttr:       cfg.URLAttr,
		NextSelector:  cfg.NextSelector,
		AllowExt:      cfg.AllowExt,
		NumberAttr:    cfg.NumberAttr,
		NumberPattern: cfg.NumberPattern,
	}

	var reg *sources.Registry
	switch cfg.Mode {
	case "linked":
		reg = sources.NewRegistry(generic.NewLinked(client, cfg.Debug, gcfg))
	case "", "gallery":
		reg = sources.NewRegistry(generic.NewGallery(client, cfg.Debug, gcfg))
	default:
		return fmt.Errorf("unknown mode %q (want gallery or linked)", cfg.Mode)
	}

	var limiter *fetch.DomainLimiter
	if cfg.RateLimit > 0 {
		limiter = fetch.NewDomainLimiter(cfg.RateLimit)
	}

	ctx, cancel := util.NotifyInterrupt(cmd.Context())
	defer cancel()
	util.CleanupStaleTemps(outDir)

	if flagDryRun {
		return dryRun(ctx, reg, cfg, urls)
	}

	pm := ui.NewProgressManager()
	stats := &ui.Stats{}
	start := time.Now()

	var summaries []run.Summary

	for _, entryURL := range urls {
		dest := explicitDest
		if dest == "" {
			name, err := archive.NameFromURL(entryURL, archive.NameOptions{
				Pattern: cfg.NamePattern,
				Number:  cfg.NameNumber,
				Padding: cfg.NamePadding,
			})
			if err != nil {
				pm.Close()
				return err
			}
			dest = filepath.Join(outDir, name)
		}

		adapter, err := reg.Select(entryURL)
		if err != nil {
			pm.Close()
			return err
		}

		handle := pm.Register(filepath.Base(dest))

		runner := &run.Runner{
			Discoverer: &discover.Discoverer{
				Adapter:  adapter,
				MaxPages: cfg.MaxPages,
				Warnf:    logSvc.Warnf,
			},
			Fetcher: &fetch.Pipeline{
				Client:   client,
				Resolver: adapter,
				Limiter:  limiter,
				Workers:  cfg.PageWorkers,
				Attempts: uint(cfg.Retries),
				Timeout:  timeout,
				Progress: func(done, total int, bytes int64) {
					handle.Update(done, total, bytes)
				},
			},
			Assembler: &archive.Assembler{},
		}

		sum := runner.Run(ctx, entryURL, dest)
		handle.MarkDone()
		summaries = append(summaries, sum)

		if sum.State == run.StateDone {
			stats.TotalArchives.Add(1)
			stats.TotalPages.Add(int64(sum.Succeeded))
			stats.TotalFailed.Add(int64(len(sum.Failed)))
			stats.TotalBytes.Add(sum.Bytes)
		}

		if ctx.Err() != nil {
			break
		}
	}

	pm.Close()
	fmt.Println()

	err = report(summaries, stats, time.Since(start))
	if err != nil && createdOutDir {
		util.RemoveIfEmpty(outDir)
	}

	return err
}

func report(summaries []run.Summary, stats *ui.Stats, elapsed time.Duration) error {
	var failedRuns int

	for _, sum := range summaries {
		switch sum.State {
		case run.StateDone:
			fmt.Printf("%s: %d/%d pages -> %s\n", sum.EntryURL, sum.Succeeded, sum.Discovered, sum.OutputPath)
		default:
			failedRuns++
			fmt.Printf("%s: failed: %v\n", sum.EntryURL, sum.Err)
		}

		for _, pf := range sum.Failed {
			fmt.Printf("  page %d: %s\n", pf.Index, pf.Reason)
		}
	}

	fmt.Println()
	fmt.Println("Download Summary:")
	fmt.Printf("Archives: %d\n", stats.TotalArchives.Load())
	fmt.Printf("Pages:    %d", stats.TotalPages.Load())
	if failed := stats.TotalFailed.Load(); failed > 0 {
		fmt.Printf(" (%d failed)", failed)
	}
	fmt.Println()
	fmt.Printf("Data:     %s\n", util.Human(stats.TotalBytes.Load()))
	fmt.Printf("Time:     %s\n", elapsed.Round(time.Second))

	if failedRuns > 0 {
		return fmt.Errorf("%d of %d downloads failed", failedRuns, len(summaries))
	}

	fmt.Println("\nAll done.")
	return nil
}

func dryRun(ctx context.Context, reg *sources.Registry, cfg *config.Config, urls []string) error {
	for _, entryURL := range urls {
		adapter, err := reg.Select(entryURL)
		if err != nil {
			return err
		}

		d := &discover.Discoverer{Adapter: adapter, MaxPages: cfg.MaxPages}
		pages, err := d.Discover(ctx, entryURL)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d pages\n", entryURL, len(pages))
		for _, p := range pages {
			target := p.ImageURL
			if target == "" {
				target = p.SourceURL
			}
			fmt.Printf("%5d) %s\n", p.Index, target)
		}
	}

	return nil
}

func splitExt(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})

	out := []string{}
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}

	return out
}
