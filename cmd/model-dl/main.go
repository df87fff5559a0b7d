package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/handiism/model-downloader/internal/action"
	"github.com/handiism/model-downloader/internal/app"
	"github.com/handiism/model-downloader/internal/config"
	"github.com/handiism/model-downloader/internal/download"
	ioutils "github.com/handiism/model-downloader/internal/io"
	"github.com/handiism/model-downloader/internal/model"
	"github.com/handiism/model-downloader/internal/notify"
)

func main() {
	// Command line flags
	var (
		catalogFlag     = flag.String("catalog", "", "Catalog file or URL (overrides config)")
		outputFlag      = flag.String("output", "", "Output directory (overrides config)")
		configFlag      = flag.String("config", "", "Path to config file")
		envFlag         = flag.String("env", ".env", "Path to .env file with MODEL_DL_* overrides")
		concurrencyFlag = flag.Int("concurrency", 0, "Maximum simultaneous downloads (overrides config)")
		limitFlag       = flag.Int64("limit", -1, "Speed limit in bytes per second, 0 for unlimited (overrides config)")
		listFlag        = flag.Bool("list", false, "List catalog files and exit")
		historyFlag     = flag.Int("history", 0, "Show the N most recent download attempts and exit")
		verboseFlag     = flag.Bool("verbose", false, "Show verbose output")
	)

	flag.Parse()

	// Load config
	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := settings.ApplyEnv(*envFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading environment: %v\n", err)
		os.Exit(1)
	}

	// Apply flags
	if *catalogFlag != "" {
		settings.CatalogPath = *catalogFlag
	}
	if *outputFlag != "" {
		settings.DownloadsPath = filepath.Join(*outputFlag, "{author}", "{model}")
	}
	if *concurrencyFlag > 0 {
		settings.MaxConcurrentDownloads = *concurrencyFlag
	}
	if *limitFlag >= 0 {
		settings.SpeedLimit = *limitFlag
	}

	if !*listFlag && *historyFlag <= 0 && flag.NArg() == 0 {
		fmt.Println("Model Downloader - Download model files from a catalog")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  model-dl [options] <author/model/file> ...")
		fmt.Println("  model-dl -list")
		fmt.Println("  model-dl -history 20")
		fmt.Println()
		fmt.Println("Interrupted downloads are paused and continue on the next run.")
		fmt.Println("For interactive mode, use: model-tui")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Handle interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, settings, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}

	if *listFlag {
		listFiles(a)
		a.Close()
		return
	}
	if *historyFlag > 0 {
		err := listHistory(a, *historyFlag)
		a.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading download history: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("📦 Model Downloader")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	var ids []model.FileID
	invalid := 0
	for _, arg := range flag.Args() {
		id, err := model.ParseFileID(arg)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			invalid++
			continue
		}
		if target, err := a.Catalog.Target(id); err == nil && target.Metadata.HasSize() {
			if ioutils.Verify(target.Path, target.Metadata.Size, "") == nil {
				fmt.Printf("✅ %s already downloaded\n", id)
				continue
			}
		}
		if err := a.Router.Dispatch(action.Download{File: id}); err != nil && !errors.Is(err, download.ErrAlreadyInProgress) {
			fmt.Printf("❌ %s: %v\n", id, err)
			invalid++
			continue
		}
		fmt.Printf("ℹ️  Downloading %s\n", id)
		ids = append(ids, id)
	}

	w := newWaiter(a)
	failed := w.wait(ctx, ids)

	interrupted := ctx.Err() != nil
	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving download history: %v\n", err)
	}
	// Outcomes published while the workers were stopping.
	failed += w.print(a.Pipeline.Drain(), map[model.FileID]struct{}{})
	if interrupted {
		fmt.Println("\nInterrupted, downloads paused. Run the same command again to resume.")
		os.Exit(130)
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("✨ Complete! Downloaded %d/%d files\n", len(ids)-failed, len(ids))
	if failed > 0 || invalid > 0 {
		os.Exit(1)
	}
}

// poller yields the notifications published since the last poll.
// *notify.Pipeline implements it.
type poller interface {
	Poll() []notify.Notification
}

// snapshotter exposes task state. *download.Registry implements it.
type snapshotter interface {
	Snapshot(id model.FileID) (download.Snapshot, bool)
}

// waiter follows a set of downloads from the command line.
type waiter struct {
	out      io.Writer
	pipeline poller
	registry snapshotter

	// tick is how often the pipeline is polled; report is how often
	// progress lines are printed.
	tick   time.Duration
	report time.Duration
}

func newWaiter(a *app.App) *waiter {
	return &waiter{
		out:      os.Stdout,
		pipeline: a.Pipeline,
		registry: a.Registry,
		tick:     100 * time.Millisecond,
		report:   2 * time.Second,
	}
}

// wait polls the notification pipeline until every file in ids is finished
// or ctx is cancelled. It returns the number of failed downloads.
//
// A file is finished once its notification has been drained. A terminal
// snapshot alone is not enough: the state changes before the notification
// is published. Only a cancelled or untracked file finishes without one.
func (w *waiter) wait(ctx context.Context, ids []model.FileID) int {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	lastReport := time.Now()

	pending := make(map[model.FileID]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}

	failed := 0
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return failed
		case <-ticker.C:
		}

		failed += w.print(w.pipeline.Poll(), pending)

		report := time.Since(lastReport) >= w.report
		for _, id := range ids {
			if _, ok := pending[id]; !ok {
				continue
			}
			s, ok := w.registry.Snapshot(id)
			if !ok || s.State == download.StateCancelled {
				delete(pending, id)
				continue
			}
			if report && s.State == download.StateDownloading {
				fmt.Fprintf(w.out, "   %s %s\n", id, progressText(s))
			}
		}
		if report {
			lastReport = time.Now()
		}
	}
	return failed
}

// print writes notes and removes the files they finish from pending. It
// returns the number of failures among them.
func (w *waiter) print(notes []notify.Notification, pending map[model.FileID]struct{}) int {
	failed := 0
	for _, n := range notes {
		delete(pending, n.FileID())
		switch n := n.(type) {
		case notify.DownloadedFile:
			fmt.Fprintf(w.out, "✅ %s (%s)\n", n.File, humanize.Bytes(uint64(n.Metadata.Size)))
		case notify.DownloadErrored:
			fmt.Fprintf(w.out, "❌ %s\n", n)
			var te *download.TransferError
			if errors.As(n.Err, &te) && te.IsVerification() {
				fmt.Fprintln(w.out, "   The downloaded data did not match the catalog and was discarded.")
			}
			failed++
		}
	}
	return failed
}

func progressText(s download.Snapshot) string {
	if s.BytesTotal < 0 {
		return humanize.Bytes(uint64(s.BytesDone))
	}
	return fmt.Sprintf("%s / %s (%.0f%%)",
		humanize.Bytes(uint64(s.BytesDone)), humanize.Bytes(uint64(s.BytesTotal)), s.Progress()*100)
}

func listFiles(a *app.App) {
	for _, m := range a.Catalog.Models() {
		fmt.Printf("%s\n", m.ID)
		for _, f := range m.Files {
			size := "unknown size"
			if f.Metadata.HasSize() {
				size = humanize.Bytes(uint64(f.Metadata.Size))
			}
			state := ""
			if s, ok := a.Registry.Snapshot(f.ID()); ok {
				state = " [" + s.State.String() + "]"
			}
			fmt.Printf("   %s  %s%s\n", f.ID(), size, state)
		}
	}
}

func listHistory(a *app.App, limit int) error {
	snaps, err := a.History.History(limit)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		line := fmt.Sprintf("%s  %-11s %s  %s", s.UpdatedAt.Format("2006-01-02 15:04"), s.State, s.ID, progressText(s))
		if s.Err != nil {
			line += "  " + s.Err.Error()
		}
		fmt.Println(line)
	}
	return nil
}
