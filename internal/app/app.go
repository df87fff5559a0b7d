package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/handiism/model-downloader/internal/action"
	"github.com/handiism/model-downloader/internal/catalog"
	"github.com/handiism/model-downloader/internal/config"
	"github.com/handiism/model-downloader/internal/download"
	"github.com/handiism/model-downloader/internal/http"
	"github.com/handiism/model-downloader/internal/notify"
	"github.com/handiism/model-downloader/internal/store"
)

// App wires the download core to the catalog, the HTTP client and the
// history store.
//
// Example usage:
//
//	a, err := app.New(ctx, settings, logger)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	a.Router.Dispatch(action.Download{File: id})
//	for _, n := range a.Pipeline.Poll() {
//	    fmt.Println(n)
//	}
type App struct {
	Settings *config.Settings
	Client   *http.Client
	Catalog  *catalog.Catalog
	Pipeline *notify.Pipeline
	Registry *download.Registry
	Router   *action.Router
	History  *store.History

	logger  *slog.Logger
	stop    context.CancelFunc
	stopped chan struct{}
}

// New loads the catalog, opens the history and restores the downloads that
// were unfinished when the previous session ended. Restored downloads are
// Paused; a Download or Resume action continues them.
func New(ctx context.Context, settings *config.Settings, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := http.NewClient(settings.ToClientOptions())

	cat, err := catalog.Load(ctx, settings.CatalogPath, settings.ToPathConfig(), client)
	if err != nil {
		return nil, err
	}
	if settings.ResolveUnknownSizes {
		n, err := cat.ResolveSizes(ctx, client, settings.MaxConcurrentProbes)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			logger.Warn("could not resolve some file sizes", "error", err)
		}
		if n > 0 {
			logger.Debug("resolved file sizes", "count", n)
		}
	}

	history, err := store.Open(settings.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("could not open download history: %w", err)
	}

	pipeline := notify.NewPipeline()
	registry := download.NewRegistry(download.Options{
		Fetcher:          client,
		Publisher:        pipeline,
		Recorder:         history,
		Logger:           logger,
		MaxConcurrent:    settings.MaxConcurrentDownloads,
		ProgressInterval: settings.ProgressInterval(),
		VerifyChecksums:  settings.VerifyChecksums,
	})

	unfinished, err := history.Unfinished()
	if err != nil {
		logger.Warn("could not read unfinished downloads", "error", err)
	}
	if n := registry.Restore(unfinished); n > 0 {
		logger.Info("restored unfinished downloads", "count", n)
	}

	runCtx, stop := context.WithCancel(context.Background())
	a := &App{
		Settings: settings,
		Client:   client,
		Catalog:  cat,
		Pipeline: pipeline,
		Registry: registry,
		Router:   action.NewRouter(registry, cat, logger),
		History:  history,
		logger:   logger,
		stop:     stop,
		stopped:  make(chan struct{}),
	}
	go func() {
		defer close(a.stopped)
		history.Run(runCtx)
	}()
	return a, nil
}

// Close pauses running downloads, waits for the workers and writes the
// final state to the history.
func (a *App) Close() error {
	a.Registry.Close()
	a.stop()
	<-a.stopped
	return a.History.Close()
}
