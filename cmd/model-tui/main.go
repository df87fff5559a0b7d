package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/handiism/model-downloader/internal/app"
	"github.com/handiism/model-downloader/internal/config"
	"github.com/handiism/model-downloader/internal/tui"
)

func main() {
	var (
		configFlag = flag.String("config", "", "Path to config file")
		envFlag    = flag.String("env", ".env", "Path to .env file with MODEL_DL_* overrides")
		logFlag    = flag.String("log", "", "Log file (default: model-tui.log in the data dir)")
	)
	flag.Parse()

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

	// The screen belongs to the UI, so logs go to a file.
	logPath := *logFlag
	if logPath == "" {
		if err := os.MkdirAll(settings.DataDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logPath = filepath.Join(settings.DataDir, "model-tui.log")
	}
	logFile, err := tea.LogToFile(logPath, "model-tui")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.Default()

	a, err := app.New(context.Background(), settings, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}

	runErr := tui.Run(tui.Deps{
		Catalog:       a.Catalog,
		Registry:      a.Registry,
		Router:        a.Router,
		Pipeline:      a.Pipeline,
		History:       a.History,
		Logger:        logger,
		DownloadsPath: settings.DownloadsPath,
	})

	if err := a.Close(); err != nil {
		logger.Error("failed to save download history", "error", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
