package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/handiism/model-downloader/internal/http"
	"github.com/handiism/model-downloader/internal/model"
)

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadsPath          string `json:"downloads_path"`
	FileNameFormat         string `json:"file_name_format"`
	MaxConcurrentDownloads int    `json:"max_concurrent_downloads"`
	ProgressIntervalMillis int    `json:"progress_interval_ms"`
	SpeedLimit             int64  `json:"speed_limit"` // bytes per second, 0 = unlimited
	VerifyChecksums        bool   `json:"verify_checksums"`

	// Catalog settings
	CatalogPath         string `json:"catalog_path"` // file path or http(s) URL
	MaxConcurrentProbes int    `json:"max_concurrent_probes"`
	ResolveUnknownSizes bool   `json:"resolve_unknown_sizes"`

	// Storage settings
	DataDir string `json:"data_dir"` // history database lives here

	// HTTP settings
	UserAgent            string `json:"user_agent"`
	HeaderTimeoutSeconds int    `json:"header_timeout_seconds"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadsPath:          filepath.Join(homeDir, "Models", "{author}", "{model}"),
		FileNameFormat:         "{file}",
		MaxConcurrentDownloads: 2,
		ProgressIntervalMillis: 250,
		SpeedLimit:             0,
		VerifyChecksums:        true,

		CatalogPath:         filepath.Join(homeDir, ".model-downloader", "catalog.json"),
		MaxConcurrentProbes: 4,
		ResolveUnknownSizes: true,

		DataDir: filepath.Join(homeDir, ".model-downloader"),

		UserAgent:            "model-downloader",
		HeaderTimeoutSeconds: 30,
	}
}

// Load reads settings from a JSON file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyEnv loads envFile (if it exists) into the process environment and
// applies MODEL_DL_* overrides. Variables already set in the environment
// take precedence over the file.
func (s *Settings) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if v, ok := os.LookupEnv("MODEL_DL_DOWNLOADS_PATH"); ok {
		s.DownloadsPath = v
	}
	if v, ok := os.LookupEnv("MODEL_DL_CATALOG"); ok {
		s.CatalogPath = v
	}
	if v, ok := os.LookupEnv("MODEL_DL_DATA_DIR"); ok {
		s.DataDir = v
	}
	if v, ok := os.LookupEnv("MODEL_DL_USER_AGENT"); ok {
		s.UserAgent = v
	}
	if v, ok := os.LookupEnv("MODEL_DL_MAX_CONCURRENT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MODEL_DL_MAX_CONCURRENT: %w", err)
		}
		s.MaxConcurrentDownloads = n
	}
	if v, ok := os.LookupEnv("MODEL_DL_SPEED_LIMIT"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MODEL_DL_SPEED_LIMIT: %w", err)
		}
		s.SpeedLimit = n
	}
	if v, ok := os.LookupEnv("MODEL_DL_VERIFY_CHECKSUMS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MODEL_DL_VERIFY_CHECKSUMS: %w", err)
		}
		s.VerifyChecksums = b
	}

	return nil
}

// ProgressInterval returns the minimum delay between progress publications.
func (s *Settings) ProgressInterval() time.Duration {
	return time.Duration(s.ProgressIntervalMillis) * time.Millisecond
}

// ToPathConfig converts settings to PathConfig.
func (s *Settings) ToPathConfig() *model.PathConfig {
	return &model.PathConfig{
		DownloadsPath:  s.DownloadsPath,
		FileNameFormat: s.FileNameFormat,
	}
}

// ToClientOptions converts settings to HTTP client options.
func (s *Settings) ToClientOptions() http.Options {
	return http.Options{
		UserAgent:     s.UserAgent,
		HeaderTimeout: time.Duration(s.HeaderTimeoutSeconds) * time.Second,
		RateLimit:     s.SpeedLimit,
	}
}
