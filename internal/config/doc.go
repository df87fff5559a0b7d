// Package config provides configuration management for model-downloader.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - Overrides from a .env file and MODEL_DL_* environment variables
//   - Conversion to PathConfig and client options for other packages
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Models/{author}/{model}
//	// Two concurrent transfers, checksum verification enabled
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.json")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Environment Overrides
//
//	if err := settings.ApplyEnv(".env"); err != nil {
//	    log.Fatal(err)
//	}
//
// Recognized variables: MODEL_DL_DOWNLOADS_PATH, MODEL_DL_CATALOG,
// MODEL_DL_DATA_DIR, MODEL_DL_MAX_CONCURRENT, MODEL_DL_SPEED_LIMIT,
// MODEL_DL_USER_AGENT, MODEL_DL_VERIFY_CHECKSUMS.
package config
