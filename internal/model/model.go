package model

import (
	"path/filepath"
	"strings"
	"time"

	ioutils "github.com/handiism/model-downloader/internal/io"
)

// Model represents a catalog model with its metadata and files.
//
// Paths are computed when creating a model via NewModel, using placeholders
// like {author} and {model}.
//
// Example:
//
//	cfg := &PathConfig{DownloadsPath: "/models/{author}/{model}"}
//	m := NewModel("TheBloke", "Mistral-7B", "TheBloke/Mistral-7B", cfg)
//	// m.Path = "/models/TheBloke/Mistral-7B"
type Model struct {
	// ID is the catalog identifier, usually "author/name".
	ID string

	// Name is the display name of the model.
	Name string

	// Author is the publisher of the model.
	Author string

	// Summary is a short description shown by front ends.
	Summary string

	// Updated is when the model was last published, zero when unknown.
	Updated time.Time

	// Files contains every downloadable file of this model.
	Files []*File

	// Path is the computed local directory where files of this model are saved.
	Path string
}

// NewModel creates a new Model with a computed folder path.
//
// Invalid filename characters are replaced with underscores.
// Paths are truncated if they exceed Windows path length limits.
func NewModel(author, name, id string, cfg *PathConfig) *Model {
	m := &Model{
		ID:     id,
		Name:   name,
		Author: author,
	}
	m.Path = m.parseFolderPath(cfg)
	return m
}

// File returns the file with the given name, or nil.
func (m *Model) File(name string) *File {
	for _, f := range m.Files {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// PathConfig holds path formatting settings for models and files.
//
// All fields support placeholders:
//   - {author} - Model author
//   - {model} - Model name
//   - {file} - File name as published (FileNameFormat only)
//   - {quant} - Quantization label, empty when unknown (FileNameFormat only)
type PathConfig struct {
	// DownloadsPath is the base path template for model folders.
	// Example: "/models/{author}/{model}"
	DownloadsPath string

	// FileNameFormat is the template for file names, including the extension.
	// Example: "{file}"
	FileNameFormat string
}

// parseFolderPath computes the model folder path from the config template.
func (m *Model) parseFolderPath(cfg *PathConfig) string {
	path := cfg.DownloadsPath
	path = strings.ReplaceAll(path, "{author}", ioutils.SanitizeFileName(m.Author))
	path = strings.ReplaceAll(path, "{model}", ioutils.SanitizeFileName(m.Name))

	// Limit path length for cross-platform compatibility (Windows MAX_PATH)
	if len(path) >= 248 {
		path = path[:247]
	}

	return filepath.Clean(path)
}
