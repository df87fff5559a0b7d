package model

import (
	"path/filepath"
	"strings"

	ioutils "github.com/handiism/model-downloader/internal/io"
)

// FileMetadata describes what a finished download must look like.
type FileMetadata struct {
	// Size is the expected size in bytes. Zero means unknown.
	Size int64 `json:"size"`

	// SHA256 is the expected hex digest. Empty disables checksum verification.
	SHA256 string `json:"sha256,omitempty"`
}

// HasSize reports whether the expected size is known.
func (m FileMetadata) HasSize() bool {
	return m.Size > 0
}

// File represents a single downloadable file of a model.
//
// The file path is computed when creating a file via NewFile, using the
// model's folder and the PathConfig file name format.
//
// Example:
//
//	cfg := &PathConfig{FileNameFormat: "{quant}-{file}"}
//	f := NewFile(m, "mistral.gguf", url, "Q4_K_M", FileMetadata{Size: 4 << 30}, cfg)
//	// f.Path = "/models/TheBloke/Mistral-7B/Q4_K_M-mistral.gguf"
type File struct {
	// Model is a reference to the parent model.
	Model *Model

	// Name is the file name as published in the catalog.
	Name string

	// URL is where the file is downloaded from.
	URL string

	// Quantization is a free-form label such as "Q4_K_M".
	Quantization string

	// Metadata holds the expected size and checksum.
	Metadata FileMetadata

	// Path is the computed local file path where the file will be saved.
	Path string
}

// NewFile creates a new File with computed path.
func NewFile(m *Model, name, url, quantization string, meta FileMetadata, cfg *PathConfig) *File {
	f := &File{
		Model:        m,
		Name:         name,
		URL:          url,
		Quantization: quantization,
		Metadata:     meta,
	}
	f.Path = f.parseFilePath(cfg)
	return f
}

// ID returns the identity of this file.
func (f *File) ID() FileID {
	return NewFileID(f.Model.ID, f.Name)
}

// parseFilePath computes the full file path for this file.
func (f *File) parseFilePath(cfg *PathConfig) string {
	fileName := f.parseFileName(cfg)
	filePath := filepath.Join(f.Model.Path, fileName)

	// Limit total path length for Windows compatibility (MAX_PATH = 260)
	if len(filePath) >= 260 {
		ext := filepath.Ext(filePath)
		maxLen := 259 - len(f.Model.Path) - 1 - len(ext)
		if maxLen > 0 && maxLen < len(fileName)-len(ext) {
			filePath = filepath.Join(f.Model.Path, fileName[:maxLen]+ext)
		}
	}

	return filePath
}

// parseFileName computes the file name from the config template.
func (f *File) parseFileName(cfg *PathConfig) string {
	format := cfg.FileNameFormat
	if format == "" {
		format = "{file}"
	}
	fileName := format
	fileName = strings.ReplaceAll(fileName, "{author}", f.Model.Author)
	fileName = strings.ReplaceAll(fileName, "{model}", f.Model.Name)
	fileName = strings.ReplaceAll(fileName, "{quant}", f.Quantization)
	fileName = strings.ReplaceAll(fileName, "{file}", f.Name)
	return ioutils.SanitizeFileName(strings.TrimLeft(fileName, "- "))
}
