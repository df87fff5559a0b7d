package dto

import (
	"fmt"
	"strings"

	"github.com/handiism/model-downloader/internal/model"
)

// JSONFile is one downloadable file of a catalog model.
type JSONFile struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Quantization string `json:"quantization"`
	Size         int64  `json:"size"`
	SHA256       string `json:"sha256"`
}

func (jf *JSONFile) validate() error {
	switch {
	case jf.Name == "":
		return fmt.Errorf("file without name")
	case strings.Contains(jf.Name, "/"):
		return fmt.Errorf("file name %q contains a slash", jf.Name)
	case jf.URL == "":
		return fmt.Errorf("file %q has no url", jf.Name)
	case jf.Size < 0:
		return fmt.Errorf("file %q has negative size", jf.Name)
	}
	return nil
}

// ToFile converts JSONFile to a model.File.
func (jf *JSONFile) ToFile(m *model.Model, cfg *model.PathConfig) *model.File {
	// Protocol-relative links are common in scraped catalogs.
	url := jf.URL
	if strings.HasPrefix(url, "//") {
		url = "https:" + url
	}

	meta := model.FileMetadata{
		Size:   jf.Size,
		SHA256: strings.ToLower(jf.SHA256),
	}
	return model.NewFile(m, jf.Name, url, jf.Quantization, meta, cfg)
}
