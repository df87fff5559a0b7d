package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/handiism/model-downloader/internal/model"
)

// CatalogTime is a time that accepts the date formats found in catalogs.
type CatalogTime struct {
	time.Time
}

// UnmarshalJSON parses "2024-01-31", RFC 3339 timestamps and
// "31 Jan 2024 00:00:00 GMT".
func (ct *CatalogTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		ct.Time = time.Time{}
		return nil
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02",
		"02 Jan 2006 15:04:05 MST",
		"2 Jan 2006 15:04:05 MST",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			ct.Time = t
			return nil
		}
	}

	return fmt.Errorf("unable to parse date: %s", s)
}

// JSONCatalog is the top level document of a catalog file.
type JSONCatalog struct {
	Models []JSONModel `json:"models"`
}

// JSONModel is one model entry of a catalog file.
type JSONModel struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Author  string       `json:"author"`
	Summary string       `json:"summary"`
	Updated *CatalogTime `json:"updated"`
	Files   []JSONFile   `json:"files"`
}

// ToModel converts JSONModel to a model.Model with computed paths.
//
// A missing id is derived as "author/name". Files without a name or URL
// are rejected, as are names containing a slash, which would make the
// file identity ambiguous.
func (jm *JSONModel) ToModel(cfg *model.PathConfig) (*model.Model, error) {
	id := jm.ID
	if id == "" {
		if jm.Author == "" || jm.Name == "" {
			return nil, fmt.Errorf("model without id needs both author and name")
		}
		id = jm.Author + "/" + jm.Name
	}

	name := jm.Name
	if name == "" {
		name = id[strings.LastIndex(id, "/")+1:]
	}

	m := model.NewModel(jm.Author, name, id, cfg)
	m.Summary = jm.Summary
	if jm.Updated != nil {
		m.Updated = jm.Updated.Time
	}

	seen := make(map[string]struct{}, len(jm.Files))
	for i := range jm.Files {
		jf := &jm.Files[i]
		if err := jf.validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", id, err)
		}
		if _, dup := seen[jf.Name]; dup {
			return nil, fmt.Errorf("model %s: duplicate file %q", id, jf.Name)
		}
		seen[jf.Name] = struct{}{}
		m.Files = append(m.Files, jf.ToFile(m, cfg))
	}

	return m, nil
}
