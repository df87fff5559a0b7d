package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/handiism/model-downloader/internal/catalog/dto"
	"github.com/handiism/model-downloader/internal/download"
	"github.com/handiism/model-downloader/internal/model"
)

var (
	// ErrUnknownModel is returned when a file id names a model that is not
	// in the catalog.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownFile is returned when the model exists but has no file with
	// the requested name.
	ErrUnknownFile = errors.New("unknown file")
)

// Getter fetches a remote catalog document.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Catalog is the set of models whose files can be downloaded.
//
// Paths of every file are computed once, when the catalog is parsed, from
// the PathConfig in effect at that time.
//
// Example usage:
//
//	cat, err := catalog.Load(ctx, settings.CatalogPath, settings.ToPathConfig(), client)
//	if err != nil {
//	    return err
//	}
//
//	target, err := cat.Target(model.NewFileID("TheBloke/Mistral-7B", "mistral.Q4_K_M.gguf"))
//	if err != nil {
//	    return err
//	}
//	registry.Start(id, target)
type Catalog struct {
	mu     sync.RWMutex
	models []*model.Model
	byID   map[string]*model.Model
}

// Parse decodes a catalog document.
//
// Returns an error if:
//   - The JSON is malformed
//   - A model or file entry is incomplete
//   - Two models share an id, or a model lists the same file twice
func Parse(data []byte, cfg *model.PathConfig) (*Catalog, error) {
	var doc dto.JSONCatalog
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}

	c := &Catalog{byID: make(map[string]*model.Model, len(doc.Models))}
	for i := range doc.Models {
		m, err := doc.Models[i].ToModel(cfg)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model %q", m.ID)
		}
		c.byID[m.ID] = m
		c.models = append(c.models, m)
	}
	return c, nil
}

// Load reads a catalog from a local file, or fetches it with getter when
// source is an http(s) URL.
func Load(ctx context.Context, source string, cfg *model.PathConfig, getter Getter) (*Catalog, error) {
	var (
		data []byte
		err  error
	)
	if isURL(source) {
		if getter == nil {
			return nil, fmt.Errorf("cannot fetch remote catalog %s without a client", source)
		}
		data, err = getter.Get(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read catalog %s: %w", source, err)
	}
	return Parse(data, cfg)
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Models returns every model in catalog order.
func (c *Catalog) Models() []*model.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*model.Model, len(c.models))
	copy(out, c.models)
	return out
}

// Files returns the identity of every file in catalog order.
func (c *Catalog) Files() []model.FileID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []model.FileID
	for _, m := range c.models {
		for _, f := range m.Files {
			ids = append(ids, f.ID())
		}
	}
	return ids
}

// Lookup finds the model and file for id.
func (c *Catalog) Lookup(id model.FileID) (*model.Model, *model.File, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lookup(id)
}

func (c *Catalog) lookup(id model.FileID) (*model.Model, *model.File, error) {
	m, ok := c.byID[id.ModelID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownModel, id.ModelID)
	}
	f := m.File(id.FileName)
	if f == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownFile, id)
	}
	return m, f, nil
}

// Target returns where the file for id is fetched from, where it is saved
// and what it must look like once complete.
func (c *Catalog) Target(id model.FileID) (download.Target, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, f, err := c.lookup(id)
	if err != nil {
		return download.Target{}, err
	}
	return download.Target{
		URL:      f.URL,
		Path:     f.Path,
		Metadata: f.Metadata,
	}, nil
}
