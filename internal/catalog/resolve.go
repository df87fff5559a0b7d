package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/handiism/model-downloader/internal/model"
	"golang.org/x/sync/errgroup"
)

// SizeProber reports the size of a remote file without downloading it.
type SizeProber interface {
	GetFileSize(ctx context.Context, url string) (int64, error)
}

// ResolveSizes fills in the size of every file whose size the catalog does
// not state, probing at most limit files at a time.
//
// A failed probe leaves that file's size unknown and does not stop the
// others. The failures are returned joined together, alongside the number
// of sizes resolved. Cancelling ctx stops all probes.
func (c *Catalog) ResolveSizes(ctx context.Context, prober SizeProber, limit int) (int, error) {
	var pending []*model.File
	c.mu.RLock()
	for _, m := range c.models {
		for _, f := range m.Files {
			if !f.Metadata.HasSize() {
				pending = append(pending, f)
			}
		}
	}
	c.mu.RUnlock()

	if limit <= 0 {
		limit = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		resolved int32
		mu       sync.Mutex
		failures []error
	)
	for _, f := range pending {
		g.Go(func() error {
			size, err := prober.GetFileSize(ctx, f.URL)
			if err == nil && size <= 0 {
				err = fmt.Errorf("server reports %d bytes", size)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", f.ID(), err))
				mu.Unlock()
				return nil // Continue with other files
			}

			c.mu.Lock()
			f.Metadata.Size = size
			c.mu.Unlock()
			atomic.AddInt32(&resolved, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(resolved), err
	}
	return int(resolved), errors.Join(failures...)
}
