package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/handiism/model-downloader/internal/http"
	ioutils "github.com/handiism/model-downloader/internal/io"
	"github.com/handiism/model-downloader/internal/notify"
)

// errStopped marks a transfer interrupted by Pause, Cancel or Close.
var errStopped = errors.New("transfer stopped")

// work is the body of a worker goroutine. It owns the partial file of t
// until it returns.
func (r *Registry) work(ctx context.Context, t *task, rn *run, prev *run) {
	defer r.wg.Done()
	defer close(rn.done)
	defer rn.cancel()

	// A resumed task must not touch the partial file while the worker it
	// replaces is still writing to it. rn.done is not closed before prev.done
	// either, so whoever waits on rn.done may remove the file.
	if prev != nil {
		defer func() { <-prev.done }()
		select {
		case <-prev.done:
		case <-ctx.Done():
		}
	}

	if r.slots != nil {
		if err := r.slots.Acquire(ctx, 1); err != nil {
			r.finish(t, rn, 0, errStopped)
			return
		}
		defer r.slots.Release(1)
	}

	r.mu.Lock()
	if ctx.Err() != nil || t.run != rn || !t.state.Active() || t.state == StatePaused {
		r.mu.Unlock()
		r.finish(t, rn, 0, errStopped)
		return
	}
	t.setState(StateDownloading)
	snap := t.snapshot()
	r.mu.Unlock()
	r.record(snap)

	part := t.partialPath()
	written, err := r.fetch(ctx, t, rn, part)
	if err == nil {
		err = r.commit(t, rn, part)
	}
	r.finish(t, rn, written, err)
}

// fetch appends the remaining bytes of t to its partial file and verifies
// the result. It returns the size of the partial file when it stopped.
func (r *Registry) fetch(ctx context.Context, t *task, rn *run, part string) (int64, error) {
	target := t.target

	file, offset, err := ioutils.OpenPartial(part)
	if err != nil {
		return 0, transferError("open", err)
	}
	defer file.Close()

	// Without a catalog size, fall back to the size an earlier run of this
	// instance learned from the server.
	total := target.Metadata.Size
	if !target.Metadata.HasSize() {
		r.mu.Lock()
		total = t.bytesTotal
		r.mu.Unlock()
	}
	r.progress(t, rn, offset, total, true)

	written := offset
	if total < 0 || offset < total {
		written, total, err = r.copyRange(ctx, t, rn, file, offset, total)
		if err != nil {
			return written, err
		}
	}

	if err := file.Close(); err != nil {
		return written, transferError("transfer", err)
	}
	if ctx.Err() != nil {
		return written, errStopped
	}

	digest := ""
	if r.checksums {
		digest = target.Metadata.SHA256
	}
	size := target.Metadata.Size
	if total > 0 {
		size = total
	}
	if err := ioutils.Verify(part, size, digest); err != nil {
		return written, transferError("verify", err)
	}
	return written, nil
}

// copyRange streams the file from offset into file. It returns the bytes
// on disk and the total size learned from the server.
func (r *Registry) copyRange(ctx context.Context, t *task, rn *run, file fileTruncater, offset, total int64) (int64, int64, error) {
	resp, err := r.fetcher.OpenRange(ctx, t.target.URL, offset)
	if err != nil {
		if ctx.Err() != nil {
			return offset, total, errStopped
		}
		return offset, total, transferError("request", err)
	}
	defer resp.Body.Close()

	if resp.Offset != offset {
		// The server ignored the range request, start over.
		if err := file.Truncate(0); err != nil {
			return offset, total, transferError("open", err)
		}
		r.logger.Warn("server ignored range request, restarting", "file", t.id, "offset", offset)
		offset = 0
	}
	if resp.Total >= 0 {
		if total >= 0 && resp.Total != total {
			return offset, total, transferError("request", fmt.Errorf("%w: server reports %d bytes, want %d", ioutils.ErrSizeMismatch, resp.Total, total))
		}
		total = resp.Total
	}
	r.progress(t, rn, offset, total, true)

	var body io.Reader = resp.Body
	if total >= 0 {
		// One extra byte lets an oversized body surface as a size mismatch.
		body = io.LimitReader(body, total-offset+1)
	}

	pw := &http.ProgressWriter{
		Writer:  file,
		Written: offset,
		Total:   total,
		OnUpdate: func(written, total int64) {
			r.progress(t, rn, written, total, false)
		},
	}
	_, err = io.CopyBuffer(pw, contextReader{ctx: ctx, r: body}, make([]byte, r.bufSize))
	if err != nil {
		if ctx.Err() != nil {
			return pw.Written, total, errStopped
		}
		return pw.Written, total, transferError("transfer", err)
	}
	if total >= 0 && pw.Written != total {
		return pw.Written, total, transferError("verify", fmt.Errorf("%w: got %d bytes, want %d", ioutils.ErrSizeMismatch, pw.Written, total))
	}
	r.progress(t, rn, pw.Written, total, true)
	return pw.Written, total, nil
}

type fileTruncater interface {
	io.Writer
	Truncate(size int64) error
}

// commit moves the verified partial file into place. Once committing is
// set, Pause no longer applies; Cancel still does and is resolved by finish.
func (r *Registry) commit(t *task, rn *run, part string) error {
	r.mu.Lock()
	if t.run != rn || t.state != StateDownloading {
		r.mu.Unlock()
		return errStopped
	}
	t.committing = true
	r.mu.Unlock()

	if err := ioutils.EnsureDir(filepath.Dir(t.target.Path)); err != nil {
		return transferError("commit", err)
	}
	if err := ioutils.Commit(part, t.target.Path); err != nil {
		return transferError("commit", err)
	}
	return nil
}

// progress publishes the byte count of t, at most once per interval unless
// force is set.
func (r *Registry) progress(t *task, rn *run, written, total int64, force bool) {
	now := time.Now()
	if !force && now.Sub(rn.reported) < r.interval {
		return
	}
	if total >= 0 && written > total {
		return
	}

	r.mu.Lock()
	if t.run != rn || t.state != StateDownloading {
		r.mu.Unlock()
		return
	}
	if !force && written < t.bytesDone {
		r.mu.Unlock()
		return
	}
	t.bytesDone = written
	t.bytesTotal = total
	t.touch(now)
	snap := t.snapshot()
	r.mu.Unlock()

	rn.reported = now
	r.record(snap)
}

// finish resolves the outcome of a worker. The terminal state is set
// before the notification is published, and nothing is published unless
// the task was still Downloading.
func (r *Registry) finish(t *task, rn *run, written int64, err error) {
	r.mu.Lock()
	if t.run != rn {
		// Replaced by a resumed worker.
		r.mu.Unlock()
		return
	}
	t.run = nil
	committed := t.committing && err == nil
	t.committing = false

	switch t.state {
	case StateDownloading:
		// handled below
	case StatePaused:
		if written > t.bytesDone && (t.bytesTotal < 0 || written <= t.bytesTotal) {
			t.bytesDone = written
			t.touch(time.Now())
		}
		snap := t.snapshot()
		r.mu.Unlock()
		r.record(snap)
		return
	case StateCancelled:
		r.mu.Unlock()
		if committed {
			if rmErr := ioutils.Discard(t.target.Path); rmErr != nil {
				r.logger.Warn("failed to remove cancelled file", "path", t.target.Path, "error", rmErr)
			}
		}
		return
	default:
		r.mu.Unlock()
		return
	}

	if err == nil {
		t.bytesDone = written
		if t.bytesTotal < 0 {
			t.bytesTotal = written
		}
		t.setState(StateCompleted)
		snap := t.snapshot()
		r.mu.Unlock()

		r.record(snap)
		r.logger.Info("download completed", "file", t.id, "bytes", snap.BytesDone, "path", t.target.Path)
		r.publisher.Publish(notify.DownloadedFile{File: t.id, Metadata: t.target.Metadata, Path: t.target.Path})
		return
	}

	if errors.Is(err, errStopped) {
		// Stopped by Close after the task left Queued.
		if written > t.bytesDone && (t.bytesTotal < 0 || written <= t.bytesTotal) {
			t.bytesDone = written
		}
		t.setState(StatePaused)
		snap := t.snapshot()
		r.mu.Unlock()
		r.record(snap)
		return
	}

	t.err = err
	t.setState(StateErrored)
	snap := t.snapshot()
	part := t.partialPath()
	r.mu.Unlock()

	if rmErr := ioutils.Discard(part); rmErr != nil {
		r.logger.Warn("failed to remove partial file", "path", part, "error", rmErr)
	}
	r.record(snap)
	r.logger.Error("download failed", "file", t.id, "error", err)
	r.publisher.Publish(notify.DownloadErrored{File: t.id, Err: err})
}
