package download

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/handiism/model-downloader/internal/http"
	ioutils "github.com/handiism/model-downloader/internal/io"
	"github.com/handiism/model-downloader/internal/model"
	"github.com/handiism/model-downloader/internal/notify"
)

// Fetcher opens a transfer body starting at a byte offset.
// *http.Client implements it.
type Fetcher interface {
	OpenRange(ctx context.Context, url string, offset int64) (*http.Response, error)
}

// Publisher receives terminal outcomes. *notify.Pipeline implements it.
type Publisher interface {
	Publish(n notify.Notification)
}

// Recorder receives every snapshot change. It is called without the
// registry lock held and must not block.
type Recorder interface {
	Record(s Snapshot)
}

// Options configures a Registry.
type Options struct {
	// Fetcher performs the HTTP requests. Required.
	Fetcher Fetcher

	// Publisher receives DownloadedFile and DownloadErrored. Required.
	Publisher Publisher

	// Recorder is optional.
	Recorder Recorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// MaxConcurrent bounds simultaneously transferring workers.
	// Zero or negative means unbounded.
	MaxConcurrent int

	// ProgressInterval is the minimum delay between two progress updates
	// of one task. Zero publishes every chunk.
	ProgressInterval time.Duration

	// VerifyChecksums enables SHA-256 verification when the target
	// metadata carries a digest. Size is always verified when known.
	VerifyChecksums bool

	// BufferSize is the copy chunk size; each chunk is a cancellation
	// checkpoint. Defaults to 32 KiB.
	BufferSize int
}

// Registry owns every download task and is the only place task state
// changes.
//
// The registry never performs I/O itself. Start spawns one worker
// goroutine per transfer; Pause and Cancel only relabel the task and signal
// its worker, which stops at its next chunk boundary.
//
// Example:
//
//	pipeline := notify.NewPipeline()
//	reg := download.NewRegistry(download.Options{
//	    Fetcher:   http.NewClient(http.Options{}),
//	    Publisher: pipeline,
//	})
//	defer reg.Close()
//
//	err := reg.Start(file.ID(), download.Target{URL: file.URL, Path: file.Path, Metadata: file.Metadata})
type Registry struct {
	fetcher   Fetcher
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger
	slots     *semaphore.Weighted
	interval  time.Duration
	checksums bool
	bufSize   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tasks  map[model.FileID]*task
	closed bool
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 32 * 1024
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		fetcher:   opts.Fetcher,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		interval:  opts.ProgressInterval,
		checksums: opts.VerifyChecksums,
		bufSize:   opts.BufferSize,
		ctx:       ctx,
		cancel:    cancel,
		tasks:     make(map[model.FileID]*task),
	}
	if opts.MaxConcurrent > 0 {
		r.slots = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return r
}

// Start begins downloading id to target.
//
//   - untracked or finished file: a fresh Queued task is created
//   - Paused task: the task resumes from its partial data; target is ignored
//   - Queued or Downloading task: nothing changes and ErrAlreadyInProgress
//     is returned
func (r *Registry) Start(id model.FileID, target Target) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}

	t, ok := r.tasks[id]
	if ok {
		switch t.state {
		case StateQueued, StateDownloading:
			r.mu.Unlock()
			return ErrAlreadyInProgress
		case StatePaused:
			prev := t.run
			t.err = nil
			t.setState(StateDownloading)
			r.attach(t, prev)
			snap := t.snapshot()
			r.mu.Unlock()

			r.record(snap)
			r.logger.Info("download resumed", "file", id, "bytes", snap.BytesDone)
			return nil
		}
	}

	t = newTask(id, target)
	r.tasks[id] = t
	r.attach(t, nil)
	snap := t.snapshot()
	r.mu.Unlock()

	r.record(snap)
	r.logger.Info("download queued", "file", id, "instance", snap.Instance, "path", target.Path)
	return nil
}

// Pause stops a Downloading task and keeps its partial data.
// Pausing a Queued, Paused or finished task, or one that is already
// committing its file, does nothing.
func (r *Registry) Pause(id model.FileID) error {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if t.state != StateDownloading || t.committing {
		r.mu.Unlock()
		return nil
	}

	t.setState(StatePaused)
	t.run.cancel()
	snap := t.snapshot()
	r.mu.Unlock()

	r.record(snap)
	r.logger.Info("download paused", "file", id, "bytes", snap.BytesDone)
	return nil
}

// Cancel abandons a task in any non-terminal state. Its partial data is
// removed once the worker has stopped. No notification is published for a
// cancelled task. Cancelling a finished task does nothing.
func (r *Registry) Cancel(id model.FileID) error {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if t.state.Terminal() {
		r.mu.Unlock()
		return nil
	}

	t.setState(StateCancelled)
	var done <-chan struct{}
	if t.run != nil {
		t.run.cancel()
		done = t.run.done
	}
	part := t.partialPath()
	snap := t.snapshot()

	r.wg.Add(1)
	go r.discard(done, part)
	r.mu.Unlock()

	r.record(snap)
	r.logger.Info("download cancelled", "file", id)
	return nil
}

// Clear forgets a finished task so the consumer can acknowledge it.
// Active tasks yield ErrAlreadyInProgress.
func (r *Registry) Clear(id model.FileID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !t.state.Terminal() {
		return ErrAlreadyInProgress
	}
	delete(r.tasks, id)
	return nil
}

// Snapshot returns a copy of the task for id.
func (r *Registry) Snapshot(id model.FileID) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return Snapshot{}, false
	}
	return t.snapshot(), true
}

// Snapshots returns a copy of every task, ordered by file id.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	out := make([]Snapshot, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.snapshot())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Restore reinstates unfinished tasks from an earlier session as Paused so
// a later Start continues from their partial data. Finished snapshots and
// files already tracked are skipped. It returns the number restored.
func (r *Registry) Restore(snaps []Snapshot) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for _, s := range snaps {
		if !s.State.Active() {
			continue
		}
		if _, ok := r.tasks[s.ID]; ok {
			continue
		}
		t := &task{
			id:         s.ID,
			instance:   s.Instance,
			target:     s.Target,
			state:      StatePaused,
			bytesDone:  s.BytesDone,
			bytesTotal: s.BytesTotal,
			updated:    s.UpdatedAt,
		}
		r.tasks[s.ID] = t
		restored++
	}
	return restored
}

// Wait blocks until every worker and cleanup goroutine has returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Close pauses every Downloading task, stops all workers and waits for them.
// Paused tasks keep their partial data and can be restored later.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true

	var snaps []Snapshot
	for _, t := range r.tasks {
		if t.state == StateDownloading && !t.committing {
			t.setState(StatePaused)
			snaps = append(snaps, t.snapshot())
		}
	}
	r.mu.Unlock()

	for _, s := range snaps {
		r.record(s)
	}
	r.cancel()
	r.wg.Wait()
}

// attach spawns a worker for t. Must be called with r.mu held.
func (r *Registry) attach(t *task, prev *run) {
	ctx, cancel := context.WithCancel(r.ctx)
	rn := &run{cancel: cancel, done: make(chan struct{})}
	t.run = rn

	r.wg.Add(1)
	go r.work(ctx, t, rn, prev)
}

// discard removes a partial file once the worker writing it has exited.
func (r *Registry) discard(done <-chan struct{}, part string) {
	defer r.wg.Done()

	if done != nil {
		<-done
	}
	if err := ioutils.Discard(part); err != nil {
		r.logger.Warn("failed to remove partial file", "path", part, "error", err)
	}
}

func (r *Registry) record(s Snapshot) {
	if r.recorder != nil {
		r.recorder.Record(s)
	}
}

// contextReader stops a copy at the next chunk once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
