package download

import (
	"context"
	"time"

	"github.com/google/uuid"

	ioutils "github.com/handiism/model-downloader/internal/io"
	"github.com/handiism/model-downloader/internal/model"
)

// Target describes where a file comes from and where it must end up.
type Target struct {
	URL      string
	Path     string
	Metadata model.FileMetadata
}

// Snapshot is a read-only copy of a task.
type Snapshot struct {
	ID       model.FileID
	Instance uuid.UUID
	Target   Target
	State    State

	// BytesDone may lag the bytes on disk by one progress interval.
	BytesDone int64

	// BytesTotal is -1 while the size is unknown.
	BytesTotal int64

	// Err is set only in StateErrored.
	Err error

	UpdatedAt time.Time
}

// Progress returns the completed fraction in [0, 1], or 0 when the total
// is unknown.
func (s Snapshot) Progress() float64 {
	if s.BytesTotal <= 0 {
		return 0
	}
	return float64(s.BytesDone) / float64(s.BytesTotal)
}

// task is one attempt at downloading a file. Every field is guarded by
// Registry.mu.
type task struct {
	id       model.FileID
	instance uuid.UUID
	target   Target

	state      State
	bytesDone  int64
	bytesTotal int64
	err        error
	updated    time.Time

	// committing is set once the worker starts renaming the verified file.
	committing bool

	// run is the worker currently attached to the task, nil when none.
	run *run
}

// run is the control handle of one worker goroutine.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}

	// reported is only touched by the worker itself.
	reported time.Time
}

func newTask(id model.FileID, target Target) *task {
	total := int64(-1)
	if target.Metadata.HasSize() {
		total = target.Metadata.Size
	}
	return &task{
		id:         id,
		instance:   uuid.New(),
		target:     target,
		state:      StateQueued,
		bytesTotal: total,
		updated:    time.Now(),
	}
}

func (t *task) partialPath() string {
	return ioutils.PartialPath(t.target.Path, t.instance.String())
}

func (t *task) setState(s State) {
	t.state = s
	t.touch(time.Now())
}

// touch advances updated to now. Successive snapshots of one instance always
// carry strictly increasing timestamps so recorders can order them.
func (t *task) touch(now time.Time) {
	if !now.After(t.updated) {
		now = t.updated.Add(time.Nanosecond)
	}
	t.updated = now
}

func (t *task) snapshot() Snapshot {
	return Snapshot{
		ID:         t.id,
		Instance:   t.instance,
		Target:     t.target,
		State:      t.state,
		BytesDone:  t.bytesDone,
		BytesTotal: t.bytesTotal,
		Err:        t.err,
		UpdatedAt:  t.updated,
	}
}
