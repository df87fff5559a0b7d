package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/handiism/model-downloader/internal/download"
	"github.com/handiism/model-downloader/internal/model"
	"github.com/handiism/model-downloader/internal/notify"
)

// History persists download snapshots in SQLite.
//
// Record is called by the registry on every state or progress change and
// never touches the database: snapshots are coalesced per task instance and
// written by Run, or by an explicit Flush.
//
// Example usage:
//
//	history, err := store.Open(settings.DataDir, logger)
//	if err != nil {
//	    return err
//	}
//	defer history.Close()
//	go history.Run(ctx)
//
//	unfinished, _ := history.Unfinished()
//	registry.Restore(unfinished)
type History struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]download.Snapshot
	wake    *notify.Signal
}

// Open opens (or creates) the history database in dataDir.
func Open(dataDir string, logger *slog.Logger) (*History, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openDB(dataDir)
	if err != nil {
		return nil, err
	}
	return &History{
		db:      db,
		logger:  logger,
		pending: make(map[uuid.UUID]download.Snapshot),
		wake:    notify.NewSignal(),
	}, nil
}

// Close writes pending snapshots and closes the database.
func (h *History) Close() error {
	flushErr := h.Flush()
	return errors.Join(flushErr, h.db.Close())
}

// Record queues s for writing. Only the latest snapshot of each task
// instance is kept, ordered by UpdatedAt rather than by arrival: a progress
// snapshot delivered after the task was cancelled is dropped. It never
// blocks on the database.
func (h *History) Record(s download.Snapshot) {
	h.mu.Lock()
	if cur, ok := h.pending[s.Instance]; ok && s.UpdatedAt.Before(cur.UpdatedAt) {
		h.mu.Unlock()
		return
	}
	h.pending[s.Instance] = s
	h.mu.Unlock()
	h.wake.Raise()
}

// Run writes recorded snapshots until ctx is cancelled, then flushes once
// more and returns.
func (h *History) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if err := h.Flush(); err != nil {
				h.logger.Error("failed to write download history", "error", err)
			}
			return
		case <-h.wake.C():
			if err := h.Flush(); err != nil {
				h.logger.Error("failed to write download history", "error", err)
			}
		}
	}
}

// Flush writes every pending snapshot in one transaction. A row is never
// overwritten by an older snapshot. On failure the snapshots are put back
// unless a newer one was recorded meanwhile.
func (h *History) Flush() error {
	h.mu.Lock()
	batch := h.pending
	h.pending = make(map[uuid.UUID]download.Snapshot)
	h.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := h.write(batch); err != nil {
		h.mu.Lock()
		for k, s := range batch {
			if cur, ok := h.pending[k]; !ok || s.UpdatedAt.After(cur.UpdatedAt) {
				h.pending[k] = s
			}
		}
		h.mu.Unlock()
		return err
	}
	return nil
}

func (h *History) write(batch map[uuid.UUID]download.Snapshot) error {
	tx, err := h.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO downloads (instance, model_id, file_name, url, path, size, sha256, state, bytes_done, bytes_total, error, updated_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance) DO UPDATE SET
			state = excluded.state,
			bytes_done = excluded.bytes_done,
			bytes_total = excluded.bytes_total,
			error = excluded.error,
			updated_ns = excluded.updated_ns
		WHERE excluded.updated_ns >= downloads.updated_ns`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range batch {
		var errText sql.NullString
		if s.Err != nil {
			errText = sql.NullString{String: s.Err.Error(), Valid: true}
		}
		_, err := stmt.Exec(
			s.Instance.String(), s.ID.ModelID, s.ID.FileName,
			s.Target.URL, s.Target.Path, s.Target.Metadata.Size, s.Target.Metadata.SHA256,
			s.State.String(), s.BytesDone, s.BytesTotal, errText, s.UpdatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", s.ID, err)
		}
	}
	return tx.Commit()
}

const selectColumns = `SELECT instance, model_id, file_name, url, path, size, sha256, state, bytes_done, bytes_total, error, updated_ns FROM downloads`

// Unfinished returns the latest attempt of each file when that attempt is
// still unfinished, ready for download.Registry.Restore.
func (h *History) Unfinished() ([]download.Snapshot, error) {
	snaps, err := h.query(selectColumns + ` ORDER BY updated_ns DESC`)
	if err != nil {
		return nil, err
	}

	seen := make(map[model.FileID]struct{}, len(snaps))
	var out []download.Snapshot
	for _, s := range snaps {
		if _, older := seen[s.ID]; older {
			continue
		}
		seen[s.ID] = struct{}{}
		if s.State.Active() {
			out = append(out, s)
		}
	}
	return out, nil
}

// History returns the most recently updated attempts, newest first. A
// limit of zero or less returns everything.
func (h *History) History(limit int) ([]download.Snapshot, error) {
	query := selectColumns + ` ORDER BY updated_ns DESC`
	if limit > 0 {
		return h.query(query+` LIMIT ?`, limit)
	}
	return h.query(query)
}

// Delete removes the record of one attempt.
func (h *History) Delete(instance uuid.UUID) error {
	h.mu.Lock()
	delete(h.pending, instance)
	h.mu.Unlock()

	_, err := h.db.Exec(`DELETE FROM downloads WHERE instance = ?`, instance.String())
	return err
}

func (h *History) query(query string, args ...any) ([]download.Snapshot, error) {
	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []download.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (download.Snapshot, error) {
	var (
		s         download.Snapshot
		instance  string
		state     string
		errText   sql.NullString
		updatedNs int64
	)
	err := rows.Scan(&instance, &s.ID.ModelID, &s.ID.FileName,
		&s.Target.URL, &s.Target.Path, &s.Target.Metadata.Size, &s.Target.Metadata.SHA256,
		&state, &s.BytesDone, &s.BytesTotal, &errText, &updatedNs)
	if err != nil {
		return s, err
	}

	if s.Instance, err = uuid.Parse(instance); err != nil {
		return s, fmt.Errorf("bad instance %q: %w", instance, err)
	}
	var ok bool
	if s.State, ok = download.ParseState(state); !ok {
		return s, fmt.Errorf("bad state %q for %s", state, s.ID)
	}
	if errText.Valid {
		s.Err = errors.New(errText.String)
	}
	s.UpdatedAt = time.Unix(0, updatedNs)
	return s, nil
}
