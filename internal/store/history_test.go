package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/handiism/model-downloader/internal/download"
	"github.com/handiism/model-downloader/internal/model"
)

func openTest(t *testing.T, dir string) *History {
	t.Helper()
	h, err := Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return h
}

func snapshot(file string, state download.State, done int64, at time.Time) download.Snapshot {
	return download.Snapshot{
		ID:       model.NewFileID("acme/llm", file),
		Instance: uuid.New(),
		Target: download.Target{
			URL:      "https://example.com/" + file,
			Path:     "/models/acme/llm/" + file,
			Metadata: model.FileMetadata{Size: 1000, SHA256: "abc"},
		},
		State:      state,
		BytesDone:  done,
		BytesTotal: 1000,
		UpdatedAt:  at,
	}
}

func TestHistory_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := openTest(t, dir)

	base := time.Now()
	paused := snapshot("a.gguf", download.StatePaused, 400, base)
	failed := snapshot("b.gguf", download.StateErrored, 0, base.Add(time.Second))
	failed.Err = errors.New("transfer: unexpected EOF")

	h.Record(paused)
	h.Record(failed)
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	h = openTest(t, dir)
	defer h.Close()

	unfinished, err := h.Unfinished()
	if err != nil {
		t.Fatalf("Unfinished() error: %v", err)
	}
	if len(unfinished) != 1 {
		t.Fatalf("got %d unfinished, want 1", len(unfinished))
	}
	got := unfinished[0]
	if got.ID != paused.ID || got.Instance != paused.Instance || got.State != download.StatePaused ||
		got.BytesDone != 400 || got.BytesTotal != 1000 || got.Target != paused.Target {
		t.Errorf("restored %+v, want %+v", got, paused)
	}
	if !got.UpdatedAt.Equal(paused.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, paused.UpdatedAt)
	}

	all, err := h.History(0)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(all) != 2 || all[0].ID != failed.ID {
		t.Fatalf("History() = %v, want newest first", all)
	}
	if all[0].Err == nil || all[0].Err.Error() != failed.Err.Error() {
		t.Errorf("stored error = %v", all[0].Err)
	}
}

func TestHistory_RecordCoalesces(t *testing.T) {
	h := openTest(t, t.TempDir())
	defer h.Close()

	s := snapshot("a.gguf", download.StateDownloading, 0, time.Now())
	for i := int64(1); i <= 10; i++ {
		s.BytesDone = i * 100
		s.UpdatedAt = s.UpdatedAt.Add(time.Millisecond)
		h.Record(s)
	}
	s.State = download.StateCompleted
	h.Record(s)

	if err := h.Flush(); err != nil {
		t.Fatal(err)
	}
	all, err := h.History(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].State != download.StateCompleted || all[0].BytesDone != 1000 {
		t.Errorf("History() = %+v", all)
	}

	unfinished, _ := h.Unfinished()
	if len(unfinished) != 0 {
		t.Errorf("completed download listed as unfinished: %v", unfinished)
	}
}

func TestHistory_UnfinishedUsesLatestAttempt(t *testing.T) {
	h := openTest(t, t.TempDir())
	defer h.Close()

	base := time.Now()
	tests := []struct {
		name    string
		older   download.State
		newer   download.State
		restore bool
	}{
		{"retried after pause", download.StatePaused, download.StateCompleted, false},
		{"paused after failure", download.StateErrored, download.StatePaused, true},
		{"queued", download.StateCancelled, download.StateQueued, true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := tt.name + ".gguf"
			h.Record(snapshot(file, tt.older, 10, base.Add(time.Duration(i)*time.Minute)))
			h.Record(snapshot(file, tt.newer, 20, base.Add(time.Duration(i)*time.Minute+time.Second)))
			if err := h.Flush(); err != nil {
				t.Fatal(err)
			}

			unfinished, err := h.Unfinished()
			if err != nil {
				t.Fatal(err)
			}
			found := false
			for _, s := range unfinished {
				if s.ID.FileName == file {
					found = true
					if s.State != tt.newer {
						t.Errorf("restored state %v, want %v", s.State, tt.newer)
					}
				}
			}
			if found != tt.restore {
				t.Errorf("restored = %v, want %v", found, tt.restore)
			}
		})
	}
}

func TestHistory_LateSnapshotNeverRevivesFinished(t *testing.T) {
	tests := []struct {
		name       string
		flushFirst bool
	}{
		{"late snapshot still pending", false},
		{"late snapshot after write", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := openTest(t, t.TempDir())
			defer h.Close()

			base := time.Now()
			stale := snapshot("late.gguf", download.StateDownloading, 300, base)
			cancelled := stale
			cancelled.State = download.StateCancelled
			cancelled.UpdatedAt = base.Add(time.Millisecond)

			// A worker's progress snapshot arrives after Cancel's.
			h.Record(cancelled)
			if tt.flushFirst {
				if err := h.Flush(); err != nil {
					t.Fatal(err)
				}
			}
			h.Record(stale)
			if err := h.Flush(); err != nil {
				t.Fatal(err)
			}

			unfinished, err := h.Unfinished()
			if err != nil {
				t.Fatal(err)
			}
			if len(unfinished) != 0 {
				t.Errorf("cancelled download listed as unfinished: %+v", unfinished)
			}
			all, err := h.History(0)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 1 || all[0].State != download.StateCancelled {
				t.Errorf("History() = %+v, want one cancelled attempt", all)
			}
		})
	}
}

func TestHistory_RunWritesInBackground(t *testing.T) {
	h := openTest(t, t.TempDir())
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	s := snapshot("bg.gguf", download.StatePaused, 300, time.Now())
	h.Record(s)

	deadline := time.Now().Add(5 * time.Second)
	for {
		all, err := h.History(1)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) == 1 && all[0].Instance == s.Instance {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot was never written")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestHistory_Delete(t *testing.T) {
	h := openTest(t, t.TempDir())
	defer h.Close()

	s := snapshot("gone.gguf", download.StatePaused, 1, time.Now())
	h.Record(s)
	if err := h.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := h.Delete(s.Instance); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	all, _ := h.History(0)
	if len(all) != 0 {
		t.Errorf("History() after Delete = %v", all)
	}
}

func TestHistory_LimitsHistory(t *testing.T) {
	h := openTest(t, t.TempDir())
	defer h.Close()

	base := time.Now()
	for i := 0; i < 5; i++ {
		h.Record(snapshot(string(rune('a'+i))+".gguf", download.StateCompleted, 1000, base.Add(time.Duration(i)*time.Second)))
	}
	if err := h.Flush(); err != nil {
		t.Fatal(err)
	}

	got, err := h.History(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID.FileName != "e.gguf" || got[1].ID.FileName != "d.gguf" {
		t.Errorf("History(2) = %v", got)
	}
}
