package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/handiism/model-downloader/internal/download"
	dlhttp "github.com/handiism/model-downloader/internal/http"
	"github.com/handiism/model-downloader/internal/model"
	"github.com/handiism/model-downloader/internal/notify"
)

// slowPublisher holds every notification back, like a worker that still
// has cleanup to do after the task reached its final state.
type slowPublisher struct {
	pipeline *notify.Pipeline
	delay    time.Duration
}

func (p slowPublisher) Publish(n notify.Notification) {
	time.Sleep(p.delay)
	p.pipeline.Publish(n)
}

type cliFixture struct {
	srv      *httptest.Server
	reg      *download.Registry
	pipeline *notify.Pipeline
	out      *bytes.Buffer
	w        *waiter
	dir      string
}

func newCLIFixture(t *testing.T, handler http.Handler, delay time.Duration) *cliFixture {
	t.Helper()

	f := &cliFixture{
		pipeline: notify.NewPipeline(),
		out:      &bytes.Buffer{},
		dir:      t.TempDir(),
	}
	f.srv = httptest.NewServer(handler)
	t.Cleanup(f.srv.Close)

	f.reg = download.NewRegistry(download.Options{
		Fetcher:   dlhttp.NewClient(dlhttp.Options{}),
		Publisher: slowPublisher{pipeline: f.pipeline, delay: delay},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(f.reg.Close)

	f.w = &waiter{
		out:      f.out,
		pipeline: f.pipeline,
		registry: f.reg,
		tick:     5 * time.Millisecond,
		report:   time.Hour,
	}
	return f
}

func (f *cliFixture) start(t *testing.T, name string, size int64) model.FileID {
	t.Helper()
	id := model.NewFileID("acme/llm", name)
	err := f.reg.Start(id, download.Target{
		URL:      f.srv.URL + "/" + name,
		Path:     filepath.Join(f.dir, name),
		Metadata: model.FileMetadata{Size: size},
	})
	if err != nil {
		t.Fatalf("Start(%s) error: %v", id, err)
	}
	return id
}

func serve(content []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.gguf", "/short.gguf":
			w.Write(content)
		case "/stall.gguf":
			w.Header().Set("Content-Length", "1000")
			w.Write(content[:10])
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	})
}

func TestWaiter_WaitsForNotification(t *testing.T) {
	content := []byte("0123456789abcdefghij")

	tests := []struct {
		name       string
		file       string
		size       int64
		wantFailed int
		wantOut    []string
	}{
		{"completed", "ok.gguf", int64(len(content)), 0, []string{"✅ acme/llm/ok.gguf"}},
		{"server error", "broken.gguf", 100, 1, []string{"❌ download of acme/llm/broken.gguf failed"}},
		{"size mismatch", "short.gguf", 50, 1, []string{"❌", "did not match the catalog"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCLIFixture(t, serve(content), 300*time.Millisecond)
			id := f.start(t, tt.file, tt.size)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			failed := f.w.wait(ctx, []model.FileID{id})
			if ctx.Err() != nil {
				t.Fatal("wait did not return before the timeout")
			}
			if failed != tt.wantFailed {
				t.Errorf("failed = %d, want %d", failed, tt.wantFailed)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(f.out.String(), want) {
					t.Errorf("output %q does not contain %q", f.out.String(), want)
				}
			}
			if got := f.pipeline.Drain(); len(got) != 0 {
				t.Errorf("notifications left undrained: %v", got)
			}
		})
	}
}

func TestWaiter_CancelledFinishesWithoutNotification(t *testing.T) {
	content := make([]byte, 1000)
	f := newCLIFixture(t, serve(content), 0)
	id := f.start(t, "stall.gguf", 1000)

	go func() {
		time.Sleep(50 * time.Millisecond)
		f.reg.Cancel(id)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if failed := f.w.wait(ctx, []model.FileID{id}); failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if ctx.Err() != nil {
		t.Fatal("wait did not return for a cancelled download")
	}
	if f.out.Len() != 0 {
		t.Errorf("unexpected output %q", f.out.String())
	}
}

func TestWaiter_StopsOnContext(t *testing.T) {
	content := make([]byte, 1000)
	f := newCLIFixture(t, serve(content), 0)
	id := f.start(t, "stall.gguf", 1000)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan int, 1)
	go func() { done <- f.w.wait(ctx, []model.FileID{id}) }()

	select {
	case failed := <-done:
		if failed != 0 {
			t.Errorf("failed = %d, want 0", failed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("wait ignored the cancelled context")
	}

	if s, _ := f.reg.Snapshot(id); s.State.Terminal() {
		t.Errorf("state = %v, want the download still running", s.State)
	}
}
