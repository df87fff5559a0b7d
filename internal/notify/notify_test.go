package notify

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/handiism/model-downloader/internal/model"
)

func fileID(i int) model.FileID {
	return model.NewFileID("author/model", fmt.Sprintf("file-%d.gguf", i))
}

func TestQueue_FIFO(t *testing.T) {
	var q Queue

	for i := 0; i < 3; i++ {
		q.Push(DownloadedFile{File: fileID(i)})
	}

	for i := 0; i < 3; i++ {
		n, ok := q.DrainOne()
		if !ok {
			t.Fatalf("DrainOne() #%d returned empty", i)
		}
		if n.FileID() != fileID(i) {
			t.Errorf("DrainOne() #%d = %v, want %v", i, n.FileID(), fileID(i))
		}
	}

	if n, ok := q.DrainOne(); ok {
		t.Errorf("DrainOne() on empty queue = %v", n)
	}
}

func TestQueue_DrainTwice(t *testing.T) {
	var q Queue
	q.Push(DownloadErrored{File: fileID(1), Err: errors.New("boom")})

	if got := q.Drain(); len(got) != 1 {
		t.Fatalf("first Drain() returned %d items, want 1", len(got))
	}
	if got := q.Drain(); len(got) != 0 {
		t.Errorf("second Drain() returned %d items, want 0", len(got))
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestSignal_Coalesces(t *testing.T) {
	s := NewSignal()

	if s.Check() {
		t.Fatal("new signal should be lowered")
	}

	s.Raise()
	s.Raise()
	s.Raise()

	if !s.Check() {
		t.Fatal("Check() after Raise() = false")
	}
	if s.Check() {
		t.Error("multiple raises should collapse into one wake")
	}
}

func TestPipeline_PollDrainsEverything(t *testing.T) {
	p := NewPipeline()

	if got := p.Poll(); got != nil {
		t.Fatalf("Poll() with no wake = %v, want nil", got)
	}

	p.Publish(DownloadedFile{File: fileID(1)})
	p.Publish(DownloadedFile{File: fileID(2)})

	got := p.Poll()
	if len(got) != 2 {
		t.Fatalf("Poll() returned %d items, want 2", len(got))
	}
	if got[0].FileID() != fileID(1) || got[1].FileID() != fileID(2) {
		t.Errorf("Poll() order = %v, %v", got[0].FileID(), got[1].FileID())
	}

	if got := p.Poll(); len(got) != 0 {
		t.Errorf("second Poll() returned %d items, want 0", len(got))
	}
}

func TestPipeline_ConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 200

	p := NewPipeline()
	var wg sync.WaitGroup
	for w := 0; w < producers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				p.Publish(DownloadedFile{File: fileID(w*perProducer + i)})
			}
		}(w)
	}

	seen := make(map[model.FileID]int)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	collect := func() {
		for _, n := range p.Poll() {
			seen[n.FileID()]++
		}
	}

loop:
	for {
		select {
		case <-done:
			break loop
		default:
			collect()
		}
	}
	collect()

	if len(seen) != producers*perProducer {
		t.Fatalf("saw %d distinct notifications, want %d", len(seen), producers*perProducer)
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("%v observed %d times", id, count)
		}
	}
}

func TestNotification_String(t *testing.T) {
	tests := []struct {
		name string
		n    fmt.Stringer
		want string
	}{
		{"downloaded", DownloadedFile{File: fileID(1)}, "downloaded author/model/file-1.gguf"},
		{"errored", DownloadErrored{File: fileID(2), Err: errors.New("eof")}, "download of author/model/file-2.gguf failed: eof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.n.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
