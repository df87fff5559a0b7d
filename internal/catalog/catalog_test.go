package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	dlhttp "github.com/handiism/model-downloader/internal/http"
	"github.com/handiism/model-downloader/internal/model"
)

const sample = `{
  "models": [
    {
      "id": "TheBloke/Mistral-7B",
      "name": "Mistral 7B",
      "author": "TheBloke",
      "summary": "instruct tuned",
      "updated": "2024-01-31",
      "files": [
        {"name": "mistral.Q4_K_M.gguf", "url": "https://example.com/q4", "quantization": "Q4_K_M", "size": 4000, "sha256": "ABCDEF"},
        {"name": "mistral.Q8_0.gguf", "url": "//example.com/q8", "quantization": "Q8_0"}
      ]
    },
    {
      "name": "tiny",
      "author": "acme",
      "files": [{"name": "tiny.bin", "url": "https://example.com/tiny", "size": 12}]
    }
  ]
}`

func testConfig(dir string) *model.PathConfig {
	return &model.PathConfig{
		DownloadsPath:  filepath.Join(dir, "{author}", "{model}"),
		FileNameFormat: "{file}",
	}
}

func TestParse(t *testing.T) {
	cat, err := Parse([]byte(sample), testConfig("/models"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	models := cat.Models()
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[1].ID != "acme/tiny" {
		t.Errorf("derived id = %q, want acme/tiny", models[1].ID)
	}
	if models[0].Updated.Year() != 2024 {
		t.Errorf("updated = %v", models[0].Updated)
	}

	q8 := models[0].File("mistral.Q8_0.gguf")
	if q8 == nil || q8.URL != "https://example.com/q8" {
		t.Fatalf("protocol-relative url not fixed: %+v", q8)
	}
	if q8.Metadata.HasSize() {
		t.Error("file without size should be unknown")
	}
	if got := models[0].Files[0].Metadata.SHA256; got != "abcdef" {
		t.Errorf("sha256 = %q, want lower case", got)
	}

	if ids := cat.Files(); len(ids) != 3 || ids[2].String() != "acme/tiny/tiny.bin" {
		t.Errorf("Files() = %v", ids)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"malformed", `{"models": [`, "parse catalog"},
		{"no id", `{"models": [{"name": "x"}]}`, "author and name"},
		{"duplicate model", `{"models": [{"id": "a/b"}, {"id": "a/b"}]}`, "duplicate model"},
		{"file without url", `{"models": [{"id": "a/b", "files": [{"name": "f"}]}]}`, "no url"},
		{"file with slash", `{"models": [{"id": "a/b", "files": [{"name": "x/f", "url": "u"}]}]}`, "slash"},
		{"duplicate file", `{"models": [{"id": "a/b", "files": [{"name": "f", "url": "u"}, {"name": "f", "url": "u"}]}]}`, "duplicate file"},
		{"bad date", `{"models": [{"id": "a/b", "updated": "yesterday"}]}`, "unable to parse date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), testConfig("/m"))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestCatalog_Lookup(t *testing.T) {
	cat, err := Parse([]byte(sample), testConfig("/models"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		id      model.FileID
		wantErr error
	}{
		{"found", model.NewFileID("TheBloke/Mistral-7B", "mistral.Q4_K_M.gguf"), nil},
		{"unknown model", model.NewFileID("nobody/none", "x.gguf"), ErrUnknownModel},
		{"unknown file", model.NewFileID("TheBloke/Mistral-7B", "x.gguf"), ErrUnknownFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, f, err := cat.Lookup(tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Lookup() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (m.ID != tt.id.ModelID || f.Name != tt.id.FileName) {
				t.Errorf("Lookup() = %s, %s", m.ID, f.Name)
			}
		})
	}
}

func TestCatalog_Target(t *testing.T) {
	cat, err := Parse([]byte(sample), testConfig("/models"))
	if err != nil {
		t.Fatal(err)
	}

	target, err := cat.Target(model.NewFileID("TheBloke/Mistral-7B", "mistral.Q4_K_M.gguf"))
	if err != nil {
		t.Fatalf("Target() error: %v", err)
	}
	want := filepath.Join("/models", "TheBloke", "Mistral 7B", "mistral.Q4_K_M.gguf")
	if target.Path != want {
		t.Errorf("Path = %q, want %q", target.Path, want)
	}
	if target.URL != "https://example.com/q4" || target.Metadata.Size != 4000 {
		t.Errorf("Target() = %+v", target)
	}

	if _, err := cat.Target(model.NewFileID("acme/tiny", "nope")); !errors.Is(err, ErrUnknownFile) {
		t.Errorf("Target(unknown) error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("file", func(t *testing.T) {
		cat, err := Load(context.Background(), path, testConfig(dir), nil)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if len(cat.Models()) != 2 {
			t.Errorf("got %d models", len(cat.Models()))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(context.Background(), filepath.Join(dir, "none.json"), testConfig(dir), nil); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Load() error = %v, want not exist", err)
		}
	})

	t.Run("url", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, sample)
		}))
		defer srv.Close()

		cat, err := Load(context.Background(), srv.URL+"/catalog.json", testConfig(dir), dlhttp.NewClient(dlhttp.Options{}))
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if _, _, err := cat.Lookup(model.NewFileID("acme/tiny", "tiny.bin")); err != nil {
			t.Errorf("Lookup() error: %v", err)
		}
	})

	t.Run("url without client", func(t *testing.T) {
		if _, err := Load(context.Background(), "https://example.com/c.json", testConfig(dir), nil); err == nil {
			t.Error("expected error")
		}
	})
}

func TestCatalog_ResolveSizes(t *testing.T) {
	doc := `{"models": [{"id": "a/m", "files": [
		{"name": "known", "url": "%[1]s/known", "size": 5},
		{"name": "one", "url": "%[1]s/one"},
		{"name": "two", "url": "%[1]s/two"},
		{"name": "gone", "url": "%[1]s/gone"}
	]}]}`

	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		switch r.URL.Path {
		case "/one":
			w.Header().Set("Content-Length", "100")
		case "/two":
			w.Header().Set("Content-Length", "200")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cat, err := Parse([]byte(fmt.Sprintf(doc, srv.URL)), testConfig(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	n, err := cat.ResolveSizes(context.Background(), dlhttp.NewClient(dlhttp.Options{}), 2)
	if n != 2 {
		t.Errorf("resolved %d sizes, want 2", n)
	}
	if err == nil || !strings.Contains(err.Error(), "a/m/gone") {
		t.Errorf("error = %v, want failure for a/m/gone", err)
	}
	if probes.Load() != 3 {
		t.Errorf("probed %d files, want 3", probes.Load())
	}

	for name, want := range map[string]int64{"known": 5, "one": 100, "two": 200, "gone": 0} {
		_, f, _ := cat.Lookup(model.NewFileID("a/m", name))
		if f.Metadata.Size != want {
			t.Errorf("%s size = %d, want %d", name, f.Metadata.Size, want)
		}
	}
}
