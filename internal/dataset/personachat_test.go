package dataset_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/autama/autama/backend/internal/dataset"
)

const sampleJSON = `{
  "train": [{
    "personality": ["i like tea.", "i have a cat."],
    "utterances": [
      {"history": ["__ SILENCE __"], "candidates": ["no .", "hello ."]},
      {"history": ["__ SILENCE __", "hello .", "do you have pets ?"], "candidates": ["no .", "a cat named tom ."]}
    ]
  }],
  "valid": [{
    "personality": [],
    "utterances": [{"history": ["hi"], "candidates": ["hey"]}]
  }]
}`

func TestParseAndFlatten(t *testing.T) {
	ds, err := dataset.Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse err: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 dialogs, got %d", ds.Len())
	}

	personalities := ds.Personalities()
	if len(personalities) != 1 || personalities[0][1] != "i have a cat." {
		t.Fatalf("unexpected personalities %v", personalities)
	}

	dialogues := ds.Dialogues()
	if len(dialogues) != 2 {
		t.Fatalf("expected 2 dialogues, got %d", len(dialogues))
	}
	want := []string{"hello .", "do you have pets ?", "a cat named tom ."}
	if !reflect.DeepEqual(dialogues[0].Turns, want) {
		t.Fatalf("unexpected turns:\n got %v\nwant %v", dialogues[0].Turns, want)
	}
	if len(ds.Corpus()) != 2+3+2 {
		t.Fatalf("unexpected corpus size %d", len(ds.Corpus()))
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := dataset.Parse([]byte("{not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFromFileWritesCache(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "personachat.json")
	if err := os.WriteFile(src, []byte(sampleJSON), 0o644); err != nil {
		t.Fatalf("WriteFile err: %v", err)
	}
	cache := filepath.Join(dir, "cache", "dataset.json")

	ds, err := dataset.Load(context.Background(), dataset.Options{Path: src, CachePath: cache})
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 dialogs, got %d", ds.Len())
	}
	if _, err := os.Stat(cache); err != nil {
		t.Fatalf("expected cache file: %v", err)
	}

	// The cache wins even when the source is gone.
	if err := os.Remove(src); err != nil {
		t.Fatalf("Remove err: %v", err)
	}
	again, err := dataset.Load(context.Background(), dataset.Options{Path: src, CachePath: cache})
	if err != nil {
		t.Fatalf("cached Load err: %v", err)
	}
	if !reflect.DeepEqual(ds.Personalities(), again.Personalities()) {
		t.Fatal("cached dataset differs from source")
	}
}

func TestLoadDownloadsURL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "dataset.json")
	opts := dataset.Options{Path: srv.URL, CachePath: cache, Client: srv.Client()}
	for i := 0; i < 2; i++ {
		if _, err := dataset.Load(context.Background(), opts); err != nil {
			t.Fatalf("Load %d err: %v", i, err)
		}
	}
	if hits != 1 {
		t.Fatalf("expected a single download, got %d", hits)
	}
}

func TestLoadReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := dataset.Load(context.Background(), dataset.Options{Path: srv.URL, Client: srv.Client()}); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestLoadRejectsEmptyDataset(t *testing.T) {
	src := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(src, []byte(`{"train":[],"valid":[]}`), 0o644); err != nil {
		t.Fatalf("WriteFile err: %v", err)
	}
	_, err := dataset.Load(context.Background(), dataset.Options{Path: src})
	if !errors.Is(err, dataset.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestSeedCorpus(t *testing.T) {
	ds, err := dataset.Seed()
	if err != nil {
		t.Fatalf("Seed err: %v", err)
	}
	if len(ds.Personalities()) < 5 {
		t.Fatalf("expected bundled personalities, got %d", len(ds.Personalities()))
	}
	for _, d := range ds.Dialogues() {
		if len(d.Turns)%2 != 0 {
			t.Fatalf("seed dialogue should alternate user/model turns: %v", d.Turns)
		}
	}
}
