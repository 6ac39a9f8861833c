package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeIngester) IngestDocument(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	return f.err == nil, f.err
}

func (f *fakeIngester) Supports(path string) bool {
	return strings.HasSuffix(path, ".md")
}

func (f *fakeIngester) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "guide.md")
	require.NoError(t, os.WriteFile(file, []byte("# Guide"), 0o644))
	other := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(other, []byte("png"), 0o644))
	sub := filepath.Join(dir, "nested.md")
	require.NoError(t, os.Mkdir(sub, 0o755))

	w := New(&fakeIngester{}, dir)

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create", fsnotify.Event{Name: file, Op: fsnotify.Create}, true},
		{"write", fsnotify.Event{Name: file, Op: fsnotify.Write}, true},
		{"chmod", fsnotify.Event{Name: file, Op: fsnotify.Chmod}, false},
		{"remove", fsnotify.Event{Name: file, Op: fsnotify.Remove}, false},
		{"unsupported", fsnotify.Event{Name: other, Op: fsnotify.Create}, false},
		{"directory", fsnotify.Event{Name: sub, Op: fsnotify.Create}, false},
		{"vanished", fsnotify.Event{Name: filepath.Join(dir, "gone.md"), Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := w.relevant(tt.ev)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestRunIngestsNewFiles(t *testing.T) {
	dir := t.TempDir()
	ing := &fakeIngester{}
	results := make(chan Result, 8)
	w := New(ing, dir, WithDebounce(50*time.Millisecond), WithResultHandler(func(r Result) { results <- r }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the folder.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "guide.md")
	require.NoError(t, os.WriteFile(path, []byte("# Guide\n\nhello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.bin"), []byte("x"), 0o644))

	select {
	case r := <-results:
		assert.True(t, r.Stored)
		assert.NoError(t, r.Err)
		assert.Equal(t, "guide.md", filepath.Base(r.Path))
	case <-time.After(5 * time.Second):
		t.Fatal("no ingestion result")
	}

	cancel()
	require.NoError(t, <-done)

	// Create and write events on the same file collapse into one call.
	assert.Len(t, ing.Calls(), 1)
}

func TestRunReportsErrors(t *testing.T) {
	dir := t.TempDir()
	ing := &fakeIngester{err: errors.New("parse")}
	results := make(chan Result, 8)
	w := New(ing, dir, WithDebounce(20*time.Millisecond), WithResultHandler(func(r Result) { results <- r }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.md"), []byte("x"), 0o644))

	select {
	case r := <-results:
		assert.False(t, r.Stored)
		assert.Error(t, r.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("no ingestion result")
	}
}

func TestRunCreatesMissingFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, New(&fakeIngester{}, dir).Run(ctx))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
