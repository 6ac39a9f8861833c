// Package watch ingests documents as they appear in a source folder.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a path must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Ingester is the part of the engine the watcher drives.
type Ingester interface {
	IngestDocument(ctx context.Context, path string) (bool, error)
	Supports(path string) bool
}

// Result reports one ingestion attempt.
type Result struct {
	Path   string
	Stored bool
	Err    error
}

// Watcher ingests supported files created or written in a folder.
// Subdirectories are not watched.
type Watcher struct {
	ing      Ingester
	dir      string
	debounce time.Duration
	onResult func(Result)
}

// Option customises a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithResultHandler is called after each ingestion attempt.
func WithResultHandler(fn func(Result)) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// New creates a watcher for dir.
func New(ing Ingester, dir string, opts ...Option) *Watcher {
	w := &Watcher{ing: ing, dir: dir, debounce: DefaultDebounce}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run watches until ctx is cancelled. The folder is created if missing.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", w.dir, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	slog.Info("watch: started", "dir", w.dir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch: stopped", "dir", w.dir)
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.relevant(ev); ok {
				pending[path] = time.Now().Add(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch: error", "error", err)

		case now := <-ticker.C:
			for path, due := range pending {
				if now.Before(due) {
					continue
				}
				delete(pending, path)
				w.ingest(ctx, path)
			}
		}
	}
}

// relevant keeps create and write events on supported regular files.
func (w *Watcher) relevant(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	if !w.ing.Supports(ev.Name) {
		return "", false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	path, err := filepath.Abs(ev.Name)
	if err != nil {
		path = ev.Name
	}
	return path, true
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	stored, err := w.ing.IngestDocument(ctx, path)
	switch {
	case err != nil:
		slog.Warn("watch: ingestion failed", "path", path, "error", err)
	case stored:
		slog.Info("watch: document ingested", "path", path)
	default:
		slog.Debug("watch: document already known", "path", path)
	}
	if w.onResult != nil {
		w.onResult(Result{Path: path, Stored: stored, Err: err})
	}
}
