package docai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// embedBatchSize is the number of sections fetched per IndexEmbeddings round.
const embedBatchSize = 32

// IngestFolder ingests the supported regular files directly inside dir, in
// name order. A failing document is logged and skipped. Returns the number
// of documents that stored at least one new section.
func (e *engine) IngestFolder(ctx context.Context, dir string) (int, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("creating source folder: %w", err)
		}
		slog.Info("ingest: created missing source folder", "dir", dir)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading source folder: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("source folder %s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("listing source folder: %w", err)
	}

	start := time.Now()
	count := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !e.loader.Supports(path) {
			continue
		}

		ok, err := e.IngestDocument(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			slog.Error("ingest: document failed", "file", entry.Name(), "error", err)
			continue
		}
		if ok {
			count++
		}
	}

	slog.Info("ingest: folder done",
		"dir", dir,
		"documents", count,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return count, nil
}

// IngestDocument reads, splits and stores one document.
func (e *engine) IngestDocument(ctx context.Context, path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolving path: %w", err)
	}
	filename := filepath.Base(absPath)

	info, err := os.Stat(absPath)
	if err != nil || !info.Mode().IsRegular() {
		return false, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
	}

	exists, err := e.store.DocumentExists(ctx, absPath)
	if err != nil {
		return false, err
	}
	if exists {
		slog.Debug("ingest: document already stored", "file", filename)
		return false, nil
	}

	if !e.loader.Supports(absPath) {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	slog.Info("ingest: parsing document", "file", filename)
	text, err := e.loader.Load(ctx, absPath)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			return false, err
		}
		return false, fmt.Errorf("%w: %s: %v", ErrParsingFailed, filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return false, fmt.Errorf("%w: %s", ErrEmptyContent, filename)
	}

	docID, err := e.store.PutDocument(ctx, filename, absPath)
	if err != nil {
		return false, err
	}

	sections := e.splitter.Split(text)
	stored, embedded := 0, 0
	for _, sec := range sections {
		if err := ctx.Err(); err != nil {
			return stored > 0, err
		}

		vec := e.embedSection(ctx, filename, sec.Body)
		ok, err := e.store.PutSectionWithEmbedding(ctx, docID, sec.Title, sec.Body, vec)
		if err != nil {
			return stored > 0, fmt.Errorf("storing section %q: %w", sec.Title, err)
		}
		if ok {
			stored++
			if vec != nil {
				embedded++
			}
		}
	}

	slog.Info("ingest: document stored",
		"file", filename,
		"doc_id", docID,
		"sections", len(sections),
		"new_sections", stored,
		"embedded", embedded,
	)
	return stored > 0, nil
}

// embedSection returns the embedding of a section body, or nil when
// embeddings are disabled or the provider fails. Sections stored without an
// embedding are picked up later by IndexEmbeddings.
func (e *engine) embedSection(ctx context.Context, filename, body string) []float32 {
	if e.semantic == nil {
		return nil
	}
	vec, err := e.semantic.Embed(ctx, body)
	if err != nil {
		slog.Warn("ingest: embedding failed, storing section without it",
			"file", filename, "error", err)
		return nil
	}
	return vec
}

// ReloadAll deletes every document and section, then ingests SourceDir.
func (e *engine) ReloadAll(ctx context.Context) (int, error) {
	if err := e.store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("resetting store: %w", err)
	}
	slog.Info("reload: loading documents", "dir", e.cfg.SourceDir)
	return e.IngestFolder(ctx, e.cfg.SourceDir)
}

// IndexEmbeddings embeds every section stored without an embedding. It
// stops at the first provider failure and returns the count done so far.
func (e *engine) IndexEmbeddings(ctx context.Context) (int, error) {
	if e.semantic == nil {
		return 0, fmt.Errorf("%w: no embedding provider configured", ErrInvalidConfig)
	}

	done := 0
	for {
		batch, err := e.store.SectionsWithoutEmbedding(ctx, embedBatchSize)
		if err != nil {
			return done, err
		}
		if len(batch) == 0 {
			break
		}

		for _, sec := range batch {
			vec, err := e.semantic.Embed(ctx, sec.Content)
			if err != nil {
				return done, fmt.Errorf("section %d: %w", sec.ID, err)
			}
			if err := e.store.SetSectionEmbedding(ctx, sec.ID, vec); err != nil {
				return done, err
			}
			done++
		}
		slog.Debug("index: batch embedded", "sections", len(batch), "total", done)
	}

	slog.Info("index: embeddings complete", "sections", done)
	return done, nil
}
