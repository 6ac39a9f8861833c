package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/docai"
)

type handler struct {
	engine    docai.Engine
	sourceDir string
}

func newHandler(e docai.Engine, sourceDir string) *handler {
	return &handler{engine: e, sourceDir: sourceDir}
}

type askResponse struct {
	Success bool           `json:"success"`
	Answer  string         `json:"answer"`
	Mode    string         `json:"mode"`
	Ranker  string         `json:"ranker,omitempty"`
	Sources []docai.Source `json:"sources"`
}

// POST /api/reload
func (h *handler) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	docs, err := h.engine.ReloadAll(ctx)
	if err != nil {
		slog.Error("reload error", "request_id", RequestID(ctx), "error", err)
		writeFailure(w, http.StatusInternalServerError, "reload failed")
		return
	}
	sections, err := h.engine.SectionCount(ctx)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "counting sections failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"documents_count": docs,
		"sections_count":  sections,
	})
}

// POST /api/ask
// An empty question is answered with success=false and status 200.
func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeFailure(w, http.StatusOK, "empty question")
		return
	}

	ans, err := h.engine.Ask(ctx, req.Question)
	if err != nil {
		slog.Error("ask error", "request_id", RequestID(ctx), "error", err)
		writeFailure(w, http.StatusInternalServerError, "question failed")
		return
	}

	sources := ans.Sources
	if sources == nil {
		sources = []docai.Source{}
	}
	writeJSON(w, http.StatusOK, askResponse{
		Success: true,
		Answer:  ans.Text,
		Mode:    ans.Mode,
		Ranker:  ans.Ranker,
		Sources: sources,
	})
}

// GET /api/stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "stats failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"sections_count":    stats.Sections,
		"documents_count":   stats.Documents,
		"embedded_sections": stats.Embedded,
		"queries":           stats.Queries,
	})
}

// POST /api/ingest
// Body: {"path": "guide.md"}. Relative paths resolve against the source
// folder; paths outside it are refused.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Path == "" {
		writeFailure(w, http.StatusBadRequest, "path is required")
		return
	}

	path, ok := confine(h.sourceDir, req.Path)
	if !ok {
		slog.Warn("ingest refused outside source folder", "request_id", RequestID(ctx), "path", req.Path)
		writeFailure(w, http.StatusForbidden, "path outside the source folder")
		return
	}

	stored, err := h.engine.IngestDocument(ctx, path)
	switch {
	case errors.Is(err, docai.ErrDocumentNotFound):
		writeFailure(w, http.StatusNotFound, "document not found")
		return
	case errors.Is(err, docai.ErrUnsupportedFormat), errors.Is(err, docai.ErrEmptyContent),
		errors.Is(err, docai.ErrParsingFailed):
		writeFailure(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		slog.Error("ingest error", "request_id", RequestID(ctx), "path", req.Path, "error", err)
		writeFailure(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stored":  stored,
	})
}

// GET /api/documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "listing documents failed")
		return
	}
	if docs == nil {
		docs = []docai.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"documents": docs,
	})
}

// GET /api/summary
func (h *handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.KnowledgeSummary(r.Context())
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "summary failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"summary": summary,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// confine resolves path inside root, following symlinks, and reports false
// when the result lies outside root.
func confine(root, path string) (string, bool) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	if resolved, err := filepath.EvalSymlinks(rootAbs); err == nil {
		rootAbs = resolved
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(rootAbs, path)
	}
	path = filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	rel, err := filepath.Rel(rootAbs, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure is writeError with the success flag the /api routes carry.
func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
