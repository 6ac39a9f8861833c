package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/docai"
)

type fakeEngine struct {
	mu        sync.Mutex
	questions []string
	ingested  []string
	reloads   int
	askErr    error
	ingestErr error
	panicAsk  bool
}

func (f *fakeEngine) IngestFolder(ctx context.Context, dir string) (int, error) { return 0, nil }

func (f *fakeEngine) IngestDocument(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ingestErr != nil {
		return false, f.ingestErr
	}
	f.ingested = append(f.ingested, path)
	return true, nil
}

func (f *fakeEngine) Ask(ctx context.Context, question string) (*docai.Answer, error) {
	if f.panicAsk {
		panic("boom")
	}
	f.mu.Lock()
	f.questions = append(f.questions, question)
	f.mu.Unlock()
	if f.askErr != nil {
		return nil, f.askErr
	}
	return &docai.Answer{
		Text:   "answer to " + question,
		Mode:   docai.ModeAnswered,
		Ranker: "lexical",
		Sources: []docai.Source{
			{SectionID: 1, DocumentID: 1, Filename: "guide.md", Title: "Install", Score: 2},
		},
	}, nil
}

func (f *fakeEngine) ReloadAll(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return 2, nil
}

func (f *fakeEngine) IndexEmbeddings(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeEngine) SectionCount(ctx context.Context) (int, error)    { return 7, nil }

func (f *fakeEngine) KnowledgeSummary(ctx context.Context) (string, error) {
	return "I have learned 7 sections from 2 documents:\n", nil
}

func (f *fakeEngine) ListDocuments(ctx context.Context) ([]docai.Document, error) {
	return []docai.Document{{ID: 1, Filename: "guide.md", Path: "/docs/guide.md", Sections: 7}}, nil
}

func (f *fakeEngine) Stats(ctx context.Context) (*docai.Stats, error) {
	return &docai.Stats{Documents: 2, Sections: 7, Embedded: 3, Queries: 4}, nil
}

func (f *fakeEngine) Supports(path string) bool { return strings.HasSuffix(path, ".md") }
func (f *fakeEngine) Close() error              { return nil }

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAsk(t *testing.T) {
	eng := &fakeEngine{}
	h := New(eng, Config{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/ask", `{"question":"how to install"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "answer to how to install", body["answer"])
	assert.Equal(t, docai.ModeAnswered, body["mode"])
	assert.Equal(t, "lexical", body["ranker"])
	assert.Len(t, body["sources"], 1)
	assert.Equal(t, []string{"how to install"}, eng.questions)
}

func TestAskEmptyQuestion(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing", `{}`},
		{"empty", `{"question":""}`},
		{"blank", `{"question":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{}
			rec := do(t, New(eng, Config{}).Handler(), http.MethodPost, "/api/ask", tt.body, nil)

			assert.Equal(t, http.StatusOK, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "empty question", body["error"])
			assert.Empty(t, eng.questions)
		})
	}
}

func TestAskInvalidJSON(t *testing.T) {
	rec := do(t, New(&fakeEngine{}, Config{}).Handler(), http.MethodPost, "/api/ask", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskEngineError(t *testing.T) {
	eng := &fakeEngine{askErr: errors.New("store down")}
	rec := do(t, New(eng, Config{}).Handler(), http.MethodPost, "/api/ask", `{"question":"x"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestReload(t *testing.T) {
	eng := &fakeEngine{}
	rec := do(t, New(eng, Config{}).Handler(), http.MethodPost, "/api/reload", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["documents_count"])
	assert.EqualValues(t, 7, body["sections_count"])
	assert.Equal(t, 1, eng.reloads)
}

func TestStats(t *testing.T) {
	rec := do(t, New(&fakeEngine{}, Config{}).Handler(), http.MethodGet, "/api/stats", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 7, body["sections_count"])
	assert.EqualValues(t, 3, body["embedded_sections"])
}

func TestIngest(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		body       string
		wantStatus int
	}{
		{"stored", nil, `{"path":"a.md"}`, http.StatusOK},
		{"missing path", nil, `{}`, http.StatusBadRequest},
		{"not found", docai.ErrDocumentNotFound, `{"path":"nope.md"}`, http.StatusNotFound},
		{"unsupported", fmt.Errorf("x: %w", docai.ErrUnsupportedFormat), `{"path":"a.bin"}`, http.StatusUnprocessableEntity},
		{"empty", docai.ErrEmptyContent, `{"path":"a.md"}`, http.StatusUnprocessableEntity},
		{"other", errors.New("disk"), `{"path":"a.md"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{ingestErr: tt.err}
			rec := do(t, New(eng, Config{SourceDir: t.TempDir()}).Handler(), http.MethodPost, "/api/ingest", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestIngestResolvesInsideSourceFolder(t *testing.T) {
	src := t.TempDir()
	root, err := filepath.EvalSymlinks(src)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(src, "sub"), 0o755))
	eng := &fakeEngine{}
	h := New(eng, Config{SourceDir: src}).Handler()

	rec := do(t, h, http.MethodPost, "/api/ingest", `{"path":"sub/guide.md"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	abs := filepath.Join(root, "guide.md")
	body, _ := json.Marshal(map[string]string{"path": abs})
	rec = do(t, h, http.MethodPost, "/api/ingest", string(body), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, eng.ingested, 2)
	assert.Equal(t, filepath.Join(root, "sub", "guide.md"), eng.ingested[0])
	assert.Equal(t, filepath.Join(root, "guide.md"), eng.ingested[1])
}

func TestIngestRefusesPathsOutsideSourceFolder(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "documentation")
	other := filepath.Join(base, "elsewhere")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.Mkdir(other, 0o755))
	secret := filepath.Join(other, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("the database password is hunter2"), 0o644))
	require.NoError(t, os.Symlink(other, filepath.Join(src, "link")))

	for _, path := range []string{
		secret,
		"../elsewhere/secret.txt",
		"sub/../../elsewhere/secret.txt",
		"link/secret.txt",
		"..",
	} {
		t.Run(path, func(t *testing.T) {
			eng := &fakeEngine{}
			body, _ := json.Marshal(map[string]string{"path": path})
			rec := do(t, New(eng, Config{SourceDir: src}).Handler(), http.MethodPost, "/api/ingest", string(body), nil)

			assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
			assert.Equal(t, false, decode(t, rec)["success"])
			assert.Empty(t, eng.ingested)
		})
	}
}

func TestDocumentsAndSummary(t *testing.T) {
	h := New(&fakeEngine{}, Config{}).Handler()

	rec := do(t, h, http.MethodGet, "/api/documents", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["documents"], 1)

	rec = do(t, h, http.MethodGet, "/api/summary", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["summary"], "7 sections")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, New(&fakeEngine{}, Config{}).Handler(), http.MethodGet, "/api/ask", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAuth(t *testing.T) {
	h := New(&fakeEngine{}, Config{APIKey: "secret"}).Handler()

	rec := do(t, h, http.MethodGet, "/api/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/stats", "", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/stats", "", http.Header{"Authorization": {"Bearer secret"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := New(&fakeEngine{}, Config{CORSOrigins: "*"}).Handler()

	rec := do(t, h, http.MethodOptions, "/api/ask", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, New(&fakeEngine{}, Config{}).Handler(), http.MethodGet, "/health", "", nil)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	h := New(&fakeEngine{}, Config{}).Handler()

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	rec = do(t, h, http.MethodGet, "/health", "", http.Header{RequestIDHeader: {id}})
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	rec = do(t, h, http.MethodGet, "/health", "", http.Header{RequestIDHeader: {"not-a-uuid"}})
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	rec := do(t, New(&fakeEngine{panicAsk: true}, Config{}).Handler(), http.MethodPost, "/api/ask", `{"question":"x"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunShutdown(t *testing.T) {
	s := New(&fakeEngine{}, Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
