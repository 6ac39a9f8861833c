// Package store persists documents and their sections in SQLite.
//
// Sections are deduplicated by the MD5 digest of their content across the
// whole store. Embeddings live in the sections table as float32
// little-endian blobs, the vector encoding sqlite-vec understands.
package store

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by every operation on a closed Store.
var ErrClosed = errors.New("docai: store is closed")

// Document represents a row in the documents table.
type Document struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Sections int    `json:"sections"`
}

// Section represents a row in the sections table.
type Section struct {
	ID          int64     `json:"id"`
	DocumentID  int64     `json:"document_id"`
	Filename    string    `json:"filename,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"-"`
}

// DocumentTitles lists the section titles of one document.
type DocumentTitles struct {
	DocumentID int64    `json:"document_id"`
	Filename   string   `json:"filename"`
	Titles     []string `json:"titles"`
}

// QueryLog represents a row in the query_log table.
type QueryLog struct {
	Question string `json:"question"`
	Mode     string `json:"mode"`
	Ranker   string `json:"ranker"`
	Sections int    `json:"sections"`
	Answer   string `json:"answer"`
}

// Stats holds row counts.
type Stats struct {
	Documents int `json:"documents"`
	Sections  int `json:"sections"`
	Embedded  int `json:"embedded_sections"`
	Queries   int `json:"queries"`
}

// Store wraps the SQLite database. All methods are safe for concurrent use;
// a single mutex serialises them so the hash check and the insert of
// PutSection can never interleave with another writer.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// New opens (or creates) a SQLite database at the given path and applies
// pending migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// lock acquires the store mutex, failing if the store is closed. Callers
// must defer s.mu.Unlock() only after a nil error.
func (s *Store) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// ContentHash returns the deduplication key of a section body.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// --- Document operations ---

// DocumentExists reports whether a document with the given source path
// has been stored.
func (s *Store) DocumentExists(ctx context.Context, path string) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE file_path = ?", path).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up document %s: %w", path, err)
	}
	return true, nil
}

// PutDocument inserts a document record, or replaces the filename of the
// record already stored under path. Returns the document ID.
func (s *Store) PutDocument(ctx context.Context, filename, path string) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (filename, file_path) VALUES (?, ?)
		ON CONFLICT(file_path) DO UPDATE SET filename = excluded.filename
		RETURNING id
	`, filename, path).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting document %s: %w", path, err)
	}
	return id, nil
}

// ListDocuments returns all documents ordered by ID, with section counts.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, COALESCE(d.filename, ''), COALESCE(d.file_path, ''),
			(SELECT COUNT(*) FROM sections s WHERE s.document_id = d.id)
		FROM documents d ORDER BY d.id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.Path, &d.Sections); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// --- Section operations ---

// PutSection stores a section unless a section with identical content
// already exists anywhere in the store. It reports whether a row was
// inserted.
func (s *Store) PutSection(ctx context.Context, docID int64, title, content string) (bool, error) {
	return s.PutSectionWithEmbedding(ctx, docID, title, content, nil)
}

// PutSectionWithEmbedding is PutSection with an embedding vector stored
// alongside. A nil or empty vec stores no embedding.
func (s *Store) PutSectionWithEmbedding(ctx context.Context, docID int64, title, content string, vec []float32) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	hash := ContentHash(content)
	inserted := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM sections WHERE content_hash = ?", hash).Scan(&one)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking content hash: %w", err)
		}

		if len(vec) == 0 {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO sections (document_id, title, content, content_hash)
				VALUES (?, ?, ?, ?)
			`, docID, title, content, hash)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO sections (document_id, title, content, content_hash, embedding)
				VALUES (?, ?, ?, ?, vec_f32(?))
			`, docID, title, content, hash, serializeFloat32(vec))
		}
		if err != nil {
			return fmt.Errorf("inserting section: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// SetSectionEmbedding stores vec as the embedding of an existing section.
func (s *Store) SetSectionEmbedding(ctx context.Context, sectionID int64, vec []float32) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if len(vec) == 0 {
		return fmt.Errorf("section %d: empty embedding", sectionID)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE sections SET embedding = vec_f32(?) WHERE id = ?",
		serializeFloat32(vec), sectionID)
	if err != nil {
		return fmt.Errorf("storing embedding for section %d: %w", sectionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("section %d: %w", sectionID, sql.ErrNoRows)
	}
	return nil
}

// SectionsWithoutEmbedding returns up to limit sections with no stored
// embedding, lowest ID first.
func (s *Store) SectionsWithoutEmbedding(ctx context.Context, limit int) ([]Section, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, sectionSelect+`
		WHERE s.embedding IS NULL
		ORDER BY s.id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unembedded sections: %w", err)
	}
	return scanSections(rows, false)
}

// SectionsContaining returns every section whose title or content contains
// token, ignoring case, ordered by ID.
func (s *Store) SectionsContaining(ctx context.Context, token string) ([]Section, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	needle := strings.ToLower(token)
	rows, err := s.db.QueryContext(ctx, sectionSelect+`
		WHERE instr(docai_lower(COALESCE(s.content, '')), ?) > 0
			OR instr(docai_lower(COALESCE(s.title, '')), ?) > 0
		ORDER BY s.id
	`, needle, needle)
	if err != nil {
		return nil, fmt.Errorf("searching sections for %q: %w", token, err)
	}
	return scanSections(rows, false)
}

// EmbeddedSections returns every section whose embedding has exactly dim
// dimensions, ordered by ID. Sections without an embedding, or with one of
// another dimension, are skipped.
func (s *Store) EmbeddedSections(ctx context.Context, dim int) ([]Section, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, COALESCE(s.document_id, 0), COALESCE(d.filename, ''),
			COALESCE(s.title, ''), COALESCE(s.content, ''), COALESCE(s.content_hash, ''),
			s.embedding
		FROM sections s LEFT JOIN documents d ON d.id = s.document_id
		WHERE `+embeddedFilter+`
		ORDER BY s.id
	`, dim)
	if err != nil {
		return nil, fmt.Errorf("listing embedded sections: %w", err)
	}
	return scanSections(rows, true)
}

// CountSections returns the number of stored sections.
func (s *Store) CountSections(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM sections")
}

// CountEmbeddedSections returns the number of sections holding an
// embedding of dimension dim.
func (s *Store) CountEmbeddedSections(ctx context.Context, dim int) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM sections s WHERE "+embeddedFilter, dim)
}

// SectionTitles returns the section titles of every document that has
// sections, grouped by document in ID order.
func (s *Store) SectionTitles(ctx context.Context) ([]DocumentTitles, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, COALESCE(d.filename, ''), COALESCE(s.title, '')
		FROM sections s JOIN documents d ON d.id = s.document_id
		ORDER BY d.id, s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing section titles: %w", err)
	}
	defer rows.Close()

	var groups []DocumentTitles
	for rows.Next() {
		var (
			docID           int64
			filename, title string
		)
		if err := rows.Scan(&docID, &filename, &title); err != nil {
			return nil, err
		}
		if n := len(groups); n == 0 || groups[n-1].DocumentID != docID {
			groups = append(groups, DocumentTitles{DocumentID: docID, Filename: filename})
		}
		g := &groups[len(groups)-1]
		g.Titles = append(g.Titles, title)
	}
	return groups, rows.Err()
}

// Reset deletes every section and document in one transaction.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sections"); err != nil {
			return fmt.Errorf("deleting sections: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
			return fmt.Errorf("deleting documents: %w", err)
		}
		return nil
	})
}

// --- Query log ---

// LogQuery records a question and how it was answered.
func (s *Store) LogQuery(ctx context.Context, q QueryLog) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (question, mode, ranker, sections, answer)
		VALUES (?, ?, ?, ?, ?)
	`, q.Question, q.Mode, q.Ranker, q.Sections, q.Answer)
	return err
}

// Stats returns row counts of documents, sections, embedded sections and
// logged queries.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM sections", &stats.Sections},
		{"SELECT COUNT(*) FROM sections WHERE embedding IS NOT NULL", &stats.Embedded},
		{"SELECT COUNT(*) FROM query_log", &stats.Queries},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

const sectionSelect = `
	SELECT s.id, COALESCE(s.document_id, 0), COALESCE(d.filename, ''),
		COALESCE(s.title, ''), COALESCE(s.content, ''), COALESCE(s.content_hash, '')
	FROM sections s LEFT JOIN documents d ON d.id = s.document_id
`

func scanSections(rows *sql.Rows, withEmbedding bool) ([]Section, error) {
	defer rows.Close()

	var secs []Section
	for rows.Next() {
		var sec Section
		dest := []any{&sec.ID, &sec.DocumentID, &sec.Filename, &sec.Title, &sec.Content, &sec.ContentHash}
		var blob []byte
		if withEmbedding {
			dest = append(dest, &blob)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if withEmbedding {
			sec.Embedding = deserializeFloat32(blob)
		}
		secs = append(secs, sec)
	}
	return secs, rows.Err()
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting: %w", err)
	}
	return n, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
