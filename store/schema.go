package store

// baseSchemaSQL is the layout written by earlier single-file deployments.
// Existing databases are opened as-is; only later migrations add to it.
const baseSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    filename TEXT,
    file_path TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id INTEGER,
    title TEXT,
    content TEXT,
    content_hash TEXT UNIQUE,
    FOREIGN KEY (document_id) REFERENCES documents (id)
);
`

const queryLogSQL = `
CREATE TABLE IF NOT EXISTS query_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    question TEXT NOT NULL,
    mode TEXT NOT NULL,
    ranker TEXT,
    sections INTEGER DEFAULT 0,
    answer TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id);
`

// embeddedFilter matches sections holding a float32 vector of dimension ?.
// The CASE keeps vec_length away from blobs sqlite-vec would reject.
const embeddedFilter = `s.embedding IS NOT NULL
	AND CASE WHEN length(s.embedding) > 0 AND length(s.embedding) % 4 = 0
		THEN vec_length(s.embedding) = ? ELSE 0 END`
