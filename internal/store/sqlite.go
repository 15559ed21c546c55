package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const docSchema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id       TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	content_type TEXT NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '{}',
	raw_text     TEXT NOT NULL,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	chunk_id    TEXT PRIMARY KEY,
	doc_id      TEXT NOT NULL REFERENCES documents(doc_id),
	text        TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	token_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id, chunk_index);
`

// SQLiteDocStore implements DocStore on a single SQLite database.
type SQLiteDocStore struct {
	db *sql.DB
}

var _ DocStore = (*SQLiteDocStore)(nil)

// NewSQLiteDocStore opens (creating if needed) the document database.
func NewSQLiteDocStore(path string) (*SQLiteDocStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(docSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize doc schema: %w", err)
	}
	return &SQLiteDocStore{db: db}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *SQLiteDocStore) SaveDocument(ctx context.Context, doc *Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal document metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (doc_id, source, content_type, metadata, raw_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Source, doc.ContentType, string(meta), doc.RawText,
		doc.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *SQLiteDocStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk save: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (chunk_id, doc_id, text, chunk_index, metadata, token_count)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk save: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocID, c.Text, c.Index, string(meta), c.TokenCount); err != nil {
			return fmt.Errorf("save chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteDocStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT doc_id, source, content_type, metadata, raw_text, created_at FROM documents WHERE doc_id = ?`, id)

	var doc Document
	var meta, created string
	if err := row.Scan(&doc.ID, &doc.Source, &doc.ContentType, &meta, &doc.RawText, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decode document metadata: %w", err)
	}
	doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &doc, nil
}

func (s *SQLiteDocStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chunk_id, doc_id, text, chunk_index, metadata, token_count FROM chunks WHERE chunk_id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *SQLiteDocStore) GetChunks(ctx context.Context, ids []string) (map[string]*Chunk, error) {
	if len(ids) == 0 {
		return map[string]*Chunk{}, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, doc_id, text, chunk_index, metadata, token_count FROM chunks WHERE chunk_id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("batch get chunks: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		result[c.ID] = c
	}
	return result, rows.Err()
}

func (s *SQLiteDocStore) GetChunksByDoc(ctx context.Context, docID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, doc_id, text, chunk_index, metadata, token_count FROM chunks
		 WHERE doc_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, fmt.Errorf("get chunks for doc %s: %w", docID, err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

func (s *SQLiteDocStore) AllChunks(ctx context.Context) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, doc_id, text, chunk_index, metadata, token_count FROM chunks
		 ORDER BY doc_id, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("get all chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

func (s *SQLiteDocStore) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func (s *SQLiteDocStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

func (s *SQLiteDocStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var meta string
	if err := row.Scan(&c.ID, &c.DocID, &c.Text, &c.Index, &meta, &c.TokenCount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
		return nil, fmt.Errorf("decode chunk metadata: %w", err)
	}
	return &c, nil
}

func collectChunks(rows *sql.Rows) ([]*Chunk, error) {
	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

const traceSchema = `
CREATE TABLE IF NOT EXISTS traces (
	trace_id     TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	timestamp    TEXT NOT NULL,
	latency_ms   REAL NOT NULL,
	rq_score     REAL NOT NULL,
	confidence   REAL NOT NULL,
	decision     TEXT NOT NULL,
	reason_codes TEXT NOT NULL DEFAULT '[]',
	spans        TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_traces_time ON traces(timestamp DESC);
`

// SQLiteTraceStore implements the append-only TraceStore.
type SQLiteTraceStore struct {
	db *sql.DB
}

var _ TraceStore = (*SQLiteTraceStore)(nil)

// NewSQLiteTraceStore opens (creating if needed) the trace database.
func NewSQLiteTraceStore(path string) (*SQLiteTraceStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(traceSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize trace schema: %w", err)
	}
	return &SQLiteTraceStore{db: db}, nil
}

func (s *SQLiteTraceStore) SaveTrace(ctx context.Context, trace *Trace) error {
	reasons, err := json.Marshal(trace.ReasonCodes)
	if err != nil {
		return fmt.Errorf("marshal reason codes: %w", err)
	}
	spans, err := json.Marshal(trace.Spans)
	if err != nil {
		return fmt.Errorf("marshal spans: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO traces (trace_id, query, timestamp, latency_ms, rq_score, confidence, decision, reason_codes, spans)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.ID, trace.Query, trace.Timestamp.UTC().Format(time.RFC3339Nano),
		trace.LatencyMS, trace.RQScore, trace.Confidence, trace.Decision,
		string(reasons), string(spans))
	if err != nil {
		return fmt.Errorf("save trace %s: %w", trace.ID, err)
	}
	return nil
}

func (s *SQLiteTraceStore) GetTrace(ctx context.Context, id string) (*Trace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT trace_id, query, timestamp, latency_ms, rq_score, confidence, decision, reason_codes, spans
		 FROM traces WHERE trace_id = ?`, id)
	t, err := scanTrace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (s *SQLiteTraceStore) RecentTraces(ctx context.Context, limit int) ([]*Trace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trace_id, query, timestamp, latency_ms, rq_score, confidence, decision, reason_codes, spans
		 FROM traces ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent traces: %w", err)
	}
	defer rows.Close()

	var traces []*Trace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

func (s *SQLiteTraceStore) Close() error { return s.db.Close() }

func scanTrace(row rowScanner) (*Trace, error) {
	var t Trace
	var ts, reasons, spans string
	if err := row.Scan(&t.ID, &t.Query, &ts, &t.LatencyMS, &t.RQScore, &t.Confidence, &t.Decision, &reasons, &spans); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reasons), &t.ReasonCodes); err != nil {
		return nil, fmt.Errorf("decode reason codes: %w", err)
	}
	if err := json.Unmarshal([]byte(spans), &t.Spans); err != nil {
		return nil, fmt.Errorf("decode spans: %w", err)
	}
	t.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	return &t, nil
}
