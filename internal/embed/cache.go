package embed

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS embedding_cache (
	text_hash TEXT PRIMARY KEY,
	embedding TEXT NOT NULL
);
`

// SQLiteCache is a content-addressed embedding cache. Keys are
// SHA-256(model + NUL + text) so switching models never serves stale vectors.
type SQLiteCache struct {
	db    *sql.DB
	model string
}

// NewSQLiteCache opens (creating if needed) the cache database.
func NewSQLiteCache(path, model string) (*SQLiteCache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open embedding cache %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return &SQLiteCache{db: db, model: model}, nil
}

func (c *SQLiteCache) hash(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached embedding for text, or nil on a miss.
func (c *SQLiteCache) Get(ctx context.Context, text string) ([]float32, error) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		`SELECT embedding FROM embedding_cache WHERE text_hash = ?`, c.hash(text)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, fmt.Errorf("decode cached embedding: %w", err)
	}
	return vec, nil
}

// GetBatch returns {input index: embedding} for cached texts.
func (c *SQLiteCache) GetBatch(ctx context.Context, texts []string) (map[int][]float32, error) {
	if len(texts) == 0 {
		return map[int][]float32{}, nil
	}

	hashToIdx := make(map[string]int, len(texts))
	args := make([]any, len(texts))
	for i, t := range texts {
		h := c.hash(t)
		hashToIdx[h] = i
		args[i] = h
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(texts)), ",")

	rows, err := c.db.QueryContext(ctx,
		`SELECT text_hash, embedding FROM embedding_cache WHERE text_hash IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("cache batch get: %w", err)
	}
	defer rows.Close()

	result := make(map[int][]float32)
	for rows.Next() {
		var hash, raw string
		if err := rows.Scan(&hash, &raw); err != nil {
			return nil, fmt.Errorf("scan cached embedding: %w", err)
		}
		idx, ok := hashToIdx[hash]
		if !ok {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return nil, fmt.Errorf("decode cached embedding: %w", err)
		}
		result[idx] = vec
	}
	return result, rows.Err()
}

// Put stores one embedding.
func (c *SQLiteCache) Put(ctx context.Context, text string, vec []float32) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embedding_cache (text_hash, embedding) VALUES (?, ?)`,
		c.hash(text), string(raw))
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// PutBatch stores embeddings for texts (parallel slices) in one transaction.
func (c *SQLiteCache) PutBatch(ctx context.Context, texts []string, vecs [][]float32) error {
	if len(texts) == 0 {
		return nil
	}
	if len(texts) != len(vecs) {
		return fmt.Errorf("texts and embeddings length mismatch: %d vs %d", len(texts), len(vecs))
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache put: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO embedding_cache (text_hash, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cache put: %w", err)
	}
	defer stmt.Close()

	for i, text := range texts {
		raw, err := json.Marshal(vecs[i])
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.hash(text), string(raw)); err != nil {
			return fmt.Errorf("cache put: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the cache database.
func (c *SQLiteCache) Close() error { return c.db.Close() }
