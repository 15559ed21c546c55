// Package store provides the persistence layer: document/chunk storage and
// query traces (SQLite), the BM25 keyword index, and the HNSW vector index.
package store

import (
	"context"
	"fmt"
	"time"
)

// Document is an ingested source document.
type Document struct {
	ID          string
	Source      string // original filename or URL
	ContentType string // txt, markdown, html
	Metadata    map[string]string
	RawText     string
	CreatedAt   time.Time
}

// Chunk is a retrievable unit of a document.
type Chunk struct {
	ID         string
	DocID      string
	Text       string
	Index      int // position within the document, 0-based
	Metadata   map[string]string
	TokenCount int
}

// Span is one timed stage inside a trace.
type Span struct {
	Name       string  `json:"name"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	Status     string  `json:"status"` // ok, error, skipped
}

// Trace is an immutable record of one query through the pipeline.
type Trace struct {
	ID          string
	Query       string
	Timestamp   time.Time
	LatencyMS   float64
	RQScore     float64
	Confidence  float64
	Decision    string
	ReasonCodes []string
	Spans       []Span
}

// DocStore persists documents and chunks.
type DocStore interface {
	SaveDocument(ctx context.Context, doc *Document) error
	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	GetChunk(ctx context.Context, id string) (*Chunk, error)

	// GetChunks resolves ids in one batched query. Missing ids are simply
	// absent from the returned map.
	GetChunks(ctx context.Context, ids []string) (map[string]*Chunk, error)
	GetChunksByDoc(ctx context.Context, docID string) ([]*Chunk, error)
	AllChunks(ctx context.Context) ([]*Chunk, error)
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
	Close() error
}

// TraceStore is the append-only trace log.
type TraceStore interface {
	SaveTrace(ctx context.Context, trace *Trace) error
	GetTrace(ctx context.Context, id string) (*Trace, error)
	RecentTraces(ctx context.Context, limit int) ([]*Trace, error)
	Close() error
}

// ScoredID is a (chunk id, raw score) pair returned by a search backend,
// sorted descending by score.
type ScoredID struct {
	ID    string
	Score float64
}

// KeywordIndex is the BM25 lexical search backend. Build replaces the index
// atomically with respect to concurrent readers.
type KeywordIndex interface {
	Build(chunks []*Chunk)
	Rebuild(ctx context.Context, chunks []*Chunk) error
	Search(query string, topK int) []ScoredID
	Size() int
	Save(path string) error
	Load(path string) error
}

// VectorIndex is the dense search backend. Similarity is inner product over
// L2-normalized vectors, i.e. cosine.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, topK int) ([]ScoredID, error)
	Count() int
	Save(path string) error
	Load(path string) error
}

// ErrDimensionMismatch indicates a vector of the wrong width.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
