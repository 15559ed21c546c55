package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/groundcheck-ai/groundcheck/internal/embed"
	"github.com/groundcheck-ai/groundcheck/internal/errors"
	"github.com/groundcheck-ai/groundcheck/internal/store"
)

// Ingestion statuses.
const (
	StatusIndexed  = "indexed"
	StatusNoChunks = "no_chunks"
)

// Result reports the outcome of one file ingestion.
type Result struct {
	DocID         string  `json:"doc_id"`
	ChunksCreated int     `json:"chunks_created"`
	Status        string  `json:"status"`
	Coverage      float64 `json:"coverage"`
}

// Pipeline runs parse, chunk, quality-filter, embed, and index for each
// ingested file.
type Pipeline struct {
	registry *Registry
	chunker  *StructureChunker
	embedder embed.Embedder
	vector   store.VectorIndex
	keyword  store.KeywordIndex
	docs     store.DocStore

	vectorPath  string
	keywordPath string
	logger      *slog.Logger
}

// NewPipeline wires the ingestion stages. Index paths may be empty to skip
// persistence after each file.
func NewPipeline(
	registry *Registry,
	chunker *StructureChunker,
	embedder embed.Embedder,
	vector store.VectorIndex,
	keyword store.KeywordIndex,
	docs store.DocStore,
	vectorPath, keywordPath string,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		registry:    registry,
		chunker:     chunker,
		embedder:    embedder,
		vector:      vector,
		keyword:     keyword,
		docs:        docs,
		vectorPath:  vectorPath,
		keywordPath: keywordPath,
		logger:      logger,
	}
}

// IngestFile parses and indexes one file. The keyword index is rebuilt over
// the full corpus so its statistics stay exact, and both indexes are
// persisted before returning.
func (p *Pipeline) IngestFile(ctx context.Context, name string, data []byte, metadata map[string]string) (*Result, error) {
	start := time.Now()
	docID := uuid.NewString()

	parser, err := p.registry.ParserFor(name)
	if err != nil {
		return nil, err
	}
	rawText, enriched, err := parser.Parse(name, data, metadata)
	if err != nil {
		return nil, err
	}
	p.logger.Info("parsed file",
		slog.String("doc_id", docID),
		slog.String("source", name),
		slog.Int("chars", len(rawText)))

	doc := &store.Document{
		ID:          docID,
		Source:      name,
		ContentType: contentType(name),
		Metadata:    enriched,
		RawText:     rawText,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.docs.SaveDocument(ctx, doc); err != nil {
		return nil, errors.StoreError(err)
	}

	chunks := p.chunker.Chunk(rawText, docID, enriched)
	chunks = FilterGarbage(chunks, p.logger)
	if dups := NearDuplicates(chunks); len(dups) > 0 {
		p.logger.Warn("near-duplicate chunks", slog.Int("pairs", len(dups)))
	}
	coverage := Coverage(chunks, rawText)

	if len(chunks) == 0 {
		return &Result{DocID: docID, Status: StatusNoChunks, Coverage: coverage}, nil
	}

	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		ids[i] = c.ID
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := p.vector.Add(ctx, ids, vectors); err != nil {
		return nil, err
	}

	if err := p.docs.SaveChunks(ctx, chunks); err != nil {
		return nil, errors.StoreError(err)
	}
	all, err := p.docs.AllChunks(ctx)
	if err != nil {
		return nil, errors.StoreError(err)
	}
	if err := p.keyword.Rebuild(ctx, all); err != nil {
		return nil, err
	}

	p.persistIndexes()

	p.logger.Info("ingested file",
		slog.String("doc_id", docID),
		slog.Int("chunks", len(chunks)),
		slog.Duration("elapsed", time.Since(start)))
	return &Result{
		DocID:         docID,
		ChunksCreated: len(chunks),
		Status:        StatusIndexed,
		Coverage:      coverage,
	}, nil
}

// persistIndexes saves both indexes best-effort. A failed save is logged;
// the in-memory state is still correct and the next save retries.
func (p *Pipeline) persistIndexes() {
	if p.vectorPath != "" {
		if err := p.vector.Save(p.vectorPath); err != nil {
			p.logger.Warn("vector index save failed", slog.String("error", err.Error()))
		}
	}
	if p.keywordPath != "" {
		if err := p.keyword.Save(p.keywordPath); err != nil {
			p.logger.Warn("keyword index save failed", slog.String("error", err.Error()))
		}
	}
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return "markdown"
	case ".html", ".htm":
		return "html"
	default:
		return "txt"
	}
}
