package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/groundcheck-ai/groundcheck/internal/config"
	"github.com/groundcheck-ai/groundcheck/internal/embed"
	"github.com/groundcheck-ai/groundcheck/internal/gen"
	"github.com/groundcheck-ai/groundcheck/internal/ingest"
	"github.com/groundcheck-ai/groundcheck/internal/llm"
	"github.com/groundcheck-ai/groundcheck/internal/pipeline"
	"github.com/groundcheck-ai/groundcheck/internal/query"
	"github.com/groundcheck-ai/groundcheck/internal/scoring"
	"github.com/groundcheck-ai/groundcheck/internal/search"
	"github.com/groundcheck-ai/groundcheck/internal/store"
	"github.com/groundcheck-ai/groundcheck/internal/verify"
)

// app holds every wired component for the serve, ingest, and query commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	docs       *store.SQLiteDocStore
	traces     *store.SQLiteTraceStore
	vector     *store.HNSWStore
	keyword    *store.BM25Store
	embedCache *embed.SQLiteCache

	vectorPath  string
	keywordPath string

	queries  *pipeline.Pipeline
	ingestor *ingest.Pipeline
}

// openApp builds the full component graph: stores loaded from the data
// directory, the BM25 index rebuilt from the doc store when its serialized
// form is missing, and both pipelines wired on top.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	dataDir := cfg.Paths.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		vectorPath:  filepath.Join(dataDir, cfg.Paths.VectorIndex),
		keywordPath: filepath.Join(dataDir, cfg.Paths.KeywordIndex),
	}

	var err error
	a.docs, err = store.NewSQLiteDocStore(filepath.Join(dataDir, cfg.Paths.DocDB))
	if err != nil {
		return nil, fmt.Errorf("open doc store: %w", err)
	}
	a.traces, err = store.NewSQLiteTraceStore(filepath.Join(dataDir, cfg.Paths.TraceDB))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open trace store: %w", err)
	}

	embedder, err := a.buildEmbedder(dataDir)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.vector, err = store.NewHNSWStore(store.DefaultHNSWConfig(embedder.Dimensions()))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create vector index: %w", err)
	}
	if _, statErr := os.Stat(a.vectorPath); statErr == nil {
		if err := a.vector.Load(a.vectorPath); err != nil {
			logger.Warn("vector index load failed, starting empty", "error", err)
		}
	}

	a.keyword = store.NewBM25Store(a.keywordPath)
	if a.keyword.Size() == 0 {
		chunks, err := a.docs.AllChunks(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load chunks for index rebuild: %w", err)
		}
		if len(chunks) > 0 {
			a.keyword.Build(chunks)
			logger.Info("keyword index rebuilt from doc store", slog.Int("chunks", len(chunks)))
		}
	}

	model, err := llm.NewGeminiClient(llm.GeminiConfig{
		Endpoint:  cfg.LLM.Endpoint,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	var reranker search.Reranker = search.NoopReranker{}
	if cfg.Retrieval.RerankerEndpoint != "" {
		reranker, err = search.NewCrossEncoderReranker(search.CrossEncoderConfig{
			Endpoint: cfg.Retrieval.RerankerEndpoint,
			Model:    cfg.Retrieval.RerankerModel,
			Timeout:  30 * time.Second,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create reranker: %w", err)
		}
	}

	retriever := search.NewHybridRetriever(embedder, a.keyword, a.vector, a.docs, cfg.Retrieval.RRFConstant, logger)
	scorer := scoring.NewRQScorer(cfg.Scoring)
	fallback := search.NewFallbackManager(retriever, reranker, scorer, model, search.FallbackConfig{
		ExpandK:          cfg.Retrieval.FallbackExpandK,
		RerankTopN:       cfg.Retrieval.RerankTopN,
		ProceedThreshold: cfg.Scoring.ProceedThreshold,
		AbstainThreshold: cfg.Scoring.FallbackThreshold,
	}, logger)

	a.queries = pipeline.New(
		query.NewDecomposer(model, logger),
		retriever,
		reranker,
		scorer,
		fallback,
		gen.NewGenerator(model, logger),
		verify.NewGroundednessChecker(model, logger),
		verify.NewContradictionDetector(model, logger),
		verify.NewSelfConsistencyChecker(model, logger),
		verify.NewDecisionMaker(cfg.Verify),
		scoring.NewConfidenceCalculator(cfg.Scoring),
		a.traces,
		cfg,
		logger,
	)

	a.ingestor = ingest.NewPipeline(
		ingest.DefaultRegistry(),
		ingest.NewStructureChunker(cfg.Chunking.MaxTokens, cfg.Chunking.OverlapPct),
		embedder,
		a.vector,
		a.keyword,
		a.docs,
		a.vectorPath,
		a.keywordPath,
		logger,
	)

	return a, nil
}

func (a *app) buildEmbedder(dataDir string) (embed.Embedder, error) {
	var inner embed.Embedder
	switch a.cfg.Embeddings.Provider {
	case "static":
		inner = embed.NewStaticEmbedder()
	default:
		var err error
		inner, err = embed.NewOpenAIEmbedder(embed.OpenAIConfig{
			Endpoint:   a.cfg.Embeddings.Endpoint,
			APIKey:     a.cfg.Embeddings.APIKey,
			Model:      a.cfg.Embeddings.Model,
			Dimensions: a.cfg.Embeddings.Dimensions,
			BatchSize:  a.cfg.Embeddings.BatchSize,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
	}

	cache, err := embed.NewSQLiteCache(filepath.Join(dataDir, a.cfg.Paths.EmbedCacheDB), a.cfg.Embeddings.Model)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	a.embedCache = cache

	return embed.NewCachedEmbedder(inner, cache, a.cfg.Embeddings.CacheSize, a.logger), nil
}

// persistIndexes writes both search indexes to the data directory.
func (a *app) persistIndexes() {
	if a.vector != nil {
		if err := a.vector.Save(a.vectorPath); err != nil {
			a.logger.Error("vector index save failed", "error", err)
		}
	}
	if a.keyword != nil {
		if err := a.keyword.Save(a.keywordPath); err != nil {
			a.logger.Error("keyword index save failed", "error", err)
		}
	}
}

// Close releases stores and caches. Safe on a partially opened app.
func (a *app) Close() {
	if a.embedCache != nil {
		if err := a.embedCache.Close(); err != nil {
			a.logger.Error("embedding cache close failed", "error", err)
		}
	}
	if a.traces != nil {
		if err := a.traces.Close(); err != nil {
			a.logger.Error("trace store close failed", "error", err)
		}
	}
	if a.docs != nil {
		if err := a.docs.Close(); err != nil {
			a.logger.Error("doc store close failed", "error", err)
		}
	}
}
