// Package server exposes the question-answering pipeline over HTTP: query
// (sync and SSE streaming), ingestion, health, metrics, auth, and trace
// inspection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/groundcheck-ai/groundcheck/internal/config"
	"github.com/groundcheck-ai/groundcheck/internal/ingest"
	"github.com/groundcheck-ai/groundcheck/internal/pipeline"
	"github.com/groundcheck-ai/groundcheck/internal/store"
)

// QueryPipeline answers queries. Implemented by pipeline.Pipeline.
type QueryPipeline interface {
	Execute(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
	ExecuteStream(ctx context.Context, req pipeline.Request, onToken func(text string) error) (*pipeline.Response, error)
}

// Ingestor indexes uploaded files. Implemented by ingest.Pipeline.
type Ingestor interface {
	IngestFile(ctx context.Context, name string, data []byte, metadata map[string]string) (*ingest.Result, error)
}

var (
	_ QueryPipeline = (*pipeline.Pipeline)(nil)
	_ Ingestor      = (*ingest.Pipeline)(nil)
)

// Server is the HTTP surface.
type Server struct {
	queries  QueryPipeline
	ingestor Ingestor
	docs     store.DocStore
	traces   store.TraceStore
	vector   store.VectorIndex

	auth    *Authenticator
	limiter *rateLimiter
	cfg     *config.Config
	logger  *slog.Logger

	httpSrv *http.Server
}

func New(
	cfg *config.Config,
	queries QueryPipeline,
	ingestor Ingestor,
	docs store.DocStore,
	traces store.TraceStore,
	vector store.VectorIndex,
	logger *slog.Logger,
) *Server {
	s := &Server{
		queries:  queries,
		ingestor: ingestor,
		docs:     docs,
		traces:   traces,
		vector:   vector,
		auth:     NewAuthenticator(cfg.Auth, logger),
		limiter:  newRateLimiter(cfg.Server.RateLimitPerMinute),
		cfg:      cfg,
		logger:   logger,
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route tree. Query routes are rate-limited but open;
// ingestion and trace inspection additionally require credentials when auth
// is configured.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/auth/token", s.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Post("/query", s.handleQuery)
		r.Post("/query/stream", s.handleQueryStream)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Use(s.limiter.Middleware)
		r.Post("/ingest", s.handleIngest)
		r.Get("/traces/recent", s.handleTraces)
	})

	return r
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
