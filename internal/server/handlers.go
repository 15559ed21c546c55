package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/groundcheck-ai/groundcheck/internal/pipeline"
	"github.com/groundcheck-ai/groundcheck/internal/scoring"
	"github.com/groundcheck-ai/groundcheck/internal/store"
)

const maxUploadBytes = 32 << 20

// queryRequest is the wire shape of POST /query. Context is accepted for
// schema compatibility but not consulted yet.
type queryRequest struct {
	Query           string `json:"query"`
	Context         string `json:"context,omitempty"`
	Mode            string `json:"mode,omitempty"`
	LatencyBudgetMS int    `json:"latency_budget_ms,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.queries.Execute(r.Context(), req)
	if err != nil {
		s.logger.Error("query failed", "error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.recordQuery(resp, time.Since(start))

	writeJSON(w, http.StatusOK, resp)
}

// handleQueryStream streams the answer as server-sent events: zero or more
// "token" events, one "metadata" event with the full response, then "done".
// Errors after the stream opens arrive as an "error" event since the status
// line is already committed.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	start := time.Now()
	resp, err := s.queries.ExecuteStream(r.Context(), req, func(text string) error {
		if err := writeEvent(w, "token", map[string]string{"text": text}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		s.logger.Error("streaming query failed", "error", err, "request_id", RequestID(r.Context()))
		_ = writeEvent(w, "error", map[string]string{"error": err.Error()})
		flusher.Flush()
		return
	}
	s.recordQuery(resp, time.Since(start))

	_ = writeEvent(w, "metadata", resp)
	_ = writeEvent(w, "done", struct{}{})
	flusher.Flush()
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (pipeline.Request, bool) {
	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return pipeline.Request{}, false
	}
	if body.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return pipeline.Request{}, false
	}
	if body.LatencyBudgetMS <= 0 {
		body.LatencyBudgetMS = s.cfg.Server.DefaultBudgetMS
	}
	return pipeline.Request{
		Query:           body.Query,
		Mode:            body.Mode,
		LatencyBudgetMS: body.LatencyBudgetMS,
	}, true
}

func (s *Server) recordQuery(resp *pipeline.Response, elapsed time.Duration) {
	decisionsTotal.WithLabelValues(resp.Decision).Inc()
	queryDuration.Observe(elapsed.Seconds())
	rqScoreObserved.Observe(resp.Debug.RetrievalQuality)
	confidenceObserved.Observe(resp.Confidence)
	for _, reason := range resp.Reasons {
		switch reason {
		case scoring.ReasonFallbackUsed:
			fallbacksTotal.WithLabelValues("recovered").Inc()
		case scoring.ReasonFallbackFailed:
			fallbacksTotal.WithLabelValues("failed").Inc()
		}
	}
}

// handleIngest accepts a multipart upload: a "file" part plus an optional
// "metadata" form field holding a flat JSON object.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}

	metadata := map[string]string{}
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			writeError(w, http.StatusBadRequest, "metadata must be a JSON object of strings")
			return
		}
	}

	result, err := s.ingestor.IngestFile(r.Context(), header.Filename, data, metadata)
	if err != nil {
		ingestsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	ingestsTotal.WithLabelValues(result.Status).Inc()

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.docs.CountDocuments(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.docs.CountChunks(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"doc_count":   docCount,
		"chunk_count": chunkCount,
		"index_size":  s.vector.Count(),
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	token, err := s.auth.IssueToken(body.APIKey)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, token)
	case errors.Is(err, ErrAuthNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "authentication not configured")
	case errors.Is(err, ErrInvalidAPIKey):
		writeError(w, http.StatusUnauthorized, "invalid API key")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// traceView is the read-model for GET /traces/recent.
type traceView struct {
	ID          string       `json:"id"`
	Query       string       `json:"query"`
	Timestamp   time.Time    `json:"timestamp"`
	LatencyMS   float64      `json:"latency_ms"`
	RQScore     float64      `json:"rq_score"`
	Confidence  float64      `json:"confidence"`
	Decision    string       `json:"decision"`
	ReasonCodes []string     `json:"reason_codes"`
	Spans       []store.Span `json:"spans"`
}

func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be 1-200")
			return
		}
		limit = n
	}

	traces, err := s.traces.RecentTraces(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]traceView, 0, len(traces))
	for _, t := range traces {
		views = append(views, traceView{
			ID:          t.ID,
			Query:       t.Query,
			Timestamp:   t.Timestamp,
			LatencyMS:   t.LatencyMS,
			RQScore:     t.RQScore,
			Confidence:  t.Confidence,
			Decision:    t.Decision,
			ReasonCodes: t.ReasonCodes,
			Spans:       t.Spans,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"traces": views})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
