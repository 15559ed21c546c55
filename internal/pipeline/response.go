package pipeline

// API decisions.
const (
	DecisionAnswer  = "answer"
	DecisionClarify = "clarify"
	DecisionAbstain = "abstain"
)

// Citation points an answer back at one evidence chunk.
type Citation struct {
	DocID       string `json:"doc_id"`
	ChunkID     string `json:"chunk_id"`
	TextSnippet string `json:"text_snippet"`
}

// DebugInfo exposes scoring internals for observability.
type DebugInfo struct {
	RetrievalQuality float64   `json:"retrieval_quality"`
	RerankTopScores  []float64 `json:"rerank_top_scores"`
	TraceID          string    `json:"trace_id"`
	LatencyMS        float64   `json:"latency_ms"`
}

// Response is the pipeline's answer to one query.
type Response struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	Decision   string     `json:"decision"`
	Reasons    []string   `json:"reasons"`
	Debug      DebugInfo  `json:"debug"`
}

// Request is one query through the pipeline.
type Request struct {
	Query string `json:"query"`

	// Mode is "normal" or "strict".
	Mode string `json:"mode,omitempty"`

	// LatencyBudgetMS caps how long the pipeline may spend. Zero takes
	// the server default.
	LatencyBudgetMS int `json:"latency_budget_ms,omitempty"`
}
