package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration. Values come from defaults,
// then an optional YAML file, then GROUNDCHECK_* environment overrides.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Scoring    ScoringConfig    `yaml:"scoring" json:"scoring"`
	Verify     VerifyConfig     `yaml:"verify" json:"verify"`
	Auth       AuthConfig       `yaml:"auth" json:"auth"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// DefaultBudgetMS is the per-request latency budget when the client
	// does not send one.
	DefaultBudgetMS int `yaml:"default_budget_ms" json:"default_budget_ms"`

	// RateLimitPerMinute is the per-key token bucket refill rate.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
}

// PathsConfig configures on-disk storage locations.
type PathsConfig struct {
	// DataDir is the root directory for all persistent state.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	DocDB          string `yaml:"doc_db" json:"doc_db"`
	TraceDB        string `yaml:"trace_db" json:"trace_db"`
	EmbedCacheDB   string `yaml:"embed_cache_db" json:"embed_cache_db"`
	VectorIndex    string `yaml:"vector_index" json:"vector_index"`
	KeywordIndex   string `yaml:"keyword_index" json:"keyword_index"`
	LogFile        string `yaml:"log_file" json:"log_file"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "openai" or "static" (offline/test).
	Provider   string `yaml:"provider" json:"provider"`
	Endpoint   string `yaml:"endpoint" json:"endpoint"`
	APIKey     string `yaml:"api_key" json:"api_key"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// CacheSize is the in-memory LRU capacity in entries; the SQLite cache
	// underneath is unbounded.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LLMConfig configures the generation provider.
type LLMConfig struct {
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	APIKey      string  `yaml:"api_key" json:"api_key"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// RetrievalConfig configures hybrid retrieval and reranking.
type RetrievalConfig struct {
	BM25TopK   int `yaml:"bm25_top_k" json:"bm25_top_k"`
	VectorTopK int `yaml:"vector_top_k" json:"vector_top_k"`

	// RRFConstant is the fusion smoothing parameter k. Higher values reduce
	// the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	RerankTopN int `yaml:"rerank_top_n" json:"rerank_top_n"`

	// FallbackExpandK replaces both top-K values during the expanded
	// fallback retrieval pass.
	FallbackExpandK int `yaml:"fallback_expand_k" json:"fallback_expand_k"`

	// RerankerEndpoint is the cross-encoder service URL. Empty disables
	// reranking (fused order is kept).
	RerankerEndpoint string `yaml:"reranker_endpoint" json:"reranker_endpoint"`
	RerankerModel    string `yaml:"reranker_model" json:"reranker_model"`
}

// ChunkingConfig configures the ingestion chunker.
type ChunkingConfig struct {
	MaxTokens  int     `yaml:"max_tokens" json:"max_tokens"`
	OverlapPct float64 `yaml:"overlap_pct" json:"overlap_pct"`
}

// ScoringConfig holds the retrieval-quality and confidence weights.
type ScoringConfig struct {
	// RQ component weights; must sum to 1.0.
	WRelevance   float64 `yaml:"w_relevance" json:"w_relevance"`
	WMargin      float64 `yaml:"w_margin" json:"w_margin"`
	WCoverage    float64 `yaml:"w_coverage" json:"w_coverage"`
	WConsistency float64 `yaml:"w_consistency" json:"w_consistency"`

	// Confidence weights alpha (RQ), beta (groundedness), gamma
	// (contradiction penalty); must sum to 1.0.
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`
	Gamma float64 `yaml:"gamma" json:"gamma"`

	ProceedThreshold  float64 `yaml:"proceed_threshold" json:"proceed_threshold"`
	FallbackThreshold float64 `yaml:"fallback_threshold" json:"fallback_threshold"`

	// StrictProceedThreshold replaces ProceedThreshold in strict mode.
	StrictProceedThreshold float64 `yaml:"strict_proceed_threshold" json:"strict_proceed_threshold"`
}

// VerifyConfig holds verification thresholds. Warn thresholds apply in both
// modes; only pass thresholds tighten in strict mode.
type VerifyConfig struct {
	GroundednessPass float64 `yaml:"groundedness_pass" json:"groundedness_pass"`
	GroundednessWarn float64 `yaml:"groundedness_warn" json:"groundedness_warn"`
	ContradictionPass float64 `yaml:"contradiction_pass" json:"contradiction_pass"`
	ContradictionWarn float64 `yaml:"contradiction_warn" json:"contradiction_warn"`

	StrictGroundednessPass  float64 `yaml:"strict_groundedness_pass" json:"strict_groundedness_pass"`
	StrictContradictionPass float64 `yaml:"strict_contradiction_pass" json:"strict_contradiction_pass"`
}

// AuthConfig configures API keys and JWT issuance.
type AuthConfig struct {
	// APIKeys is the set of accepted X-API-Key values. Empty disables auth.
	APIKeys []string `yaml:"api_keys" json:"api_keys"`

	JWTSecret        string `yaml:"jwt_secret" json:"jwt_secret"`
	JWTExpiryMinutes int    `yaml:"jwt_expiry_minutes" json:"jwt_expiry_minutes"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			DefaultBudgetMS:    5000,
			RateLimitPerMinute: 60,
		},
		Paths: PathsConfig{
			DataDir:      "data",
			DocDB:        "rag.db",
			TraceDB:      "traces.db",
			EmbedCacheDB: "embedding_cache.db",
			VectorIndex:  "vector_index.gob",
			KeywordIndex: "keyword_index.gob",
			LogFile:      "groundcheck.log",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "openai",
			Endpoint:   "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  100,
			CacheSize:  4096,
		},
		LLM: LLMConfig{
			Endpoint:    "https://generativelanguage.googleapis.com/v1beta",
			Model:       "gemini-2.0-flash",
			Temperature: 0.1,
			MaxTokens:   4096,
		},
		Retrieval: RetrievalConfig{
			BM25TopK:        50,
			VectorTopK:      50,
			RRFConstant:     60,
			RerankTopN:      10,
			FallbackExpandK: 100,
			RerankerModel:   "cross-encoder/ms-marco-MiniLM-L-6-v2",
		},
		Chunking: ChunkingConfig{
			MaxTokens:  512,
			OverlapPct: 0.15,
		},
		Scoring: ScoringConfig{
			WRelevance:             0.45,
			WMargin:                0.20,
			WCoverage:              0.15,
			WConsistency:           0.20,
			Alpha:                  0.50,
			Beta:                   0.35,
			Gamma:                  0.15,
			ProceedThreshold:       0.55,
			FallbackThreshold:      0.25,
			StrictProceedThreshold: 0.70,
		},
		Verify: VerifyConfig{
			GroundednessPass:        0.70,
			GroundednessWarn:        0.50,
			ContradictionPass:       0.20,
			ContradictionWarn:       0.40,
			StrictGroundednessPass:  0.85,
			StrictContradictionPass: 0.10,
		},
		Auth: AuthConfig{
			JWTSecret:        "change-me-in-production",
			JWTExpiryMinutes: 60,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
	}
}

// Load builds the effective configuration: defaults, overlaid by the YAML
// file at path (if path is non-empty), overlaid by environment variables.
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies GROUNDCHECK_* environment variable overrides.
// Env vars have highest priority.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GROUNDCHECK_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("GROUNDCHECK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("GROUNDCHECK_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("GROUNDCHECK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GROUNDCHECK_OPENAI_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("GROUNDCHECK_GOOGLE_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GROUNDCHECK_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("GROUNDCHECK_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("GROUNDCHECK_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("GROUNDCHECK_RERANKER_ENDPOINT"); v != "" {
		c.Retrieval.RerankerEndpoint = v
	}
	if v := os.Getenv("GROUNDCHECK_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("GROUNDCHECK_API_KEYS"); v != "" {
		keys := strings.Split(v, ",")
		c.Auth.APIKeys = c.Auth.APIKeys[:0]
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				c.Auth.APIKeys = append(c.Auth.APIKeys, k)
			}
		}
	}
	if v := os.Getenv("GROUNDCHECK_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("GROUNDCHECK_DEFAULT_BUDGET_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.DefaultBudgetMS = n
		}
	}
}

const weightTolerance = 1e-6

// Validate checks structural invariants. Weight sums are exact contracts:
// the RQ component weights and the confidence weights must each sum to 1.0.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.DefaultBudgetMS <= 0 {
		return fmt.Errorf("server.default_budget_ms must be positive, got %d", c.Server.DefaultBudgetMS)
	}

	rqSum := c.Scoring.WRelevance + c.Scoring.WMargin + c.Scoring.WCoverage + c.Scoring.WConsistency
	if math.Abs(rqSum-1.0) > weightTolerance {
		return fmt.Errorf("scoring weights w_relevance+w_margin+w_coverage+w_consistency must sum to 1.0, got %.6f", rqSum)
	}
	confSum := c.Scoring.Alpha + c.Scoring.Beta + c.Scoring.Gamma
	if math.Abs(confSum-1.0) > weightTolerance {
		return fmt.Errorf("scoring weights alpha+beta+gamma must sum to 1.0, got %.6f", confSum)
	}

	if c.Scoring.FallbackThreshold >= c.Scoring.ProceedThreshold {
		return fmt.Errorf("scoring.fallback_threshold (%.2f) must be below proceed_threshold (%.2f)",
			c.Scoring.FallbackThreshold, c.Scoring.ProceedThreshold)
	}

	for name, v := range map[string]float64{
		"verify.groundedness_pass":         c.Verify.GroundednessPass,
		"verify.groundedness_warn":         c.Verify.GroundednessWarn,
		"verify.contradiction_pass":        c.Verify.ContradictionPass,
		"verify.contradiction_warn":        c.Verify.ContradictionWarn,
		"verify.strict_groundedness_pass":  c.Verify.StrictGroundednessPass,
		"verify.strict_contradiction_pass": c.Verify.StrictContradictionPass,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %.2f", name, v)
		}
	}

	if c.Retrieval.BM25TopK <= 0 || c.Retrieval.VectorTopK <= 0 {
		return fmt.Errorf("retrieval top-k values must be positive")
	}
	if c.Retrieval.RRFConstant <= 0 {
		return fmt.Errorf("retrieval.rrf_constant must be positive, got %d", c.Retrieval.RRFConstant)
	}
	if c.Chunking.OverlapPct < 0 || c.Chunking.OverlapPct >= 1 {
		return fmt.Errorf("chunking.overlap_pct must be in [0,1), got %.2f", c.Chunking.OverlapPct)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}

	switch c.Embeddings.Provider {
	case "openai", "static":
	default:
		return fmt.Errorf("embeddings.provider must be openai or static, got %q", c.Embeddings.Provider)
	}

	return nil
}

// DocDBPath returns the document database path under the data directory.
func (c *Config) DocDBPath() string { return filepath.Join(c.Paths.DataDir, c.Paths.DocDB) }

// TraceDBPath returns the trace database path under the data directory.
func (c *Config) TraceDBPath() string { return filepath.Join(c.Paths.DataDir, c.Paths.TraceDB) }

// EmbedCachePath returns the embedding cache path under the data directory.
func (c *Config) EmbedCachePath() string {
	return filepath.Join(c.Paths.DataDir, c.Paths.EmbedCacheDB)
}

// VectorIndexPath returns the serialized vector index path.
func (c *Config) VectorIndexPath() string {
	return filepath.Join(c.Paths.DataDir, c.Paths.VectorIndex)
}

// KeywordIndexPath returns the serialized keyword index path.
func (c *Config) KeywordIndexPath() string {
	return filepath.Join(c.Paths.DataDir, c.Paths.KeywordIndex)
}

// LogFilePath returns the log file path under the data directory.
func (c *Config) LogFilePath() string { return filepath.Join(c.Paths.DataDir, c.Paths.LogFile) }

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
