package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Port             int
	Environment      string
	DatabaseURL      string
	DatabaseMaxConns int
	RedisURL         string

	GCPProject        string
	VertexAILocation  string
	VertexAIModel     string
	EmbeddingLocation string
	EmbeddingModel    string
	EmbeddingDims     int
	GCSBucketName     string
	DocAIProcessorID  string
	DocAILocation     string
	PubSubTopic       string

	// Retrieval knobs.
	KLex             int
	KVec             int
	KRetriever       int
	MaxContextChunks int
	MaxChunksPerDoc  int
	MMRLambda        float64
	RRFConstant      float64
	UseCrossEncoder  bool

	// Chunking knobs.
	ChunkWordSize    int
	ChunkOverlapWord int

	// Agent graph knobs.
	MaxIterations int

	// Confidence model.
	ConfWeights  [11]float64 // w0..w10
	AbstainTh    float64
	ClarifyTh    float64

	SynthesizerConfThresholdDefault  float64
	SynthesizerConfThresholdExplicit float64

	InternalAuthSecret string
	FrontendURL        string
}

// Load reads configuration from environment variables. DATABASE_URL and
// GOOGLE_CLOUD_PROJECT are required, and INTERNAL_AUTH_SECRET is required
// outside the development environment; everything else has a default.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	cfg := &Config{
		Port:             envInt("PORT", 8080),
		Environment:      envStr("ENVIRONMENT", "development"),
		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),
		RedisURL:         envStr("REDIS_URL", ""),

		GCPProject:        gcpProject,
		VertexAILocation:  envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIModel:     envStr("VERTEX_AI_MODEL", "gemini-3-pro-preview"),
		EmbeddingLocation: envStr("VERTEX_AI_EMBEDDING_LOCATION", envStr("GCP_REGION", "us-east4")),
		EmbeddingModel:    envStr("VERTEX_AI_EMBEDDING_MODEL", "multimodalembedding@clip-l14"),
		EmbeddingDims:     envInt("EMBEDDING_DIMENSIONS", 768),
		GCSBucketName:     envStr("GCS_BUCKET_NAME", ""),
		DocAIProcessorID:  envStr("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocAILocation:     envStr("DOCUMENT_AI_LOCATION", "us"),
		PubSubTopic:       envStr("INGEST_PUBSUB_TOPIC", ""),

		KLex:             envInt("K_LEX", 60),
		KVec:             envInt("K_VEC", 60),
		KRetriever:       envInt("K_RETRIEVER", 8),
		MaxContextChunks: envInt("MAX_CONTEXT_CHUNKS", 24),
		MaxChunksPerDoc:  envInt("MAX_CHUNKS_PER_DOC", 6),
		MMRLambda:        envFloat("MMR_LAMBDA", 0.5),
		RRFConstant:      envFloat("RRF_CONSTANT", 60),
		UseCrossEncoder:  envBool("USE_CROSS_ENCODER", false),

		ChunkWordSize:    envInt("CHUNK_WORD_SIZE", 25),
		ChunkOverlapWord: envInt("CHUNK_OVERLAP_WORDS", 12),

		MaxIterations: envInt("MAX_ITERATIONS", 3),

		ConfWeights: envWeights(),
		AbstainTh:   envFloat("CONF_ABSTAIN_TH", 0.20),
		ClarifyTh:   envFloat("CONF_CLARIFY_TH", 0.60),

		SynthesizerConfThresholdDefault:  envFloat("SYNTHESIZER_CONFIDENCE_THRESHOLD_DEFAULT", 40.0),
		SynthesizerConfThresholdExplicit: envFloat("SYNTHESIZER_CONFIDENCE_THRESHOLD_EXPLICIT_SELECTION", 30.0),

		InternalAuthSecret: envStr("INTERNAL_AUTH_SECRET", ""),
		FrontendURL:        envStr("FRONTEND_URL", "http://localhost:3000"),
	}

	if cfg.Environment != "development" && cfg.InternalAuthSecret == "" {
		return nil, fmt.Errorf("config.Load: INTERNAL_AUTH_SECRET is required in %s environment", cfg.Environment)
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envStrSlice(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// defaultConfWeights are the logistic regression weights w0..w10 used by
// the confidence model when CONF_W* env vars are not set.
var defaultConfWeights = [11]float64{
	-0.08, 3.0, 1.5, 2.2, -0.3, 1.0, 1.5, 1.4, 0.8, 0.4, 1.4,
}

func envWeights() [11]float64 {
	w := defaultConfWeights
	for i := range w {
		w[i] = envFloat(fmt.Sprintf("CONF_W%d", i), w[i])
	}
	return w
}
