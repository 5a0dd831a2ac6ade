// Package config loads FOLIO Enrich's runtime configuration from
// environment variables through typed getEnv helpers, validated once
// at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration tree for the enrichment service.
type Config struct {
	Server     ServerConfig
	LM         LMConfig
	Ontology   OntologyConfig
	Embedding  EmbeddingConfig
	JobStore   JobStoreConfig
	Concurrency ConcurrencyConfig
	Matching   MatchingConfig
	Auth       AuthConfig
	Environment string
}

type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int
}

// LMConfig configures the three-provider language-model fallback chain:
// OpenAI primary, Claude fallback, Ollama local fallback.
type LMConfig struct {
	Provider        string // "openai", "claude", "ollama"
	OpenAIAPIKey    string
	OpenAIModel     string
	ClaudeAPIKey    string
	ClaudeModel     string
	OllamaBaseURL   string
	OllamaModel     string
	EnableFallback  bool
	CallTimeout     time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	// TaskProviders routes a pipeline task to a preferred provider by
	// name, e.g. "rerank=claude,concept_proposer=openai". Values are
	// pass-through strings; unrecognized entries are ignored by the
	// chain.
	TaskProviders map[string]string
}

type OntologyConfig struct {
	Backend       string // "memory", "opensearch"
	OpenSearchURL string
	IndexName     string
	ConceptsPath  string
	Version       string
}

type EmbeddingConfig struct {
	Backend       string // "memory", "opensearch"
	OpenSearchURL string
	IndexName     string
	Dimensions    int
	TriageMargin  float64
}

type JobStoreConfig struct {
	RootDir       string
	RetentionDays int
}

// ConcurrencyConfig holds the bounds named in the concurrency and
// resource model: per-stage LM fan-out, the global in-flight job
// limit, and the soft/hard timeouts each phase and job observe.
type ConcurrencyConfig struct {
	StageLMConcurrency int
	GlobalJobLimit     int
	StageSoftTimeout   time.Duration
	StageHardTimeout   time.Duration
	JobHardTimeout     time.Duration
}

// MatchingConfig holds the numeric thresholds the Ruler, Resolver,
// Reranker and Branch Judge use to fuse and compare confidences.
type MatchingConfig struct {
	ConflictThreshold        float64
	AltLabelExpansionScale   float64
	BoundaryHyphenAsWordChar bool
	DefaultChunkOverlap      int
	MaxChunkSize             int
}

type AuthConfig struct {
	JWTSecret string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8080),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			MaxUploadBytes: getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024),
		},
		LM: LMConfig{
			Provider:       getEnv("LM_PROVIDER", "openai"),
			OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			ClaudeAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
			ClaudeModel:    getEnv("CLAUDE_MODEL", "claude-3-5-haiku-latest"),
			OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:    getEnv("OLLAMA_MODEL", "llama3.1"),
			EnableFallback: getEnvBool("LM_ENABLE_FALLBACK", true),
			CallTimeout:    getEnvDuration("LM_CALL_TIMEOUT", 60*time.Second),
			RetryAttempts:  getEnvInt("LM_RETRY_ATTEMPTS", 5),
			RetryBaseDelay: getEnvDuration("LM_RETRY_BASE_DELAY", 2*time.Second),
			RetryMaxDelay:  getEnvDuration("LM_RETRY_MAX_DELAY", 60*time.Second),
			TaskProviders:  getEnvMap("LM_TASK_PROVIDERS"),
		},
		Ontology: OntologyConfig{
			Backend:       getEnv("ONTOLOGY_BACKEND", "memory"),
			OpenSearchURL: getEnv("OPENSEARCH_URL", "https://localhost:9200"),
			IndexName:     getEnv("ONTOLOGY_INDEX", "folio-concepts"),
			ConceptsPath:  getEnv("ONTOLOGY_CONCEPTS_PATH", "./data/ontology/concepts.json"),
			Version:       getEnv("ONTOLOGY_VERSION", "dev"),
		},
		Embedding: EmbeddingConfig{
			Backend:       getEnv("EMBEDDING_BACKEND", "memory"),
			OpenSearchURL: getEnv("OPENSEARCH_URL", "https://localhost:9200"),
			IndexName:     getEnv("EMBEDDING_INDEX", "folio-embeddings"),
			Dimensions:    getEnvInt("EMBEDDING_DIMENSIONS", 1536),
			TriageMargin:  getEnvFloat("EMBEDDING_TRIAGE_MARGIN", 0.05),
		},
		JobStore: JobStoreConfig{
			RootDir:       getEnv("JOBSTORE_ROOT", "./data/jobs"),
			RetentionDays: getEnvInt("JOB_RETENTION_DAYS", 30),
		},
		Concurrency: ConcurrencyConfig{
			StageLMConcurrency: getEnvInt("STAGE_LM_CONCURRENCY", 8),
			GlobalJobLimit:     getEnvInt("GLOBAL_JOB_LIMIT", 10),
			StageSoftTimeout:   getEnvDuration("STAGE_SOFT_TIMEOUT", 10*time.Minute),
			StageHardTimeout:   getEnvDuration("STAGE_HARD_TIMEOUT", 20*time.Minute),
			JobHardTimeout:     getEnvDuration("JOB_HARD_TIMEOUT", 60*time.Minute),
		},
		Matching: MatchingConfig{
			ConflictThreshold:        getEnvFloat("MATCHING_CONFLICT_THRESHOLD", 0.80),
			AltLabelExpansionScale:   getEnvFloat("MATCHING_ALT_LABEL_SCALE", 0.95),
			BoundaryHyphenAsWordChar: getEnvBool("MATCHING_HYPHEN_AS_WORD_CHAR", true),
			DefaultChunkOverlap:      getEnvInt("CHUNK_OVERLAP", 200),
			MaxChunkSize:             getEnvInt("CHUNK_MAX_SIZE", 3000),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Concurrency.StageLMConcurrency <= 0 {
		return fmt.Errorf("STAGE_LM_CONCURRENCY must be positive")
	}
	if c.Concurrency.GlobalJobLimit <= 0 {
		return fmt.Errorf("GLOBAL_JOB_LIMIT must be positive")
	}
	if c.Matching.MaxChunkSize <= c.Matching.DefaultChunkOverlap {
		return fmt.Errorf("CHUNK_MAX_SIZE must exceed CHUNK_OVERLAP")
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }
func (c *Config) IsLocal() bool      { return c.Environment == "development" || c.Environment == "local" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvMap parses "k1=v1,k2=v2" pairs; malformed entries are
// dropped.
func getEnvMap(key string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" || val == "" {
			continue
		}
		out[k] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
