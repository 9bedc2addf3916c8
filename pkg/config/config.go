package config

import (
	"encoding/json"
	"math/rand/v2"
	"time"
)

// Config is the complete woodsage configuration.
type Config struct {
	LLM        LLMConfig        `koanf:"llm"        validate:"required"`
	Embedding  EmbeddingConfig  `koanf:"embedding"  validate:"required"`
	Vector     VectorConfig     `koanf:"vector"     validate:"required"`
	Catalog    CatalogConfig    `koanf:"catalog"    validate:"required"`
	Chunking   ChunkingConfig   `koanf:"chunking"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Matching   MatchingConfig   `koanf:"matching"`
	Synthesis  SynthesisConfig  `koanf:"synthesis"`
	Server     ServerConfig     `koanf:"server"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Runtime    RuntimeConfig    `koanf:"runtime"`
	Videos     []VideoLink      `koanf:"videos"`
	Examples   []string         `koanf:"examples"`
}

type LLMConfig struct {
	Provider          string          `koanf:"provider"            validate:"oneof=openai"     env:"LLM_PROVIDER"`
	Model             string          `koanf:"model"               validate:"required"         env:"LLM_MODEL"`
	APIKey            SensitiveString `koanf:"api_key"                                         env:"OPENAI_API_KEY"          sensitive:"true"`
	BaseURL           string          `koanf:"base_url"                                        env:"LLM_BASE_URL"`
	Temperature       float64         `koanf:"temperature"         validate:"min=0,max=2"      env:"LLM_TEMPERATURE"`
	Timeout           time.Duration   `koanf:"timeout"             validate:"min=0"            env:"LLM_TIMEOUT"`
	RequestsPerMinute int             `koanf:"requests_per_minute" validate:"min=0"            env:"LLM_REQUESTS_PER_MINUTE"`
	MaxConcurrency    int             `koanf:"max_concurrency"     validate:"min=0"            env:"LLM_MAX_CONCURRENCY"`
}

type EmbeddingConfig struct {
	Provider       string          `koanf:"provider"        validate:"oneof=openai"  env:"EMBEDDING_PROVIDER"`
	Model          string          `koanf:"model"           validate:"required"      env:"EMBEDDING_MODEL"`
	APIKey         SensitiveString `koanf:"api_key"                                  env:"EMBEDDING_API_KEY"         sensitive:"true"`
	BaseURL        string          `koanf:"base_url"                                 env:"EMBEDDING_BASE_URL"`
	Dimension      int             `koanf:"dimension"       validate:"min=1"         env:"EMBEDDING_DIMENSION"`
	BatchSize      int             `koanf:"batch_size"      validate:"min=1"         env:"EMBEDDING_BATCH_SIZE"`
	MaxTokens      int             `koanf:"max_tokens"      validate:"min=1"         env:"EMBEDDING_MAX_TOKENS"`
	MaxAttempts    int             `koanf:"max_attempts"    validate:"min=1"         env:"EMBEDDING_MAX_ATTEMPTS"`
	BackoffBase    time.Duration   `koanf:"backoff_base"    validate:"min=0"         env:"EMBEDDING_BACKOFF_BASE"`
	AttemptTimeout time.Duration   `koanf:"attempt_timeout" validate:"min=0"         env:"EMBEDDING_ATTEMPT_TIMEOUT"`
	CacheSize      int             `koanf:"cache_size"      validate:"min=0"         env:"EMBEDDING_CACHE_SIZE"`
}

type VectorConfig struct {
	Provider    string          `koanf:"provider"   validate:"oneof=memory filesystem qdrant pgvector redis" env:"VECTOR_PROVIDER"`
	DSN         SensitiveString `koanf:"dsn"                                                                  env:"VECTOR_DSN"        sensitive:"true"`
	Path        string          `koanf:"path"                                                                 env:"VECTOR_PATH"`
	Collection  string          `koanf:"collection"                                                           env:"VECTOR_COLLECTION"`
	Metric      string          `koanf:"metric"     validate:"omitempty,oneof=cosine dot l2"                  env:"VECTOR_METRIC"`
	APIKey      SensitiveString `koanf:"api_key"                                                              env:"VECTOR_API_KEY"    sensitive:"true"`
	EnsureIndex bool            `koanf:"ensure_index"                                                         env:"VECTOR_ENSURE_INDEX"`
}

type CatalogConfig struct {
	Driver   string          `koanf:"driver"    validate:"oneof=sqlite postgres memory" env:"CATALOG_DRIVER"`
	DSN      SensitiveString `koanf:"dsn"                                               env:"CATALOG_DSN"       sensitive:"true"`
	Path     string          `koanf:"path"                                              env:"CATALOG_PATH"`
	Seed     bool            `koanf:"seed"                                              env:"CATALOG_SEED"`
	SeedFile string          `koanf:"seed_file"                                         env:"CATALOG_SEED_FILE"`
	MaxConns int             `koanf:"max_conns" validate:"min=0"                        env:"CATALOG_MAX_CONNS"`
}

type ChunkingConfig struct {
	MaxRunes int `koanf:"max_runes" validate:"min=1" env:"CHUNKING_MAX_RUNES"`
}

type IngestConfig struct {
	Concurrency int    `koanf:"concurrency" validate:"min=1"                 env:"INGEST_CONCURRENCY"`
	Strategy    string `koanf:"strategy"    validate:"oneof=upsert replace" env:"INGEST_STRATEGY"`
	MaxFileSize int64  `koanf:"max_file_size" validate:"min=1"              env:"INGEST_MAX_FILE_SIZE"`
}

type RetrievalConfig struct {
	TopK     int     `koanf:"top_k"     validate:"min=1"       env:"RETRIEVAL_TOP_K"`
	MinScore float64 `koanf:"min_score" validate:"min=0,max=1"  env:"RETRIEVAL_MIN_SCORE"`
}

type MatchingConfig struct {
	Threshold float64 `koanf:"threshold" validate:"gt=0,max=1" env:"MATCHING_THRESHOLD"`
	TopK      int     `koanf:"top_k"     validate:"min=1"       env:"MATCHING_TOP_K"`
}

type SynthesisConfig struct {
	MaxContextTokens int `koanf:"max_context_tokens" validate:"min=1" env:"SYNTHESIS_MAX_CONTEXT_TOKENS"`
}

type ServerConfig struct {
	Host         string          `koanf:"host"         validate:"required"        env:"SERVER_HOST"`
	Port         int             `koanf:"port"         validate:"min=1,max=65535" env:"SERVER_PORT"`
	CORSEnabled  bool            `koanf:"cors_enabled"                            env:"SERVER_CORS_ENABLED"`
	Timeout      time.Duration   `koanf:"timeout"                                 env:"SERVER_TIMEOUT"`
	MaxBodyBytes int64           `koanf:"max_body_bytes" validate:"min=0" env:"SERVER_MAX_BODY_BYTES"`
	RateLimit    RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig throttles API requests per client IP. RedisURL shares the
// counters between replicas; the in-process store is used when it is empty.
type RateLimitConfig struct {
	Enabled  bool            `koanf:"enabled"   env:"SERVER_RATE_LIMIT_ENABLED"`
	Limit    int64           `koanf:"limit"     validate:"min=0" env:"SERVER_RATE_LIMIT"`
	Period   time.Duration   `koanf:"period"    validate:"min=0" env:"SERVER_RATE_LIMIT_PERIOD"`
	AskLimit int64           `koanf:"ask_limit" validate:"min=0" env:"SERVER_RATE_LIMIT_ASK"`
	RedisURL SensitiveString `koanf:"redis_url" env:"SERVER_RATE_LIMIT_REDIS_URL" sensitive:"true"`
}

type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"`
}

type RuntimeConfig struct {
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error disabled" env:"RUNTIME_LOG_LEVEL"`
	LogJSON  bool   `koanf:"log_json"                                                  env:"RUNTIME_LOG_JSON"`
}

// VideoLink maps a transcript title to the video it came from.
type VideoLink struct {
	Title string `koanf:"title" yaml:"title" json:"title"`
	URL   string `koanf:"url"   yaml:"url"   json:"url"`
}

// SensitiveString is a string that redacts itself when printed or serialized.
type SensitiveString string

const redacted = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s SensitiveString) MarshalYAML() (any, error) {
	return s.String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "gpt-4o",
			Temperature:       0.2,
			Timeout:           60 * time.Second,
			RequestsPerMinute: 0,
			MaxConcurrency:    4,
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-ada-002",
			Dimension:      1536,
			BatchSize:      16,
			MaxTokens:      8000,
			MaxAttempts:    3,
			BackoffBase:    2 * time.Second,
			AttemptTimeout: 30 * time.Second,
			CacheSize:      512,
		},
		Vector: VectorConfig{
			Provider:    "filesystem",
			Path:        ".woodsage/index.json",
			Collection:  "woodsage",
			Metric:      "cosine",
			EnsureIndex: true,
		},
		Catalog: CatalogConfig{
			Driver: "sqlite",
			Path:   ".woodsage/catalog.db",
			Seed:   true,
		},
		Chunking:  ChunkingConfig{MaxRunes: 1000},
		Ingest:    IngestConfig{Concurrency: 4, Strategy: "upsert", MaxFileSize: 20 << 20},
		Retrieval: RetrievalConfig{TopK: 3},
		Matching:  MatchingConfig{Threshold: 0.7, TopK: 5},
		Synthesis: SynthesisConfig{MaxContextTokens: 3000},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5002,
			CORSEnabled:  true,
			Timeout:      120 * time.Second,
			MaxBodyBytes: 10 << 20,
			RateLimit: RateLimitConfig{
				Enabled:  false,
				Limit:    100,
				Period:   time.Minute,
				AskLimit: 20,
			},
		},
		Monitoring: MonitoringConfig{Enabled: false, Path: "/metrics"},
		Runtime:    RuntimeConfig{LogLevel: "info"},
		Videos:     DefaultVideos(),
		Examples:   DefaultExamples(),
	}
}

func DefaultVideos() []VideoLink {
	return []VideoLink{
		{Title: "Basics of Cabinet Building", URL: "https://www.youtube.com/watch?v=Oeu7ogH2NZU&t=3910s"},
		{Title: "Graco Ultimate Sprayer", URL: "https://www.youtube.com/watch?v=T8BIpNzdh7M&t=264s"},
		{Title: "Festool LR32 system", URL: "https://www.youtube.com/watch?v=EO62T1LHdNA"},
	}
}

func DefaultExamples() []string {
	return []string{
		"How do TSO Products' Festool accessories improve woodworking precision?",
		"What makes Bits and Bits Company's router bits ideal for woodworking?",
		"What are the benefits of Japanese saws and chisels from Taylor Toolworks?",
		"How does the Festool LR 32 System aid in cabinet making?",
		"What advantages does the Festool Trigger Clamp offer for quick release and one-handed use?",
		"How does the Festool LR 32 Rail ensure precise 32mm hole spacing?",
		"What features of the Festool OF 1400 plunge router are ideal for precision routing?",
		"How does the Festool Vac Sys Head improve clamping in woodworking?",
		"What makes the Festool Midi Vac a top choice for dust extraction?",
		"How does the Festool Bluetooth Switch enhance dust extractor control?",
	}
}

// VideoURL returns the link registered for a transcript title.
func (c *Config) VideoURL(title string) (string, bool) {
	for _, v := range c.Videos {
		if v.Title == title {
			return v.URL, true
		}
	}
	return "", false
}

// SampleExamples returns up to n distinct example questions in random order.
func (c *Config) SampleExamples(n int) []string {
	n = max(0, min(n, len(c.Examples)))
	out := make([]string, 0, n)
	for _, i := range rand.Perm(len(c.Examples))[:n] {
		out = append(out, c.Examples[i])
	}
	return out
}
