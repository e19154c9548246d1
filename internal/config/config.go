package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/spf13/viper"
)

// Config holds all configuration for AskBook
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
	Session   SessionConfig   `mapstructure:"session"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Vector    VectorConfig    `mapstructure:"vector"`
	LLM       LLMConfig       `mapstructure:"llm"`
	RAG       RAGConfig       `mapstructure:"rag"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Guard     GuardConfig     `mapstructure:"guard"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SessionConfig selects the conversation history backend
type SessionConfig struct {
	// Store is one of memory, sqlite, postgres, redis.
	Store string `mapstructure:"store"`
}

// DatabaseConfig holds relational session store configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
	DSN  string `mapstructure:"dsn"`
}

// RedisConfig holds redis session store configuration
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// VectorConfig holds vector index (Qdrant) configuration
type VectorConfig struct {
	// Backend is qdrant or memory.
	Backend        string `mapstructure:"backend"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	APIKey         string `mapstructure:"api_key"`
	UseTLS         bool   `mapstructure:"use_tls"`
	Collection     string `mapstructure:"collection"`
	Dimension      int    `mapstructure:"dimension"`
	Distance       string `mapstructure:"distance"`
	ScrollPageSize int    `mapstructure:"scroll_page_size"`
}

// LLMConfig holds the OpenAI-compatible provider configuration
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	ChatModel      string        `mapstructure:"chat_model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// RAGConfig holds chunking and retrieval configuration
type RAGConfig struct {
	ChunkSize      int `mapstructure:"chunk_size"`
	ChunkOverlap   int `mapstructure:"chunk_overlap"`
	TopK           int `mapstructure:"top_k"`
	TitleScanLines int `mapstructure:"title_scan_lines"`
}

// IngestConfig holds corpus ingestion configuration
type IngestConfig struct {
	DocsDir        string        `mapstructure:"docs_dir"`
	Extensions     []string      `mapstructure:"extensions"`
	Workers        int           `mapstructure:"workers"`
	EmbedBatchSize int           `mapstructure:"embed_batch_size"`
	WatchDebounce  time.Duration `mapstructure:"watch_debounce"`
}

// AssistantConfig describes what the assistant answers about. It is used in
// prompts, guard instructions and the scope reminder.
type AssistantConfig struct {
	Book   string `mapstructure:"book"`
	Topics string `mapstructure:"topics"`
}

// GuardConfig holds topic guard configuration
type GuardConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is memory (per process) or redis (shared across replicas).
	Backend         string `mapstructure:"backend"`
	RequestsPerHour int    `mapstructure:"requests_per_hour"`
	Burst           int    `mapstructure:"burst"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables, e.g. ASKBOOK_LLM_API_KEY
	v.SetEnvPrefix("ASKBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("session.store", "memory")
	v.SetDefault("database.path", "./data/askbook.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "askbook:")

	v.SetDefault("vector.backend", "qdrant")
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.api_key", "")
	v.SetDefault("vector.use_tls", false)
	v.SetDefault("vector.collection", "book_chunks")
	v.SetDefault("vector.dimension", 768)
	v.SetDefault("vector.distance", "cosine")
	v.SetDefault("vector.scroll_page_size", 1000)

	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.embedding_model", "text-embedding-004")
	v.SetDefault("llm.chat_model", "gemini-2.5-flash")
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("rag.chunk_size", 1500)
	v.SetDefault("rag.chunk_overlap", 200)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.title_scan_lines", 10)

	v.SetDefault("ingest.docs_dir", "docs")
	v.SetDefault("ingest.extensions", []string{".md", ".mdx", ".txt", ".pdf"})
	v.SetDefault("ingest.workers", 1)
	v.SetDefault("ingest.embed_batch_size", 32)
	v.SetDefault("ingest.watch_debounce", 2*time.Second)

	v.SetDefault("assistant.book", "the Physical AI & Humanoid Robotics course book")
	v.SetDefault("assistant.topics", "Physical AI, Humanoid Robotics, ROS 2, Simulation, NVIDIA Isaac, or Vision Language Action (VLA) models")

	v.SetDefault("guard.enabled", false)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.requests_per_hour", 100)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.service_name", "askbook")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate reports missing credentials or endpoints needed to answer queries.
// The returned error wraps domain.ErrNotConfigured.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		missing = append(missing, "llm.api_key")
	}
	if c.Vector.Backend != "memory" && strings.TrimSpace(c.Vector.Host) == "" {
		missing = append(missing, "vector.host")
	}
	if c.Vector.Dimension <= 0 {
		missing = append(missing, "vector.dimension")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
