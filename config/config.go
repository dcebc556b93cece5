package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/rag-chatbot/services"
)

// Vector index backends
const (
	VectorBackendPgvector = "pgvector"
	VectorBackendQdrant   = "qdrant"
	VectorBackendMemory   = "memory"
)

// Default completion models per provider
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Providers     ProvidersConfig
	RAG           RAGConfig
	VectorStore   VectorStoreConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	AutoMigrate      bool // Create tables and extensions on startup
}

// ProvidersConfig holds model provider configurations
type ProvidersConfig struct {
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

// OpenAIConfig holds OpenAI provider configuration. It serves embeddings and chat.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// AnthropicConfig holds Anthropic provider configuration
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// RAGConfig holds the chunking, retrieval and generation parameters
type RAGConfig struct {
	TopK                int
	MaxContextItems     int
	BatchSize           int
	ChunkSize           int
	ChunkOverlap        int
	CollectionName      string
	LLMProvider         string
	LLMModel            string
	EmbeddingModel      string
	EmbeddingDimensions int // 0 accepts whatever the provider returns
	MaxTokens           int
	Temperature         float64
	RequestTimeout      time.Duration
}

// VectorStoreConfig selects and configures the vector index backend
type VectorStoreConfig struct {
	Backend       string
	QdrantURL     string
	QdrantAPIKey  string
	QdrantTimeout time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	provider := strings.ToLower(getEnv("LLM_PROVIDER", "openai"))

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			},
			Anthropic: AnthropicConfig{
				APIKey:     getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL:    getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Timeout:    getEnvAsDuration("ANTHROPIC_TIMEOUT", 60*time.Second),
				MaxRetries: getEnvAsInt("ANTHROPIC_MAX_RETRIES", 0),
			},
		},
		RAG: RAGConfig{
			TopK:                getEnvAsInt("TOP_K", 8),
			MaxContextItems:     getEnvAsInt("MAX_CONTEXT_ITEMS", 6),
			BatchSize:           getEnvAsInt("BATCH_SIZE", 64),
			ChunkSize:           getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:        getEnvAsInt("CHUNK_OVERLAP", 200),
			CollectionName:      getEnv("CHROMA_COLLECTION_NAME", "rag_collection"),
			LLMProvider:         provider,
			LLMModel:            getEnv("LLM_MODEL", DefaultModel(provider)),
			EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 0),
			MaxTokens:           getEnvAsInt("MAX_TOKENS", 512),
			Temperature:         getEnvAsFloat("TEMPERATURE", 0),
			RequestTimeout:      getEnvAsDuration("RAG_REQUEST_TIMEOUT", 60*time.Second),
		},
		VectorStore: VectorStoreConfig{
			Backend:       strings.ToLower(getEnv("VECTOR_BACKEND", VectorBackendPgvector)),
			QdrantURL:     strings.TrimRight(getEnv("QDRANT_URL", ""), "/"),
			QdrantAPIKey:  getEnv("QDRANT_API_KEY", ""),
			QdrantTimeout: getEnvAsDuration("QDRANT_TIMEOUT", 15*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if err := c.RAG.Validate(); err != nil {
		return err
	}

	switch c.VectorStore.Backend {
	case VectorBackendPgvector, VectorBackendMemory:
	case VectorBackendQdrant:
		if c.VectorStore.QdrantURL == "" {
			return fmt.Errorf("QDRANT_URL is required when VECTOR_BACKEND=qdrant")
		}
	default:
		return fmt.Errorf("unknown vector backend %q", c.VectorStore.Backend)
	}

	// Database validation (DATABASE_URL or POSTGRES_* vars)
	if c.Database.ConnectionString == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or POSTGRES_HOST")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	// Embeddings always come from OpenAI
	if c.IsProduction() && c.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required in production")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Validate checks chunking and retrieval parameters. Invalid chunking yields a
// configuration error.
func (r *RAGConfig) Validate() error {
	if r.ChunkSize <= 0 {
		return services.NewDomainError(services.ErrorTypeConfiguration,
			fmt.Sprintf("invalid CHUNK_SIZE %d", r.ChunkSize), services.ErrInvalidChunkSize)
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return services.NewDomainError(services.ErrorTypeConfiguration,
			fmt.Sprintf("invalid CHUNK_OVERLAP %d for CHUNK_SIZE=%d", r.ChunkOverlap, r.ChunkSize), services.ErrInvalidChunkOverlap)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", r.TopK)
	}
	if r.MaxContextItems <= 0 {
		return fmt.Errorf("MAX_CONTEXT_ITEMS must be positive, got %d", r.MaxContextItems)
	}
	if r.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", r.BatchSize)
	}
	if r.CollectionName == "" {
		return fmt.Errorf("CHROMA_COLLECTION_NAME is required")
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", r.MaxTokens)
	}
	if r.EmbeddingDimensions < 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must not be negative")
	}

	model := strings.ToLower(r.LLMModel)
	switch {
	case r.LLMProvider == "anthropic" && !strings.HasPrefix(model, "claude"),
		r.LLMProvider == "openai" && strings.HasPrefix(model, "claude"):
		return services.NewDomainError(services.ErrorTypeConfiguration,
			fmt.Sprintf("LLM_MODEL %q cannot be served by LLM_PROVIDER=%s", r.LLMModel, r.LLMProvider), nil)
	}
	return nil
}

// DefaultModel returns the completion model used when LLM_MODEL is unset
func DefaultModel(provider string) string {
	if provider == "anthropic" {
		return DefaultAnthropicModel
	}
	return DefaultOpenAIModel
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or POSTGRES_* env vars
func loadDatabaseConfig() DatabaseConfig {
	pool := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		pool.ConnectionString = dbURL
		return pool
	}

	pool.Host = getEnv("POSTGRES_HOST", "localhost")
	pool.Port = getEnvAsInt("POSTGRES_PORT", 5432)
	pool.User = getEnv("POSTGRES_USER", "raguser")
	pool.Password = getEnv("POSTGRES_PASSWORD", "changeme")
	pool.Database = getEnv("POSTGRES_DB", "ragdb")
	pool.SSLMode = getEnv("POSTGRES_SSLMODE", "disable")
	return pool
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
