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
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	LLM           LLMConfig
	Embedding     EmbeddingConfig
	DocumentStore DocumentStoreConfig
	Redis         RedisConfig
	Payments      PaymentsConfig
	RAG           RAGConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	Enabled          bool
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// LLMConfig selects and configures the chat generator
type LLMConfig struct {
	Provider        string // openai, anthropic, ollama
	Model           string
	GenerateModel   string // model for the single-shot /generate endpoint
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// EmbeddingConfig configures the embedding client
type EmbeddingConfig struct {
	Provider          string // openai, ollama
	Model             string
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	BatchSize         int
	Prefix            string
	Suffix            string
	MetaFieldsToEmbed []string
	Separator         string
}

// DocumentStoreConfig selects and configures the document store backend
type DocumentStoreConfig struct {
	Backend       string // memory, sqlite, weaviate
	SQLitePath    string
	WeaviateURL   string
	WeaviateKey   string
	WeaviateClass string
	Timeout       time.Duration
}

// RedisConfig configures the optional embedding cache
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	CacheTTL    time.Duration
}

// PaymentsConfig holds Stripe configuration
type PaymentsConfig struct {
	StripeAPIKey       string
	Currency           string
	PaymentMethodTypes []string
}

// RAGConfig tunes the chat pipeline
type RAGConfig struct {
	PromptsFile      string
	MaxRetries       int
	QueryTopK        int
	Threshold        float64
	InjectionGuard   bool
	MaxInjectionRisk float64
}

// AuthConfig protects the document management endpoints
type AuthConfig struct {
	AdminJWTSecret string
	AdminIssuer    string
}

// RateLimitConfig bounds chat traffic per client
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	CleanupInterval   time.Duration
	Retention         time.Duration
}

// AuditConfig configures the asynchronous chat audit trail
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	WorkerCount int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	ServiceName       string
	LogLevel          string
	LogFormat         string // json or text
	TracingEnabled    bool
	TracingEndpoint   string
	TracingInsecure   bool
	TracingSampleRate float64
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	llmProvider := strings.ToLower(getEnv("LLM_PROVIDER", "openai"))

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "127.0.0.1"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 110*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: loadDatabaseConfig(),
		LLM: LLMConfig{
			Provider:        llmProvider,
			Model:           getEnv("LLM_MODEL", defaultLLMModel(llmProvider)),
			GenerateModel:   getEnv("LLM_GENERATE_MODEL", ""),
			APIKey:          firstEnv("LLM_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			Temperature:     getEnvAsFloat("LLM_TEMPERATURE", 0.5),
			TopP:            getEnvAsFloat("LLM_TOP_P", 0.95),
			TopK:            getEnvAsInt("LLM_TOP_K", 64),
			MaxOutputTokens: getEnvAsInt("LLM_MAX_OUTPUT_TOKENS", 8192),
		},
		Embedding: EmbeddingConfig{
			Provider:          strings.ToLower(getEnv("EMBEDDING_PROVIDER", "openai")),
			Model:             getEnv("EMBEDDING_MODEL", ""), // backend default when empty
			APIKey:            firstEnv("EMBEDDING_API_KEY", "LLM_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY"),
			BaseURL:           getEnv("EMBEDDING_BASE_URL", ""),
			Timeout:           getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			BatchSize:         getEnvAsInt("EMBEDDING_BATCH_SIZE", 32),
			Prefix:            getEnv("EMBEDDING_PREFIX", ""),
			Suffix:            getEnv("EMBEDDING_SUFFIX", ""),
			MetaFieldsToEmbed: getEnvAsList("EMBEDDING_META_FIELDS", nil),
			Separator:         getEnv("EMBEDDING_SEPARATOR", "\n"),
		},
		DocumentStore: DocumentStoreConfig{
			Backend:       strings.ToLower(getEnv("DOCUMENT_STORE_BACKEND", "memory")),
			SQLitePath:    getEnv("DOCUMENT_STORE_SQLITE_PATH", "documents.db"),
			WeaviateURL:   getEnv("WEAVIATE_URL", "http://127.0.0.1:8080"),
			WeaviateKey:   getEnv("WEAVIATE_API_KEY", ""),
			WeaviateClass: getEnv("WEAVIATE_CLASS", "Document"),
			Timeout:       getEnvAsDuration("DOCUMENT_STORE_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			CacheTTL:    getEnvAsDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
		Payments: PaymentsConfig{
			StripeAPIKey:       getEnv("STRIPE_API_KEY", ""),
			Currency:           strings.ToLower(getEnv("PAYMENT_CURRENCY", "inr")),
			PaymentMethodTypes: getEnvAsList("PAYMENT_METHOD_TYPES", []string{"card"}),
		},
		RAG: RAGConfig{
			PromptsFile:      getEnv("PROMPTS_FILE", ""),
			MaxRetries:       getEnvAsInt("RAG_MAX_VALIDATION_RETRIES", 3),
			QueryTopK:        getEnvAsInt("RAG_QUERY_TOP_K", 0),
			Threshold:        getEnvAsFloat("RAG_RETRIEVAL_THRESHOLD", 0),
			InjectionGuard:   getEnvAsBool("RAG_INJECTION_GUARD", true),
			MaxInjectionRisk: getEnvAsFloat("RAG_MAX_INJECTION_RISK", 0.8),
		},
		Auth: AuthConfig{
			AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
			AdminIssuer:    getEnv("ADMIN_JWT_ISSUER", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 20),
			RequestsPerHour:   getEnvAsInt("RATE_LIMIT_PER_HOUR", 300),
			CleanupInterval:   getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", time.Hour),
			Retention:         getEnvAsDuration("RATE_LIMIT_RETENTION", 24*time.Hour),
		},
		Audit: AuditConfig{
			Enabled:     getEnvAsBool("AUDIT_ENABLED", true),
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			WorkerCount: getEnvAsInt("AUDIT_WORKER_COUNT", 2),
		},
		Observability: ObservabilityConfig{
			ServiceName:       getEnv("SERVICE_NAME", "ticketbot"),
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			LogFormat:         getEnv("LOG_FORMAT", "json"),
			TracingEnabled:    getEnvAsBool("TRACING_ENABLED", false),
			TracingEndpoint:   getEnv("TRACING_ENDPOINT", ""),
			TracingInsecure:   getEnvAsBool("TRACING_INSECURE", false),
			TracingSampleRate: getEnvAsFloat("TRACING_SAMPLE_RATE", 0.1),
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
	if c.Database.Enabled && c.Database.ConnectionString == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	switch c.LLM.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unsupported LLM provider %q", c.LLM.Provider)
	}

	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unsupported embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive")
	}

	switch c.DocumentStore.Backend {
	case "memory", "sqlite", "weaviate":
	default:
		return fmt.Errorf("unsupported document store backend %q", c.DocumentStore.Backend)
	}

	if c.RAG.MaxRetries < 0 {
		return fmt.Errorf("max validation retries cannot be negative")
	}
	if c.RAG.QueryTopK < 0 {
		return fmt.Errorf("query top k cannot be negative")
	}

	if c.IsProduction() {
		if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
			return fmt.Errorf("an LLM API key is required in production")
		}
		if c.Payments.StripeAPIKey == "" {
			return fmt.Errorf("stripe API key is required in production")
		}
		if c.Auth.AdminJWTSecret == "" {
			return fmt.Errorf("admin JWT secret is required in production")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
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

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// The database is optional: without DATABASE_URL or DB_HOST, events, bookings,
// the audit trail and rate limiting are disabled.
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			Enabled:          true,
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Enabled:         os.Getenv("DB_HOST") != "",
		Host:            getEnv("DB_HOST", ""),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "ticketbot"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "ticketbot"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// defaultLLMModel picks the model for the OpenAI-compatible Gemini endpoint;
// other providers fall back to their adapter defaults
func defaultLLMModel(provider string) string {
	if provider == "openai" {
		return "gemini-1.5-flash"
	}
	return ""
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
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

// firstEnv returns the first non-empty value among keys
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
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

// getEnvAsList splits a comma separated variable, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
