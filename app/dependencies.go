package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/config"
	"github.com/sangrahalaya/ticketbot/internal/observability"
	"github.com/sangrahalaya/ticketbot/middleware"
	"github.com/sangrahalaya/ticketbot/repositories"
	"github.com/sangrahalaya/ticketbot/repositories/docstore"
	"github.com/sangrahalaya/ticketbot/repositories/postgres"
	"github.com/sangrahalaya/ticketbot/repositories/redis"
	"github.com/sangrahalaya/ticketbot/services/audit"
	"github.com/sangrahalaya/ticketbot/services/booking"
	"github.com/sangrahalaya/ticketbot/services/embedding"
	"github.com/sangrahalaya/ticketbot/services/payment"
	"github.com/sangrahalaya/ticketbot/services/prompt"
	"github.com/sangrahalaya/ticketbot/services/providers"
	anthropicprovider "github.com/sangrahalaya/ticketbot/services/providers/anthropic"
	ollamaprovider "github.com/sangrahalaya/ticketbot/services/providers/ollama"
	openaiprovider "github.com/sangrahalaya/ticketbot/services/providers/openai"
	"github.com/sangrahalaya/ticketbot/services/rag"
	"github.com/sangrahalaya/ticketbot/services/ratelimit"
)

const auditStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Database (nil when no database is configured)
	DB           *postgres.DB
	RepoFactory  *postgres.RepositoryFactory
	Repositories *repositories.Repositories

	// Retrieval
	DocumentStore  repositories.DocumentStore
	EmbeddingCache *redis.EmbeddingCache
	Generator      providers.Generator

	// Services
	Chat        *rag.Service
	Audit       *audit.AuditService
	RateLimiter *ratelimit.RateLimitService
	Payments    payment.Gateway
	Bookings    *booking.Service

	// Middleware
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	shutdownTracing observability.ShutdownFunc
	stopCleanup     context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies.
// Components that need a database are skipped when none is configured.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	shutdown, err := observability.InitTracing(ctx, cfg.Observability, cfg.Environment, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	deps.shutdownTracing = shutdown

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database", deps.initDatabase},
		{"document store", deps.initDocumentStore},
		{"generator", deps.initGenerator},
		{"audit", deps.initAudit},
		{"chat service", deps.initChat},
		{"bookings", deps.initBookings},
		{"rate limiting", deps.initRateLimit},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			_ = deps.Close(ctx)
			return nil, fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}

	deps.initAuth()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase connects to PostgreSQL and creates the schema
func (d *Dependencies) initDatabase(ctx context.Context) error {
	if !d.Config.Database.Enabled {
		d.Logger.Warn("no database configured, events, bookings, audit and rate limiting are disabled")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(d.Config.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.HealthCheck(ctx); err != nil {
		return err
	}
	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Repositories = factory.NewRepositories()
	d.Logger.Info("repositories initialized")
	return nil
}

// initDocumentStore opens the configured document store and, when Redis is
// configured, the embedding cache
func (d *Dependencies) initDocumentStore(ctx context.Context) error {
	store, err := docstore.New(ctx, d.Config.DocumentStore, d.Logger)
	if err != nil {
		return err
	}
	d.DocumentStore = store
	d.Logger.Info("document store ready", zap.String("backend", d.Config.DocumentStore.Backend))

	if d.Config.Redis.Addr == "" {
		return nil
	}
	cache, err := redis.NewEmbeddingCache(ctx, redis.Options{
		Addr:        d.Config.Redis.Addr,
		Password:    d.Config.Redis.Password,
		DB:          d.Config.Redis.DB,
		DialTimeout: d.Config.Redis.DialTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect embedding cache: %w", err)
	}
	d.EmbeddingCache = cache
	d.Logger.Info("embedding cache connected", zap.String("addr", d.Config.Redis.Addr))
	return nil
}

// initGenerator builds the configured chat model through the provider registry
func (d *Dependencies) initGenerator(context.Context) error {
	llm := d.Config.LLM
	registry, err := providers.NewRegistryBuilder().
		WithProviderBuilder("openai", openaiprovider.Builder).
		WithProviderBuilder("anthropic", anthropicprovider.Builder).
		WithProviderBuilder("ollama", ollamaprovider.Builder).
		Build(map[string]providers.ProviderConfig{
			llm.Provider: {
				APIKey:  llm.APIKey,
				BaseURL: llm.BaseURL,
				Model:   llm.Model,
				Timeout: llm.Timeout,
			},
		})
	if err != nil {
		return err
	}

	generator, err := registry.GetProvider(llm.Provider)
	if err != nil {
		return err
	}
	d.Generator = generator
	d.Logger.Info("generator registered",
		zap.String("provider", generator.Name()),
		zap.String("model", generator.Model()))
	return nil
}

// initAudit starts the audit workers
func (d *Dependencies) initAudit(context.Context) error {
	if d.Repositories == nil || !d.Config.Audit.Enabled {
		return nil
	}

	svc := audit.NewAuditService(d.Repositories.AuditLogs, d.Logger, audit.Config{
		BufferSize:  d.Config.Audit.BufferSize,
		WorkerCount: d.Config.Audit.WorkerCount,
	})
	if err := svc.Start(); err != nil {
		return err
	}
	d.Audit = svc
	return nil
}

// initChat wires embeddings, prompts and screening into the chat pipeline
func (d *Dependencies) initChat(context.Context) error {
	embedder, err := d.newEmbedder()
	if err != nil {
		return err
	}

	var queryEmbedder embedding.TextEmbedder = embedder
	if d.EmbeddingCache != nil {
		queryEmbedder = embedding.NewCachedTextEmbedder(embedder, d.EmbeddingCache, d.Config.Redis.CacheTTL, d.Logger)
	}

	prompts, err := config.LoadPrompts(d.Config.RAG.PromptsFile)
	if err != nil {
		return err
	}
	templates, err := prompt.NewTemplates(prompts.System, prompts.User)
	if err != nil {
		return err
	}

	screenCfg := prompt.DefaultScreenConfig()
	screenCfg.EnableInjectionGuard = d.Config.RAG.InjectionGuard
	screenCfg.MaxInjectionRisk = d.Config.RAG.MaxInjectionRisk

	var observer rag.Observer
	if d.Audit != nil {
		observer = newChatAuditObserver(d.Audit, d.Logger)
	}

	llm := d.Config.LLM
	svc, err := rag.NewService(rag.Dependencies{
		Generator:        d.Generator,
		Store:            d.DocumentStore,
		DocumentEmbedder: embedder,
		QueryEmbedder:    queryEmbedder,
		Templates:        templates,
		Screener:         prompt.NewScreener(screenCfg),
		Observer:         observer,
		Logger:           d.Logger,
	}, rag.Config{
		MaxRetries:         d.Config.RAG.MaxRetries,
		QueryTopK:          d.Config.RAG.QueryTopK,
		RetrievalThreshold: d.Config.RAG.Threshold,
		Generation: providers.GenerationConfig{
			Temperature: llm.Temperature,
			TopP:        llm.TopP,
			TopK:        llm.TopK,
			MaxTokens:   llm.MaxOutputTokens,
		},
		GenerateModel: llm.GenerateModel,
	})
	if err != nil {
		return err
	}
	d.Chat = svc
	return nil
}

// newEmbedder builds the embedder for the configured backend
func (d *Dependencies) newEmbedder() (*embedding.Embedder, error) {
	cfg := d.Config.Embedding

	var backend embedding.Backend
	switch cfg.Provider {
	case "openai":
		backend = embedding.NewOpenAIBackend(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		client, err := ollamaprovider.NewClient(baseURL, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		backend = embedding.NewOllamaBackend(client, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	return embedding.NewEmbedder(backend, embedding.Options{
		Prefix:            cfg.Prefix,
		Suffix:            cfg.Suffix,
		MetaFieldsToEmbed: cfg.MetaFieldsToEmbed,
		Separator:         cfg.Separator,
		BatchSize:         cfg.BatchSize,
	}, d.Logger), nil
}

// initBookings sets up payments and, with a database, the booking service
func (d *Dependencies) initBookings(context.Context) error {
	if d.Config.Payments.StripeAPIKey != "" {
		d.Payments = payment.NewStripeGateway(payment.Config{
			APIKey:             d.Config.Payments.StripeAPIKey,
			Currency:           d.Config.Payments.Currency,
			PaymentMethodTypes: d.Config.Payments.PaymentMethodTypes,
		}, d.Logger)
	} else {
		d.Logger.Warn("stripe not configured, payment endpoints disabled")
	}

	if d.Repositories != nil {
		d.Bookings = booking.NewService(d.Repositories, d.Payments, d.Logger)
	}
	return nil
}

// initRateLimit creates the per-client limiter and its cleanup worker
func (d *Dependencies) initRateLimit(context.Context) error {
	rl := d.Config.RateLimit
	if d.DB == nil || !rl.Enabled {
		d.RateLimitMiddleware = middleware.NewRateLimitMiddleware(nil, d.Logger)
		return nil
	}

	d.RateLimiter = ratelimit.NewRateLimitService(d.DB.DB, ratelimit.Limits{
		RequestsPerMinute: rl.RequestsPerMinute,
		RequestsPerHour:   rl.RequestsPerHour,
	}, d.Logger)
	d.RateLimitMiddleware = middleware.NewRateLimitMiddleware(d.RateLimiter, d.Logger)

	if rl.CleanupInterval > 0 {
		cleanupCtx, cancel := context.WithCancel(context.Background())
		d.stopCleanup = cancel
		go d.RateLimiter.StartCleanupWorker(cleanupCtx, rl.CleanupInterval, rl.Retention)
	}
	return nil
}

// initAuth protects the document management routes when a secret is set
func (d *Dependencies) initAuth() {
	if d.Config.Auth.AdminJWTSecret == "" {
		d.Logger.Warn("admin JWT secret not set, document management routes are unprotected")
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, d.Logger)
		return
	}
	validator := middleware.NewHMACValidator(d.Config.Auth.AdminJWTSecret, d.Config.Auth.AdminIssuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopCleanup != nil {
		d.stopCleanup()
		d.stopCleanup = nil
	}

	if d.Audit != nil {
		if err := d.Audit.Stop(auditStopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
		d.Audit = nil
	}

	if closer, ok := d.DocumentStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close document store: %w", err))
		}
		d.DocumentStore = nil
	}

	if d.EmbeddingCache != nil {
		if err := d.EmbeddingCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close embedding cache: %w", err))
		}
		d.EmbeddingCache = nil
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	if d.shutdownTracing != nil {
		if err := d.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracing: %w", err))
		}
		d.shutdownTracing = nil
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}
	return nil
}
