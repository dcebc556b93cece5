package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/config"
	"github.com/upb/rag-chatbot/internal/chunker"
	"github.com/upb/rag-chatbot/repositories"
	"github.com/upb/rag-chatbot/repositories/memory"
	"github.com/upb/rag-chatbot/repositories/postgres"
	"github.com/upb/rag-chatbot/repositories/qdrant"
	"github.com/upb/rag-chatbot/services/ingestion"
	"github.com/upb/rag-chatbot/services/providers"
	"github.com/upb/rag-chatbot/services/providers/anthropic"
	"github.com/upb/rag-chatbot/services/providers/openai"
	"github.com/upb/rag-chatbot/services/rag"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Documents   repositories.DocumentRepository
	VectorIndex repositories.VectorIndex
	TxManager   repositories.TransactionManager

	// Providers
	Embedder         providers.Embedder
	ProviderRegistry *providers.Registry

	// Services
	Chunker   *chunker.Chunker
	RAG       *rag.RAGService
	Ingestion *ingestion.IngestionService
}

// NewDependencies opens the database and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(ctx, cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithFactory wires dependencies over an already opened repository factory
func NewDependenciesWithFactory(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	if err := deps.initSchema(ctx, cfg); err != nil {
		return nil, err
	}

	if err := deps.initRepositories(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("vector_backend", cfg.VectorStore.Backend),
		zap.String("collection", cfg.RAG.CollectionName),
		zap.Strings("providers", deps.ProviderRegistry.ListProviders()))
	return deps, nil
}

// initSchema creates tables when auto migration is enabled
func (d *Dependencies) initSchema(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}

	withVectors := cfg.VectorStore.Backend == config.VectorBackendPgvector
	if err := d.RepoFactory.InitSchema(ctx, withVectors); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// initRepositories initializes the document repository and the configured vector index
func (d *Dependencies) initRepositories(cfg *config.Config) error {
	repos := d.RepoFactory.NewRepositories(cfg.RAG.CollectionName)

	switch cfg.VectorStore.Backend {
	case config.VectorBackendPgvector:
	case config.VectorBackendQdrant:
		repos.VectorIndex = qdrant.NewVectorIndex(qdrant.Options{
			URL:        cfg.VectorStore.QdrantURL,
			APIKey:     cfg.VectorStore.QdrantAPIKey,
			Collection: cfg.RAG.CollectionName,
			VectorSize: cfg.RAG.EmbeddingDimensions,
			Timeout:    cfg.VectorStore.QdrantTimeout,
		}, d.Logger)
	case config.VectorBackendMemory:
		repos.VectorIndex = memory.NewVectorIndex(cfg.RAG.CollectionName, d.Logger)
	default:
		return fmt.Errorf("unsupported vector backend %q", cfg.VectorStore.Backend)
	}

	d.Documents = repos.Documents
	d.VectorIndex = repos.VectorIndex
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized", zap.String("vector_backend", cfg.VectorStore.Backend))
	return nil
}

// initProviders builds the embedder and the completion provider registry
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	openAIAdapter := openai.NewOpenAIAdapter(providers.ProviderConfig{
		APIKey:  cfg.Providers.OpenAI.APIKey,
		BaseURL: cfg.Providers.OpenAI.BaseURL,
		Timeout: cfg.Providers.OpenAI.Timeout,
	}, openai.Options{
		EmbeddingModel:      cfg.RAG.EmbeddingModel,
		EmbeddingDimensions: cfg.RAG.EmbeddingDimensions,
		MaxBatch:            cfg.RAG.BatchSize,
	})
	d.Embedder = openAIAdapter

	if cfg.Providers.OpenAI.APIKey == "" {
		d.Logger.Warn("OPENAI_API_KEY is not set; embedding and openai completion calls will fail")
	}
	if err := registry.RegisterProvider(openAIAdapter); err != nil {
		return err
	}

	if cfg.Providers.Anthropic.APIKey != "" {
		anthropicAdapter := anthropic.NewAnthropicAdapter(providers.ProviderConfig{
			APIKey:     cfg.Providers.Anthropic.APIKey,
			BaseURL:    cfg.Providers.Anthropic.BaseURL,
			Timeout:    cfg.Providers.Anthropic.Timeout,
			MaxRetries: cfg.Providers.Anthropic.MaxRetries,
		})
		if err := registry.RegisterProvider(anthropicAdapter); err != nil {
			return err
		}
		d.Logger.Info("registered Anthropic provider")
	}

	d.ProviderRegistry = registry
	return nil
}

// initServices builds the chunker and the two pipelines
func (d *Dependencies) initServices(cfg *config.Config) error {
	c, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return err
	}
	d.Chunker = c

	ragService, err := rag.NewRAGService(d.VectorIndex, d.Embedder, d.ProviderRegistry, rag.Options{
		TopK:            cfg.RAG.TopK,
		MaxContextItems: cfg.RAG.MaxContextItems,
		Provider:        cfg.RAG.LLMProvider,
		Model:           cfg.RAG.LLMModel,
		MaxTokens:       cfg.RAG.MaxTokens,
		Temperature:     cfg.RAG.Temperature,
		RequestTimeout:  cfg.RAG.RequestTimeout,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.RAG = ragService

	d.Ingestion = ingestion.NewIngestionService(d.Documents, d.VectorIndex, d.Embedder, c, cfg.RAG.BatchSize, d.Logger)
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// SQLDB returns the underlying pool, or nil when no database is wired
func (d *Dependencies) SQLDB() *sql.DB {
	if d.DB == nil {
		return nil
	}
	return d.DB.DB
}
