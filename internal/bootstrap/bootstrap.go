package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/foodops/food-agent-api/internal/config"
	"github.com/foodops/food-agent-api/internal/core/domain"
	"github.com/foodops/food-agent-api/internal/core/ports"
	"github.com/foodops/food-agent-api/internal/core/tools"
	"github.com/foodops/food-agent-api/internal/core/usecase"
	"github.com/foodops/food-agent-api/internal/infrastructure/chunking"
	"github.com/foodops/food-agent-api/internal/infrastructure/embedding/openai"
	"github.com/foodops/food-agent-api/internal/infrastructure/llm/anthropic"
	"github.com/foodops/food-agent-api/internal/infrastructure/loader"
	"github.com/foodops/food-agent-api/internal/infrastructure/queue/nats"
	"github.com/foodops/food-agent-api/internal/infrastructure/repository/postgres"
	"github.com/foodops/food-agent-api/internal/infrastructure/resilience"
	"github.com/foodops/food-agent-api/internal/infrastructure/storage/localfs"
	"github.com/foodops/food-agent-api/internal/infrastructure/vector/qdrant"
)

// App holds the wired object graph shared by the api and worker binaries.
type App struct {
	Config config.Config

	Queue         ports.MessageQueue
	Documents     *postgres.DocumentRepository
	Conversations *postgres.ConversationRepository
	Audits        *postgres.AuditRepository

	Agent     ports.AgentRunner
	Retrieval ports.RetrievalService
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	documents := postgres.NewDocumentRepository(db)
	chunks := postgres.NewChunkRepository(db)
	conversations := postgres.NewConversationRepository(db)
	audits := postgres.NewAuditRepository(db)
	sites := postgres.NewSiteRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	// One executor per upstream dependency; breakers must not trip each
	// other across services.
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder := openai.New(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel,
		resilience.NewExecutor(resilience.DefaultConfig()))
	model := anthropic.New(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, cfg.AnthropicModel,
		resilience.NewExecutor(resilience.DefaultConfig()))
	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	pipeline := usecase.NewRetrievalPipeline(
		loader.New(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		chunks,
		vectors,
	).WithTopK(cfg.RAGTopK)

	registry := tools.NewRegistry(
		postgres.NewMenuService(db),
		postgres.NewRecipeService(db),
		postgres.NewHaccpService(db),
		postgres.NewOperationsService(db),
	)

	agent := usecase.NewOrchestrator(
		usecase.NewIntentRouter(model),
		pipeline,
		model,
		registry,
		conversations,
		audits,
		sites,
		model.Model(),
		domain.AgentLimits{
			MaxIterations:  cfg.AgentMaxIterations,
			HistoryWindow:  cfg.AgentHistoryWindow,
			MaxTokens:      cfg.AgentMaxTokens,
			Temperature:    cfg.AgentTemperature,
			RequestTimeout: time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
		},
	)

	return &App{
		Config: cfg,

		Queue:         queue,
		Documents:     documents,
		Conversations: conversations,
		Audits:        audits,

		Agent:     agent,
		Retrieval: pipeline,
		IngestUC:  usecase.NewIngestDocumentUseCase(documents, storage, queue),
		ProcessUC: usecase.NewProcessDocumentUseCase(documents, storage, pipeline),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
