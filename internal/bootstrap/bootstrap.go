package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/sitedocs/docqa/internal/config"
	"github.com/sitedocs/docqa/internal/core/ports"
	"github.com/sitedocs/docqa/internal/core/usecase"
	"github.com/sitedocs/docqa/internal/health"
	"github.com/sitedocs/docqa/internal/infrastructure/cache/memory"
	natsevents "github.com/sitedocs/docqa/internal/infrastructure/events/nats"
	"github.com/sitedocs/docqa/internal/infrastructure/index/opensearch"
	"github.com/sitedocs/docqa/internal/infrastructure/llm/openaicompat"
	"github.com/sitedocs/docqa/internal/infrastructure/rerank/cohere"
	"github.com/sitedocs/docqa/internal/infrastructure/resilience"
	tocpostgres "github.com/sitedocs/docqa/internal/infrastructure/toc/postgres"
	"github.com/sitedocs/docqa/internal/observability/metrics"
)

type App struct {
	Config config.Config

	QA       ports.QuestionAnswerer
	Searcher ports.Searcher
	Checker  *health.Checker
	Metrics  *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	serverMetrics := metrics.NewHTTPServerMetrics("docqa-api")
	pipelineObserver := metrics.NewPipelineObserver("docqa-api", serverMetrics)
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	db, err := tocpostgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	tocStore := tocpostgres.NewStore(db)
	if err := tocStore.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure toc schema: %w", err)
	}

	var searchOpts []opensearch.Option
	if cfg.OpenSearchUser != "" {
		searchOpts = append(searchOpts, opensearch.WithBasicAuth(cfg.OpenSearchUser, cfg.OpenSearchPassword))
	}
	searchClient := opensearch.New(
		cfg.OpenSearchURL,
		cfg.OpenSearchChunkIndex,
		cfg.OpenSearchTableIndex,
		executor,
		searchOpts...,
	)
	chunkIndex := opensearch.NewChunkIndex(searchClient)
	tableIndex := opensearch.NewTableIndex(searchClient)

	llmClient := openaicompat.New(openaicompat.Config{
		BaseURL:    cfg.LLMBaseURL,
		APIKey:     cfg.LLMAPIKey,
		ChatModel:  cfg.LLMChatModel,
		EmbedModel: cfg.LLMEmbedModel,
	}, executor)

	var reranker ports.Reranker
	if cfg.RerankURL != "" {
		reranker = cohere.New(cfg.RerankURL, cfg.RerankAPIKey, cfg.RerankModel, executor)
	}

	publisher, err := natsevents.New(cfg.NATSURL, cfg.NATSSubject, natsevents.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event publisher: %w", err)
	}

	retriever := usecase.NewHybridRetriever(chunkIndex, tableIndex, usecase.RetrieverConfig{
		ChunkPoolSize: cfg.ChunkPoolSize,
		TablePoolSize: cfg.TablePoolSize,
		FusionRRFK:    cfg.FusionRRFK,
	}, pipelineObserver)
	tocRouter := usecase.NewTOCRouter(tocStore)

	qaUC := usecase.NewQAUseCase(
		llmClient,
		retriever,
		tocRouter,
		reranker,
		llmClient,
		publisher,
		pipelineObserver,
		usecase.QALimits{
			RerankTopN:       cfg.RerankTopN,
			EmbedTimeout:     time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
			RetrieveTimeout:  time.Duration(cfg.RetrieveTimeoutSeconds) * time.Second,
			RerankTimeout:    time.Duration(cfg.RerankTimeoutSeconds) * time.Second,
			SynthesisTimeout: time.Duration(cfg.SynthesisTimeoutSeconds) * time.Second,
		},
		usecase.ContextConfig{
			MaxChars:      cfg.ContextMaxChars,
			MaxChunkChars: cfg.ContextMaxChunkChars,
			MaxBlocks:     cfg.ContextMaxBlocks,
		},
	)

	suggestionCache := memory.NewSuggestionCache(time.Duration(cfg.SuggestionCacheTTLSeconds) * time.Second)
	suggester := usecase.NewSuggestionEngine(llmClient, qaUC, suggestionCache, pipelineObserver)
	qaUC.SetSuggestionEngine(suggester)

	searchUC := usecase.NewSearchUseCase(llmClient, retriever, tocRouter)

	checker := health.NewChecker(15 * time.Second)
	checker.Register("postgres", func(probeCtx context.Context) error {
		return db.PingContext(probeCtx)
	})
	checker.Register("opensearch", func(probeCtx context.Context) error {
		return searchClient.Ping(probeCtx)
	})
	checker.Register("nats", func(context.Context) error {
		if !publisher.Connected() {
			return fmt.Errorf("nats connection is down")
		}
		return nil
	})

	return &App{
		Config:   cfg,
		QA:       qaUC,
		Searcher: searchUC,
		Checker:  checker,
		Metrics:  serverMetrics,

		closeFn: func() {
			publisher.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
