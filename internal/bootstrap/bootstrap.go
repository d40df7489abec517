package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joee121/realestate/internal/config"
	"github.com/joee121/realestate/internal/core/domain"
	"github.com/joee121/realestate/internal/core/ports"
	"github.com/joee121/realestate/internal/core/usecase"
	"github.com/joee121/realestate/internal/infrastructure/extractor"
	"github.com/joee121/realestate/internal/infrastructure/history/jsonl"
	"github.com/joee121/realestate/internal/infrastructure/llm/openai"
	"github.com/joee121/realestate/internal/infrastructure/queue/nats"
	"github.com/joee121/realestate/internal/infrastructure/resilience"
	"github.com/joee121/realestate/internal/infrastructure/vector/qdrant"
	"github.com/joee121/realestate/internal/infrastructure/websearch/tavily"
	"github.com/joee121/realestate/internal/observability/metrics"
	"github.com/joee121/realestate/internal/segment"
)

type App struct {
	Config  config.Config
	Metrics *metrics.HTTPServerMetrics

	Index   ports.VectorIndex
	History ports.HistoryLog
	Ingest  ports.DocumentIngestor
	Chat    ports.ChatService

	closeFn func()
}

func New(_ context.Context, cfg config.Config) (*App, error) {
	m := metrics.NewHTTPServerMetrics("api")
	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	oaClient := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel)
	embedder := openai.NewEmbedder(oaClient)
	generator := openai.NewGenerator(oaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	docExtractor := extractor.New(segment.New(cfg.ChunkSize, cfg.ChunkOverlap))

	historyLog, err := jsonl.New(cfg.HistoryPath, m.HistoryWriteFailures())
	if err != nil {
		return nil, fmt.Errorf("init history log: %w", err)
	}

	var web ports.WebSearcher
	if cfg.EnableWebSearch && cfg.TavilyAPIKey != "" {
		web = &meteredWebSearcher{
			inner:   tavily.New(cfg.TavilyAPIKey, executor),
			metrics: m,
		}
	}

	var publisher ports.EventPublisher
	closeFn := func() {}
	if cfg.NATSURL != "" {
		natsPub, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			// Event broadcast is best effort, run without it.
			slog.Warn("nats unavailable, chat events will not be published", "error", err)
		} else {
			publisher = natsPub
			closeFn = natsPub.Close
		}
	}

	ingestUC := usecase.NewIngestUseCase(docExtractor, embedder, vectorDB)
	chatUC := usecase.NewChatUseCase(
		embedder,
		vectorDB,
		web,
		generator,
		historyLog,
		publisher,
		cfg.AllowGeneralChat,
	)

	return &App{
		Config:  cfg,
		Metrics: m,
		Index:   vectorDB,
		History: historyLog,
		Ingest:  ingestUC,
		Chat:    chatUC,
		closeFn: closeFn,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// meteredWebSearcher counts failed searches so silent degradation still
// shows up on a dashboard.
type meteredWebSearcher struct {
	inner   ports.WebSearcher
	metrics *metrics.HTTPServerMetrics
}

func (s *meteredWebSearcher) Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error) {
	results, err := s.inner.Search(ctx, query, maxResults)
	if err != nil {
		s.metrics.RecordWebSearchFailure()
	}
	return results, err
}
