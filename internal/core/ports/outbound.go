package ports

import (
	"context"

	"github.com/joee121/realestate/internal/core/domain"
)

// Embedder builds vectors for chunk batches and query text. Vector
// dimension is a property of the provider and must stay consistent
// between ingestion and query for a given index.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores chunk vectors and performs similarity search over
// them. Upsert never replaces existing points; deletion is scoped by
// source filename and cascades to every chunk of that file.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
	DeleteByFilename(ctx context.Context, filename string) error
	ListFilenames(ctx context.Context) ([]string, error)
}

// DocumentExtractor turns an uploaded file into retrievable chunks.
// Unsupported extensions and empty files yield zero chunks, not an error.
type DocumentExtractor interface {
	Extract(filename string, content []byte) ([]domain.Chunk, error)
}

// WebSearcher returns ranked web hits for a query. Callers treat a failed
// search as an empty result list.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]domain.WebResult, error)
}

// AnswerGenerator produces the final answer from a system and user prompt,
// either as one complete response or as an incremental token stream. The
// streaming variant relays each non-empty token through emit and returns
// the accumulated full text.
type AnswerGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	GenerateStream(ctx context.Context, system, user string, emit func(token string) error) (string, error)
}

// HistoryLog is the append-only chat audit sink.
type HistoryLog interface {
	Append(ctx context.Context, event domain.ChatEvent) error
	Recent(ctx context.Context, limit int) ([]domain.ChatEvent, error)
	Clear(ctx context.Context) error
}

// EventPublisher broadcasts chat events to interested consumers.
// Publishing is best-effort and never affects the user-visible response.
type EventPublisher interface {
	PublishChatEvent(ctx context.Context, event domain.ChatEvent) error
}
