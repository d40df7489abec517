package ports

import (
	"context"

	"github.com/joee121/realestate/internal/core/domain"
)

// DocumentIngestor is the inbound contract for batch document ingestion.
type DocumentIngestor interface {
	Ingest(ctx context.Context, files []domain.UploadedFile) (domain.IngestReport, error)
}

// ChatService is the inbound contract for the two answering flows.
type ChatService interface {
	Answer(ctx context.Context, req domain.ChatRequest) (domain.Answer, error)
	AnswerStream(ctx context.Context, req domain.ChatRequest, emit func(token string) error) (domain.Answer, error)
}
