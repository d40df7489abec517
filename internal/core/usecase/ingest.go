package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joee121/realestate/internal/core/domain"
	"github.com/joee121/realestate/internal/core/ports"
)

const maxErrorChars = 300

type IngestUseCase struct {
	extractor ports.DocumentExtractor
	embedder  ports.Embedder
	index     ports.VectorIndex
}

func NewIngestUseCase(
	extractor ports.DocumentExtractor,
	embedder ports.Embedder,
	index ports.VectorIndex,
) *IngestUseCase {
	return &IngestUseCase{
		extractor: extractor,
		embedder:  embedder,
		index:     index,
	}
}

// Ingest processes every file of the batch independently: extract, embed
// once per file, upsert. A failing file is recorded and does not abort the
// rest. The batch fails only when zero chunks were added and at least one
// error occurred.
func (uc *IngestUseCase) Ingest(ctx context.Context, files []domain.UploadedFile) (domain.IngestReport, error) {
	report := domain.IngestReport{Errors: []domain.IngestError{}}

	for _, file := range files {
		added, err := uc.ingestFile(ctx, file)
		if err != nil {
			slog.Warn("ingest_file_failed", "file", file.Name, "error", err)
			report.Errors = append(report.Errors, domain.IngestError{
				File:  file.Name,
				Error: truncateMessage(err.Error(), maxErrorChars),
			})
			continue
		}
		report.ChunksAdded += added
	}

	if report.ChunksAdded == 0 && len(report.Errors) > 0 {
		return report, domain.WrapError(domain.ErrNoChunksIngested, "ingest batch", errors.New("all files failed"))
	}
	return report, nil
}

func (uc *IngestUseCase) ingestFile(ctx context.Context, file domain.UploadedFile) (added int, err error) {
	// Parser panics on corrupt input count as per-file errors.
	defer func() {
		if r := recover(); r != nil {
			added = 0
			err = fmt.Errorf("extract %s: panic: %v", file.Name, r)
		}
	}()

	chunks, err := uc.extractor.Extract(file.Name, file.Content)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", file.Name, err)
	}
	// Unsupported extensions and empty files are silently skipped.
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if err := uc.index.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}
	return len(chunks), nil
}

func truncateMessage(msg string, limit int) string {
	runes := []rune(msg)
	if len(runes) <= limit {
		return msg
	}
	return string(runes[:limit])
}
