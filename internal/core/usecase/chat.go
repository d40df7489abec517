package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joee121/realestate/internal/core/domain"
	"github.com/joee121/realestate/internal/core/ports"
)

const (
	defaultTopK   = 5
	maxWebResults = 5

	// scopeAll is the sentinel filename meaning "search the whole index".
	scopeAll = "all"
)

type ChatUseCase struct {
	embedder  ports.Embedder
	index     ports.VectorIndex
	web       ports.WebSearcher
	generator ports.AnswerGenerator
	history   ports.HistoryLog
	publisher ports.EventPublisher

	allowGeneralChat bool
}

// NewChatUseCase wires the answering pipeline. web and publisher may be nil
// when the corresponding features are disabled.
func NewChatUseCase(
	embedder ports.Embedder,
	index ports.VectorIndex,
	web ports.WebSearcher,
	generator ports.AnswerGenerator,
	history ports.HistoryLog,
	publisher ports.EventPublisher,
	allowGeneralChat bool,
) *ChatUseCase {
	return &ChatUseCase{
		embedder:         embedder,
		index:            index,
		web:              web,
		generator:        generator,
		history:          history,
		publisher:        publisher,
		allowGeneralChat: allowGeneralChat,
	}
}

type retrieval struct {
	context string
	sources []string
}

func (uc *ChatUseCase) Answer(ctx context.Context, req domain.ChatRequest) (domain.Answer, error) {
	prep, err := uc.retrieve(ctx, req)
	if err != nil {
		return domain.Answer{}, err
	}

	answer, err := uc.generator.Generate(
		ctx,
		systemPrompt(uc.allowGeneralChat),
		userPrompt(req.Question, prep.context, true),
	)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	uc.logEvent(ctx, req, answer, prep.sources, false)
	return domain.Answer{Text: answer, Sources: prep.sources}, nil
}

// AnswerStream runs the same pipeline but relays every non-empty token
// through emit as it arrives. The accumulated full text is logged once the
// stream completes; on a broken stream nothing is logged.
func (uc *ChatUseCase) AnswerStream(ctx context.Context, req domain.ChatRequest, emit func(token string) error) (domain.Answer, error) {
	prep, err := uc.retrieve(ctx, req)
	if err != nil {
		return domain.Answer{}, err
	}

	answer, err := uc.generator.GenerateStream(
		ctx,
		streamSystemPrompt(uc.allowGeneralChat),
		userPrompt(req.Question, prep.context, false),
		emit,
	)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer stream: %w", err)
	}

	uc.logEvent(ctx, req, answer, prep.sources, true)
	return domain.Answer{Text: answer, Sources: prep.sources}, nil
}

func (uc *ChatUseCase) retrieve(ctx context.Context, req domain.ChatRequest) (retrieval, error) {
	limit := req.K
	if limit <= 0 {
		limit = defaultTopK
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, req.Question)
	if err != nil {
		return retrieval{}, fmt.Errorf("embed query: %w", err)
	}

	hits, err := uc.index.Search(ctx, queryVector, limit, resolveFilter(req.Filename))
	if err != nil {
		return retrieval{}, fmt.Errorf("search vector index: %w", err)
	}

	var webHits []domain.WebResult
	if req.UseWeb && uc.web != nil {
		webHits, err = uc.web.Search(ctx, req.Question, maxWebResults)
		if err != nil {
			// Web search degrades to no results, never fails the request.
			slog.Warn("web_search_failed", "error", err)
			webHits = nil
		}
	}

	contextBlock, sources := assembleContext(hits, webHits)
	return retrieval{context: contextBlock, sources: sources}, nil
}

// resolveFilter builds the filename scope. Empty and the sentinel "all"
// (any case) mean the whole index.
func resolveFilter(filename string) domain.SearchFilter {
	trimmed := strings.TrimSpace(filename)
	if trimmed == "" || strings.EqualFold(trimmed, scopeAll) {
		return domain.SearchFilter{}
	}
	return domain.SearchFilter{Filename: trimmed}
}

// logEvent appends the audit record and broadcasts it. Both are
// best-effort: failures are logged and swallowed, never surfaced.
func (uc *ChatUseCase) logEvent(ctx context.Context, req domain.ChatRequest, answer string, sources []string, streamed bool) {
	event := domain.ChatEvent{
		Question:      req.Question,
		Answer:        answer,
		Sources:       sources,
		FilenameScope: req.Filename,
		K:             req.K,
		UseWeb:        req.UseWeb,
		Stream:        streamed,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	if err := uc.history.Append(ctx, event); err != nil {
		slog.Warn("history_append_failed", "error", err)
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishChatEvent(ctx, event); err != nil {
			slog.Warn("chat_event_publish_failed", "error", err)
		}
	}
}
