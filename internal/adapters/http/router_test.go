package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joee121/realestate/internal/core/domain"
)

type ingestorFake struct {
	report  domain.IngestReport
	err     error
	gotSize int
}

func (f *ingestorFake) Ingest(_ context.Context, files []domain.UploadedFile) (domain.IngestReport, error) {
	f.gotSize = len(files)
	return f.report, f.err
}

type chatFake struct {
	answer domain.Answer
	err    error
	tokens []string
	gotReq domain.ChatRequest
}

func (f *chatFake) Answer(_ context.Context, req domain.ChatRequest) (domain.Answer, error) {
	f.gotReq = req
	return f.answer, f.err
}

func (f *chatFake) AnswerStream(_ context.Context, req domain.ChatRequest, emit func(string) error) (domain.Answer, error) {
	f.gotReq = req
	if f.err != nil {
		return domain.Answer{}, f.err
	}
	for _, token := range f.tokens {
		if err := emit(token); err != nil {
			return domain.Answer{}, err
		}
	}
	return f.answer, nil
}

type indexFake struct {
	files   []string
	deleted []string
	err     error
}

func (f *indexFake) Upsert(context.Context, []domain.Chunk, [][]float32) error { return f.err }

func (f *indexFake) Search(context.Context, []float32, int, domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	return nil, f.err
}

func (f *indexFake) DeleteByFilename(_ context.Context, filename string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, filename)
	return nil
}

func (f *indexFake) ListFilenames(context.Context) ([]string, error) {
	return f.files, f.err
}

type historyLogFake struct {
	events   []domain.ChatEvent
	cleared  bool
	gotLimit int
}

func (f *historyLogFake) Append(context.Context, domain.ChatEvent) error { return nil }

func (f *historyLogFake) Recent(_ context.Context, limit int) ([]domain.ChatEvent, error) {
	f.gotLimit = limit
	return f.events, nil
}

func (f *historyLogFake) Clear(context.Context) error {
	f.cleared = true
	return nil
}

func newTestRouter(ingestor *ingestorFake, chat *chatFake, index *indexFake, history *historyLogFake, opts Options) http.Handler {
	if ingestor == nil {
		ingestor = &ingestorFake{}
	}
	if chat == nil {
		chat = &chatFake{}
	}
	if index == nil {
		index = &indexFake{}
	}
	if history == nil {
		history = &historyLogFake{}
	}
	return NewRouter(ingestor, chat, index, history, opts).Handler()
}

func multipartUpload(t *testing.T, field string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range names {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("file content")); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestIngestRequiresFiles(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil, Options{})

	body, contentType := multipartUpload(t, "attachments", "a.txt")
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without 'files' field, got %d", res.Code)
	}
}

func TestIngestPartialFailureStays200(t *testing.T) {
	ingestor := &ingestorFake{
		report: domain.IngestReport{
			ChunksAdded: 7,
			Errors:      []domain.IngestError{{File: "bad.pdf", Error: "parse failed"}},
		},
	}
	handler := newTestRouter(ingestor, nil, nil, nil, Options{})

	body, contentType := multipartUpload(t, "files", "good.txt", "bad.pdf")
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for partial failure, got %d", res.Code)
	}
	if ingestor.gotSize != 2 {
		t.Fatalf("expected 2 files passed through, got %d", ingestor.gotSize)
	}
	var decoded struct {
		Status      string               `json:"status"`
		ChunksAdded int                  `json:"chunks_added"`
		Errors      []domain.IngestError `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.Status != "ok" || decoded.ChunksAdded != 7 || len(decoded.Errors) != 1 {
		t.Fatalf("unexpected report %+v", decoded)
	}
}

func TestIngestTotalFailureReturns500WithReport(t *testing.T) {
	ingestor := &ingestorFake{
		report: domain.IngestReport{
			Errors: []domain.IngestError{{File: "a.pdf", Error: "boom"}},
		},
		err: domain.WrapError(domain.ErrNoChunksIngested, "ingest batch", errors.New("all files failed")),
	}
	handler := newTestRouter(ingestor, nil, nil, nil, Options{})

	body, contentType := multipartUpload(t, "files", "a.pdf")
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when nothing ingested, got %d", res.Code)
	}
	var decoded struct {
		Status string               `json:"status"`
		Errors []domain.IngestError `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.Status != "error" || len(decoded.Errors) != 1 || decoded.Errors[0].File != "a.pdf" {
		t.Fatalf("expected report body on failure, got %+v", decoded)
	}
}

func TestListFilesReturnsEmptyArrayNotNull(t *testing.T) {
	handler := newTestRouter(nil, nil, &indexFake{}, nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"files":[]`) {
		t.Fatalf("expected empty files array, got %s", res.Body.String())
	}
}

func TestChatValidatesQuestion(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"question":"   "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank question, got %d", res.Code)
	}
}

func TestChatReturnsAnswerWithSources(t *testing.T) {
	chat := &chatFake{
		answer: domain.Answer{Text: "Unit A1 costs 100.", Sources: []string{"units.xlsx::Sheet1#row2"}},
	}
	handler := newTestRouter(nil, chat, nil, nil, Options{})

	reqBody := `{"question":"price of A1?","k":3,"filename":"units.xlsx","use_web":false}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(reqBody))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if chat.gotReq.K != 3 || chat.gotReq.Filename != "units.xlsx" {
		t.Fatalf("unexpected request passed through %+v", chat.gotReq)
	}
	var answer domain.Answer
	if err := json.NewDecoder(res.Body).Decode(&answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Text != "Unit A1 costs 100." || len(answer.Sources) != 1 {
		t.Fatalf("unexpected answer %+v", answer)
	}
}

func TestChatStreamEmitsTokensThenSourcesTrailer(t *testing.T) {
	chat := &chatFake{
		tokens: []string{"Hello", " world"},
		answer: domain.Answer{Text: "Hello world", Sources: []string{"a.pdf#chunk0", "web#1:https://x.test/1"}},
	}
	handler := newTestRouter(nil, chat, nil, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(`{"question":"hi"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	want := "data: Hello\n\ndata:  world\n\ndata: __SOURCES__:a.pdf#chunk0 | web#1:https://x.test/1\n\n"
	if res.Body.String() != want {
		t.Fatalf("unexpected stream body:\n%q\nwant:\n%q", res.Body.String(), want)
	}
}

func TestChatStreamErrorBeforeFirstTokenIsJSON(t *testing.T) {
	chat := &chatFake{err: domain.WrapError(domain.ErrTemporary, "embed query", errors.New("connection refused"))}
	handler := newTestRouter(nil, chat, nil, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(`{"question":"hi"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	history := &historyLogFake{}
	handler := newTestRouter(nil, nil, nil, history, Options{AdminToken: "s3cret"})

	req := httptest.NewRequest(http.MethodGet, "/admin/history", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/history?limit=7", nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", res.Code)
	}
	if history.gotLimit != 7 {
		t.Fatalf("expected limit 7 passed through, got %d", history.gotLimit)
	}
	if !strings.Contains(res.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", res.Body.String())
	}
}

func TestAdminAuthDisabledWhenTokenEmpty(t *testing.T) {
	history := &historyLogFake{}
	handler := newTestRouter(nil, nil, nil, history, Options{})

	req := httptest.NewRequest(http.MethodPost, "/admin/history/clear", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth disabled, got %d", res.Code)
	}
	if !history.cleared {
		t.Fatalf("expected history cleared")
	}
}

func TestHistoryRejectsNonIntegerLimit(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/admin/history?limit=many", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", res.Code)
	}
}

func TestDeleteFileRequiresFilename(t *testing.T) {
	index := &indexFake{}
	handler := newTestRouter(nil, nil, index, nil, Options{})

	req := httptest.NewRequest(http.MethodDelete, "/admin/files?filename=%20", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank filename, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/admin/files?filename=old.pdf", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(index.deleted) != 1 || index.deleted[0] != "old.pdf" {
		t.Fatalf("unexpected deletions %v", index.deleted)
	}
}

func TestHealthReportsFeatureFlags(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil, Options{Collection: "brochures", WebSearchEnabled: true, GeneralChat: false})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var health map[string]any
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "ok" || health["collection"] != "brochures" {
		t.Fatalf("unexpected health payload %v", health)
	}
	if health["web_search_enabled"] != true || health["general_chat_enabled"] != false {
		t.Fatalf("unexpected feature flags %v", health)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil, Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil, Options{})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", res.Code)
	}
	if res.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected permissive CORS header")
	}
}
