package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joee121/realestate/internal/core/domain"
	"github.com/joee121/realestate/internal/core/ports"
	"github.com/joee121/realestate/internal/observability/metrics"
)

const maxUploadBytes = 64 << 20

type Router struct {
	ingestor ports.DocumentIngestor
	chat     ports.ChatService
	index    ports.VectorIndex
	history  ports.HistoryLog

	metrics *metrics.HTTPServerMetrics

	adminToken       string
	collection       string
	webSearchEnabled bool
	webKeyPresent    bool
	generalChat      bool
	rateLimitRPS     float64
	rateLimitBurst   int
}

type Options struct {
	Metrics          *metrics.HTTPServerMetrics
	AdminToken       string
	Collection       string
	WebSearchEnabled bool
	WebKeyPresent    bool
	GeneralChat      bool
	RateLimitRPS     float64
	RateLimitBurst   int
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	chat ports.ChatService,
	index ports.VectorIndex,
	history ports.HistoryLog,
	opts Options,
) *Router {
	return &Router{
		ingestor:         ingestor,
		chat:             chat,
		index:            index,
		history:          history,
		metrics:          opts.Metrics,
		adminToken:       opts.AdminToken,
		collection:       opts.Collection,
		webSearchEnabled: opts.WebSearchEnabled,
		webKeyPresent:    opts.WebKeyPresent,
		generalChat:      opts.GeneralChat,
		rateLimitRPS:     opts.RateLimitRPS,
		rateLimitBurst:   opts.RateLimitBurst,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", rt.health)
	mux.HandleFunc("/ingest", rt.ingest)
	mux.HandleFunc("/files", rt.listFiles)
	mux.HandleFunc("/chat", rt.chatBlocking)
	mux.HandleFunc("/chat/stream", rt.chatStream)
	mux.HandleFunc("/admin/history", rt.requireAdmin(rt.historyRecent))
	mux.HandleFunc("/admin/history/clear", rt.requireAdmin(rt.historyClear))
	mux.HandleFunc("/admin/files", rt.requireAdmin(rt.deleteFile))
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	handler = corsMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"collection":           rt.collection,
		"web_search_enabled":   rt.webSearchEnabled,
		"web_key_present":      rt.webKeyPresent,
		"general_chat_enabled": rt.generalChat,
	})
}

func (rt *Router) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}

	files := make([]domain.UploadedFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot open uploaded file " + header.Filename})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read uploaded file " + header.Filename})
			return
		}
		files = append(files, domain.UploadedFile{Name: header.Filename, Content: content})
	}

	report, err := rt.ingestor.Ingest(r.Context(), files)
	rt.recordIngest(len(files), report)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), ingestResponse("error", report))
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse("ok", report))
}

func (rt *Router) listFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	names, err := rt.index.ListFilenames(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"files": names})
}

func (rt *Router) chatBlocking(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeChatRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	answer, err := rt.chat.Answer(r.Context(), req)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation("api", "/chat", len(answer.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) chatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeChatRequest(w, r)
	if !ok {
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	start := time.Now()
	answer, err := rt.chat.AnswerStream(r.Context(), req, stream.WriteFrame)
	if err != nil {
		if !stream.Started() {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		// Headers are long gone, nothing to do but stop the stream.
		slog.Warn("chat stream aborted", "request_id", requestIDFromContext(r.Context()), "error", err)
		return
	}
	if err := stream.WriteSources(answer.Sources); err != nil {
		slog.Warn("chat stream trailer failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation("api", "/chat/stream", len(answer.Sources), time.Since(start))
	}
}

func (rt *Router) historyRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	events, err := rt.history.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if events == nil {
		events = []domain.ChatEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": events})
}

func (rt *Router) historyClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := rt.history.Clear(r.Context()); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (rt *Router) deleteFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filename is required"})
		return
	}

	if err := rt.index.DeleteByFilename(r.Context(), filename); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted_for": filename})
}

func (rt *Router) decodeChatRequest(w http.ResponseWriter, r *http.Request) (domain.ChatRequest, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return domain.ChatRequest{}, false
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return domain.ChatRequest{}, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return domain.ChatRequest{}, false
	}
	return req, true
}

func (rt *Router) recordIngest(total int, report domain.IngestReport) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordChunksAdded(report.ChunksAdded)
	for range report.Errors {
		rt.metrics.RecordIngestFile("api", "failed")
	}
	for i := len(report.Errors); i < total; i++ {
		rt.metrics.RecordIngestFile("api", "ok")
	}
}

func ingestResponse(status string, report domain.IngestReport) map[string]any {
	errs := report.Errors
	if errs == nil {
		errs = []domain.IngestError{}
	}
	return map[string]any{
		"status":       status,
		"chunks_added": report.ChunksAdded,
		"errors":       errs,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
