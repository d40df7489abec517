package httpadapter

import (
	"fmt"
	"net/http"
	"strings"
)

const sourcesFramePrefix = "__SOURCES__:"

// sseWriter emits server-sent event frames, deferring headers until the
// first frame so an error before any token can still produce a JSON status.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) Started() bool {
	return s.started
}

func (s *sseWriter) WriteFrame(data string) error {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteSources terminates the stream with the source tag trailer.
func (s *sseWriter) WriteSources(sources []string) error {
	return s.WriteFrame(sourcesFramePrefix + strings.Join(sources, " | "))
}
