package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/joee121/realestate/internal/core/domain"
)

const (
	defaultRecentLimit = 100
	maxRecentLimit     = 1000
	// Lines longer than this are treated as corrupt and skipped.
	maxLineBytes = 1 << 20
)

// Counter receives one tick per failed append. Satisfied by a prometheus
// counter without this package importing the metrics stack.
type Counter interface {
	Inc()
}

// Log is an append-only JSONL chat transcript. One chat event per line,
// guarded by a mutex so concurrent requests never interleave partial lines.
type Log struct {
	path     string
	failures Counter

	mu sync.Mutex
}

func New(path string, failures Counter) (*Log, error) {
	if path == "" {
		path = "./data/chat_history.jsonl"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &Log{path: path, failures: failures}, nil
}

func (l *Log) Append(_ context.Context, event domain.ChatEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := json.Marshal(event)
	if err != nil {
		l.countFailure()
		return fmt.Errorf("marshal chat event: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.countFailure()
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(raw, '\n')); err != nil {
		l.countFailure()
		return fmt.Errorf("append chat event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. Lines that fail to parse
// are skipped so one corrupt write never hides the rest of the transcript.
func (l *Log) Recent(_ context.Context, limit int) ([]domain.ChatEvent, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.ChatEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var events []domain.ChatEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event domain.ChatEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	// Reverse to newest first, then cut.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if len(events) > limit {
		events = events[:limit]
	}
	if events == nil {
		events = []domain.ChatEvent{}
	}
	return events, nil
}

func (l *Log) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := os.Remove(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove history file: %w", err)
	}
	return nil
}

func (l *Log) countFailure() {
	if l.failures != nil {
		l.failures.Inc()
	}
}
