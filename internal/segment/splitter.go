package segment

import "strings"

// Splitter cuts text into fixed-size overlapping windows. Boundaries are
// not content-aware: a window may split mid-word or mid-sentence.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1200
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split trims the input and returns its windows in order. Windows advance
// by max(1, ChunkSize-Overlap); the final window may be shorter. Empty or
// whitespace-only input yields no windows. Deterministic and pure.
func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step < 1 {
		step = 1
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
