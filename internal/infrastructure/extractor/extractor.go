package extractor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/joee121/realestate/internal/core/domain"
	"github.com/joee121/realestate/internal/segment"
)

// Extractor turns uploaded brochure files into retrievable chunks,
// dispatching on the filename extension. Unsupported extensions and files
// that produce no text yield zero chunks without an error.
type Extractor struct {
	splitter *segment.Splitter
}

func New(splitter *segment.Splitter) *Extractor {
	return &Extractor{splitter: splitter}
}

func (e *Extractor) Extract(filename string, content []byte) ([]domain.Chunk, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err := pdfText(content)
		if err != nil {
			return nil, fmt.Errorf("read pdf: %w", err)
		}
		return e.textChunks(filename, text), nil
	case ".txt":
		return e.textChunks(filename, decodeLossy(content)), nil
	case ".xlsx":
		return e.sheetChunks(filename, content)
	default:
		return nil, nil
	}
}

func (e *Extractor) textChunks(filename, text string) []domain.Chunk {
	parts := e.splitter.Split(text)
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, domain.Chunk{
			Text: part,
			Ref:  domain.ChunkRef{Filename: filename, Index: i},
		})
	}
	return chunks
}

func pdfText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var pages []string
	for num := 1; num <= reader.NumPage(); num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Unextractable pages contribute nothing, same as an
			// image-only page.
			text = ""
		}
		pages = append(pages, text)
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

func decodeLossy(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), string(utf8.RuneError))
}
