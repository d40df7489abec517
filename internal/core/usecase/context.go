package usecase

import (
	"fmt"
	"strings"

	"github.com/joee121/realestate/internal/core/domain"
)

const (
	noContextPlaceholder = "(no retrieved context)"
	webSnippetMaxChars   = 1200
)

// assembleContext merges similarity-ranked index hits and web hits into one
// source-tagged context block plus the citation list. Vector tags come
// first, then web tags; callers depend on this order and on the exact tag
// format.
func assembleContext(hits []domain.RetrievedChunk, webHits []domain.WebResult) (string, []string) {
	ragBlocks := make([]string, 0, len(hits))
	sources := make([]string, 0, len(hits)+len(webHits))
	for _, hit := range hits {
		tag := hit.Ref.SourceTag()
		sources = append(sources, tag)
		ragBlocks = append(ragBlocks, fmt.Sprintf("[%s]\n%s", tag, hit.Text))
	}
	ragBlock := strings.TrimSpace(strings.Join(ragBlocks, "\n\n"))

	webBlocks := make([]string, 0, len(webHits))
	for i, hit := range webHits {
		url := strings.TrimSpace(hit.URL)
		if url == "" {
			continue
		}
		// Ranks are positions in the provider order, counting dropped hits.
		tag := domain.WebSourceTag(i+1, url)
		sources = append(sources, tag)
		webBlocks = append(webBlocks, fmt.Sprintf(
			"[%s]\nTitle: %s\nURL: %s\nSnippet: %s",
			tag, hit.Title, url, truncateRunes(hit.Content, webSnippetMaxChars),
		))
	}
	webBlock := strings.Join(webBlocks, "\n\n")

	parts := make([]string, 0, 2)
	if ragBlock != "" {
		parts = append(parts, ragBlock)
	}
	if webBlock != "" {
		parts = append(parts, webBlock)
	}

	full := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if full == "" {
		full = noContextPlaceholder
	}
	return full, sources
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
