package domain

// SearchFilter restricts a similarity query to chunks of one source file.
// A zero filter searches the whole index.
type SearchFilter struct {
	Filename string
}

// RetrievedChunk is a transient per-query result; never persisted.
type RetrievedChunk struct {
	Text  string  `json:"text"`
	Ref   ChunkRef `json:"ref"`
	Score float64 `json:"score"`
}

// WebResult is one ranked hit returned by the web search provider.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Answer is the outcome of one chat request.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}
