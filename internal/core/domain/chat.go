package domain

// UploadedFile is one file of an ingestion batch.
type UploadedFile struct {
	Name    string
	Content []byte
}

// ChatRequest carries the inputs of one answering request. Filename scopes
// retrieval to a single source file; the sentinel "all" (any case) and the
// empty string both mean unscoped.
type ChatRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
	Filename string `json:"filename,omitempty"`
	UseWeb   bool   `json:"use_web"`
}

// ChatEvent is one append-only audit record of a chat interaction.
// Events are never updated; the whole log may be cleared via the admin
// surface.
type ChatEvent struct {
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Sources       []string `json:"sources"`
	FilenameScope string   `json:"filename_scope,omitempty"`
	K             int      `json:"k"`
	UseWeb        bool     `json:"use_web"`
	Stream        bool     `json:"stream,omitempty"`
	Timestamp     string   `json:"ts"`
}
