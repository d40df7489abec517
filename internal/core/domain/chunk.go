package domain

import "fmt"

// Chunk is a retrievable unit of text derived from a source document.
// Chunks are created during ingestion, embedded once and upserted into the
// vector index under a fresh unique id; they are never mutated afterwards.
type Chunk struct {
	Text string
	Ref  ChunkRef
}

// ChunkRef records where a chunk originated inside its source file.
// Sheet and Row are set for spreadsheet origins (Row is the 1-based
// spreadsheet row number, or a synthetic "text-{i}" tag for headerless
// sheets); Index is the chunk index for page/text origins.
type ChunkRef struct {
	Filename string
	Sheet    string
	Row      string
	Index    int
}

// FromSheet reports whether the chunk carries a spreadsheet origin.
func (r ChunkRef) FromSheet() bool {
	return r.Sheet != "" && r.Row != ""
}

// SourceTag derives the citation string for this origin.
// Tag generation is a pure function of the ref: identical inputs always
// yield identical tags.
func (r ChunkRef) SourceTag() string {
	if r.FromSheet() {
		return fmt.Sprintf("%s::%s#row%s", r.Filename, r.Sheet, r.Row)
	}
	return fmt.Sprintf("%s#chunk%d", r.Filename, r.Index)
}

// WebSourceTag tags a web hit by its 1-based rank and URL.
func WebSourceTag(rank int, url string) string {
	return fmt.Sprintf("web#%d:%s", rank, url)
}
