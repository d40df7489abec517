package domain

// IngestError records a single failed file within an ingestion batch.
type IngestError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// IngestReport summarizes one ingestion batch. Per-file failures are
// isolated; the batch as a whole fails only when nothing was added and at
// least one error occurred.
type IngestReport struct {
	ChunksAdded int           `json:"chunks_added"`
	Errors      []IngestError `json:"errors"`
}
