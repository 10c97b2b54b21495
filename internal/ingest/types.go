package ingest

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Job identifies one document ingestion run. It is immutable once built.
type Job struct {
	FileID   string `json:"file_id"`
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
}

// NewJob validates the caller's input and infers the file type from the URL
// suffix. An unsupported suffix is rejected here, before any network call.
func NewJob(fileID, fileURL string, allowed []string) (Job, error) {
	if strings.TrimSpace(fileID) == "" {
		return Job{}, NewValidationError("file_id must not be empty")
	}
	if strings.TrimSpace(fileURL) == "" {
		return Job{}, NewValidationError("file_url must not be empty")
	}

	u, err := url.Parse(fileURL)
	if err != nil {
		return Job{}, NewValidationError(fmt.Sprintf("invalid file_url: %v", err))
	}

	suffix := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if suffix == "" {
		return Job{}, NewValidationError("file_url has no file extension to infer a type from")
	}
	if !typeAllowed(suffix, allowed) {
		return Job{}, NewValidationError(fmt.Sprintf("unsupported file type %q (allowed: %s)",
			suffix, strings.Join(allowed, ", ")))
	}

	return Job{FileID: fileID, FileURL: fileURL, FileType: suffix}, nil
}

func typeAllowed(suffix string, allowed []string) bool {
	for _, t := range allowed {
		if strings.EqualFold(t, suffix) {
			return true
		}
	}
	return false
}

// Chunk is one unit of parsed document text. Index is zero-based and stable
// in the parser's output order.
type Chunk struct {
	Index int    `json:"chunk_index"`
	Text  string `json:"chunk_text"`
}

// Batch is a contiguous slice of chunks embedded and stored in one call.
type Batch struct {
	Index  int
	Chunks []Chunk
}

// Window is a group of batches dispatched concurrently and awaited together.
type Window []Batch

// EmbeddingRecord pairs a chunk with its normalized vector.
type EmbeddingRecord struct {
	Index  int       `json:"chunk_index"`
	Text   string    `json:"chunk_text"`
	Vector []float32 `json:"embedding"`
}

// SampleChunk is a preview entry in the result: chunk text plus a truncated
// prefix of its embedding vector.
type SampleChunk struct {
	Index  int       `json:"chunk_index"`
	Text   string    `json:"chunk_text"`
	Vector []float32 `json:"embedding"`
}

// Result summarizes a completed run.
type Result struct {
	FileID    string        `json:"file_id"`
	NumChunks int           `json:"num_chunks"`
	NumStored int           `json:"num_stored"`
	Sample    []SampleChunk `json:"sample"`
}

// Downloader retrieves the raw bytes for a URL together with a file-type
// hint reported by the server, which may be empty.
type Downloader interface {
	Fetch(ctx context.Context, fileURL string) (data []byte, typeHint string, err error)
}

// Parser converts raw document bytes of a known type into ordered text
// fragments. A malformed document yields a *ValidationError; a backend
// outage yields a plain error, which classifies Transient.
type Parser interface {
	Parse(ctx context.Context, data []byte, fileType string) ([]string, error)
}

// Embedder converts a batch of texts into equal-length normalized vectors,
// one per input, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists embedding records for a file and reports how many
// rows were written.
type VectorStore interface {
	StoreBatch(ctx context.Context, fileID string, records []EmbeddingRecord) (int, error)
}
