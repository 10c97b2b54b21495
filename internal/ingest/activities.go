package ingest

import (
	"context"
	"fmt"
	"strings"
)

// Activities wraps the external collaborators with input validation and
// error classification. Each method is one retryable unit of work; none of
// them loop or sleep themselves.
type Activities struct {
	downloader Downloader
	parser     Parser
	embedder   Embedder
	store      VectorStore
	allowed    []string
}

func NewActivities(d Downloader, p Parser, e Embedder, s VectorStore, allowedTypes []string) *Activities {
	return &Activities{downloader: d, parser: p, embedder: e, store: s, allowed: allowedTypes}
}

// Fetch downloads the document and reconciles the job's inferred type with
// the server's hint. A hint outside the allow-list is a permanent failure;
// network trouble surfaces as-is and classifies Transient.
func (a *Activities) Fetch(ctx context.Context, job Job) ([]byte, string, error) {
	if strings.TrimSpace(job.FileURL) == "" {
		return nil, "", NewValidationError("file_url must not be empty")
	}

	data, hint, err := a.downloader.Fetch(ctx, job.FileURL)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", NewValidationError("document is empty")
	}

	fileType := job.FileType
	if hint != "" && !strings.EqualFold(hint, fileType) {
		if !typeAllowed(hint, a.allowed) {
			return nil, "", NewValidationError(fmt.Sprintf("server reported unsupported file type %q", hint))
		}
		fileType = strings.ToLower(hint)
	}

	return data, fileType, nil
}

// Parse converts raw bytes into the ordered chunk sequence. Whitespace-only
// fragments are dropped; a document with no text at all is permanent bad
// input, not worth a retry.
func (a *Activities) Parse(ctx context.Context, data []byte, fileType string) ([]Chunk, error) {
	texts, err := a.parser.Parse(ctx, data, fileType)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, NewValidationError("document produced no text content")
	}

	chunks := make([]Chunk, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: t})
	}
	return chunks, nil
}

// Embed turns one batch of chunks into embedding records. A count mismatch
// between chunks and vectors is a fatal logic error: it occurs after the
// call, but retrying cannot realign the contract.
func (a *Activities) Embed(ctx context.Context, batch Batch) ([]EmbeddingRecord, error) {
	texts := make([]string, len(batch.Chunks))
	for i, c := range batch.Chunks {
		texts[i] = c.Text
	}

	vectors, err := a.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch.Chunks) {
		return nil, NewLogicError(fmt.Sprintf("batch %d: embedding count mismatch: %d chunks, %d vectors",
			batch.Index, len(batch.Chunks), len(vectors)))
	}

	records := make([]EmbeddingRecord, len(batch.Chunks))
	for i, c := range batch.Chunks {
		records[i] = EmbeddingRecord{Index: c.Index, Text: c.Text, Vector: vectors[i]}
	}
	return records, nil
}

// Store persists one embedded batch and returns the stored row count.
func (a *Activities) Store(ctx context.Context, fileID string, records []EmbeddingRecord) (int, error) {
	if len(records) == 0 {
		return 0, NewValidationError("no embedding records to store")
	}
	return a.store.StoreBatch(ctx, fileID, records)
}
