package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var errUnavailable = errors.New("service unavailable")

type fakeDownloader struct {
	data     []byte
	hint     string
	err      error
	failures int // fail this many times before succeeding

	calls atomic.Int32
}

func (d *fakeDownloader) Fetch(ctx context.Context, fileURL string) ([]byte, string, error) {
	n := d.calls.Add(1)
	if d.err != nil {
		return nil, "", d.err
	}
	if int(n) <= d.failures {
		return nil, "", errUnavailable
	}
	return d.data, d.hint, nil
}

type fakeParser struct {
	texts []string
	err   error
}

func (p *fakeParser) Parse(ctx context.Context, data []byte, fileType string) ([]string, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.texts, nil
}

// fakeEmbedder returns dim-length vectors, optionally failing transiently
// for the first failures calls, or always returning short batches.
type fakeEmbedder struct {
	dim      int
	failures int
	short    bool // return one vector fewer than requested
	delay    time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	cur := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		p := e.peak.Load()
		if cur <= p || e.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	n := e.calls.Add(1)
	if int(n) <= e.failures {
		return nil, errUnavailable
	}
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	count := len(texts)
	if e.short && count > 0 {
		count--
	}
	out := make([][]float32, count)
	for i := range out {
		vec := make([]float32, e.dim)
		for j := range vec {
			vec[j] = float32(i*e.dim + j)
		}
		out[i] = vec
	}
	return out, nil
}

// fakeStore records everything it is asked to persist.
type fakeStore struct {
	failures   int
	undercount bool // report one row fewer than given

	mu       sync.Mutex
	stored   map[int]string // chunk index -> text
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{stored: make(map[int]string)}
}

func (s *fakeStore) StoreBatch(ctx context.Context, fileID string, records []EmbeddingRecord) (int, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if cur <= p || s.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	n := s.calls.Add(1)
	if int(n) <= s.failures {
		return 0, errUnavailable
	}

	s.mu.Lock()
	for _, r := range records {
		s.stored[r.Index] = r.Text
	}
	s.mu.Unlock()

	if s.undercount {
		return len(records) - 1, nil
	}
	return len(records), nil
}

func chunkTexts(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d text", i)
	}
	return texts
}

func makeChunks(n int) []Chunk {
	texts := chunkTexts(n)
	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{Index: i, Text: texts[i]}
	}
	return chunks
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		InitialWait: time.Millisecond,
		Multiplier:  2.0,
		MaxWait:     5 * time.Millisecond,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FetchRetry = fastPolicy(5)
	cfg.ParseRetry = fastPolicy(5)
	cfg.EmbedRetry = fastPolicy(5)
	cfg.StoreRetry = fastPolicy(5)
	cfg.FetchTimeout = time.Second
	cfg.ParseTimeout = time.Second
	cfg.EmbedTimeout = time.Second
	cfg.StoreTimeout = time.Second
	return cfg
}

var allowedTypes = []string{"pdf", "md", "html", "docx"}

func testJob() Job {
	return Job{FileID: "doc-1", FileURL: "https://example.com/report.pdf", FileType: "pdf"}
}

