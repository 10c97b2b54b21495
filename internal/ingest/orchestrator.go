package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config fixes one orchestrator's behavior at construction time. There is
// deliberately no ambient fallback: two orchestrators with equal configs
// behave identically regardless of the process environment.
type Config struct {
	BatchSize        int
	WindowWidth      int
	EmbedConcurrency int
	StoreConcurrency int

	FetchRetry RetryPolicy
	ParseRetry RetryPolicy
	EmbedRetry RetryPolicy
	StoreRetry RetryPolicy

	FetchTimeout time.Duration
	ParseTimeout time.Duration
	EmbedTimeout time.Duration
	StoreTimeout time.Duration

	// Result preview bounds: at most SampleChunks chunks, at most
	// SampleDims vector components each.
	SampleChunks int
	SampleDims   int
}

func DefaultConfig() Config {
	return Config{
		BatchSize:        16,
		WindowWidth:      4,
		EmbedConcurrency: 4,
		StoreConcurrency: 2,
		FetchRetry:       DefaultRetryPolicy(),
		ParseRetry:       DefaultRetryPolicy(),
		EmbedRetry:       DefaultRetryPolicy(),
		StoreRetry:       DefaultRetryPolicy(),
		FetchTimeout:     60 * time.Second,
		ParseTimeout:     60 * time.Second,
		EmbedTimeout:     120 * time.Second,
		StoreTimeout:     60 * time.Second,
		SampleChunks:     2,
		SampleDims:       3,
	}
}

func (c Config) validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.WindowWidth < 1 {
		return fmt.Errorf("window width must be positive, got %d", c.WindowWidth)
	}
	if c.EmbedConcurrency < 1 || c.StoreConcurrency < 1 {
		return fmt.Errorf("concurrency widths must be positive, got embed=%d store=%d",
			c.EmbedConcurrency, c.StoreConcurrency)
	}
	return nil
}

// Orchestrator drives one document through fetch, parse, batch, embed,
// store, and aggregation. Windows run strictly in sequence; batches inside
// a window fan out concurrently, each gated by the matching limiter, and
// join before the next phase starts.
type Orchestrator struct {
	acts         *Activities
	cfg          Config
	embedLimiter *Limiter
	storeLimiter *Limiter
	logger       *slog.Logger
}

func NewOrchestrator(acts *Activities, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		acts:         acts,
		cfg:          cfg,
		embedLimiter: NewLimiter(cfg.EmbedConcurrency),
		storeLimiter: NewLimiter(cfg.StoreConcurrency),
		logger:       logger,
	}, nil
}

// Run executes the full pipeline for one job. On success the returned
// Result satisfies NumStored == NumChunks. Any terminal failure is a
// *RunError naming the job, the stage, and the classification; rows stored
// by windows that completed before the failure are not rolled back.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Result, error) {
	log := o.logger.With("file_id", job.FileID)

	// Fetching
	log.InfoContext(ctx, "fetching document", "url", job.FileURL, "type", job.FileType)
	var data []byte
	var fileType string
	err := o.cfg.FetchRetry.Do(ctx, StageFetch, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
		defer cancel()
		var ferr error
		data, fileType, ferr = o.acts.Fetch(actx, job)
		return ferr
	})
	if err != nil {
		return nil, o.fail(job, StageFetch, err)
	}

	// Parsing
	log.InfoContext(ctx, "parsing document", "bytes", len(data), "type", fileType)
	var chunks []Chunk
	err = o.cfg.ParseRetry.Do(ctx, StageParse, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, o.cfg.ParseTimeout)
		defer cancel()
		var perr error
		chunks, perr = o.acts.Parse(actx, data, fileType)
		return perr
	})
	if err != nil {
		return nil, o.fail(job, StageParse, err)
	}
	data = nil

	numChunks := len(chunks)
	numBatches := NumBatches(numChunks, o.cfg.BatchSize)
	log.InfoContext(ctx, "planned batches",
		"chunks", numChunks, "batches", numBatches,
		"batch_size", o.cfg.BatchSize, "window_width", o.cfg.WindowWidth)

	// Embedding and storing, window by window.
	numStored := 0
	sample := make([]SampleChunk, 0, o.cfg.SampleChunks)
	windowIdx := 0
	for window := range Plan(chunks, o.cfg.BatchSize, o.cfg.WindowWidth) {
		embedded, err := o.embedWindow(ctx, window)
		if err != nil {
			return nil, o.fail(job, StageEmbed, err)
		}

		for _, records := range embedded {
			for _, rec := range records {
				if len(sample) >= o.cfg.SampleChunks {
					break
				}
				sample = append(sample, SampleChunk{
					Index:  rec.Index,
					Text:   rec.Text,
					Vector: truncateVector(rec.Vector, o.cfg.SampleDims),
				})
			}
		}

		stored, err := o.storeWindow(ctx, job.FileID, embedded)
		if err != nil {
			return nil, o.fail(job, StageStore, err)
		}
		numStored += stored

		log.InfoContext(ctx, "window completed",
			"window", windowIdx, "batches", len(window), "stored_total", numStored)
		windowIdx++
	}

	// Aggregating
	if numStored != numChunks {
		return nil, o.fail(job, StageAggregate, NewLogicError(fmt.Sprintf(
			"stored %d rows for %d chunks", numStored, numChunks)))
	}

	log.InfoContext(ctx, "ingestion completed", "chunks", numChunks, "stored", numStored)
	return &Result{
		FileID:    job.FileID,
		NumChunks: numChunks,
		NumStored: numStored,
		Sample:    sample,
	}, nil
}

// embedWindow fans the window's batches out to concurrent embed calls and
// joins them. Results are positional, so batch order inside the window is
// preserved regardless of completion order.
func (o *Orchestrator) embedWindow(ctx context.Context, window Window) ([][]EmbeddingRecord, error) {
	embedded := make([][]EmbeddingRecord, len(window))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range window {
		g.Go(func() error {
			if err := o.embedLimiter.Acquire(gctx); err != nil {
				return err
			}
			defer o.embedLimiter.Release()

			return o.cfg.EmbedRetry.Do(gctx, StageEmbed, func(ctx context.Context) error {
				actx, cancel := context.WithTimeout(ctx, o.cfg.EmbedTimeout)
				defer cancel()
				records, err := o.acts.Embed(actx, batch)
				if err != nil {
					return err
				}
				embedded[i] = records
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embedded, nil
}

func (o *Orchestrator) storeWindow(ctx context.Context, fileID string, embedded [][]EmbeddingRecord) (int, error) {
	counts := make([]int, len(embedded))
	g, gctx := errgroup.WithContext(ctx)
	for i, records := range embedded {
		g.Go(func() error {
			if err := o.storeLimiter.Acquire(gctx); err != nil {
				return err
			}
			defer o.storeLimiter.Release()

			return o.cfg.StoreRetry.Do(gctx, StageStore, func(ctx context.Context) error {
				actx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
				defer cancel()
				n, err := o.acts.Store(actx, fileID, records)
				if err != nil {
					return err
				}
				counts[i] = n
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func (o *Orchestrator) fail(job Job, stage Stage, err error) *RunError {
	class := Classify(err)
	var infra *InfrastructureError
	if errors.As(err, &infra) {
		// Terminal but caused by infrastructure, not bad input.
		class = ClassTransient
	}
	return &RunError{FileID: job.FileID, Stage: stage, Class: class, Err: err}
}

func truncateVector(v []float32, n int) []float32 {
	if len(v) <= n {
		return v
	}
	return v[:n]
}
