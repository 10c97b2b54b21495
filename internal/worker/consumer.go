package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"docingest/internal/ingest"
	"docingest/internal/jobs"
	"docingest/internal/logger"
)

// Runner executes one ingestion job end to end.
type Runner interface {
	Run(ctx context.Context, job ingest.Job) (*ingest.Result, error)
}

// Registry records job state transitions.
type Registry interface {
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, result json.RawMessage) error
	MarkFailed(ctx context.Context, id, stage, classification, message string) error
}

// IngestConsumer drives one ingestion run per NSQ delivery. Returning an
// error requeues the message; permanent failures are recorded in the
// registry and finished so NSQ never redelivers them.
type IngestConsumer struct {
	runner   Runner
	registry Registry
	allowed  []string
}

func NewIngestConsumer(runner Runner, registry Registry, allowedTypes []string) *IngestConsumer {
	return &IngestConsumer{
		runner:   runner,
		registry: registry,
		allowed:  allowedTypes,
	}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestTaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, payload.CorrelationID)
	}
	if payload.JobID != "" {
		ctx = logger.WithJobID(ctx, payload.JobID)
	}

	if err := h.registry.MarkRunning(ctx, payload.JobID); err != nil {
		slog.ErrorContext(ctx, "mark running failed", "error", err)
		return err // Retry
	}

	job, err := ingest.NewJob(payload.FileID, payload.FileURL, h.allowed)
	if err != nil {
		slog.ErrorContext(ctx, "rejected job", "error", err, "file_id", payload.FileID)
		h.recordFailure(ctx, payload.JobID, string(ingest.StageFetch), ingest.ClassPermanent, err)
		return nil
	}

	result, err := h.runner.Run(ctx, job)
	if err != nil {
		var runErr *ingest.RunError
		if errors.As(err, &runErr) && runErr.Class == ingest.ClassPermanent {
			slog.ErrorContext(ctx, "ingestion failed permanently",
				"file_id", job.FileID, "stage", runErr.Stage, "error", err)
			h.recordFailure(ctx, payload.JobID, string(runErr.Stage), runErr.Class, err)
			return nil
		}

		stage := ingest.StageFetch
		class := ingest.ClassTransient
		if runErr != nil {
			stage = runErr.Stage
			class = runErr.Class
		}
		slog.ErrorContext(ctx, "ingestion failed, requeueing",
			"file_id", job.FileID, "stage", stage, "error", err)
		h.recordFailure(ctx, payload.JobID, string(stage), class, err)
		return err // Retry
	}

	body, err := json.Marshal(result)
	if err != nil {
		slog.ErrorContext(ctx, "marshal result failed", "error", err)
		return err // Retry
	}
	if err := h.registry.MarkCompleted(ctx, payload.JobID, body); err != nil {
		slog.ErrorContext(ctx, "mark completed failed", "error", err)
		return err // Retry
	}

	slog.InfoContext(ctx, "ingestion completed",
		"file_id", result.FileID, "num_chunks", result.NumChunks, "num_stored", result.NumStored)
	return nil
}

func (h *IngestConsumer) recordFailure(ctx context.Context, jobID, stage string, class ingest.Class, err error) {
	if markErr := h.registry.MarkFailed(ctx, jobID, stage, string(class), err.Error()); markErr != nil {
		slog.ErrorContext(ctx, "mark failed failed", "error", markErr)
	}
}

var _ Registry = (*jobs.PostgresRepo)(nil)
