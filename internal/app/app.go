package app

import (
	"context"
	"log/slog"
	"os"

	"docingest/internal/adapter/docparse"
	"docingest/internal/adapter/gemini"
	"docingest/internal/adapter/httpdoc"
	"docingest/internal/config"
	"docingest/internal/ingest"
	"docingest/internal/logger"
)

// NewLogger builds the process logger: JSON to stderr, correlation and
// job IDs stamped from the context on every record.
func NewLogger() *slog.Logger {
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stderr, nil))
	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// NewOrchestrator wires the pipeline adapters to one orchestrator. The
// returned embedder must be closed by the caller when the process stops.
func NewOrchestrator(ctx context.Context, cfg *config.Config, store ingest.VectorStore, log *slog.Logger) (*ingest.Orchestrator, *gemini.Embedder, error) {
	downloader := httpdoc.NewDownloader(cfg.FetchTimeout, cfg.MaxDocumentMB)
	parser := docparse.NewParser(cfg.ParserURL, cfg.ParseTimeout, cfg.ChunkMaxTokens)

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, nil, err
	}

	acts := ingest.NewActivities(downloader, parser, embedder, store, cfg.AllowedFileTypes)

	retry := ingest.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		InitialWait: cfg.RetryInitialWait,
		Multiplier:  2.0,
		MaxWait:     cfg.RetryMaxWait,
	}

	orchCfg := ingest.DefaultConfig()
	orchCfg.BatchSize = cfg.EmbedBatchSize
	orchCfg.WindowWidth = cfg.WindowWidth
	orchCfg.EmbedConcurrency = cfg.EmbedConcurrency
	orchCfg.StoreConcurrency = cfg.StoreConcurrency
	orchCfg.FetchRetry = retry
	orchCfg.ParseRetry = retry
	orchCfg.EmbedRetry = retry
	orchCfg.StoreRetry = retry
	orchCfg.FetchTimeout = cfg.FetchTimeout
	orchCfg.ParseTimeout = cfg.ParseTimeout
	orchCfg.EmbedTimeout = cfg.EmbedTimeout
	orchCfg.StoreTimeout = cfg.StoreTimeout

	orch, err := ingest.NewOrchestrator(acts, orchCfg, log)
	if err != nil {
		embedder.Close()
		return nil, nil, err
	}
	return orch, embedder, nil
}
