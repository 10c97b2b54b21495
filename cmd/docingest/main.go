package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"
	"github.com/spf13/cobra"

	"docingest/internal/adapter/gemini"
	"docingest/internal/app"
	"docingest/internal/config"
	"docingest/internal/ingest"
	"docingest/internal/jobs"
	"docingest/internal/worker"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "docingest",
		Short: "Document ingestion pipeline: fetch, parse, embed, store",
	}
	root.AddCommand(newWorkerCommand())
	root.AddCommand(newSubmitCommand())
	root.AddCommand(newJobsCommand())
	root.AddCommand(newInspectCommand())
	root.AddCommand(newSearchCommand())
	root.AddCommand(newDropCommand())
	return root
}

func setup(ctx context.Context) (*config.Config, *app.Dependencies, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	return cfg, deps, nil
}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the ingestion worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := app.NewLogger()
			ctx := cmd.Context()

			cfg, deps, err := setup(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			orch, embedder, err := app.NewOrchestrator(ctx, cfg, deps.Store, log)
			if err != nil {
				return fmt.Errorf("orchestrator: %w", err)
			}
			defer embedder.Close()

			repo := jobs.NewPostgresRepo(deps.DB)
			handler := worker.NewIngestConsumer(orch, repo, cfg.AllowedFileTypes)

			nsqCfg := nsq.NewConfig()
			nsqCfg.MaxInFlight = cfg.WorkerMaxInFlight
			nsqCfg.MaxAttempts = uint16(cfg.WorkerTaskAttempts)

			consumer, err := nsq.NewConsumer(worker.TopicIngestTask, worker.ChannelIngest, nsqCfg)
			if err != nil {
				return fmt.Errorf("nsq consumer: %w", err)
			}
			consumer.AddHandler(handler)

			if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
				return fmt.Errorf("nsq lookupd: %w", err)
			}
			log.Info("worker started", "topic", worker.TopicIngestTask, "max_in_flight", cfg.WorkerMaxInFlight)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			log.Info("shutting down")
			consumer.Stop()
			<-consumer.StopChan
			return nil
		},
	}
}

func newSubmitCommand() *cobra.Command {
	var fileID, fileURL string
	var wait bool
	var waitTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a document for ingestion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.NewLogger()
			ctx := cmd.Context()

			cfg, deps, err := setup(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			// Reject unsupported types before anything is enqueued.
			if _, err := ingest.NewJob(fileID, fileURL, cfg.AllowedFileTypes); err != nil {
				return err
			}

			repo := jobs.NewPostgresRepo(deps.DB)
			rec := &jobs.Record{FileID: fileID, FileURL: fileURL}
			if err := repo.Create(ctx, rec); err != nil {
				return fmt.Errorf("create job: %w", err)
			}

			pub := worker.NewPublisher(deps.NSQProducer)
			err = pub.PublishTask(worker.IngestTaskPayload{
				JobID:         rec.ID,
				FileID:        fileID,
				FileURL:       fileURL,
				CorrelationID: uuid.NewString(),
			})
			if err != nil {
				return fmt.Errorf("publish task: %w", err)
			}

			fmt.Printf("submitted job %s\n", rec.ID)
			if !wait {
				return nil
			}
			return waitForJob(ctx, repo, rec.ID, waitTimeout)
		},
	}

	cmd.Flags().StringVar(&fileID, "file-id", "", "logical document identifier")
	cmd.Flags().StringVar(&fileURL, "url", "", "document URL")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job finishes")
	cmd.Flags().DurationVar(&waitTimeout, "timeout", 10*time.Minute, "how long to wait with --wait")
	_ = cmd.MarkFlagRequired("file-id")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func waitForJob(ctx context.Context, repo *jobs.PostgresRepo, jobID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, err := repo.Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("poll job: %w", err)
		}
		switch rec.Status {
		case jobs.StatusCompleted:
			out, _ := json.MarshalIndent(rec, "", "  ")
			fmt.Println(string(out))
			return nil
		case jobs.StatusFailed:
			out, _ := json.MarshalIndent(rec, "", "  ")
			fmt.Println(string(out))
			return fmt.Errorf("job %s failed at stage %s (%s): %s",
				jobID, rec.Stage, rec.Classification, rec.Error)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("job %s did not finish within %s", jobID, timeout)
}

func newJobsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent ingestion jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.NewLogger()
			ctx := cmd.Context()

			_, deps, err := setup(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			records, err := jobs.NewPostgresRepo(deps.DB).List(ctx, limit)
			if err != nil {
				return err
			}
			for _, rec := range records {
				line, _ := json.Marshal(rec)
				fmt.Println(string(line))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of jobs to list")
	return cmd
}

func newInspectCommand() *cobra.Command {
	var fileID string
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show stored chunk counts and a content sample",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.NewLogger()
			ctx := cmd.Context()

			_, deps, err := setup(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			count, err := deps.Store.Count(ctx, fileID)
			if err != nil {
				return err
			}
			fmt.Printf("chunks: %d\n", count)

			sample, err := deps.Store.Sample(ctx, fileID, limit)
			if err != nil {
				return err
			}
			for _, chunk := range sample {
				line, _ := json.Marshal(chunk)
				fmt.Println(string(line))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fileID, "file", "", "restrict to one document")
	cmd.Flags().IntVar(&limit, "limit", 5, "sample size")
	return cmd
}

func newSearchCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Vector search over stored chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.NewLogger()
			ctx := cmd.Context()

			cfg, deps, err := setup(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
			if err != nil {
				return err
			}
			defer embedder.Close()

			vectors, err := embedder.EmbedBatch(ctx, []string{args[0]})
			if err != nil {
				return fmt.Errorf("embed query: %w", err)
			}

			results, err := deps.Store.Search(ctx, vectors[0], limit)
			if err != nil {
				return err
			}
			for _, chunk := range results {
				line, _ := json.Marshal(chunk)
				fmt.Println(string(line))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum number of results")
	return cmd
}

func newDropCommand() *cobra.Command {
	var fileID string

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete stored chunks, either one document or the whole class",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.NewLogger()
			ctx := cmd.Context()

			_, deps, err := setup(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			if fileID != "" {
				if err := deps.Store.DeleteFile(ctx, fileID); err != nil {
					return err
				}
				fmt.Printf("deleted chunks for %s\n", fileID)
				return nil
			}
			if err := deps.Store.Drop(ctx); err != nil {
				return err
			}
			fmt.Println("dropped chunk class")
			return nil
		},
	}
	cmd.Flags().StringVar(&fileID, "file", "", "delete only this document's chunks")
	return cmd
}
