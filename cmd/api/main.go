package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/rfm-segmentation/internal/api/handlers"
	"github.com/dvloznov/rfm-segmentation/internal/config"
	"github.com/dvloznov/rfm-segmentation/internal/gcsuploader"
	infraBQ "github.com/dvloznov/rfm-segmentation/internal/infra/bigquery"
	"github.com/dvloznov/rfm-segmentation/internal/jobs"
	"github.com/dvloznov/rfm-segmentation/internal/jobs/inmemory"
	"github.com/dvloznov/rfm-segmentation/internal/logger"
	"github.com/dvloznov/rfm-segmentation/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logger.NewWithLevel(os.Stdout, cfg.Log.Level)

	opts, err := cfg.Ingest.Options()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ingest options")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Jobs may only touch local files under the configured directories.
	deps := pipeline.Deps{Inputs: &pipeline.Sandbox{Root: cfg.Jobs.InputDir}}
	dests := pipeline.Destinations{Outputs: &pipeline.Sandbox{Root: cfg.Output.Dir}}

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("No GCS client - gs:// sources and outputs are disabled")
	} else {
		defer storage.Close()
		deps.Storage = storage
		dests.Storage = storage
	}

	var repo *infraBQ.BigQueryRFMRepository
	if tableID := cfg.BigQuery.TableID(); tableID != "" {
		ref, err := infraBQ.ParseTableID(tableID)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid BigQuery table")
		}
		repo, err = infraBQ.NewBigQueryRFMRepository(ctx, ref)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()

		if err := repo.EnsureTables(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure BigQuery tables")
		}
		deps.Warehouse = repo
		deps.Tracker = repo
		dests.Results = repo
		dests.ResultsTable = "bq://" + tableID
	} else {
		log.Warn().Msg("No BigQuery project configured - bq:// sources, outputs and run tracking are disabled")
	}

	defaultOutput := cfg.Output.Dir + "/"
	if cfg.GCS.Bucket != "" && deps.Storage != nil {
		defaultOutput = gcsuploader.BuildGCSURI(cfg.GCS.Bucket, cfg.GCS.Prefix) + "/"
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueueWithConfig(inmemory.QueueConfig{
		BufferSize: cfg.Jobs.QueueSize,
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		JobTimeout: cfg.Jobs.Timeout(),
	}, jobStore)

	runner := &jobs.AnalysisRunner{
		Deps:          deps,
		Destinations:  dests,
		Options:       opts,
		DefaultOutput: defaultOutput,
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, runner.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	var tracker pipeline.RunTracker
	if repo != nil {
		tracker = repo
	}
	analysisHandler := handlers.NewAnalysisHandler(opts, tracker, cfg.Server.MaxUploadBytes, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, jobQueue, deps, dests, defaultOutput, log)

	port := strconv.Itoa(cfg.Server.Port)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handlers.NewRouter(analysisHandler, jobsHandler, log),
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Str("default_output", defaultOutput).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
