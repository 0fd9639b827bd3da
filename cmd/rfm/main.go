package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/rfm-segmentation/internal/config"
	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/dvloznov/rfm-segmentation/internal/gcsuploader"
	infraBQ "github.com/dvloznov/rfm-segmentation/internal/infra/bigquery"
	"github.com/dvloznov/rfm-segmentation/internal/logger"
	"github.com/dvloznov/rfm-segmentation/internal/pipeline"
	"github.com/dvloznov/rfm-segmentation/internal/report"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(os.Args[2:])
	case "summary":
		runSummary(os.Args[2:])
	case "upload":
		runUpload(os.Args[2:])
	case "bq-init":
		runBQInit(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("RFM Segmentation CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  rfm <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze   Score and segment the customers of a transaction file or table")
	fmt.Println("  summary   Print per-segment customer counts and mean R/F/M")
	fmt.Println("  upload    Upload a local transaction file to GCS")
	fmt.Println("  bq-init   Create the BigQuery results and analysis_runs tables")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nSources and outputs may be local paths, gs://bucket/object or bq://project.dataset.table.")
	fmt.Println("\nRun 'rfm <command> -h' for more information on a command.")
}

// commonFlags are shared by analyze and summary.
type commonFlags struct {
	configPath *string
	input      *string
	encoding   *string
	delimiter  *string
	track      *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", "", "Path to YAML config file"),
		input:      fs.String("input", "", "Transaction source: path, gs:// object or bq:// table"),
		encoding:   fs.String("encoding", "", "Text encoding of the source (default from config, ISO-8859-1)"),
		delimiter:  fs.String("delimiter", "", "Field delimiter (default from config, ',')"),
		track:      fs.Bool("track", false, "Record the run in the BigQuery analysis_runs table"),
	}
}

// session holds what one command needs: config, logger and lazily created
// cloud clients.
type session struct {
	cfg     *config.Config
	log     zerolog.Logger
	storage *gcsuploader.GCSStorageService
	repo    *infraBQ.BigQueryRFMRepository
}

func newSession(configPath string) *session {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log := logger.NewConsole("info")
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	return &session{cfg: cfg, log: logger.NewConsole(cfg.Log.Level)}
}

func (s *session) close() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *session) storageService(ctx context.Context) *gcsuploader.GCSStorageService {
	if s.storage == nil {
		storage, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			s.log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		s.storage = storage
	}
	return s.storage
}

func (s *session) repository(ctx context.Context) *infraBQ.BigQueryRFMRepository {
	if s.repo == nil {
		tableID := s.cfg.BigQuery.TableID()
		if tableID == "" {
			s.log.Fatal().Msg("BigQuery is not configured: set bigquery.project_id (or BQ_PROJECT_ID)")
		}
		ref, err := infraBQ.ParseTableID(tableID)
		if err != nil {
			s.log.Fatal().Err(err).Msg("Invalid BigQuery table")
		}
		repo, err := infraBQ.NewBigQueryRFMRepository(ctx, ref)
		if err != nil {
			s.log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		s.repo = repo
	}
	return s.repo
}

// analyze runs the pipeline with the given outputs and exits on failure.
func (s *session) analyze(ctx context.Context, flags commonFlags, outputs []string, format report.Format) *pipeline.PipelineState {
	if *flags.input == "" {
		s.log.Fatal().Msg("Error: -input is required")
	}

	ingestCfg := s.cfg.Ingest
	if *flags.encoding != "" {
		ingestCfg.Encoding = *flags.encoding
	}
	if *flags.delimiter != "" {
		ingestCfg.Delimiter = *flags.delimiter
	}
	opts, err := ingestCfg.Options()
	if err != nil {
		s.log.Fatal().Err(err).Msg("Invalid ingest options")
	}

	needsStorage := gcsuploader.IsGCSURI(*flags.input)
	needsBQ := infraBQ.IsTableURI(*flags.input) || *flags.track
	for _, out := range outputs {
		needsStorage = needsStorage || gcsuploader.IsGCSURI(out)
		needsBQ = needsBQ || infraBQ.IsTableURI(out)
	}

	var deps pipeline.Deps
	var dests pipeline.Destinations
	if needsStorage {
		deps.Storage = s.storageService(ctx)
		dests.Storage = deps.Storage
	}
	if needsBQ {
		repo := s.repository(ctx)
		deps.Warehouse = repo
		dests.Results = repo
		dests.ResultsTable = "bq://" + repo.Results().String()
		if *flags.track {
			deps.Tracker = repo
		}
	}

	var exporters []pipeline.Exporter
	for _, out := range outputs {
		exp, err := dests.ExporterFor(out, format)
		if err != nil {
			s.log.Fatal().Err(err).Str("output", out).Msg("Invalid output")
		}
		exporters = append(exporters, exp)
	}

	state, err := pipeline.Run(ctx, pipeline.Request{
		Source:    *flags.input,
		Options:   opts,
		Exporters: exporters,
	}, deps)
	if err != nil {
		s.log.Fatal().Err(err).Str("kind", errorKind(err)).Msg("Analysis failed")
	}
	return state
}

func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	flags := addCommonFlags(fs)
	output := fs.String("output", "-", "Destination: '-' for stdout, a path, a directory ending in '/', gs:// or bq:// URI")
	formatStr := fs.String("format", "", "Output format: csv or json (default from config or output extension)")
	bqExport := fs.Bool("bq-export", false, "Also insert the results into the configured BigQuery table")
	fs.Parse(args)

	s := newSession(*flags.configPath)
	defer s.close()

	if *formatStr == "" && (*output == "-" || strings.HasSuffix(*output, "/")) {
		*formatStr = s.cfg.Output.Format
	}
	format := ""
	if *formatStr != "" {
		f, err := report.ParseFormat(*formatStr)
		if err != nil {
			s.log.Fatal().Err(err).Msg("Invalid -format")
		}
		format = string(f)
	}

	var outputs []string
	if *output != "-" {
		outputs = append(outputs, *output)
	}
	if *bqExport {
		tableID := s.cfg.BigQuery.TableID()
		if tableID == "" {
			s.log.Fatal().Msg("-bq-export needs bigquery.project_id (or BQ_PROJECT_ID)")
		}
		outputs = append(outputs, "bq://"+tableID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, s.log)

	state := s.analyze(ctx, flags, outputs, report.Format(format))

	if *output == "-" {
		f := report.Format(format)
		if f == "" {
			f = report.FormatCSV
		}
		data, err := report.Encode(state.Table, f)
		if err != nil {
			s.log.Fatal().Err(err).Msg("Failed to encode result")
		}
		os.Stdout.Write(data)
	}

	s.log.Info().
		Str("run_id", state.RunID).
		Int("customers", state.Table.Len()).
		Strs("outputs", state.Outputs).
		Msg("Analysis completed")
}

func runSummary(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	flags := addCommonFlags(fs)
	fs.Parse(args)

	s := newSession(*flags.configPath)
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, s.log)

	state := s.analyze(ctx, flags, nil, "")
	table := state.Table

	fmt.Println("\n=== RFM Summary ===")
	fmt.Printf("Source:          %s\n", state.Source)
	fmt.Printf("Rows read:       %d\n", state.Stats.Total)
	fmt.Printf("Rows kept:       %d\n", state.Stats.Kept)
	fmt.Printf("Customers:       %d\n", table.Len())
	if table.Len() > 0 {
		fmt.Printf("Reference date:  %s\n", table.ReferenceDate())
	}

	fmt.Println("\n=== Segments ===")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEGMENT\tCUSTOMERS\tMEAN RECENCY\tMEAN FREQUENCY\tMEAN MONETARY")
	for _, seg := range report.Summarize(table) {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t%s\n",
			seg.Segment, seg.Customers, seg.MeanRecency, seg.MeanFrequency, seg.MeanMonetary.StringFixed(2))
	}
	tw.Flush()
	fmt.Println()
}

func runUpload(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	bucketName := fs.String("bucket", "", "GCS bucket name (default from config)")
	objectName := fs.String("object", "", "GCS object name (defaults to <prefix>/input/<filename>)")
	filePath := fs.String("file", "", "Path to local transaction file")
	fs.Parse(args)

	s := newSession(*configPath)
	defer s.close()

	if *bucketName == "" {
		*bucketName = s.cfg.GCS.Bucket
	}
	if *bucketName == "" || *filePath == "" {
		s.log.Fatal().Msg("Usage: rfm upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = strings.TrimPrefix(s.cfg.GCS.Prefix+"/input/"+filepath.Base(*filePath), "/")
	}

	ctx := logger.WithContext(context.Background(), s.log)

	s.log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		s.log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, gcsuploader.BuildGCSURI(*bucketName, *objectName))
}

func runBQInit(args []string) {
	fs := flag.NewFlagSet("bq-init", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	fs.Parse(args)

	s := newSession(*configPath)
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, s.log)

	repo := s.repository(ctx)
	if err := repo.EnsureTables(ctx); err != nil {
		s.log.Fatal().Err(err).Msg("Failed to create BigQuery tables")
	}

	fmt.Printf("BigQuery tables ready: %s (and analysis_runs)\n", repo.Results())
}

// errorKind names the taxonomy class of err for log filtering.
func errorKind(err error) string {
	var (
		ioErr     *domain.IOError
		formatErr *domain.FormatError
		schemaErr *domain.SchemaError
		scoreErr  *domain.ScoreComputationError
	)
	switch {
	case errors.As(err, &ioErr):
		return "io"
	case errors.As(err, &formatErr):
		return "format"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &scoreErr):
		return "score"
	}
	return "internal"
}
