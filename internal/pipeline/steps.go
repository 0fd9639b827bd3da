package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/dvloznov/rfm-segmentation/internal/ingest"
	"github.com/dvloznov/rfm-segmentation/internal/logger"
	"github.com/dvloznov/rfm-segmentation/internal/rfm"
	"github.com/google/uuid"
)

// PipelineStep represents a single step in the analysis pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	// Source names the input: a path, gs:// or bq:// URI, or an upload name
	// when Input is set.
	Source string
	// Input, when non-nil, is read instead of loading Source.
	Input   io.Reader
	Options ingest.Options

	RunID        string
	Raw          *ingest.RawTable
	Schema       *ingest.Schema
	Transactions []domain.Transaction
	Stats        ingest.CleanStats
	Table        *rfm.Table
	Outputs      []string
}

// Step 1: StartRunStep assigns a run ID, recording the run when a tracker is set.
type StartRunStep struct {
	Tracker RunTracker
}

func (s *StartRunStep) Name() string { return "start_run" }

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Tracker == nil {
		state.RunID = uuid.NewString()
		return nil
	}
	runID, err := s.Tracker.StartAnalysisRun(ctx, state.Source)
	if err != nil {
		return fmt.Errorf("StartRunStep: %w", err)
	}
	state.RunID = runID
	return nil
}

// Step 2: LoadSourceStep reads the raw table from Input or Source.
type LoadSourceStep struct {
	Loader *SourceLoader
}

func (s *LoadSourceStep) Name() string { return "load_source" }

func (s *LoadSourceStep) Execute(ctx context.Context, state *PipelineState) error {
	var (
		raw *ingest.RawTable
		err error
	)
	if state.Input != nil {
		raw, err = ingest.Parse(state.Input, state.Source, state.Options)
	} else {
		loader := s.Loader
		if loader == nil {
			loader = &SourceLoader{}
		}
		raw, err = loader.Load(ctx, state.Source, state.Options)
	}
	if err != nil {
		return err
	}

	state.Raw = raw
	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", state.RunID).
		Str("source", state.Source).
		Int("rows", raw.Len()).
		Int("columns", len(raw.Header)).
		Msg("Loaded source")
	return nil
}

// Step 3: ValidateSchemaStep resolves the required columns.
type ValidateSchemaStep struct{}

func (s *ValidateSchemaStep) Name() string { return "validate_schema" }

func (s *ValidateSchemaStep) Execute(ctx context.Context, state *PipelineState) error {
	schema, err := ingest.ValidateSchema(state.Raw, state.Options)
	if err != nil {
		return err
	}
	state.Schema = schema
	return nil
}

// Step 4: CleanStep types rows and drops invalid ones.
type CleanStep struct{}

func (s *CleanStep) Name() string { return "clean" }

func (s *CleanStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, stats, err := ingest.Clean(state.Raw, state.Schema, state.Options)
	if err != nil {
		return err
	}
	state.Transactions = txs
	state.Stats = stats

	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", state.RunID).
		Int("rows", stats.Total).
		Int("kept", stats.Kept).
		Int("dropped_missing_customer", stats.MissingCustomer).
		Int("dropped_bad_quantity", stats.BadQuantity).
		Int("dropped_bad_unit_price", stats.BadUnitPrice).
		Int("dropped_missing_invoice", stats.MissingInvoice).
		Int("dropped_missing_timestamp", stats.MissingTimestamp).
		Msg("Cleaned transactions")
	return nil
}

// Step 5: ComputeRFMStep scores and segments customers.
type ComputeRFMStep struct{}

func (s *ComputeRFMStep) Name() string { return "compute_rfm" }

func (s *ComputeRFMStep) Execute(ctx context.Context, state *PipelineState) error {
	table, err := rfm.Compute(state.Transactions)
	if err != nil {
		return err
	}
	state.Table = table

	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", state.RunID).
		Int("customers", table.Len()).
		Str("reference_date", table.ReferenceDate().String()).
		Msg("Computed RFM table")
	return nil
}

// Step 6: ExportStep hands the table to every exporter in order.
type ExportStep struct {
	Exporters []Exporter
}

func (s *ExportStep) Name() string { return "export" }

func (s *ExportStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for _, exp := range s.Exporters {
		dest, err := exp.Export(ctx, state)
		if err != nil {
			return fmt.Errorf("ExportStep: %w", err)
		}
		state.Outputs = append(state.Outputs, dest)
		log.Info().
			Str("run_id", state.RunID).
			Str("destination", dest).
			Msg("Exported RFM table")
	}
	return nil
}

// Step 7: MarkSuccessStep records the finished run.
type MarkSuccessStep struct {
	Tracker RunTracker
}

func (s *MarkSuccessStep) Name() string { return "mark_success" }

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Tracker == nil {
		return nil
	}
	if err := s.Tracker.MarkAnalysisRunSucceeded(ctx, state.RunID, state.Table.Len()); err != nil {
		return fmt.Errorf("MarkSuccessStep: %w", err)
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially and stops at the
// first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}
