package pipeline

import (
	"context"
	"io"

	"github.com/dvloznov/rfm-segmentation/internal/ingest"
	"github.com/dvloznov/rfm-segmentation/internal/logger"
)

// Deps are the external services a run may need. Nil members disable the
// sources or bookkeeping that depend on them.
type Deps struct {
	Storage   StorageService
	Warehouse TransactionWarehouse
	Tracker   RunTracker
	// Inputs confines local sources. Nil allows any path.
	Inputs *Sandbox
}

// Request describes one analysis.
type Request struct {
	Source    string
	Input     io.Reader
	Options   ingest.Options
	Exporters []Exporter
}

// NewRFMPipeline creates the standard analysis pipeline: start run, load,
// validate schema, clean, compute, export, mark success.
func NewRFMPipeline(deps Deps, exporters ...Exporter) *Pipeline {
	return NewPipeline(
		&StartRunStep{Tracker: deps.Tracker},
		&LoadSourceStep{Loader: &SourceLoader{Storage: deps.Storage, Warehouse: deps.Warehouse, Inputs: deps.Inputs}},
		&ValidateSchemaStep{},
		&CleanStep{},
		&ComputeRFMStep{},
		&ExportStep{Exporters: exporters},
		&MarkSuccessStep{Tracker: deps.Tracker},
	)
}

// Run executes one analysis and returns the final state. On failure the run
// is marked FAILED when a tracker is configured and the step error is
// returned; taxonomy errors stay matchable with errors.As.
func Run(ctx context.Context, req Request, deps Deps) (*PipelineState, error) {
	state := &PipelineState{
		Source:  req.Source,
		Input:   req.Input,
		Options: req.Options,
	}

	if err := NewRFMPipeline(deps, req.Exporters...).Execute(ctx, state); err != nil {
		if deps.Tracker != nil && state.RunID != "" {
			deps.Tracker.MarkAnalysisRunFailed(ctx, state.RunID, err)
		}
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("run_id", state.RunID).
			Str("source", state.Source).
			Msg("RFM analysis failed")
		return nil, err
	}
	return state, nil
}
