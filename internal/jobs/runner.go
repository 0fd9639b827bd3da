package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/rfm-segmentation/internal/ingest"
	"github.com/dvloznov/rfm-segmentation/internal/logger"
	"github.com/dvloznov/rfm-segmentation/internal/pipeline"
	"github.com/dvloznov/rfm-segmentation/internal/report"
)

// AnalysisRunner executes AnalysisJobs through the RFM pipeline.
type AnalysisRunner struct {
	Deps         pipeline.Deps
	Destinations pipeline.Destinations
	Options      ingest.Options
	// DefaultOutput is used for jobs without an OutputURI, e.g. "gs://bucket/rfm/".
	DefaultOutput string
}

// Handle implements JobHandler.
func (r *AnalysisRunner) Handle(ctx context.Context, job Job) error {
	analysisJob, ok := job.(*AnalysisJob)
	if !ok {
		return &PermanentError{Err: fmt.Errorf("unexpected job type: %T", job)}
	}

	output := analysisJob.OutputURI
	if output == "" {
		output = r.DefaultOutput
	}
	format, err := report.ParseFormat(analysisJob.Format)
	if err != nil {
		return &PermanentError{Err: err}
	}
	if analysisJob.Format == "" {
		format = ""
	}
	exporter, err := r.Destinations.ExporterFor(output, format)
	if err != nil {
		return &PermanentError{Err: err}
	}

	log := logger.FromContext(ctx)
	log.Info().Str("output", output).Msg("Processing analysis job")

	state, err := pipeline.Run(ctx, pipeline.Request{
		Source:    analysisJob.SourceURI,
		Options:   r.Options,
		Exporters: []pipeline.Exporter{exporter},
	}, r.Deps)
	if err != nil {
		return err
	}

	analysisJob.RunID = state.RunID
	analysisJob.CustomerCount = state.Table.Len()
	analysisJob.OutputURI = strings.Join(state.Outputs, ",")
	return nil
}
