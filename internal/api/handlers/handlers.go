package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/rfm-segmentation/internal/api/middleware"
	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/dvloznov/rfm-segmentation/internal/ingest"
	"github.com/dvloznov/rfm-segmentation/internal/jobs"
	"github.com/dvloznov/rfm-segmentation/internal/pipeline"
	"github.com/dvloznov/rfm-segmentation/internal/report"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// multipartMemory is the part of a multipart upload kept in memory; the
// rest spills to temporary files.
const multipartMemory = 32 << 20

// AnalysisHandler runs synchronous analyses of uploaded files.
type AnalysisHandler struct {
	options        ingest.Options
	tracker        pipeline.RunTracker
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewAnalysisHandler creates a new analysis handler. tracker may be nil.
func NewAnalysisHandler(options ingest.Options, tracker pipeline.RunTracker, maxUploadBytes int64, log zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		options:        options,
		tracker:        tracker,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// Analyze handles POST /api/rfm
//
// The body is the transaction file, either raw or as the multipart field
// "file". Query parameters: encoding (IANA name), delimiter (one character)
// and format (csv or json).
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	format, err := report.ParseFormat(query.Get("format"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := h.options
	if enc := query.Get("encoding"); enc != "" {
		opts.Encoding = enc
	}
	if delim := query.Get("delimiter"); delim != "" {
		runes := []rune(delim)
		if len(runes) != 1 {
			middleware.WriteError(w, http.StatusBadRequest, "delimiter must be a single character")
			return
		}
		opts.Delimiter = runes[0]
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	source, body, err := h.uploadedFile(r)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	defer body.Close()

	state, err := pipeline.Run(ctx, pipeline.Request{
		Source:  source,
		Input:   body,
		Options: opts,
	}, pipeline.Deps{Tracker: h.tracker})
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	data, err := report.Encode(state.Table, format)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode RFM table")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to encode result")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Run-ID", state.RunID)
	if state.Table.Len() > 0 {
		w.Header().Set("X-Reference-Date", state.Table.ReferenceDate().String())
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// uploadedFile returns the upload's name and contents.
func (h *AnalysisHandler) uploadedFile(r *http.Request) (string, io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return "upload", r.Body, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return "", nil, &domain.IOError{Source: "upload", Op: "read", Err: err}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, &domain.IOError{Source: "upload", Op: "read", Err: err}
	}
	return header.Filename, file, nil
}

// writePipelineError maps the error taxonomy onto HTTP status codes.
func (h *AnalysisHandler) writePipelineError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("RFM analysis failed")
		middleware.WriteError(w, status, "RFM analysis failed")
		return
	}
	middleware.WriteError(w, status, err.Error())
}

func statusForError(err error) int {
	var (
		tooLarge  *http.MaxBytesError
		ioErr     *domain.IOError
		formatErr *domain.FormatError
		schemaErr *domain.SchemaError
		scoreErr  *domain.ScoreComputationError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &ioErr):
		return http.StatusBadRequest
	case errors.As(err, &formatErr), errors.As(err, &schemaErr), errors.As(err, &scoreErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store         jobs.JobStore
	publisher     jobs.Publisher
	sources       *pipeline.SourceLoader
	destinations  pipeline.Destinations
	defaultOutput string
	log           zerolog.Logger
}

// NewJobsHandler creates a new jobs handler. deps decides which sources a
// job may name; defaultOutput is used for jobs submitted without an
// output_uri.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, deps pipeline.Deps, destinations pipeline.Destinations, defaultOutput string, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		sources: &pipeline.SourceLoader{
			Storage:   deps.Storage,
			Warehouse: deps.Warehouse,
			Inputs:    deps.Inputs,
		},
		destinations:  destinations,
		defaultOutput: defaultOutput,
		log:           log,
	}
}

// CreateJob handles POST /api/jobs
func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceURI string `json:"source_uri"`
		OutputURI string `json:"output_uri"`
		Format    string `json:"format"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.SourceURI = strings.TrimSpace(req.SourceURI)
	if req.SourceURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "source_uri is required")
		return
	}
	if err := h.sources.Check(req.SourceURI); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	format, err := report.ParseFormat(req.Format)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Format == "" {
		format = ""
	}

	output := req.OutputURI
	if output == "" {
		output = h.defaultOutput
	}
	if output == "" {
		middleware.WriteError(w, http.StatusBadRequest, "output_uri is required")
		return
	}
	if _, err := h.destinations.ExporterFor(output, format); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	jobID := uuid.New().String()
	job := &jobs.AnalysisJob{
		JobID:     jobID,
		SourceURI: req.SourceURI,
		OutputURI: req.OutputURI,
		Format:    string(format),
	}

	if err := h.publisher.PublishAnalysis(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue analysis job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue analysis job")
		return
	}

	h.log.Info().Str("job_id", jobID).Str("source_uri", req.SourceURI).Msg("Analysis job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     jobID,
		"source_uri": req.SourceURI,
		"status":     string(jobs.JobStatusPending),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		var notFound *jobs.ErrJobNotFound
		if errors.As(err, &notFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		SourceURI: query.Get("source_uri"),
		Status:    jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
