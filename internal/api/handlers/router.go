package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/rfm-segmentation/internal/api/middleware"
	"github.com/rs/zerolog"
)

// NewRouter registers every endpoint and wraps the mux in the middleware
// chain. jobsHandler may be nil, in which case the job endpoints are absent.
func NewRouter(analysis *AnalysisHandler, jobsHandler *JobsHandler, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/rfm", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			analysis.Analyze(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	if jobsHandler != nil {
		mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				jobsHandler.ListJobs(w, r)
			case http.MethodPost:
				jobsHandler.CreateJob(w, r)
			default:
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})

		mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
				if jobID == "" {
					middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
					return
				}
				jobsHandler.GetJob(w, r, jobID)
			} else {
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)
}
