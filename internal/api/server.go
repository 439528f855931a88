package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streampack/internal/config"
	"streampack/internal/jobs"
	"streampack/internal/logging"
	"streampack/internal/preflight"
	"streampack/internal/workflow"
)

// Scheduler is notified after each accepted upload. workflow.Manager
// satisfies it.
type Scheduler interface {
	Notify()
	Status() workflow.Status
}

// Server serves the job API.
type Server struct {
	store         jobs.Store
	scheduler     Scheduler
	logger        *slog.Logger
	uploadsDir    string
	maxUpload     int64
	minFree       uint64
	allowedOrigin string
	metricsPath   string
	started       time.Time
}

// New builds a server. scheduler may be nil, in which case uploads are only
// recorded.
func New(cfg *config.Config, store jobs.Store, scheduler Scheduler, logger *slog.Logger) *Server {
	srv := &Server{
		store:         store,
		scheduler:     scheduler,
		logger:        logging.NewComponentLogger(logger, "api"),
		uploadsDir:    cfg.Paths.UploadsDir,
		minFree:       preflight.MinFreeBytes(cfg),
		allowedOrigin: cfg.Paths.AllowedOrigin,
		started:       time.Now(),
	}
	if cfg.Workflow.MaxUploadMiB > 0 {
		srv.maxUpload = int64(cfg.Workflow.MaxUploadMiB) << 20
	}
	if cfg.Metrics.Enabled {
		srv.metricsPath = cfg.Metrics.Path
	}
	return srv
}

// Handler returns the routed handler with middleware applied. CORS wraps the
// router so preflight requests are answered for every path.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metricsPath != "" {
		r.Handle(s.metricsPath, promhttp.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/videos", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/videos", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/videos/{id}/info", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/videos/{id}/log", s.handleLog).Methods(http.MethodGet)
	r.HandleFunc("/videos/{id}/thumbnail", s.handleThumbnail).Methods(http.MethodGet)
	r.HandleFunc("/videos/{id}/{file:.+}", s.handleFile).Methods(http.MethodGet)

	return s.cors(r)
}

type healthResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Running       bool     `json:"running"`
	Workers       int      `json:"workers,omitempty"`
	ActiveJobs    []string `json:"active_jobs"`
	Done          int      `json:"done"`
	Failed        int      `json:"failed"`
	LastError     string   `json:"last_error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		ActiveJobs:    []string{},
	}
	if s.scheduler != nil {
		status := s.scheduler.Status()
		resp.Running = status.Running
		resp.Workers = status.Workers
		resp.ActiveJobs = append(resp.ActiveJobs, status.ActiveJobs...)
		resp.Done = status.Done
		resp.Failed = status.Failed
		resp.LastError = status.LastError
	}
	s.writeJSON(w, http.StatusOK, resp)
}
