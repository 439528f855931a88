package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"streampack/internal/jobs"
	"streampack/internal/logging"
	"streampack/internal/pipeline"
)

var contentTypes = map[string]string{
	".mpd":  "application/dash+xml",
	".m4s":  "video/iso.segment",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".mp4":  "video/mp4",
	".log":  "text/plain; charset=utf-8",
	".json": "application/json",
}

// contentTypeFor returns the media type served for name, or "" to let
// net/http sniff it.
func contentTypeFor(name string) string {
	return contentTypes[strings.ToLower(filepath.Ext(name))]
}

type logResponse struct {
	Log string `json:"log"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []jobs.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := jobs.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+trimmed)
			return
		}
		statuses = append(statuses, status)
	}

	list, err := s.store.List(r.Context(), statuses...)
	if err != nil {
		s.logger.Error("list jobs failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

// lookup resolves the {id} route variable to a job. It writes the error
// response and returns nil when the job cannot be served.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *jobs.Job {
	id := mux.Vars(r)["id"]
	if !jobs.ValidID(id) {
		s.writeError(w, http.StatusNotFound, "video not found")
		return nil
	}
	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "video not found")
			return nil
		}
		s.logger.Error("load job failed", logging.String(logging.FieldJobID, id), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load video")
		return nil
	}
	return job
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	job := s.lookup(w, r)
	if job == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	job := s.lookup(w, r)
	if job == nil {
		return
	}
	plog := pipeline.NewProcessingLog(filepath.Join(s.store.Dir(job.ID), jobs.LogFileName))
	content, err := plog.Read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "log not found")
			return
		}
		s.logger.Error("read processing log failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read log")
		return
	}
	s.writeJSON(w, http.StatusOK, logResponse{Log: content})
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	job := s.lookup(w, r)
	if job == nil {
		return
	}
	s.serveJobFile(w, r, job, jobs.ThumbnailFileName)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	job := s.lookup(w, r)
	if job == nil {
		return
	}
	s.serveJobFile(w, r, job, mux.Vars(r)["file"])
}

// serveJobFile serves name from the job directory. Names are cleaned against
// the directory root and hidden files are never served.
func (s *Server) serveJobFile(w http.ResponseWriter, r *http.Request, job *jobs.Job, name string) {
	rel := strings.TrimPrefix(path.Clean("/"+name), "/")
	if rel == "" || rel == "." {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			s.writeError(w, http.StatusNotFound, "file not found")
			return
		}
	}

	full := filepath.Join(s.store.Dir(job.ID), filepath.FromSlash(rel))
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "file not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if ct := contentTypeFor(rel); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
