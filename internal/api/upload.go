package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"streampack/internal/fileutil"
	"streampack/internal/jobs"
	"streampack/internal/logging"
	"streampack/internal/metrics"
	"streampack/internal/preflight"
	"streampack/internal/staging"
)

const multipartOverhead = 1 << 20

const (
	msgMissingFields = "Missing video file or title"
	msgInvalidFile   = "Invalid file"
)

// requestError is a rejected upload: the status and client message to send,
// plus the underlying cause for logging.
type requestError struct {
	status int
	msg    string
	err    error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func reject(status int, msg string) *requestError {
	return &requestError{status: status, msg: msg}
}

// bodyError classifies a failure while reading the request body.
func bodyError(err error) *requestError {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, fileutil.ErrTooLarge), errors.As(err, &maxErr):
		return &requestError{status: http.StatusRequestEntityTooLarge, msg: "upload too large", err: err}
	case errors.Is(err, os.ErrPermission), errors.Is(err, os.ErrNotExist):
		return &requestError{status: http.StatusInternalServerError, msg: "failed to store upload", err: err}
	default:
		return &requestError{status: http.StatusBadRequest, msg: "malformed upload", err: err}
	}
}

// upload is the parsed multipart request. The video is already on disk at
// path when parsing succeeds.
type upload struct {
	title      string
	haveTitle  bool
	sourceName string
	path       string
	size       int64
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := preflight.EnsureFreeSpace(s.uploadsDir, s.minFree); err != nil {
		if errors.Is(err, preflight.ErrInsufficientSpace) {
			logging.WarnWithContext(s.logger, "upload rejected: disk nearly full", "upload_rejected",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "free space under uploads_dir or lower workflow.min_free_mib"),
				logging.String(logging.FieldImpact, "new uploads are refused"),
			)
			s.writeError(w, http.StatusInsufficientStorage, "insufficient storage")
			return
		}
		s.logger.Error("free space check failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	}

	up, rerr := s.receive(r)
	if up.path != "" {
		defer os.Remove(up.path)
	}
	if rerr != nil {
		if rerr.status >= http.StatusInternalServerError {
			s.logger.Error("upload failed", logging.Error(rerr))
		} else {
			s.logger.Debug("upload rejected", logging.Int("status", rerr.status), logging.Error(rerr))
		}
		s.writeError(w, rerr.status, rerr.msg)
		return
	}

	job := jobs.New(up.title, up.sourceName)
	dir := s.store.Dir(job.ID)
	if err := s.place(up.path, dir, job.OriginalName()); err != nil {
		s.logger.Error("store upload failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check uploads_dir permissions"),
		)
		_ = os.RemoveAll(dir)
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	// The record is written last: once it exists a worker may claim it.
	if err := s.store.Create(r.Context(), job); err != nil {
		s.logger.Error("create job failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		_ = os.RemoveAll(dir)
		s.writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	metrics.UploadBytesTotal.Add(float64(up.size))
	s.logger.Info("upload accepted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("title", job.Title),
		logging.String("source", job.SourceName),
		logging.Int64("bytes", up.size),
		logging.String(logging.FieldEventType, "upload_accepted"),
	)
	s.writeJSON(w, http.StatusAccepted, job)
	if s.scheduler != nil {
		s.scheduler.Notify()
	}
}

// receive streams the multipart body to a temporary file under the uploads
// root.
func (s *Server) receive(r *http.Request) (upload, *requestError) {
	var up upload
	reader, err := r.MultipartReader()
	if err != nil {
		return up, reject(http.StatusBadRequest, msgMissingFields)
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return up, bodyError(err)
		}
		rerr := s.receivePart(part, &up)
		_ = part.Close()
		if rerr != nil {
			return up, rerr
		}
	}

	if up.path == "" || !up.haveTitle {
		return up, reject(http.StatusBadRequest, msgMissingFields)
	}
	return up, nil
}

func (s *Server) receivePart(part *multipart.Part, up *upload) *requestError {
	switch part.FormName() {
	case "title":
		data, err := io.ReadAll(io.LimitReader(part, jobs.MaxTitleBytes+1))
		if err != nil {
			return bodyError(err)
		}
		if len(data) > jobs.MaxTitleBytes {
			return reject(http.StatusBadRequest, "title too long")
		}
		up.title = strings.TrimSpace(string(data))
		up.haveTitle = true
	case "video":
		name := filepath.Base(strings.TrimSpace(part.FileName()))
		if up.path != "" || part.FileName() == "" || !jobs.AllowedUpload(name) {
			return reject(http.StatusBadRequest, msgInvalidFile)
		}
		up.path = filepath.Join(s.uploadsDir, staging.IncomingPrefix+uuid.NewString()+strings.ToLower(filepath.Ext(name)))
		up.sourceName = name
		size, err := fileutil.SaveReader(up.path, part, s.maxUpload)
		if err != nil {
			return bodyError(err)
		}
		up.size = size
	}
	return nil
}

// place moves the received upload into the job directory.
func (s *Server) place(src, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.Rename(src, filepath.Join(dir, name))
}
