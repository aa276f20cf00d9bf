package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/patients/internal/core"
	"github.com/JonMunkholm/patients/internal/export"
	"github.com/JonMunkholm/patients/internal/ingest"
	"github.com/JonMunkholm/patients/internal/logging"
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// LoadResponse is the body of a completed bulk load.
type LoadResponse struct {
	core.LoadSummary
	Duration  string        `json:"duration"`
	Integrity ingest.Report `json:"integrity"`
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string               `json:"status"`
	Store  string               `json:"store"`
	Count  int64                `json:"count"`
	Load   *core.LoadGateStatus `json:"load,omitempty"`
}

// handleLoad replaces the collection with the CSV in the request body, or
// in the multipart field "file".
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	src, closeFn, err := s.loadSource(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer closeFn()

	table, err := ingest.ReadCSV(src, s.cfg.Load.MaxFileSize)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, s.cfg.Load.MaxFileSize)
		}
		respondError(w, r, err)
		return
	}

	report := ingest.Check(table)
	report.Log(logging.WithFields(r.Context(), "source", "upload"))

	summary, err := s.repo.BulkLoad(r.Context(), table.Rows)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoadResponse{
		LoadSummary: summary,
		Duration:    summary.Duration.Round(time.Millisecond).String(),
		Integrity:   report,
	})
}

// loadSource returns the CSV reader for a load request.
func (s *Server) loadSource(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Load.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, nil, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, s.cfg.Load.MaxFileSize)
		}
		return nil, nil, badRequest("invalid multipart form: %v", err)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, badRequest("no file provided")
	}
	return file, func() { file.Close() }, nil
}

// handleExport streams every patient in the requested format.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		respondError(w, r, badRequest("%v", err))
		return
	}

	patients, err := s.repo.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s.%s"`, export.BaseName, format))
	if err := export.Write(w, format, patients); err != nil {
		// Headers are already sent.
		logging.FromContext(r.Context()).Error("export failed", "format", format, "error", err)
		return
	}
	logging.FromContext(r.Context()).Info("export written", "format", format, "records", len(patients))
}

// handleHealth pings the store. It reports 503 when the store is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Store: "up"}
	if s.gate != nil {
		st := s.gate.Status()
		resp.Load = &st
	}

	if err := s.repo.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		resp.Status, resp.Store = "degraded", "down"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if n, err := s.repo.Count(r.Context()); err == nil {
		resp.Count = n
	}
	writeJSON(w, http.StatusOK, resp)
}
