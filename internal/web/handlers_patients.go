package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/patients/internal/core"
	"github.com/JonMunkholm/patients/internal/export"
	"github.com/JonMunkholm/patients/internal/logging"
)

// maxRecordBody caps JSON bodies for add and update.
const maxRecordBody = 64 * 1024

// PatientList is the body of a search response.
type PatientList struct {
	Count    int             `json:"count"`
	Patients []export.Record `json:"patients"`
}

// DeleteResponse is the body of a successful delete.
type DeleteResponse struct {
	PatientID string `json:"patient_id"`
	Deleted   bool   `json:"deleted"`
}

// handleSearch lists all patients, or those matching ?q= by identifier or
// name.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		patients []core.Patient
		err      error
	)
	if term == "" {
		patients, err = s.repo.List(r.Context())
	} else {
		patients, err = s.repo.Search(r.Context(), term)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	if term != "" {
		logging.FromContext(r.Context()).Info("search", "term", term, "results", len(patients))
	}
	writeJSON(w, http.StatusOK, PatientList{Count: len(patients), Patients: toRecords(patients)})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	p, err := s.repo.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export.NewRecord(*p))
}

// handleAdd creates a patient from a JSON object keyed by field name.
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeRecord(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	res, err := s.repo.Add(r.Context(), raw)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/patients/"+res.PatientID)
	writeJSON(w, http.StatusCreated, res)
}

// handleUpdate applies a partial update. Keys may be field names or
// document keys.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeRecord(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	res, err := s.repo.Update(r.Context(), chi.URLParam(r, "id"), raw)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := core.NormalizePatientID(chi.URLParam(r, "id"))
	if err := s.repo.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{PatientID: id, Deleted: true})
}

// decodeRecord reads a JSON object body. Numbers are kept as json.Number so
// the field validators see the client's exact text.
func decodeRecord(w http.ResponseWriter, r *http.Request) (core.RawRecord, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody))
	dec.UseNumber()

	var raw core.RawRecord
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, badRequest("empty body")
		}
		return nil, badRequest("invalid JSON: %v", err)
	}
	if raw == nil {
		return nil, badRequest("body must be a JSON object")
	}
	return raw, nil
}

func toRecords(patients []core.Patient) []export.Record {
	out := make([]export.Record, len(patients))
	for i, p := range patients {
		out[i] = export.NewRecord(p)
	}
	return out
}
