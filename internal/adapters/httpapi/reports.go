package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"surveycore/internal/adapters/reports"
	"surveycore/internal/filter"
	"surveycore/pkg/domain"
)

type reportRequest struct {
	Title       string            `json:"title"`
	Criteria    map[string]string `json:"criteria"`
	Formats     []string          `json:"formats"`
	RequestedBy string            `json:"requestedBy"`
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	var body reportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&body); err != nil {
		writeFailure(w, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err))
		return
	}
	criteria, err := filter.ParseCriteria(body.Criteria)
	if err != nil {
		writeFailure(w, err)
		return
	}
	req := reports.Request{Title: body.Title, Criteria: criteria, RequestedBy: body.RequestedBy}
	for _, f := range body.Formats {
		format, err := reports.ParseFormat(f)
		if err != nil {
			writeFailure(w, err)
			return
		}
		req.Formats = append(req.Formats, format)
	}
	if req.RequestedBy == "" {
		req.RequestedBy = r.Header.Get("X-Requested-By")
	}
	rep, err := s.Reports.Enqueue(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rep)
}

func (s *Server) listReports(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"reports": s.Reports.List()})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, ok := s.Reports.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
