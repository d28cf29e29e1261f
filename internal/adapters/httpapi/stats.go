package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"surveycore/internal/stats"
	"surveycore/pkg/domain"
)

// Every statistics route accepts the filter query keys and reports the
// number of responses it was computed from.

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(records, s.Service.Schema(), s.Service.Settings().Analysis, s.Now()))
}

func (s *Server) questions(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"responses": len(records),
		"questions": stats.AllQuestionStats(records, s.Service.Schema()),
	})
}

func (s *Server) question(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	qid := chi.URLParam(r, "qid")
	st, ok := stats.QuestionStats(records, s.Service.Schema(), qid)
	if !ok {
		writeFailure(w, fmt.Errorf("question %s: %w", qid, domain.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) areas(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"responses": len(records),
		"areas":     stats.AreaSummaries(records, s.Service.Schema()),
	})
}

// ranking accepts k and min, defaulting to analysis.rankingSize and
// analysis.minimumResponses.
func (s *Server) ranking(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	analysis := s.Service.Settings().Analysis
	q := r.URL.Query()
	k, err := intParam(q.Get("k"), analysis.RankingSize)
	if err != nil {
		writeFailure(w, err)
		return
	}
	minResponses, err := intParam(q.Get("min"), analysis.MinimumResponses)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.RankQuestions(records, s.Service.Schema(), k, minResponses))
}

func (s *Server) topCorrelations(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	threshold, err := s.threshold(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), stats.SummaryLimit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"threshold":    threshold,
		"correlations": stats.TopCorrelations(records, s.Service.Schema(), threshold, limit),
	})
}

func (s *Server) correlations(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	threshold, err := s.threshold(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	qid := chi.URLParam(r, "qid")
	out, err := stats.Correlate(records, s.Service.Schema(), qid, threshold)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"questionId":   qid,
		"threshold":    threshold,
		"correlations": out,
	})
}

func (s *Server) threshold(r *http.Request) (float64, error) {
	t, err := floatParam(r.URL.Query().Get("threshold"), s.Service.Settings().Analysis.CorrelationThreshold)
	if err != nil {
		return 0, err
	}
	if t < 0 || t > 1 {
		return 0, fmt.Errorf("%w: threshold must be between 0 and 1", domain.ErrMalformedInput)
	}
	return t, nil
}

func (s *Server) matrix(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.CorrelationMatrix(records, s.Service.Schema()))
}

func (s *Server) demographics(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	field := chi.URLParam(r, "field")
	groups, err := stats.DemographicBreakdown(records, s.Service.Schema(), field)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"field": field, "responses": len(records), "groups": groups})
}

