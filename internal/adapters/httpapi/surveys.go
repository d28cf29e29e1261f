package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"surveycore/internal/core"
	"surveycore/internal/delimited"
	"surveycore/internal/filter"
	"surveycore/internal/importer"
	"surveycore/pkg/domain"
)

// criteriaFrom reads the filter keys from the query string and ignores the rest.
func criteriaFrom(r *http.Request) (filter.Criteria, error) {
	q := r.URL.Query()
	params := map[string]string{}
	for _, key := range []string{
		filter.KeyProfession, filter.KeyExperience, filter.KeyTenure,
		filter.KeyDateFrom, filter.KeyDateTo, filter.KeyMinCompleteness,
	} {
		if v := q.Get(key); v != "" {
			params[key] = v
		}
	}
	return filter.ParseCriteria(params)
}

// filtered returns the stored surveys matching the request's criteria.
func (s *Server) filtered(r *http.Request) ([]domain.SurveyRecord, filter.Criteria, error) {
	c, err := criteriaFrom(r)
	if err != nil {
		return nil, c, err
	}
	return filter.Apply(s.Service.List(), s.Service.Schema(), c), c, nil
}

func (s *Server) listSurveys(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"surveys": records,
		"count":   len(records),
		"total":   s.Service.Count(),
	})
}

func (s *Server) getSurvey(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Service.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) createSurvey(w http.ResponseWriter, r *http.Request) {
	var rec domain.SurveyRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&rec); err != nil {
		writeFailure(w, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err))
		return
	}
	out, err := s.Service.Add(r.Context(), rec)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcomeBody(out))
}

func (s *Server) updateSurvey(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeFailure(w, err)
		return
	}
	patch, err := core.ParsePatch(body)
	if err != nil {
		writeFailure(w, err)
		return
	}
	out, err := s.Service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeBody(out))
}

func (s *Server) deleteSurvey(w http.ResponseWriter, r *http.Request) {
	out, err := s.Service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": out.Record.ID, "persisted": out.Persisted})
}

func (s *Server) clearSurveys(w http.ResponseWriter, r *http.Request) {
	out, err := s.Service.Clear(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": len(out.Removed), "persisted": out.Persisted})
}

func outcomeBody(out core.Outcome) map[string]any {
	body := map[string]any{"survey": out.Record, "persisted": out.Persisted}
	if len(out.Validation.Warnings) > 0 {
		body["warnings"] = out.Validation.Warnings
	}
	if len(out.Validation.Corrections) > 0 {
		body["corrections"] = out.Validation.Corrections
	}
	return body
}

// importSurveys accepts delimited text. Query parameters: delimiter (detected
// when empty), header (default true), overwrite (default from settings).
func (s *Server) importSurveys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	delim, err := delimited.ParseDelimiter(q.Get("delimiter"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	header, err := boolParam(q.Get("header"), true)
	if err != nil {
		writeFailure(w, err)
		return
	}
	overwrite, err := boolParam(q.Get("overwrite"), s.Service.Settings().Import.OverwriteExisting)
	if err != nil {
		writeFailure(w, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeFailure(w, err)
		return
	}
	rep, err := importer.ImportText(r.Context(), s.Service, string(body), importer.Options{
		Source: importer.SourceOptions{Delimiter: delim, HasHeader: header},
		Commit: importer.CommitOptions{OverwriteExisting: overwrite},
	}, importer.WithLogger(s.Logger))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// exportSurveys streams the filtered surveys as delimited text. The
// delimiter and header flag default to the export settings.
func (s *Server) exportSurveys(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.filtered(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	opts := delimited.ExportOptionsFrom(s.Service.Settings().Export)
	q := r.URL.Query()
	if v := q.Get("delimiter"); v != "" {
		if opts.Delimiter, err = delimited.ParseDelimiter(v); err != nil {
			writeFailure(w, err)
			return
		}
	}
	if opts.IncludeHeader, err = boolParam(q.Get("header"), opts.IncludeHeader); err != nil {
		writeFailure(w, err)
		return
	}
	contentType := "text/csv; charset=utf-8"
	if opts.Delimiter == '\t' {
		contentType = "text/tab-separated-values; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="surveys-`+s.Now().Format("2006-01-02")+`.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := delimited.Write(w, records, s.Service.Schema(), opts); err != nil {
		s.Logger.Warn("export stream failed", "error", err)
	}
}

func boolParam(raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", domain.ErrMalformedInput, raw)
	}
	return b, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", domain.ErrMalformedInput, raw)
	}
	return n, nil
}

func floatParam(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", domain.ErrMalformedInput, raw)
	}
	return f, nil
}
