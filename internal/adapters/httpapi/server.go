// Package httpapi exposes the survey service over HTTP using chi.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"surveycore/internal/adapters/reports"
	"surveycore/internal/core"
	"surveycore/pkg/domain"
)

// MaxBodyBytes bounds request bodies, imports included.
const MaxBodyBytes = 16 << 20

// Reports is the report queue used by the /reports routes. *reports.Worker
// implements it.
type Reports interface {
	Enqueue(ctx context.Context, req reports.Request) (reports.Report, error)
	Get(id string) (reports.Report, bool)
	List() []reports.Report
}

// Server holds the handler dependencies. Reports and Metrics are optional;
// their routes are not mounted when nil.
type Server struct {
	Service *core.Service
	Reports Reports
	Metrics prometheus.Gatherer
	Logger  *slog.Logger
	Now     func() time.Time
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	if s.Now == nil {
		s.Now = func() time.Time { return time.Now().UTC() }
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.Logger))

	r.Get("/healthz", s.health)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/surveys", func(r chi.Router) {
			r.Get("/", s.listSurveys)
			r.Post("/", s.createSurvey)
			r.Delete("/", s.clearSurveys)
			r.Post("/import", s.importSurveys)
			r.Get("/export", s.exportSurveys)
			r.Get("/{id}", s.getSurvey)
			r.Patch("/{id}", s.updateSurvey)
			r.Put("/{id}", s.updateSurvey)
			r.Delete("/{id}", s.deleteSurvey)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/summary", s.summary)
			r.Get("/questions", s.questions)
			r.Get("/questions/{qid}", s.question)
			r.Get("/areas", s.areas)
			r.Get("/ranking", s.ranking)
			r.Get("/correlations", s.topCorrelations)
			r.Get("/correlations/{qid}", s.correlations)
			r.Get("/matrix", s.matrix)
			r.Get("/demographics/{field}", s.demographics)
		})

		r.Get("/settings", s.listSettings)
		r.Get("/settings/{path}", s.getSetting)
		r.Put("/settings/{path}", s.putSetting)

		if s.Reports != nil {
			r.Get("/reports", s.listReports)
			r.Post("/reports", s.createReport)
			r.Get("/reports/{id}", s.getReport)
		}
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"surveys": s.Service.Count(),
		"storage": s.Service.StateDriver(),
		"dirty":   s.Service.Dirty(),
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).Round(time.Millisecond),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeFailure maps domain errors onto HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	var verr domain.ValidationError
	if errors.As(err, &verr) {
		body["errors"] = verr.Errors
	}
	writeJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrMappingIncomplete),
		errors.Is(err, domain.ErrInvalidEnumValue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrMalformedInput),
		errors.Is(err, domain.ErrInvalidPath),
		errors.Is(err, domain.ErrParseFailure):
		return http.StatusBadRequest
	case errors.Is(err, reports.ErrQueueFull),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}
