package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"surveycore/internal/adapters/reports"
	"surveycore/internal/blob"
	"surveycore/internal/core"
	"surveycore/internal/importer"
	"surveycore/internal/infra/persistence/memory"
	"surveycore/internal/stats"
	"surveycore/pkg/domain"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type fixture struct {
	svc     *core.Service
	worker  *reports.Worker
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	rec, err := core.NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	clock := core.ClockFunc(func() time.Time { return fixedNow })
	svc, err := core.NewService(context.Background(), domain.DefaultSchema(),
		core.WithClock(clock), core.WithStateStore(memory.NewSnapshotStore()), core.WithMetrics(rec))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	worker := reports.NewWorker(svc, blob.NewMemory(), reports.WithClock(clock))
	worker.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = worker.Stop(ctx)
	})
	srv := &Server{Service: svc, Reports: worker, Metrics: reg, Now: clock.Now}
	return &fixture{svc: svc, worker: worker, handler: srv.Handler()}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	for i, prof := range []string{"sales", "sales", "engineering", "sales"} {
		rec := domain.SurveyRecord{ID: "r" + string(rune('1'+i)), Timestamp: "2024-01-1" + string(rune('1'+i)) + "T10:00:00.000Z", Profession: prof}
		for j, q := range domain.DefaultSchema().LikertQuestions() {
			rec.SetScore(q.ID, (i+j)%5+1)
		}
		if _, err := f.svc.Add(context.Background(), rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestSurveyLifecycle(t *testing.T) {
	f := newFixture(t)
	body := `{"id":"s1","timestamp":"2024-01-15T10:00:00.000Z","profession":"sales","q1":4,"q2":5}`
	if rec := f.do(t, http.MethodPost, "/api/v1/surveys", body); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/surveys", body); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create: expected 409, got %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/surveys", `{"id":"s2","q1":9}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid create: expected 422, got %d", rec.Code)
	}
	if errs := decode[map[string]any](t, rec)["errors"]; errs == nil {
		t.Fatalf("expected validation errors in body %s", rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/surveys", `{"id":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed create: expected 400, got %d", rec.Code)
	}

	if rec := f.do(t, http.MethodPatch, "/api/v1/surveys/s1", `{"q1":2,"q2":null}`); rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}
	got := decode[domain.SurveyRecord](t, f.do(t, http.MethodGet, "/api/v1/surveys/s1", ""))
	if score, _ := got.Score("q1"); score != 2 {
		t.Fatalf("expected patched q1=2, got %+v", got)
	}
	if _, ok := got.Score("q2"); ok {
		t.Fatalf("expected q2 cleared, got %+v", got)
	}
	if rec := f.do(t, http.MethodPatch, "/api/v1/surveys/missing", `{"q1":2}`); rec.Code != http.StatusNotFound {
		t.Fatalf("patch missing: expected 404, got %d", rec.Code)
	}

	if rec := f.do(t, http.MethodDelete, "/api/v1/surveys/s1", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/surveys/s1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", rec.Code)
	}
}

func TestListFiltersAndClear(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	list := decode[struct {
		Surveys []domain.SurveyRecord `json:"surveys"`
		Count   int                   `json:"count"`
		Total   int                   `json:"total"`
	}](t, f.do(t, http.MethodGet, "/api/v1/surveys?profession=sales&dateTo=2024-01-12", ""))
	if list.Count != 2 || list.Total != 4 || len(list.Surveys) != 2 {
		t.Fatalf("unexpected filtered list %+v", list)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/surveys?dateFrom=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad criteria: expected 400, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodDelete, "/api/v1/surveys", "")
	if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["removed"] != float64(4) {
		t.Fatalf("clear: %d %s", rec.Code, rec.Body.String())
	}
	if f.svc.Count() != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestImportThenExport(t *testing.T) {
	f := newFixture(t)
	csv := "id,timestamp,profession,q1,q2\nA,2024-01-01T00:00:00.000Z,sales,4,5\nB,2024-01-02T00:00:00.000Z,,3,2\nC,2024-01-03T00:00:00.000Z,,8,2\n"
	rec := f.do(t, http.MethodPost, "/api/v1/surveys/import", csv)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body.String())
	}
	rep := decode[importer.Report](t, rec)
	if rep.Result.Summary.Imported != 2 || rep.Result.Rejected != 1 {
		t.Fatalf("unexpected import result %+v", rep.Result)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/surveys/export?delimiter=;", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\r\n"), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "id;timestamp") || !strings.HasPrefix(lines[1], "A;") {
		t.Fatalf("unexpected export %q", rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/api/v1/surveys/export?header=false&profession=sales", "")
	if strings.Count(strings.TrimSpace(rec.Body.String()), "\n") != 0 || !strings.HasPrefix(rec.Body.String(), "A,") {
		t.Fatalf("unexpected filtered export %q", rec.Body.String())
	}

	if rec := f.do(t, http.MethodPost, "/api/v1/surveys/import?delimiter=::", csv); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad delimiter: expected 400, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/surveys/import", "profession,q1\nsales,3\n"); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unmapped id: expected 422, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatisticsRoutes(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	summary := decode[stats.Summary](t, f.do(t, http.MethodGet, "/api/v1/stats/summary", ""))
	if summary.TotalResponses != 4 || len(summary.Areas) != 5 || !summary.GeneratedAt.Equal(fixedNow) {
		t.Fatalf("unexpected summary %+v", summary)
	}
	sales := decode[stats.Summary](t, f.do(t, http.MethodGet, "/api/v1/stats/summary?profession=sales", ""))
	if sales.TotalResponses != 3 {
		t.Fatalf("expected 3 sales responses, got %d", sales.TotalResponses)
	}

	q := decode[stats.QuestionStatistic](t, f.do(t, http.MethodGet, "/api/v1/stats/questions/q1", ""))
	if q.SampleSize != 4 || q.Average == nil {
		t.Fatalf("unexpected q1 statistics %+v", q)
	}
	ranking := decode[stats.Ranking](t, f.do(t, http.MethodGet, "/api/v1/stats/ranking?k=2", ""))
	if len(ranking.Strengths) != 2 || len(ranking.Weaknesses) != 2 {
		t.Fatalf("unexpected ranking %+v", ranking)
	}
	m := decode[stats.Matrix](t, f.do(t, http.MethodGet, "/api/v1/stats/matrix", ""))
	if len(m.QuestionIDs) != 20 || m.R[0][0] == nil || *m.R[0][0] != 1 {
		t.Fatalf("unexpected matrix diagonal")
	}

	for _, tc := range []struct {
		path string
		want int
	}{
		{"/api/v1/stats/questions", http.StatusOK},
		{"/api/v1/stats/questions/q99", http.StatusNotFound},
		{"/api/v1/stats/areas", http.StatusOK},
		{"/api/v1/stats/ranking?k=x", http.StatusBadRequest},
		{"/api/v1/stats/correlations?threshold=0.5", http.StatusOK},
		{"/api/v1/stats/correlations/q1", http.StatusOK},
		{"/api/v1/stats/correlations/q21", http.StatusNotFound},
		{"/api/v1/stats/correlations/q1?threshold=2", http.StatusBadRequest},
		{"/api/v1/stats/demographics/profession", http.StatusOK},
		{"/api/v1/stats/demographics/shoe_size", http.StatusBadRequest},
	} {
		if rec := f.do(t, http.MethodGet, tc.path, ""); rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d %s", tc.path, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestSettingsRoutes(t *testing.T) {
	f := newFixture(t)
	all := decode[struct {
		Paths map[string]any `json:"paths"`
	}](t, f.do(t, http.MethodGet, "/api/v1/settings", ""))
	if len(all.Paths) != len(core.SettingPaths()) {
		t.Fatalf("expected every settings path, got %v", all.Paths)
	}
	rec := f.do(t, http.MethodGet, "/api/v1/settings/analysis.rankingSize", "")
	if decode[map[string]any](t, rec)["value"] != float64(5) {
		t.Fatalf("unexpected ranking size %s", rec.Body.String())
	}
	rec = f.do(t, http.MethodPut, "/api/v1/settings/analysis.rankingSize", `{"value":"3"}`)
	if rec.Code != http.StatusOK || f.svc.Settings().Analysis.RankingSize != 3 {
		t.Fatalf("put setting: %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPut, "/api/v1/settings/analysis.rankingSize", `{"value":"many"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad value: expected 400, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/settings/analysis.colour", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown path: expected 400, got %d", rec.Code)
	}
}

func TestReportRoutes(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	rec := f.do(t, http.MethodPost, "/api/v1/reports", `{"formats":["csv","md"],"criteria":{"profession":"sales"},"requestedBy":"hr"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("enqueue: %d %s", rec.Code, rec.Body.String())
	}
	queued := decode[reports.Report](t, rec)
	deadline := time.Now().Add(5 * time.Second)
	var done reports.Report
	for time.Now().Before(deadline) {
		done = decode[reports.Report](t, f.do(t, http.MethodGet, "/api/v1/reports/"+queued.ID, ""))
		if done.Status == reports.StatusSucceeded || done.Status == reports.StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if done.Status != reports.StatusSucceeded || done.Responses != 3 || len(done.Artifacts) != 2 {
		t.Fatalf("unexpected report %+v", done)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/reports/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing report: expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/reports", `{"formats":["pdf"]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format: expected 400, got %d", rec.Code)
	}
	list := decode[map[string][]reports.Report](t, f.do(t, http.MethodGet, "/api/v1/reports", ""))
	if len(list["reports"]) != 1 {
		t.Fatalf("expected one report, got %+v", list)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	health := decode[map[string]any](t, f.do(t, http.MethodGet, "/healthz", ""))
	if health["status"] != "ok" || health["surveys"] != float64(4) || health["storage"] != "memory" {
		t.Fatalf("unexpected health %v", health)
	}
	rec := f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `surveycore_service_operations_total{operation="add",result="success"} 4`) {
		t.Fatalf("metrics missing add counter: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "surveycore_store_surveys 4") {
		t.Fatalf("metrics missing survey gauge")
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.NotFoundError{ID: "x"}, http.StatusNotFound},
		{domain.DuplicateIDError{ID: "x"}, http.StatusConflict},
		{domain.ValidationError{Errors: []string{"q1"}}, http.StatusUnprocessableEntity},
		{domain.ParseError{Reason: "empty"}, http.StatusBadRequest},
		{reports.ErrQueueFull, http.StatusServiceUnavailable},
		{domain.ErrPersistenceFailure, http.StatusInternalServerError},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
