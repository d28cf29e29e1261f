// Package reports renders survey report artifacts in the background and
// stores them in the blob store.
package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"surveycore/internal/blob"
	"surveycore/internal/core"
	"surveycore/internal/filter"
	"surveycore/internal/stats"
	"surveycore/pkg/domain"
)

// Status describes the lifecycle stage of a report request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact captures a stored report file.
type Artifact struct {
	Key         string            `json:"key"`
	Format      Format            `json:"format"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Report tracks a request and the artifacts it produced.
type Report struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Criteria    filter.Criteria `json:"criteria"`
	Formats     []Format        `json:"formats"`
	Status      Status          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Responses   int             `json:"responses"`
	Artifacts   []Artifact      `json:"artifacts,omitempty"`
	RequestedBy string          `json:"requested_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Request is an enqueue request for the worker.
type Request struct {
	Title       string
	Criteria    filter.Criteria
	Formats     []Format
	RequestedBy string
}

// Source supplies the records and settings a report is computed from.
// *core.Service implements it.
type Source interface {
	Schema() *domain.Schema
	List() []domain.SurveyRecord
	Settings() domain.Settings
}

// AuditLogger records report audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for reports.
type AuditEntry struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	ReportID   string            `json:"report_id"`
	Status     Status            `json:"status"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// DefaultQueueSize bounds pending requests.
const DefaultQueueSize = 32

// ErrQueueFull is returned when the worker cannot accept more requests.
var ErrQueueFull = errors.New("report queue full")

// Worker executes report requests asynchronously.
type Worker struct {
	source Source
	blobs  blob.Store
	audit  AuditLogger
	logger core.Logger
	clock  core.Clock

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Report
	order []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

// WithAuditLogger records lifecycle transitions.
func WithAuditLogger(a AuditLogger) Option { return func(w *Worker) { w.audit = a } }

// WithLogger sets the worker logger.
func WithLogger(l core.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(c core.Clock) Option {
	return func(w *Worker) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithQueueSize changes the number of pending requests accepted.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan string, n)
		}
	}
}

// NewWorker constructs a report worker writing artifacts to blobs.
func NewWorker(source Source, blobs blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source: source,
		blobs:  blobs,
		logger: nopLogger{},
		clock:  core.ClockFunc(func() time.Time { return time.Now().UTC() }),
		queue:  make(chan string, DefaultQueueSize),
		jobs:   make(map[string]*Report),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing report requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the worker and stops it once ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.Start()
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.Stop(stopCtx)
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Enqueue schedules a report and returns the queued record.
func (w *Worker) Enqueue(ctx context.Context, req Request) (Report, error) {
	formats, err := normalizeFormats(req.Formats)
	if err != nil {
		return Report{}, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = w.source.Settings().Report.Title
	}
	now := w.clock.Now()
	report := Report{
		ID:          uuid.NewString(),
		Title:       title,
		Criteria:    req.Criteria,
		Formats:     formats,
		Status:      StatusQueued,
		RequestedBy: req.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[report.ID] = &report
	w.order = append(w.order, report.ID)
	queued := report.copy()
	w.mu.Unlock()

	w.record(ctx, report.ID, StatusQueued, nil)
	select {
	case w.queue <- report.ID:
	default:
		w.fail(report.ID, ErrQueueFull.Error())
		return Report{}, ErrQueueFull
	}
	return queued, nil
}

// Get returns a snapshot of the report record.
func (w *Worker) Get(id string) (Report, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.jobs[id]
	if !ok {
		return Report{}, false
	}
	return r.copy(), true
}

// List returns every known report in request order.
func (w *Worker) List() []Report {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Report, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.jobs[id].copy())
	}
	return out
}

func (w *Worker) process(id string) {
	report, ok := w.Get(id)
	if !ok {
		return
	}
	w.updateStatus(id, StatusRunning)

	schema := w.source.Schema()
	settings := w.source.Settings()
	records := filter.Apply(w.source.List(), schema, report.Criteria)
	summary := stats.Summarize(records, schema, settings.Analysis, w.clock.Now())
	in := renderInput{
		title:    report.Title,
		schema:   schema,
		settings: settings,
		records:  records,
		summary:  summary,
	}

	artifacts := make([]Artifact, 0, len(report.Formats))
	for _, format := range report.Formats {
		payload, err := render(format, in)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		key := fmt.Sprintf("reports/%s/report%s", id, format.Extension())
		meta := map[string]string{"report": id, "format": string(format), "responses": fmt.Sprint(len(records))}
		info, err := w.blobs.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: format.ContentType(), Metadata: meta})
		if err != nil {
			w.fail(id, fmt.Sprintf("store artifact failed: %v", err))
			return
		}
		url, err := w.blobs.PresignURL(w.ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: time.Hour})
		if err != nil {
			url = info.URL
		}
		artifacts = append(artifacts, Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: format.ContentType(),
			SizeBytes:   info.Size,
			URL:         url,
			Metadata:    meta,
			CreatedAt:   w.clock.Now(),
		})
	}
	w.complete(id, len(records), artifacts)
}

func (w *Worker) updateStatus(id string, status Status) {
	w.mu.Lock()
	if r, ok := w.jobs[id]; ok {
		r.Status = status
		r.UpdatedAt = w.clock.Now()
	}
	w.mu.Unlock()
	w.record(w.ctx, id, status, nil)
}

func (w *Worker) complete(id string, responses int, artifacts []Artifact) {
	now := w.clock.Now()
	w.mu.Lock()
	if r, ok := w.jobs[id]; ok {
		r.Status = StatusSucceeded
		r.Error = ""
		r.Responses = responses
		r.Artifacts = artifacts
		r.UpdatedAt = now
		r.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Info("report generated", "report", id, "responses", responses, "artifacts", len(artifacts))
	w.record(w.ctx, id, StatusSucceeded, map[string]string{"artifacts": fmt.Sprint(len(artifacts))})
}

func (w *Worker) fail(id, reason string) {
	now := w.clock.Now()
	w.mu.Lock()
	if r, ok := w.jobs[id]; ok {
		r.Status = StatusFailed
		r.Error = reason
		r.UpdatedAt = now
		r.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Error("report failed", "report", id, "error", reason)
	w.record(w.ctx, id, StatusFailed, map[string]string{"error": reason})
}

func (w *Worker) record(ctx context.Context, id string, status Status, meta map[string]string) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	actor := ""
	if r, ok := w.jobs[id]; ok {
		actor = r.RequestedBy
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		Action:     "survey_report",
		Actor:      actor,
		ReportID:   id,
		Status:     status,
		Metadata:   meta,
		OccurredAt: w.clock.Now(),
	})
}

func (r Report) copy() Report {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		dup.CompletedAt = &t
	}
	return dup
}

// MemoryAuditLog captures audit entries in memory.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// SlogAuditLog writes audit entries to a logger.
type SlogAuditLog struct {
	Logger core.Logger
}

// Record logs the entry at info level.
func (l SlogAuditLog) Record(_ context.Context, e AuditEntry) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("report audit", "action", e.Action, "actor", e.Actor, "report", e.ReportID, "status", string(e.Status))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
