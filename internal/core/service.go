package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"surveycore/internal/infra/persistence/memory"
	"surveycore/pkg/domain"
)

// Outcome reports the result of a single mutation.
type Outcome struct {
	Record     domain.SurveyRecord
	Previous   *domain.SurveyRecord
	Removed    []domain.SurveyRecord
	Validation ValidationResult
	// Persisted is false when the snapshot could not be written. The
	// in-memory change is kept either way.
	Persisted bool
}

// ImportOptions tune ImportMany.
type ImportOptions struct {
	OverwriteExisting bool
}

// ImportStatus is the per-record outcome of ImportMany.
type ImportStatus string

const (
	ImportImported    ImportStatus = "imported"
	ImportOverwritten ImportStatus = "overwritten"
	ImportSkipped     ImportStatus = "skipped"
	ImportInvalid     ImportStatus = "invalid"
)

// ImportRowResult describes what happened to one submitted record.
type ImportRowResult struct {
	Index  int          `json:"index"`
	ID     string       `json:"id"`
	Status ImportStatus `json:"status"`
	Errors []string     `json:"errors,omitempty"`
}

// ImportSummary aggregates a batch import. Imported counts every stored
// record, overwritten ones included.
type ImportSummary struct {
	Success     bool              `json:"success"`
	Imported    int               `json:"imported"`
	Overwritten int               `json:"overwritten"`
	Skipped     int               `json:"skipped"`
	Invalid     int               `json:"invalid"`
	Rows        []ImportRowResult `json:"rows"`
	Persisted   bool              `json:"persisted"`
}

// Service owns the survey store and coordinates validation, persistence,
// metrics and event notification for every mutation.
type Service struct {
	schema    *domain.Schema
	store     *memory.Store
	validator *Validator
	state     domain.StateStore
	bus       *EventBus
	logger    Logger
	metrics   MetricsRecorder
	clock     Clock

	persistMu sync.Mutex
	dirty     atomic.Bool
}

// NewService builds a service and loads the saved snapshot from the state
// store, when one exists.
func NewService(ctx context.Context, schema *domain.Schema, opts ...ServiceOption) (*Service, error) {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if schema == nil {
		schema = domain.DefaultSchema()
	}
	if o.state == nil {
		o.state = memory.NewSnapshotStore()
	}
	if o.bus == nil {
		o.bus = NewEventBus(o.logger)
	}
	store := memory.NewStore()
	store.SetNowFunc(o.clock.Now)
	svc := &Service{
		schema:    schema,
		store:     store,
		validator: NewValidator(schema, o.engine, o.clock),
		state:     o.state,
		bus:       o.bus,
		logger:    o.logger,
		metrics:   o.metrics,
		clock:     o.clock,
	}
	if err := svc.Reload(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// Reload replaces the in-memory state with the snapshot held by the state store.
func (s *Service) Reload(ctx context.Context) error {
	snap, ok, err := s.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot from %s: %w", s.state.Driver(), err)
	}
	if ok {
		s.store.ImportState(snap)
		s.logger.Info("snapshot loaded", "driver", s.state.Driver(), "surveys", len(snap.Surveys))
	}
	s.updateGauge()
	return nil
}

// Schema returns the survey catalogue.
func (s *Service) Schema() *domain.Schema { return s.schema }

// Validator returns the validator bound to the live store.
func (s *Service) Validator() *Validator { return s.validator.withView(s.view()) }

// Events returns the service event bus.
func (s *Service) Events() *EventBus { return s.bus }

// StateDriver names the configured snapshot backend.
func (s *Service) StateDriver() string { return s.state.Driver() }

// Get returns a copy of the survey with the given id.
func (s *Service) Get(id string) (domain.SurveyRecord, error) {
	rec, ok := s.store.Get(id)
	if !ok {
		return domain.SurveyRecord{}, domain.NotFoundError{ID: id}
	}
	return rec, nil
}

// List returns every stored survey in insertion order.
func (s *Service) List() []domain.SurveyRecord { return s.store.List() }

// Count returns the number of stored surveys.
func (s *Service) Count() int { return s.store.Count() }

// Exists reports whether a survey id is stored.
func (s *Service) Exists(id string) bool {
	_, ok := s.store.Get(id)
	return ok
}

// Snapshot returns a deep copy of the persisted view of the store.
func (s *Service) Snapshot() domain.Snapshot { return s.store.ExportState() }

// Settings returns the current settings.
func (s *Service) Settings() domain.Settings { return s.store.Settings() }

// Add validates and appends a new survey.
func (s *Service) Add(ctx context.Context, rec domain.SurveyRecord) (out Outcome, err error) {
	defer s.observe(ctx, "add", time.Now(), &err)
	val, err := s.Validator().Validate(ctx, rec)
	if err != nil {
		return Outcome{}, err
	}
	out.Validation = val
	if !val.Valid {
		return out, val.Err()
	}
	changes, err := s.store.RunInTransaction(ctx, func(tx memory.Transaction) error {
		return tx.Append(val.Record)
	})
	if err != nil {
		return out, err
	}
	out.Record = val.Record
	out.Persisted = s.persist(ctx)
	s.logger.Info("survey added", "id", out.Record.ID)
	s.publishChanges(changes, domain.EventSurveyAdded)
	return out, nil
}

// Update merges patch into the stored survey and re-validates it. The read,
// merge and write happen in one transaction; on any failure the stored
// survey is left untouched.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (out Outcome, err error) {
	defer s.observe(ctx, "update", time.Now(), &err)
	var before domain.SurveyRecord
	changes, err := s.store.RunInTransaction(ctx, func(tx memory.Transaction) error {
		current, ok := tx.Find(id)
		if !ok {
			return domain.NotFoundError{ID: id}
		}
		val, err := s.validator.withView(txView{schema: s.schema, tx: tx}).Validate(ctx, patch.Apply(current))
		if err != nil {
			return err
		}
		out.Validation = val
		if !val.Valid {
			return val.Err()
		}
		before, err = tx.Replace(val.Record)
		return err
	})
	if err != nil {
		return out, err
	}
	out.Record = out.Validation.Record
	out.Previous = &before
	out.Persisted = s.persist(ctx)
	s.logger.Info("survey updated", "id", id)
	s.publishChanges(changes, domain.EventSurveyUpdated)
	return out, nil
}

// Delete removes a survey.
func (s *Service) Delete(ctx context.Context, id string) (out Outcome, err error) {
	defer s.observe(ctx, "delete", time.Now(), &err)
	var removed domain.SurveyRecord
	changes, err := s.store.RunInTransaction(ctx, func(tx memory.Transaction) error {
		var err error
		removed, err = tx.Remove(id)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Record = removed
	out.Previous = &removed
	out.Persisted = s.persist(ctx)
	s.logger.Info("survey deleted", "id", id)
	s.publishChanges(changes, domain.EventSurveyDeleted)
	return out, nil
}

// Clear removes every survey while keeping settings.
func (s *Service) Clear(ctx context.Context) (out Outcome, err error) {
	defer s.observe(ctx, "clear", time.Now(), &err)
	var removed []domain.SurveyRecord
	if _, err := s.store.RunInTransaction(ctx, func(tx memory.Transaction) error {
		removed = tx.Clear()
		return nil
	}); err != nil {
		return Outcome{}, err
	}
	out.Removed = removed
	out.Persisted = s.persist(ctx)
	s.logger.Info("surveys cleared", "removed", len(removed))
	s.publish(domain.Event{Type: domain.EventDataChanged, Action: domain.ActionClear, Surveys: cloneRecords(removed)})
	return out, nil
}

// ImportMany validates each record independently and stores the valid ones
// in a single transaction. Existing ids are overwritten only when
// opts.OverwriteExisting is set. Cancellation stops validating further
// records; records validated before it are still stored.
func (s *Service) ImportMany(ctx context.Context, records []domain.SurveyRecord, opts ImportOptions) (sum ImportSummary, err error) {
	defer s.observe(ctx, "import", time.Now(), &err)
	sum.Rows = make([]ImportRowResult, 0, len(records))
	validator := s.Validator()
	var pending []int
	var candidates []domain.SurveyRecord
	for i, rec := range records {
		if err = ctx.Err(); err != nil {
			break
		}
		row := ImportRowResult{Index: i, ID: rec.ID}
		val, verr := validator.Validate(ctx, rec)
		if verr != nil {
			err = verr
			break
		}
		row.ID = val.Record.ID
		if !val.Valid {
			row.Status = ImportInvalid
			row.Errors = val.Errors
			sum.Invalid++
			sum.Rows = append(sum.Rows, row)
			continue
		}
		pending = append(pending, len(sum.Rows))
		candidates = append(candidates, val.Record)
		sum.Rows = append(sum.Rows, row)
	}
	if len(candidates) == 0 {
		sum.Persisted = true
		return sum, err
	}

	statuses := make([]ImportStatus, len(candidates))
	_, txErr := s.store.RunInTransaction(context.WithoutCancel(ctx), func(tx memory.Transaction) error {
		for i, rec := range candidates {
			if _, exists := tx.Find(rec.ID); exists {
				if !opts.OverwriteExisting {
					statuses[i] = ImportSkipped
					continue
				}
				if _, err := tx.Replace(rec); err != nil {
					return err
				}
				statuses[i] = ImportOverwritten
				continue
			}
			if err := tx.Append(rec); err != nil {
				return err
			}
			statuses[i] = ImportImported
		}
		return nil
	})
	if txErr != nil {
		return sum, errors.Join(err, txErr)
	}
	var stored []domain.SurveyRecord
	for i, status := range statuses {
		sum.Rows[pending[i]].Status = status
		switch status {
		case ImportImported:
			sum.Imported++
			stored = append(stored, candidates[i])
		case ImportOverwritten:
			sum.Imported++
			sum.Overwritten++
			stored = append(stored, candidates[i])
		case ImportSkipped:
			sum.Skipped++
		}
	}
	sum.Success = sum.Imported > 0
	if len(stored) == 0 {
		sum.Persisted = true
		return sum, err
	}
	sum.Persisted = s.persist(context.WithoutCancel(ctx))
	s.logger.Info("surveys imported", "imported", sum.Imported, "overwritten", sum.Overwritten, "skipped", sum.Skipped, "invalid", sum.Invalid)
	stats := &domain.ImportStats{Imported: sum.Imported, Overwritten: sum.Overwritten, Skipped: sum.Skipped, Invalid: sum.Invalid}
	s.publish(domain.Event{Type: domain.EventDataImported, Action: domain.ActionImport, Surveys: cloneRecords(stored), Import: stats})
	s.publish(domain.Event{Type: domain.EventDataChanged, Action: domain.ActionImport, Surveys: cloneRecords(stored), Import: stats})
	return sum, err
}

// GetSetting reads one settings path.
func (s *Service) GetSetting(path string) (any, error) {
	return GetSetting(s.store.Settings(), path)
}

// SetSetting writes one settings path and persists the snapshot.
func (s *Service) SetSetting(ctx context.Context, path string, value any) (persisted bool, err error) {
	defer s.observe(ctx, "set_setting", time.Now(), &err)
	var previous, next any
	if _, err := s.store.RunInTransaction(ctx, func(tx memory.Transaction) error {
		return tx.UpdateSettings(func(st *domain.Settings) error {
			previous, _ = GetSetting(*st, path)
			if err := ApplySetting(st, path, value); err != nil {
				return err
			}
			next, _ = GetSetting(*st, path)
			return nil
		})
	}); err != nil {
		return false, err
	}
	persisted = s.persist(ctx)
	s.logger.Info("setting changed", "path", path, "value", next)
	s.publish(domain.Event{Type: domain.EventSettingsChanged, Setting: &domain.SettingChange{Path: path, Previous: previous, Value: next}})
	return persisted, nil
}

// Save writes the current snapshot and reports failures to the caller.
func (s *Service) Save(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.state.Save(ctx, s.store.ExportState()); err != nil {
		s.dirty.Store(true)
		return err
	}
	s.dirty.Store(false)
	return nil
}

// Dirty reports whether the last persistence attempt failed.
func (s *Service) Dirty() bool { return s.dirty.Load() }

// AutosaveOnce retries persistence when autosave is enabled and the last
// save failed. It reports whether a save was attempted.
func (s *Service) AutosaveOnce(ctx context.Context) (bool, error) {
	if !s.store.Settings().Storage.AutoSave || !s.dirty.Load() {
		return false, nil
	}
	start := time.Now()
	err := s.Save(ctx)
	s.metrics.Observe(ctx, "autosave", err == nil, time.Since(start))
	if err != nil {
		s.logger.Warn("autosave failed", "driver", s.state.Driver(), "error", err)
	}
	return true, err
}

// RunAutosave ticks at the configured storage.autoSaveInterval until ctx is
// cancelled. The interval is re-read after every tick.
func (s *Service) RunAutosave(ctx context.Context) error {
	for {
		interval := s.store.Settings().Storage.Interval()
		if interval <= 0 {
			interval = domain.DefaultSettings().Storage.Interval()
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			_, _ = s.AutosaveOnce(ctx)
		}
	}
}

// Close flushes the snapshot and releases the state store.
func (s *Service) Close(ctx context.Context) error {
	var saveErr error
	if s.dirty.Load() {
		saveErr = s.Save(ctx)
	}
	return errors.Join(saveErr, s.state.Close())
}

func (s *Service) persist(ctx context.Context) bool {
	start := time.Now()
	err := s.Save(ctx)
	s.metrics.Observe(ctx, "persist", err == nil, time.Since(start))
	s.updateGauge()
	if err != nil {
		s.logger.Error("persist snapshot failed", "driver", s.state.Driver(), "error", err)
		return false
	}
	return true
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, errp *error) {
	s.metrics.Observe(ctx, op, *errp == nil, time.Since(start))
}

func (s *Service) updateGauge() {
	if g, ok := s.metrics.(SurveyGauge); ok {
		g.SetSurveys(s.store.Count())
	}
}

func (s *Service) publishChanges(changes []domain.Change, specific domain.EventType) {
	for i := range changes {
		change := changes[i]
		s.publish(domain.Event{Type: domain.EventDataChanged, Action: change.Action, Change: &change})
		s.publish(domain.Event{Type: specific, Action: change.Action, Change: &change})
	}
}

func (s *Service) publish(ev domain.Event) {
	ev.OccurredAt = s.clock.Now()
	s.bus.Publish(ev)
}

func (s *Service) view() RuleView {
	return storeView{schema: s.schema, store: s.store}
}

type storeView struct {
	schema *domain.Schema
	store  *memory.Store
}

func (v storeView) Schema() *domain.Schema { return v.schema }

func (v storeView) FindSurvey(id string) (domain.SurveyRecord, bool) { return v.store.Get(id) }

// txView reads through an open transaction; the store lock is already held.
type txView struct {
	schema *domain.Schema
	tx     memory.Transaction
}

func (v txView) Schema() *domain.Schema { return v.schema }

func (v txView) FindSurvey(id string) (domain.SurveyRecord, bool) { return v.tx.Find(id) }

func cloneRecords(in []domain.SurveyRecord) []domain.SurveyRecord {
	out := make([]domain.SurveyRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
