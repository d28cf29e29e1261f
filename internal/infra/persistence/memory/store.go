// Package memory provides the in-memory survey store used as the single
// source of truth at runtime, plus an in-memory snapshot backend for tests
// and ephemeral environments.
package memory

import (
	"context"
	"sync"
	"time"

	"surveycore/pkg/domain"
)

type (
	// SurveyRecord aliases domain.SurveyRecord.
	SurveyRecord = domain.SurveyRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Snapshot aliases domain.Snapshot, the persisted shape of the store.
	Snapshot = domain.Snapshot
	Settings = domain.Settings
)

type memoryState struct {
	surveys      []SurveyRecord
	index        map[string]int
	settings     Settings
	metadata     domain.Metadata
	lastModified time.Time
}

func newMemoryState() memoryState {
	return memoryState{
		surveys:  []SurveyRecord{},
		index:    map[string]int{},
		settings: domain.DefaultSettings(),
		metadata: domain.DefaultMetadata(),
	}
}

// clone copies the slice and index but shares the records. Stored records
// are only ever swapped whole, never written in place.
func (s memoryState) clone() memoryState {
	cp := memoryState{
		surveys:      make([]SurveyRecord, len(s.surveys)),
		index:        make(map[string]int, len(s.index)),
		settings:     s.settings,
		metadata:     s.metadata,
		lastModified: s.lastModified,
	}
	copy(cp.surveys, s.surveys)
	for id, i := range s.index {
		cp.index[id] = i
	}
	return cp
}

func (s *memoryState) reindex() {
	s.index = make(map[string]int, len(s.surveys))
	for i, r := range s.surveys {
		s.index[r.ID] = i
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	snap := Snapshot{
		Surveys:      make([]SurveyRecord, len(state.surveys)),
		LastModified: state.lastModified,
		AppSettings:  state.settings,
		Metadata:     state.metadata,
	}
	for i, r := range state.surveys {
		snap.Surveys[i] = r.Clone()
	}
	snap.Metadata.TotalEntries = len(snap.Surveys)
	return snap
}

func memoryStateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	state.settings = snap.AppSettings
	state.metadata = snap.Metadata
	state.lastModified = snap.LastModified
	for _, r := range snap.Surveys {
		if _, dup := state.index[r.ID]; dup {
			continue
		}
		state.index[r.ID] = len(state.surveys)
		state.surveys = append(state.surveys, r.Clone())
	}
	state.metadata.TotalEntries = len(state.surveys)
	return state
}

// migrateSnapshot backfills fields absent from older snapshots.
func migrateSnapshot(snap Snapshot) Snapshot {
	if snap.Surveys == nil {
		snap.Surveys = []SurveyRecord{}
	}
	if snap.Metadata.Version == "" {
		snap.Metadata.Version = domain.SnapshotVersion
	}
	def := domain.DefaultSettings()
	if snap.AppSettings.Export.Delimiter == "" {
		snap.AppSettings.Export.Delimiter = def.Export.Delimiter
	}
	if snap.AppSettings.Analysis.RankingSize <= 0 {
		snap.AppSettings.Analysis.RankingSize = def.Analysis.RankingSize
	}
	if snap.AppSettings.Storage.AutoSaveInterval <= 0 {
		snap.AppSettings.Storage.AutoSaveInterval = def.Storage.AutoSaveInterval
	}
	return snap
}

// Store provides an ordered, in-memory transactional survey collection.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// NewStore constructs an empty store.
func NewStore() *Store {
	s := &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	s.state.metadata.CreatedAt = s.nowFn()
	return s
}

// SetNowFunc overrides the clock used to stamp lastModified.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
	if s.state.metadata.CreatedAt.IsZero() {
		s.state.metadata.CreatedAt = s.nowFn()
	}
}

// Get returns a copy of the survey with the given id.
func (s *Store) Get(id string) (SurveyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.state.index[id]
	if !ok {
		return SurveyRecord{}, false
	}
	return s.state.surveys[i].Clone(), true
}

// List returns every survey in insertion order.
func (s *Store) List() []SurveyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SurveyRecord, len(s.state.surveys))
	for i, r := range s.state.surveys {
		out[i] = r.Clone()
	}
	return out
}

// Count returns the number of stored surveys.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.surveys)
}

// Settings returns the current application settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.settings
}

// Metadata returns the collection metadata.
func (s *Store) Metadata() domain.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.metadata
}

// LastModified reports when the store last committed a change.
func (s *Store) LastModified() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.lastModified
}

// Transaction is the mutable unit of work handed to RunInTransaction.
type Transaction interface {
	Find(id string) (SurveyRecord, bool)
	List() []SurveyRecord
	Append(record SurveyRecord) error
	Replace(record SurveyRecord) (SurveyRecord, error)
	Remove(id string) (SurveyRecord, error)
	Clear() []SurveyRecord
	Settings() Settings
	UpdateSettings(fn func(*Settings) error) error
}

type transaction struct {
	state           memoryState
	changes         []Change
	settingsChanged bool
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) ([]Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return nil, err
	}
	if len(tx.changes) > 0 || tx.settingsChanged {
		tx.state.lastModified = s.nowFn()
	}
	tx.state.metadata.TotalEntries = len(tx.state.surveys)
	s.state = tx.state
	return tx.changes, nil
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) Find(id string) (SurveyRecord, bool) {
	i, ok := tx.state.index[id]
	if !ok {
		return SurveyRecord{}, false
	}
	return tx.state.surveys[i].Clone(), true
}

func (tx *transaction) List() []SurveyRecord {
	out := make([]SurveyRecord, len(tx.state.surveys))
	for i, r := range tx.state.surveys {
		out[i] = r.Clone()
	}
	return out
}

func (tx *transaction) Append(record SurveyRecord) error {
	if record.ID == "" {
		return domain.ErrMalformedInput
	}
	if _, exists := tx.state.index[record.ID]; exists {
		return domain.DuplicateIDError{ID: record.ID}
	}
	stored := record.Clone()
	tx.state.index[stored.ID] = len(tx.state.surveys)
	tx.state.surveys = append(tx.state.surveys, stored)
	after := stored.Clone()
	tx.recordChange(Change{Action: domain.ActionCreate, After: &after})
	return nil
}

func (tx *transaction) Replace(record SurveyRecord) (SurveyRecord, error) {
	i, ok := tx.state.index[record.ID]
	if !ok {
		return SurveyRecord{}, domain.NotFoundError{ID: record.ID}
	}
	before := tx.state.surveys[i].Clone()
	tx.state.surveys[i] = record.Clone()
	after := record.Clone()
	prev := before.Clone()
	tx.recordChange(Change{Action: domain.ActionUpdate, Before: &prev, After: &after})
	return before, nil
}

func (tx *transaction) Remove(id string) (SurveyRecord, error) {
	i, ok := tx.state.index[id]
	if !ok {
		return SurveyRecord{}, domain.NotFoundError{ID: id}
	}
	removed := tx.state.surveys[i].Clone()
	tx.state.surveys = append(tx.state.surveys[:i], tx.state.surveys[i+1:]...)
	tx.state.reindex()
	prev := removed.Clone()
	tx.recordChange(Change{Action: domain.ActionDelete, Before: &prev})
	return removed, nil
}

func (tx *transaction) Clear() []SurveyRecord {
	removed := make([]SurveyRecord, len(tx.state.surveys))
	for i, r := range tx.state.surveys {
		removed[i] = r.Clone()
		prev := r.Clone()
		tx.recordChange(Change{Action: domain.ActionDelete, Before: &prev})
	}
	tx.state.surveys = []SurveyRecord{}
	tx.state.index = map[string]int{}
	return removed
}

func (tx *transaction) Settings() Settings {
	return tx.state.settings
}

func (tx *transaction) UpdateSettings(fn func(*Settings) error) error {
	next := tx.state.settings
	if err := fn(&next); err != nil {
		return err
	}
	tx.state.settings = next
	tx.settingsChanged = true
	return nil
}
