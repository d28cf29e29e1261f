package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is written into Metadata.Version for new stores.
const SnapshotVersion = "1.0"

// Metadata describes the stored collection.
type Metadata struct {
	TotalEntries int       `json:"totalEntries"`
	Version      string    `json:"version"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
}

// DefaultMetadata returns metadata for an empty store.
func DefaultMetadata() Metadata {
	return Metadata{Version: SnapshotVersion}
}

// Snapshot is the persisted shape of the survey store.
type Snapshot struct {
	Surveys      []SurveyRecord `json:"surveys"`
	LastModified time.Time      `json:"lastModified,omitzero"`
	AppSettings  Settings       `json:"appSettings"`
	Metadata     Metadata       `json:"metadata"`
}

// EmptySnapshot returns a snapshot holding defaults only.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Surveys:     []SurveyRecord{},
		AppSettings: DefaultSettings(),
		Metadata:    DefaultMetadata(),
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.Surveys = make([]SurveyRecord, len(s.Surveys))
	for i, r := range s.Surveys {
		cp.Surveys[i] = r.Clone()
	}
	return cp
}

// DecodeSnapshot decodes a persisted snapshot over the current defaults, so
// keys missing from older payloads keep their default values.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	snap := EmptySnapshot()
	if len(data) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode snapshot: %v", ErrPersistenceFailure, err)
	}
	if snap.Surveys == nil {
		snap.Surveys = []SurveyRecord{}
	}
	if snap.Metadata.Version == "" {
		snap.Metadata.Version = SnapshotVersion
	}
	snap.Metadata.TotalEntries = len(snap.Surveys)
	return snap, nil
}

// StateStore is the durable key-value collaborator holding the snapshot.
type StateStore interface {
	// Load returns the saved snapshot; ok is false when nothing was saved yet.
	Load(ctx context.Context) (snapshot Snapshot, ok bool, err error)
	Save(ctx context.Context, snapshot Snapshot) error
	Driver() string
	Close() error
}
