// Package blobstate persists the survey snapshot as a single JSON object in a
// blob store, so the fs, memory and s3 blob drivers double as snapshot backends.
package blobstate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"surveycore/internal/blob"
	"surveycore/pkg/domain"
)

// DefaultKey is the object key the snapshot is written to.
const DefaultKey = "state/snapshot.json"

var _ domain.StateStore = (*Store)(nil)

// Store adapts a blob.Store to domain.StateStore.
type Store struct {
	mu    sync.Mutex
	blobs blob.Store
	key   string
}

// NewStore wraps blobs; an empty key selects DefaultKey.
func NewStore(blobs blob.Store, key string) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("blobstate: blob store required")
	}
	if key == "" {
		key = DefaultKey
	}
	return &Store{blobs: blobs, key: key}, nil
}

// Load reads and decodes the snapshot object. A missing object is not an error.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	_, rc, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		return domain.EmptySnapshot(), false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("%w: get %s: %v", domain.ErrPersistenceFailure, s.key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("%w: read %s: %v", domain.ErrPersistenceFailure, s.key, err)
	}
	snap, err := domain.DecodeSnapshot(data)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, true, nil
}

// Save replaces the snapshot object.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot.Surveys == nil {
		snapshot.Surveys = []domain.SurveyRecord{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", domain.ErrPersistenceFailure, err)
	}
	opts := blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"version": snapshot.Metadata.Version},
		Overwrite:   true,
	}
	if _, err := s.blobs.Put(ctx, s.key, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("%w: put %s: %v", domain.ErrPersistenceFailure, s.key, err)
	}
	return nil
}

// Driver identifies the backend, including the underlying blob driver.
func (s *Store) Driver() string { return "blob:" + string(s.blobs.Driver()) }

// Key returns the object key in use.
func (s *Store) Key() string { return s.key }

// Close is a no-op; the blob store is owned by the caller.
func (s *Store) Close() error { return nil }
