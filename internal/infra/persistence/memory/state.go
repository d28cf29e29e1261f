package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"surveycore/pkg/domain"
)

var _ domain.StateStore = (*SnapshotStore)(nil)

// SnapshotStore keeps the serialized snapshot in process memory. Payloads are
// encoded on Save so callers observe the same round trip as durable drivers.
type SnapshotStore struct {
	mu      sync.Mutex
	payload []byte
	saves   int
	failErr error
}

// NewSnapshotStore constructs an empty snapshot backend.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Load decodes the last saved payload.
func (s *SnapshotStore) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload == nil {
		return domain.EmptySnapshot(), false, nil
	}
	snap, err := domain.DecodeSnapshot(s.payload)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, true, nil
}

// Save encodes and keeps the snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, s.failErr)
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", domain.ErrPersistenceFailure, err)
	}
	s.payload = data
	s.saves++
	return nil
}

// FailWith makes subsequent saves fail with err; nil restores normal behaviour.
func (s *SnapshotStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Saves reports how many snapshots were written.
func (s *SnapshotStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Payload returns a copy of the last written JSON payload.
func (s *SnapshotStore) Payload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.payload...)
}

// Driver identifies the backend.
func (s *SnapshotStore) Driver() string { return "memory" }

// Close is a no-op.
func (s *SnapshotStore) Close() error { return nil }
