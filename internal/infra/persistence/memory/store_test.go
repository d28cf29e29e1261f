package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"surveycore/pkg/domain"
)

func record(id string, q1 int) SurveyRecord {
	r := SurveyRecord{ID: id, Timestamp: "2024-01-01T00:00:00.000Z"}
	r.SetScore("q1", q1)
	return r
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	ctx := context.Background()

	changes, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.Find("missing"); ok {
			t.Fatalf("expected missing lookup")
		}
		if err := tx.Append(record("a", 3)); err != nil {
			return err
		}
		if err := tx.Append(record("b", 4)); err != nil {
			return err
		}
		if len(tx.List()) != 2 {
			t.Fatalf("transaction view mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(changes) != 2 || changes[0].Action != domain.ActionCreate {
		t.Fatalf("unexpected changes %+v", changes)
	}
	if store.Count() != 2 || store.Metadata().TotalEntries != 2 {
		t.Fatalf("expected two stored surveys, metadata %+v", store.Metadata())
	}
	if !store.LastModified().Equal(fixed) {
		t.Fatalf("expected lastModified stamped, got %v", store.LastModified())
	}
	list := store.List()
	if list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("expected insertion order, got %v, %v", list[0].ID, list[1].ID)
	}

	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if store.Count() != 0 {
		t.Fatalf("expected cleared state")
	}
	if store.Settings().Export.Delimiter != "," {
		t.Fatalf("expected migrated defaults on empty import")
	}
	store.ImportState(snapshot)
	if got, ok := store.Get("b"); !ok || got.ID != "b" {
		t.Fatalf("expected restored state")
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error { return tx.Append(record("a", 1)) }); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.Remove("a"); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if store.Count() != 1 {
		t.Fatalf("expected rollback to keep record")
	}
}

func TestTransactionErrors(t *testing.T) {
	store := NewStore()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if err := tx.Append(record("a", 1)); err != nil {
			return err
		}
		if err := tx.Append(record("a", 2)); !errors.Is(err, domain.ErrDuplicateID) {
			t.Fatalf("expected duplicate id, got %v", err)
		}
		if _, err := tx.Replace(record("zz", 1)); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found on replace, got %v", err)
		}
		if _, err := tx.Remove("zz"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found on remove, got %v", err)
		}
		if err := tx.Append(SurveyRecord{}); !errors.Is(err, domain.ErrMalformedInput) {
			t.Fatalf("expected malformed input for empty id, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestRemoveReindexes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_, _ = store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, id := range []string{"a", "b", "c"} {
			if err := tx.Append(record(id, 2)); err != nil {
				return err
			}
		}
		return nil
	})
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		removed, err := tx.Remove("a")
		if err != nil {
			return err
		}
		if removed.ID != "a" {
			t.Fatalf("unexpected removed %s", removed.ID)
		}
		before, err := tx.Replace(record("c", 5))
		if err != nil {
			return err
		}
		if v, _ := before.Score("q1"); v != 2 {
			t.Fatalf("expected previous value returned")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	got, _ := store.Get("c")
	if v, _ := got.Score("q1"); v != 5 {
		t.Fatalf("expected replaced value, got %d", v)
	}
}

func TestClearKeepsSettings(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_, _ = store.RunInTransaction(ctx, func(tx Transaction) error {
		_ = tx.Append(record("a", 1))
		return tx.UpdateSettings(func(s *Settings) error {
			s.Report.Title = "Q3"
			return nil
		})
	})
	var cleared []SurveyRecord
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		cleared = tx.Clear()
		return nil
	})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(cleared) != 1 || store.Count() != 0 {
		t.Fatalf("expected one cleared record and empty store")
	}
	if store.Settings().Report.Title != "Q3" {
		t.Fatalf("expected settings preserved")
	}
}

func TestRunInTransactionCancelled(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.RunInTransaction(ctx, func(Transaction) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewSnapshotStore()
	if _, ok, err := backend.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty load, ok=%v err=%v", ok, err)
	}
	snap := domain.EmptySnapshot()
	snap.Surveys = append(snap.Surveys, record("a", 4))
	if err := backend.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, ok, err := backend.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(loaded.Surveys) != 1 || loaded.Metadata.TotalEntries != 1 {
		t.Fatalf("unexpected snapshot %+v", loaded)
	}
	backend.FailWith(errors.New("disk full"))
	if err := backend.Save(ctx, snap); !errors.Is(err, domain.ErrPersistenceFailure) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if backend.Saves() != 1 {
		t.Fatalf("expected one successful save, got %d", backend.Saves())
	}
}

func TestTransactionCopyDoesNotLeakIntoLiveState(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.Append(record("a", 1))
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	boom := errors.New("boom")
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		before, err := tx.Replace(record("a", 5))
		if err != nil {
			return err
		}
		before.SetScore("q1", 2)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	got, _ := store.Get("a")
	if v, _ := got.Score("q1"); v != 1 {
		t.Fatalf("rolled back replace leaked: q1=%d", v)
	}

	var removed SurveyRecord
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		removed, err = tx.Remove("a")
		return err
	}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	removed.SetScore("q1", 4)
	if store.Count() != 0 {
		t.Fatalf("expected empty store")
	}
}
