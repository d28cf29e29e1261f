package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"surveycore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "reports/r1/export.csv", bytes.NewReader([]byte("id,q1\n")), core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"format": "csv"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "reports/r1/export.csv" || info.Size != 6 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "reports/r1/export.csv", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	h, err := store.Head(ctx, "reports/r1/export.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	g, rc, err := store.Get(ctx, "reports/r1/export.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "id,q1\n" || g.ETag != h.ETag || g.Metadata["format"] != "csv" {
		t.Fatalf("unexpected get artifacts %+v", g)
	}
	list, err := store.List(ctx, "reports/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if url, err := store.PresignURL(ctx, "reports/r1/export.csv", core.SignedURLOptions{Method: "get"}); err != nil || url != "http://local.blob/reports/r1/export.csv" {
		t.Fatalf("presign: %v %s", err, url)
	}
	if _, err := store.PresignURL(ctx, "reports/r1/export.csv", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported PUT presign")
	}
	if ok, err := store.Delete(ctx, "reports/r1/export.csv"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "reports/r1/export.csv"); err != nil || ok {
		t.Fatalf("second delete should be false")
	}
	if _, _, err := store.Get(ctx, "reports/r1/export.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Head(ctx, "reports/r1/export.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected head not found, got %v", err)
	}
}

func TestStoreOverwriteKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "state/snapshot.json", bytes.NewReader([]byte(`{}`)), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, metaPath, _ := store.pathFor("state/snapshot.json")
	first, err := readMeta(metaPath)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	info, err := store.Put(ctx, "state/snapshot.json", bytes.NewReader([]byte(`{"surveys":[]}`)), core.PutOptions{Overwrite: true})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	second, _ := readMeta(metaPath)
	if !second.CreatedAt.Equal(first.CreatedAt) || info.Size != int64(len(`{"surveys":[]}`)) {
		t.Fatalf("expected created_at preserved and size updated: %+v %+v", first, second)
	}
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestStorePutErrors(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "bad.bin", errorReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected copy error")
	}
	for _, key := range []string{"", "../escape", "/abs", "a/../b"} {
		if _, err := store.Put(ctx, key, bytes.NewReader(nil), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.Put(cancelled, "x", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestListMetaCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	data := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(data, []byte("data"), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	if err := os.WriteFile(data+".meta", []byte("{"), 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	if _, err := store.List(context.Background(), ""); err == nil {
		t.Fatalf("expected list error on corrupt meta")
	}
}

func TestWriteJSONMarshalError(t *testing.T) {
	old := jsonMarshal
	jsonMarshal = func(any) ([]byte, error) { return nil, errors.New("marsh") }
	defer func() { jsonMarshal = old }()
	if err := writeJSON(filepath.Join(t.TempDir(), "x.meta"), struct{}{}); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestNewRejectsFileRoot(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "afile")
	if err := os.WriteFile(filePath, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := New(filePath); err == nil {
		t.Fatalf("expected error when root is file")
	}
}
