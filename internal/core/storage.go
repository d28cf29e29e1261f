package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"surveycore/internal/blob"
	"surveycore/internal/infra/persistence/blobstate"
	"surveycore/internal/infra/persistence/memory"
	"surveycore/internal/infra/persistence/postgres"
	"surveycore/internal/infra/persistence/sqlite"
	"surveycore/pkg/domain"
)

// StorageDriver identifies a snapshot backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBlob     StorageDriver = "blob"     // JSON object in the blob store
)

// StorageOptions selects and configures the snapshot backend.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	Blob        blob.Options
	BlobKey     string
}

// StorageOptionsFromEnv reads the backend selection from the environment.
//
//	SURVEYCORE_STORAGE_DRIVER: memory|sqlite|postgres|blob (default sqlite)
//	SURVEYCORE_SQLITE_PATH: path to sqlite file (default ./surveycore.db)
//	SURVEYCORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	SURVEYCORE_BLOB_* : blob backend when driver=blob
func StorageOptionsFromEnv() StorageOptions {
	return StorageOptions{
		Driver:      StorageDriver(strings.ToLower(os.Getenv("SURVEYCORE_STORAGE_DRIVER"))),
		SQLitePath:  os.Getenv("SURVEYCORE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("SURVEYCORE_POSTGRES_DSN"),
		Blob:        blob.OptionsFromEnv(),
	}
}

// OpenStateStore constructs the snapshot backend described by opts.
// Defaults to sqlite when no driver is set.
func OpenStateStore(ctx context.Context, opts StorageOptions) (domain.StateStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewSnapshotStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(opts.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, opts.PostgresDSN)
	case StorageBlob:
		store, err := blob.Open(ctx, opts.Blob)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return blobstate.NewStore(store, opts.BlobKey)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
