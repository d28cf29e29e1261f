package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Options selects and configures a blob backend. Zero values fall back to
// the environment (see OptionsFromEnv) and then to the filesystem driver.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// OptionsFromEnv reads the blob selection from process environment.
//
//	SURVEYCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	SURVEYCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in s3.go)
func OptionsFromEnv() Options {
	return Options{
		Driver: Driver(strings.ToLower(strings.TrimSpace(os.Getenv("SURVEYCORE_BLOB_DRIVER")))),
		FSRoot: os.Getenv("SURVEYCORE_BLOB_FS_ROOT"),
	}
}

// Open constructs the blob.Store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(opts.FSRoot)
	case DriverS3:
		if opts.S3.Bucket == "" {
			return OpenFromEnv(ctx)
		}
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// OpenEnv is Open over OptionsFromEnv.
func OpenEnv(ctx context.Context) (Store, error) {
	return Open(ctx, OptionsFromEnv())
}
