package blob

import (
	"context"

	infraS3 "surveycore/internal/infra/blob/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed blob.Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// OpenFromEnv constructs an S3 store from SURVEYCORE_BLOB_S3_* variables.
func OpenFromEnv(ctx context.Context) (Store, error) {
	return infraS3.OpenFromEnv(ctx)
}

// NewFakeS3 returns an S3 store served by an in-process bucket, for tests
// that need the S3 code path without a network.
func NewFakeS3(bucket string) Store { return infraS3.NewFake(bucket) }
