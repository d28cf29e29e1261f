// Package persistence holds helpers shared by the snapshot drivers that store
// the survey snapshot as one JSON payload per bucket.
package persistence

import (
	"encoding/json"
	"fmt"

	"surveycore/pkg/domain"
)

// Bucket names used as primary keys of the state table.
const (
	BucketSurveys      = "surveys"
	BucketLastModified = "lastModified"
	BucketAppSettings  = "appSettings"
	BucketMetadata     = "metadata"
)

// Buckets lists every bucket in write order.
var Buckets = []string{BucketSurveys, BucketLastModified, BucketAppSettings, BucketMetadata}

// Payload is one encoded bucket.
type Payload struct {
	Bucket string
	Data   []byte
}

// EncodeBuckets splits a snapshot into per-bucket JSON payloads.
func EncodeBuckets(snapshot domain.Snapshot) ([]Payload, error) {
	out := make([]Payload, 0, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case BucketSurveys:
			surveys := snapshot.Surveys
			if surveys == nil {
				surveys = []domain.SurveyRecord{}
			}
			data, err = json.Marshal(surveys)
		case BucketLastModified:
			data, err = json.Marshal(snapshot.LastModified)
		case BucketAppSettings:
			data, err = json.Marshal(snapshot.AppSettings)
		case BucketMetadata:
			data, err = json.Marshal(snapshot.Metadata)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out = append(out, Payload{Bucket: bucket, Data: data})
	}
	return out, nil
}

// Decoder accumulates bucket payloads over a default snapshot, so buckets
// missing from older databases keep their defaults.
type Decoder struct {
	snapshot domain.Snapshot
	seen     int
}

// NewDecoder starts from domain.EmptySnapshot.
func NewDecoder() *Decoder {
	return &Decoder{snapshot: domain.EmptySnapshot()}
}

// Apply decodes one bucket. Unknown buckets are ignored.
func (d *Decoder) Apply(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketSurveys:
		target = &d.snapshot.Surveys
	case BucketLastModified:
		target = &d.snapshot.LastModified
	case BucketAppSettings:
		target = &d.snapshot.AppSettings
	case BucketMetadata:
		target = &d.snapshot.Metadata
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	d.seen++
	return nil
}

// Snapshot returns the decoded snapshot and whether any bucket was present.
func (d *Decoder) Snapshot() (domain.Snapshot, bool) {
	snap := d.snapshot
	if snap.Surveys == nil {
		snap.Surveys = []domain.SurveyRecord{}
	}
	if snap.Metadata.Version == "" {
		snap.Metadata.Version = domain.SnapshotVersion
	}
	snap.Metadata.TotalEntries = len(snap.Surveys)
	return snap, d.seen > 0
}
