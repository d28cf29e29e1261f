package core

import (
	"context"
	"fmt"

	"surveycore/pkg/domain"
)

// NewTimestampFormatRule rejects timestamps that are not ISO-8601.
func NewTimestampFormatRule() domain.Rule {
	return timestampFormatRule{}
}

type timestampFormatRule struct{}

func (timestampFormatRule) Name() string { return "timestamp_format" }

func (r timestampFormatRule) Evaluate(_ context.Context, _ domain.RuleView, record domain.SurveyRecord) (domain.Result, error) {
	if record.Timestamp == "" {
		return domain.Result{}, nil
	}
	if _, ok := domain.ParseTimestamp(record.Timestamp); ok {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     r.Name(),
		Severity: domain.SeverityError,
		Message:  fmt.Sprintf("timestamp: %q is not an ISO-8601 date", record.Timestamp),
		Field:    domain.FieldTimestamp,
		RecordID: record.ID,
	}}}, nil
}
