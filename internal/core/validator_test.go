package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"surveycore/pkg/domain"
)

func TestNormalizeFillsMissingFieldsWithoutMutatingInput(t *testing.T) {
	v := NewValidator(nil, nil, fixedClock())
	in := domain.SurveyRecord{Profession: "sales"}
	out, corrections := v.Normalize(in)
	if in.ID != "" || in.Timestamp != "" {
		t.Fatalf("input mutated: %+v", in)
	}
	if !strings.HasPrefix(out.ID, "survey_1714979289000_") {
		t.Fatalf("unexpected generated id %q", out.ID)
	}
	if out.Timestamp != "2024-05-06T07:08:09.000Z" {
		t.Fatalf("unexpected timestamp %q", out.Timestamp)
	}
	if len(corrections) != 2 || corrections[0].Field != domain.FieldID || corrections[1].Field != domain.FieldTimestamp {
		t.Fatalf("unexpected corrections %+v", corrections)
	}

	kept, none := v.Normalize(domain.SurveyRecord{ID: "x", Timestamp: "2024-01-01"})
	if kept.ID != "x" || kept.Timestamp != "2024-01-01" || len(none) != 0 {
		t.Fatalf("expected existing values kept, got %+v %+v", kept, none)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	v := NewValidator(nil, nil, fixedClock())
	rec := domain.SurveyRecord{ID: "r1", Timestamp: "yesterday", Profession: "astronaut", Tenure: "gt5"}
	rec.SetScore("q1", 6)
	rec.SetText("q2", "2.5")
	rec.SetScore("q21", 3)
	rec.SetScore("q99", 2)
	rec.Answers = append(rec.Answers, domain.ScoreAnswer("q3", 4), domain.ScoreAnswer("q3", 5))

	res, err := v.Validate(context.Background(), rec)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Valid {
		t.Fatalf("expected invalid record")
	}
	wantFields := map[string]bool{"profession": false, "q1": false, "q2": false, "q21": false, "q99": false, "q3": false, "timestamp": false}
	for _, viol := range res.Violations {
		if _, ok := wantFields[viol.Field]; ok {
			wantFields[viol.Field] = true
		}
		if viol.RecordID != "r1" {
			t.Fatalf("violation missing record id: %+v", viol)
		}
	}
	for field, seen := range wantFields {
		if !seen {
			t.Fatalf("expected violation for %s, got %+v", field, res.Violations)
		}
	}
	if len(res.Errors) != len(res.Violations) {
		t.Fatalf("every violation is error severity: %v", res.Errors)
	}
	if !errors.Is(res.Err(), domain.ErrInvalidRecord) {
		t.Fatalf("expected ValidationError, got %v", res.Err())
	}
	if res.Record.ID != "r1" {
		t.Fatalf("patched record returned regardless of validity")
	}
}

func TestValidateAcceptsCompleteRecord(t *testing.T) {
	v := NewValidator(nil, nil, fixedClock())
	rec := record("ok", map[string]int{"q1": 1, "q5": 5, "q20": 3})
	rec.SetText("q21", "fine")
	rec.Experience = "gt10"
	res, err := v.Validate(context.Background(), rec)
	if err != nil || !res.Valid || res.Err() != nil {
		t.Fatalf("expected valid, got %+v %v", res, err)
	}
}

func TestValidateRaw(t *testing.T) {
	v := NewValidator(nil, nil, fixedClock())
	for _, payload := range []string{`[1,2]`, `"text"`, `{"q1":`, `{"q1":{"nested":1}}`} {
		if _, err := v.ValidateRaw(context.Background(), []byte(payload)); !errors.Is(err, domain.ErrMalformedInput) {
			t.Fatalf("payload %s: expected ErrMalformedInput, got %v", payload, err)
		}
	}
	res, err := v.ValidateRaw(context.Background(), []byte(`{"q1":4,"q2":2.5,"profession":"sales"}`))
	if err != nil {
		t.Fatalf("validate raw: %v", err)
	}
	if res.Valid || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "q2") {
		t.Fatalf("expected only q2 to fail, got %+v", res.Errors)
	}
	if len(res.Corrections) != 2 {
		t.Fatalf("expected id and timestamp corrections, got %+v", res.Corrections)
	}
}

func TestValidateHonoursCancellation(t *testing.T) {
	v := NewValidator(nil, nil, fixedClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := v.Validate(ctx, domain.SurveyRecord{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestDefaultRulesEngineOrder(t *testing.T) {
	got := strings.Join(NewDefaultRulesEngine().Rules(), ",")
	if got != "demographic_codes,likert_domain,unique_answers,timestamp_format" {
		t.Fatalf("unexpected rules %s", got)
	}
}
