package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarning}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityError, Message: "bad q1"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if err.Error() != "record rejected by rules: bad q1" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected rule violation to match ErrInvalidRecord")
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarning}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluateCollectsAll(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"first"})
	engine.Register(staticRule{"second"})
	res, err := engine.Evaluate(context.Background(), emptyView{}, SurveyRecord{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected both rules to report, got %+v", res.Violations)
	}
	if names := engine.Rules(); len(names) != 2 || names[0] != "first" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, SurveyRecord{}); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

func TestRulesEngineHonoursCancellation(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"never"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.Evaluate(ctx, emptyView{}, SurveyRecord{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		err    error
		target error
	}{
		{NotFoundError{ID: "x"}, ErrNotFound},
		{DuplicateIDError{ID: "x"}, ErrDuplicateID},
		{ValidationError{Errors: []string{"bad"}}, ErrInvalidRecord},
		{ParseError{Line: 2, Reason: "quote"}, ErrParseFailure},
		{fmt.Errorf("wrapped: %w", NotFoundError{ID: "y"}), ErrNotFound},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.target) {
			t.Fatalf("expected %v to match %v", tc.err, tc.target)
		}
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView, SurveyRecord) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarning}}}, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, RuleView, SurveyRecord) (Result, error) {
	return Result{}, fmt.Errorf("boom")
}

type emptyView struct{}

func (emptyView) Schema() *Schema                         { return DefaultSchema() }
func (emptyView) FindSurvey(string) (SurveyRecord, bool) { return SurveyRecord{}, false }
