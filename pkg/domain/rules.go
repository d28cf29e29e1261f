package domain

import (
	"context"
	"strings"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine whether a record may be stored.
const (
	// SeverityError marks the record invalid.
	SeverityError Severity = "error"
	// SeverityWarning is reported but never blocks.
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Field    string
	RecordID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains error-severity violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Messages returns the messages of violations with the given severity.
func (r Result) Messages(severity Severity) []string {
	var out []string
	for _, v := range r.Violations {
		if v.Severity == severity {
			out = append(out, v.Message)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	msgs := e.Result.Messages(SeverityError)
	if len(msgs) == 0 {
		return "record rejected by rules"
	}
	return "record rejected by rules: " + strings.Join(msgs, "; ")
}

// Is lets RuleViolationError match ErrInvalidRecord.
func (e RuleViolationError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations reported through events.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionClear  Action = "clear"
	ActionImport Action = "import"
)

// Change describes a mutation applied to a survey record.
type Change struct {
	Action Action
	Before *SurveyRecord
	After  *SurveyRecord
}

// RuleView provides read-only access to the store for rule evaluation.
type RuleView interface {
	Schema() *Schema
	FindSurvey(id string) (SurveyRecord, bool)
}

// Rule defines a check evaluated against a candidate record.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, record SurveyRecord) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Name()
	}
	return out
}

// Evaluate executes all registered rules and aggregates their results.
// Every rule runs; problems are collected rather than short-circuited.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, record SurveyRecord) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := rule.Evaluate(ctx, view, record)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
