package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"surveycore/pkg/domain"
)

// Correction records a value filled in by Normalize.
type Correction struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating one record. Record holds the
// normalized candidate whether or not it is valid.
type ValidationResult struct {
	Valid       bool                `json:"valid"`
	Errors      []string            `json:"errors,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
	Violations  []domain.Violation  `json:"-"`
	Corrections []Correction        `json:"corrections,omitempty"`
	Record      domain.SurveyRecord `json:"record"`
}

// Err returns a ValidationError when the record is invalid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return domain.ValidationError{Errors: append([]string(nil), r.Errors...)}
}

// Validator normalizes candidate records and evaluates the rules engine.
type Validator struct {
	schema *domain.Schema
	engine *RulesEngine
	clock  Clock
	view   RuleView
}

// NewValidator builds a validator. A nil engine selects the default rules and
// a nil clock uses the wall clock.
func NewValidator(schema *domain.Schema, engine *RulesEngine, clock Clock) *Validator {
	if schema == nil {
		schema = domain.DefaultSchema()
	}
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	if clock == nil {
		clock = defaultServiceOptions().clock
	}
	return &Validator{schema: schema, engine: engine, clock: clock, view: schemaView{schema: schema}}
}

// withView returns a copy evaluating rules against view.
func (v *Validator) withView(view RuleView) *Validator {
	cp := *v
	cp.view = view
	return &cp
}

// Schema returns the catalogue the validator checks against.
func (v *Validator) Schema() *domain.Schema { return v.schema }

// Normalize returns a copy of rec with a generated id and timestamp where
// missing, plus the list of corrections applied. rec itself is not modified.
func (v *Validator) Normalize(rec domain.SurveyRecord) (domain.SurveyRecord, []Correction) {
	out := rec.Clone()
	var corrections []Correction
	now := v.clock.Now()
	if out.ID == "" {
		out.ID = domain.NewSurveyID(now)
		corrections = append(corrections, Correction{Field: domain.FieldID, Value: out.ID, Message: "generated missing id"})
	}
	if out.Timestamp == "" {
		out.Timestamp = domain.FormatTimestamp(now)
		corrections = append(corrections, Correction{Field: domain.FieldTimestamp, Value: out.Timestamp, Message: "generated missing timestamp"})
	}
	return out, corrections
}

// Validate normalizes rec and evaluates every rule. Per-record problems are
// reported in the result; the error is reserved for cancellation and rule failures.
func (v *Validator) Validate(ctx context.Context, rec domain.SurveyRecord) (ValidationResult, error) {
	normalized, corrections := v.Normalize(rec)
	res, err := v.engine.Evaluate(ctx, v.view, normalized)
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidationResult{
		Valid:       !res.HasBlocking(),
		Errors:      res.Messages(domain.SeverityError),
		Warnings:    res.Messages(domain.SeverityWarning),
		Violations:  res.Violations,
		Corrections: corrections,
		Record:      normalized,
	}, nil
}

// ValidateRaw decodes a flat JSON survey object and validates it.
func (v *Validator) ValidateRaw(ctx context.Context, data []byte) (ValidationResult, error) {
	var rec domain.SurveyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		if errors.Is(err, domain.ErrMalformedInput) {
			return ValidationResult{}, err
		}
		return ValidationResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	return v.Validate(ctx, rec)
}
