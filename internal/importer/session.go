// Package importer maps delimited text onto survey records through a
// staged session: source, mapping, validation, commit.
package importer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"surveycore/internal/core"
	"surveycore/internal/delimited"
	"surveycore/pkg/domain"
)

// Stage is the step a session is on.
type Stage int

const (
	StageSource Stage = iota
	StageMapping
	StageValidation
	StageCommitted
	StageCancelled
)

func (s Stage) String() string {
	switch s {
	case StageSource:
		return "source"
	case StageMapping:
		return "mapping"
	case StageValidation:
		return "validation"
	case StageCommitted:
		return "committed"
	case StageCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Target receives committed rows. *core.Service implements it.
type Target interface {
	Schema() *domain.Schema
	Validator() *core.Validator
	Exists(id string) bool
	ImportMany(ctx context.Context, records []domain.SurveyRecord, opts core.ImportOptions) (core.ImportSummary, error)
}

// SourceOptions configure LoadSource. A zero Delimiter is detected.
type SourceOptions struct {
	Delimiter rune
	HasHeader bool
}

// Issue is one problem found on a row.
type Issue struct {
	Severity domain.Severity `json:"severity"`
	Field    string          `json:"field,omitempty"`
	Message  string          `json:"message"`
}

// RowStatus is the validation verdict of a row.
type RowStatus string

const (
	RowValid   RowStatus = "valid"
	RowInvalid RowStatus = "invalid"
)

// RowOutcome is the candidate record built from one source row.
type RowOutcome struct {
	RowIndex int                 `json:"rowIndex"`
	Record   domain.SurveyRecord `json:"record"`
	Issues   []Issue             `json:"issues,omitempty"`
	Status   RowStatus           `json:"status"`
}

// Count returns the number of issues with the given severity.
func (r RowOutcome) Count(sev domain.Severity) int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == sev {
			n++
		}
	}
	return n
}

// CommitOptions configure Commit.
type CommitOptions struct {
	OverwriteExisting bool
}

// CommittedRow links a source row to its import status.
type CommittedRow struct {
	RowIndex int               `json:"rowIndex"`
	ID       string            `json:"id"`
	Status   core.ImportStatus `json:"status"`
	Errors   []string          `json:"errors,omitempty"`
}

// CommitResult reports a commit. Rows rejected during validation are never
// submitted and are counted in Rejected.
type CommitResult struct {
	Summary  core.ImportSummary `json:"summary"`
	Rejected int                `json:"rejected"`
	Rows     []CommittedRow     `json:"rows"`
}

// Session walks one source through the import stages. It is not safe for
// concurrent use. Nothing reaches the target before Commit.
type Session struct {
	target  Target
	schema  *domain.Schema
	logger  core.Logger
	stage   Stage
	table   delimited.Table
	mapping []string
	rows    []RowOutcome
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l core.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession starts a session at the source stage.
func NewSession(target Target, opts ...Option) *Session {
	s := &Session{target: target, schema: target.Schema(), logger: nopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stage returns the current stage.
func (s *Session) Stage() Stage { return s.stage }

// Table returns the parsed source.
func (s *Session) Table() delimited.Table { return s.table }

// Mapping returns the target of each column ("" for unmapped).
func (s *Session) Mapping() []string { return append([]string(nil), s.mapping...) }

// Rows returns the outcomes of the last validation.
func (s *Session) Rows() []RowOutcome { return append([]RowOutcome(nil), s.rows...) }

func (s *Session) require(stage Stage, op string) error {
	if s.stage != stage {
		return fmt.Errorf("%w: %s requires stage %s, session is at %s", domain.ErrStageOrder, op, stage, s.stage)
	}
	return nil
}

// LoadSource parses text and advances to the mapping stage. Parse failures
// keep the session at the source stage. The mapping starts empty.
func (s *Session) LoadSource(text string, opts SourceOptions) (delimited.Table, error) {
	if err := s.require(StageSource, "load source"); err != nil {
		return delimited.Table{}, err
	}
	tbl, err := delimited.Parse(text, delimited.ParseOptions{Delimiter: opts.Delimiter, HasHeader: opts.HasHeader})
	if err != nil {
		return delimited.Table{}, err
	}
	s.table = tbl
	s.mapping = make([]string, len(tbl.Header))
	s.stage = StageMapping
	s.logger.Debug("import source loaded", "columns", len(tbl.Header), "rows", len(tbl.Rows), "warnings", len(tbl.Warnings))
	return tbl, nil
}

// AutoMap replaces the mapping with suggestions derived from the headers.
func (s *Session) AutoMap() ([]string, error) {
	if err := s.require(StageMapping, "auto map"); err != nil {
		return nil, err
	}
	s.mapping = AutoMap(s.table.Header, s.schema)
	return s.Mapping(), nil
}

// SetMapping binds a column to a target field. A target bound to another
// column moves to this one.
func (s *Session) SetMapping(column int, target string) error {
	if err := s.require(StageMapping, "set mapping"); err != nil {
		return err
	}
	if column < 0 || column >= len(s.mapping) {
		return fmt.Errorf("%w: column %d out of range", domain.ErrMalformedInput, column)
	}
	if target == "" {
		s.mapping[column] = ""
		return nil
	}
	if !s.schema.IsField(target) {
		return fmt.Errorf("%w: unknown target field %q", domain.ErrMalformedInput, target)
	}
	for i, t := range s.mapping {
		if t == target {
			s.mapping[i] = ""
		}
	}
	s.mapping[column] = target
	return nil
}

// ClearMapping leaves a column unmapped.
func (s *Session) ClearMapping(column int) error {
	return s.SetMapping(column, "")
}

// CheckMapping reports whether the mapping can advance: at least one column
// must carry the id or the timestamp.
func (s *Session) CheckMapping() error {
	for _, t := range s.mapping {
		if t == domain.FieldID || t == domain.FieldTimestamp {
			return nil
		}
	}
	return fmt.Errorf("%w: map a column to %q or %q so rows can be identified", domain.ErrMappingIncomplete, domain.FieldID, domain.FieldTimestamp)
}

// ValidateRows builds and checks a candidate record per row and advances
// to the validation stage.
func (s *Session) ValidateRows(ctx context.Context) ([]RowOutcome, error) {
	if err := s.require(StageMapping, "validate rows"); err != nil {
		return nil, err
	}
	if err := s.CheckMapping(); err != nil {
		return nil, err
	}
	validator := s.target.Validator()
	seen := make(map[string]int, len(s.table.Rows))
	rows := make([]RowOutcome, 0, len(s.table.Rows))
	for i, cells := range s.table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, issues := s.build(cells)
		res, err := validator.Validate(ctx, rec)
		if err != nil {
			return nil, err
		}
		for _, c := range res.Corrections {
			issues = append(issues, Issue{Severity: domain.SeverityInfo, Field: c.Field, Message: c.Message})
		}
		for _, v := range res.Violations {
			issues = append(issues, Issue{Severity: v.Severity, Field: v.Field, Message: v.Message})
		}
		id := res.Record.ID
		if s.target.Exists(id) {
			issues = append(issues, Issue{Severity: domain.SeverityWarning, Field: domain.FieldID, Message: fmt.Sprintf("survey %q already exists", id)})
		}
		if prev, dup := seen[id]; dup {
			issues = append(issues, Issue{Severity: domain.SeverityWarning, Field: domain.FieldID, Message: fmt.Sprintf("id %q repeats row %d", id, prev+1)})
		} else {
			seen[id] = i
		}
		out := RowOutcome{RowIndex: i, Record: res.Record, Issues: issues, Status: RowValid}
		if out.Count(domain.SeverityError) > 0 {
			out.Status = RowInvalid
		}
		rows = append(rows, out)
	}
	s.rows = rows
	s.stage = StageValidation
	return s.Rows(), nil
}

// build converts one row through the mapping. Values that cannot be
// represented become issues instead of record fields.
func (s *Session) build(cells []string) (domain.SurveyRecord, []Issue) {
	var rec domain.SurveyRecord
	var issues []Issue
	for col, target := range s.mapping {
		if target == "" || col >= len(cells) {
			continue
		}
		// ids and free text are stored as written; coded values are trimmed
		cell := cells[col]
		raw := strings.TrimSpace(cell)
		if raw == "" {
			continue
		}
		switch {
		case target == domain.FieldID:
			rec.ID = cell
		case target == domain.FieldTimestamp:
			rec.Timestamp = raw
		case s.schema.IsDemographic(target):
			code, ok := s.demographicCode(target, raw)
			if !ok {
				issues = append(issues, Issue{Severity: domain.SeverityWarning, Field: target, Message: fmt.Sprintf("%s: unknown value %q dropped", target, raw)})
				continue
			}
			_ = rec.SetDemographic(target, code)
		default:
			q, _ := s.schema.Question(target)
			if !q.IsLikert() {
				rec.SetText(q.ID, cell)
				continue
			}
			score, ok := parseScore(raw)
			if !ok {
				issues = append(issues, Issue{Severity: domain.SeverityError, Field: q.ID, Message: fmt.Sprintf("%s: value %q is not an integer between %d and %d", q.ID, raw, domain.LikertMin, domain.LikertMax)})
				continue
			}
			// out-of-range scores are kept so the likert rule reports them
			rec.SetScore(q.ID, score)
		}
	}
	return rec, issues
}

// demographicCode accepts an option id or, failing that, its label.
func (s *Session) demographicCode(field, raw string) (string, bool) {
	if _, ok := s.schema.Option(field, raw); ok {
		return raw, true
	}
	folded := Fold(raw)
	for _, d := range s.schema.Demographics() {
		if d.Field != field {
			continue
		}
		for _, o := range d.Options {
			if Fold(o.ID) == folded || Fold(o.Label) == folded {
				return o.ID, true
			}
		}
	}
	return "", false
}

func parseScore(raw string) (int, bool) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// Back returns to the previous stage. Returning from validation discards
// the row outcomes and keeps the mapping; returning from mapping discards
// the parsed source.
func (s *Session) Back() error {
	switch s.stage {
	case StageMapping:
		s.table, s.mapping = delimited.Table{}, nil
		s.stage = StageSource
	case StageValidation:
		s.rows = nil
		s.stage = StageMapping
	default:
		return fmt.Errorf("%w: cannot go back from %s", domain.ErrStageOrder, s.stage)
	}
	return nil
}

// Cancel abandons the session. The target is never touched.
func (s *Session) Cancel() {
	s.table, s.mapping, s.rows = delimited.Table{}, nil, nil
	s.stage = StageCancelled
}

// Commit submits the valid rows to the target. Each row succeeds or fails
// on its own; a cancelled context stops scheduling the remaining rows.
func (s *Session) Commit(ctx context.Context, opts CommitOptions) (CommitResult, error) {
	if err := s.require(StageValidation, "commit"); err != nil {
		return CommitResult{}, err
	}
	var records []domain.SurveyRecord
	var index []int
	res := CommitResult{}
	for _, row := range s.rows {
		if row.Status != RowValid {
			res.Rejected++
			continue
		}
		records = append(records, row.Record)
		index = append(index, row.RowIndex)
	}
	s.stage = StageCommitted
	if len(records) == 0 {
		s.rows = nil
		return res, nil
	}
	sum, err := s.target.ImportMany(ctx, records, core.ImportOptions{OverwriteExisting: opts.OverwriteExisting})
	res.Summary = sum
	for _, r := range sum.Rows {
		if r.Index < 0 || r.Index >= len(index) {
			continue
		}
		res.Rows = append(res.Rows, CommittedRow{RowIndex: index[r.Index], ID: r.ID, Status: r.Status, Errors: r.Errors})
	}
	s.rows = nil
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Error("import commit failed", "error", err)
	}
	s.logger.Info("import committed", "submitted", len(records), "imported", sum.Imported, "skipped", sum.Skipped, "rejected", res.Rejected)
	return res, err
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
