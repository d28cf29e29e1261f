package importer

import (
	"context"
	"fmt"
)

// Options drive a one-shot import with automatic mapping.
type Options struct {
	Source SourceOptions
	Commit CommitOptions
}

// Report is the outcome of a one-shot import.
type Report struct {
	Mapping  []string     `json:"mapping"`
	Rows     []RowOutcome `json:"rows"`
	Result   CommitResult `json:"result"`
	Warnings []string     `json:"warnings,omitempty"`
}

// ImportText runs every stage with the auto-mapped columns. Parse and
// mapping failures stop before anything is committed.
func ImportText(ctx context.Context, target Target, text string, opts Options, sessionOpts ...Option) (Report, error) {
	s := NewSession(target, sessionOpts...)
	tbl, err := s.LoadSource(text, opts.Source)
	if err != nil {
		return Report{}, err
	}
	rep := Report{}
	for _, w := range tbl.Warnings {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("line %d: %s", w.Line, w.Message))
	}
	if rep.Mapping, err = s.AutoMap(); err != nil {
		return rep, err
	}
	if rep.Rows, err = s.ValidateRows(ctx); err != nil {
		s.Cancel()
		return rep, err
	}
	rep.Result, err = s.Commit(ctx, opts.Commit)
	return rep, err
}
