package delimited

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"surveycore/pkg/domain"
)

// ExportOptions configure Export.
type ExportOptions struct {
	Delimiter     rune
	IncludeHeader bool
}

// ExportOptionsFrom maps the persisted export settings.
func ExportOptionsFrom(s domain.ExportSettings) ExportOptions {
	return ExportOptions{Delimiter: s.DelimiterRune(), IncludeHeader: s.IncludeHeader}
}

// Header is the canonical column order: id, timestamp, questions in schema
// order, then demographics.
func Header(schema *domain.Schema) []string {
	return schema.Fields()
}

// Row renders one record in Header order. Absent values are empty.
func Row(rec domain.SurveyRecord, schema *domain.Schema) []string {
	fields := schema.Fields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = fieldValue(rec, schema, f)
	}
	return out
}

func fieldValue(rec domain.SurveyRecord, schema *domain.Schema, field string) string {
	switch field {
	case domain.FieldID:
		return rec.ID
	case domain.FieldTimestamp:
		return rec.Timestamp
	}
	if schema.IsDemographic(field) {
		return rec.Demographic(field)
	}
	if v, ok := rec.Score(field); ok {
		return strconv.Itoa(v)
	}
	if s, ok := rec.Text(field); ok {
		return s
	}
	return ""
}

// Quote wraps a field in quotes iff it contains the delimiter, a quote or a
// line break; embedded quotes are doubled.
func Quote(field string, delim rune) string {
	if !strings.ContainsRune(field, delim) && !strings.ContainsAny(field, "\"\r\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Write streams the records as delimited text, one line per record.
func Write(w io.Writer, records []domain.SurveyRecord, schema *domain.Schema, opts ExportOptions) error {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if err := ValidDelimiter(opts.Delimiter); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	sep := string(opts.Delimiter)
	line := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				_, _ = bw.WriteString(sep)
			}
			_, _ = bw.WriteString(Quote(c, opts.Delimiter))
		}
		_ = bw.WriteByte('\n')
	}
	if opts.IncludeHeader {
		line(Header(schema))
	}
	for _, rec := range records {
		line(Row(rec, schema))
	}
	return bw.Flush()
}

// Export renders the records as a string. An invalid delimiter falls back
// to a comma.
func Export(records []domain.SurveyRecord, schema *domain.Schema, opts ExportOptions) string {
	if ValidDelimiter(opts.Delimiter) != nil {
		opts.Delimiter = ','
	}
	var sb strings.Builder
	_ = Write(&sb, records, schema, opts)
	return sb.String()
}
