// Package delimited reads and writes the survey collection as delimited text.
package delimited

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"surveycore/pkg/domain"
)

// Candidates are the delimiters considered by detection and mismatch checks.
var Candidates = []rune{',', ';', '\t', '|'}

// sampleLines bounds the lines inspected for delimiter detection.
const sampleLines = 5

// ParseOptions configure Parse. A zero Delimiter is detected from the text.
type ParseOptions struct {
	Delimiter rune
	HasHeader bool
}

// Warning is a non-blocking row-level problem.
type Warning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Table is parsed delimited text. Every row has exactly len(Header) cells.
type Table struct {
	Header    []string
	Rows      [][]string
	Delimiter rune
	Warnings  []Warning
}

// Parse splits text into a header and rows. Empty sources, unusable
// delimiters, a delimiter that does not match the text and broken quoting
// fail with a domain.ParseError. Ragged rows are padded or truncated and
// reported as warnings.
func Parse(text string, opts ParseOptions) (Table, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return Table{}, domain.ParseError{Reason: "source is empty"}
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(text)
	}
	if err := ValidDelimiter(delim); err != nil {
		return Table{}, err
	}

	source, protected := protectQuotedCRLF(text)
	r := csv.NewReader(strings.NewReader(source))
	r.Comma = delim
	r.FieldsPerRecord = -1
	var records [][]string
	var lines []int
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return Table{}, domain.ParseError{Line: pe.StartLine, Reason: pe.Err.Error()}
			}
			return Table{}, domain.ParseError{Reason: err.Error()}
		}
		if protected {
			for j := range rec {
				rec[j] = strings.ReplaceAll(rec[j], quotedCRLF, "\r\n")
			}
		}
		line, _ := r.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	if len(records) == 0 {
		return Table{}, domain.ParseError{Reason: "source has no rows"}
	}
	if err := checkMismatch(text, delim, records); err != nil {
		return Table{}, err
	}

	t := Table{Delimiter: delim}
	if opts.HasHeader {
		t.Header = trimAll(records[0])
		records, lines = records[1:], lines[1:]
	} else {
		width := 0
		for _, rec := range records {
			width = max(width, len(rec))
		}
		t.Header = PositionalHeader(width)
	}
	width := len(t.Header)
	t.Rows = make([][]string, 0, len(records))
	for i, rec := range records {
		switch {
		case len(rec) < width:
			t.Warnings = append(t.Warnings, Warning{Line: lines[i], Message: fmt.Sprintf("row has %d fields, expected %d; missing fields left empty", len(rec), width)})
			rec = append(rec, make([]string, width-len(rec))...)
		case len(rec) > width:
			t.Warnings = append(t.Warnings, Warning{Line: lines[i], Message: fmt.Sprintf("row has %d fields, expected %d; extra fields ignored", len(rec), width)})
			rec = rec[:width]
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// quotedCRLF stands in for a CRLF inside a quoted field while encoding/csv
// reads the text, since the reader folds CRLF to LF everywhere.
const quotedCRLF = "\ufdd0\n"

// protectQuotedCRLF rewrites CRLF pairs that sit inside quotes. It reports
// false and leaves text alone when there is nothing to protect or the
// placeholder rune already occurs.
func protectQuotedCRLF(text string) (string, bool) {
	if !strings.Contains(text, "\r\n") || strings.ContainsRune(text, '\ufdd0') {
		return text, false
	}
	var b strings.Builder
	b.Grow(len(text))
	inQuotes, changed := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '"' {
			inQuotes = !inQuotes
		}
		if inQuotes && c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
			b.WriteString(quotedCRLF)
			i++
			changed = true
			continue
		}
		b.WriteByte(c)
	}
	if !changed {
		return text, false
	}
	return b.String(), true
}

// PositionalHeader names n columns "Column 1".."Column n".
func PositionalHeader(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "Column " + strconv.Itoa(i+1)
	}
	return out
}

// ValidDelimiter rejects runes that cannot separate fields.
func ValidDelimiter(d rune) error {
	if d == '"' || d == '\r' || d == '\n' || d == utf8.RuneError || d == 0 || !utf8.ValidRune(d) {
		return domain.ParseError{Reason: fmt.Sprintf("invalid delimiter %q", d)}
	}
	return nil
}

// DetectDelimiter picks the candidate that occurs most often in the first
// non-empty line, defaulting to a comma.
func DetectDelimiter(text string) rune {
	for _, line := range sample(text) {
		best, bestCount := ',', 0
		for _, c := range Candidates {
			if n := strings.Count(line, string(c)); n > bestCount {
				best, bestCount = c, n
			}
		}
		return best
	}
	return ','
}

// checkMismatch fails when every parsed row is a single column although
// another candidate delimiter appears on every sampled line.
func checkMismatch(text string, delim rune, records [][]string) error {
	for _, rec := range records {
		if len(rec) > 1 {
			return nil
		}
	}
	lines := sample(text)
	for _, c := range Candidates {
		if c == delim {
			continue
		}
		every := len(lines) > 0
		for _, line := range lines {
			if !strings.ContainsRune(line, c) {
				every = false
				break
			}
		}
		if every {
			return domain.ParseError{Reason: fmt.Sprintf("delimiter %q does not match the source, which looks %q-delimited", delim, c)}
		}
	}
	return nil
}

func sample(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
		if len(out) == sampleLines {
			break
		}
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// ParseDelimiter reads a delimiter setting such as "," or "tab".
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return 0, domain.ParseError{Reason: fmt.Sprintf("delimiter %q must be a single character", s)}
	}
	return r, ValidDelimiter(r)
}
