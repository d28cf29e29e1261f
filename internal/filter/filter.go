// Package filter selects survey records by demographic, date range and
// completeness. Every function is pure: inputs are never modified.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"surveycore/pkg/domain"
)

// Criteria keys accepted by ParseCriteria.
const (
	KeyProfession      = "profession"
	KeyExperience      = "experience"
	KeyTenure          = "tenure"
	KeyDateFrom        = "dateFrom"
	KeyDateTo          = "dateTo"
	KeyMinCompleteness = "minCompleteness"
)

// Criteria is a conjunction of optional predicates. Zero fields do not filter.
type Criteria struct {
	Profession string `json:"profession,omitempty"`
	Experience string `json:"experience,omitempty"`
	Tenure     string `json:"tenure,omitempty"`
	// From and To bound the record timestamp, both inclusive.
	From            *time.Time `json:"dateFrom,omitempty"`
	To              *time.Time `json:"dateTo,omitempty"`
	MinCompleteness *float64   `json:"minCompleteness,omitempty"`
}

// Empty reports whether the criteria select every record.
func (c Criteria) Empty() bool {
	return c.Profession == "" && c.Experience == "" && c.Tenure == "" &&
		c.From == nil && c.To == nil && c.MinCompleteness == nil
}

// ParseCriteria builds criteria from string parameters such as query values.
// Empty values are ignored; unknown keys fail with domain.ErrMalformedInput.
// A date-only dateTo covers the whole day.
func ParseCriteria(params map[string]string) (Criteria, error) {
	var c Criteria
	for key, raw := range params {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		switch key {
		case KeyProfession:
			c.Profession = value
		case KeyExperience:
			c.Experience = value
		case KeyTenure:
			c.Tenure = value
		case KeyDateFrom:
			t, ok := domain.ParseTimestamp(value)
			if !ok {
				return Criteria{}, fmt.Errorf("%w: %s %q is not a date", domain.ErrMalformedInput, key, value)
			}
			c.From = &t
		case KeyDateTo:
			t, ok := domain.ParseTimestamp(value)
			if !ok {
				return Criteria{}, fmt.Errorf("%w: %s %q is not a date", domain.ErrMalformedInput, key, value)
			}
			if isDateOnly(value) {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			c.To = &t
		case KeyMinCompleteness:
			f, err := strconv.ParseFloat(value, 64)
			if err != nil || f < 0 || f > 1 {
				return Criteria{}, fmt.Errorf("%w: %s must be a ratio between 0 and 1", domain.ErrMalformedInput, key)
			}
			c.MinCompleteness = &f
		default:
			return Criteria{}, fmt.Errorf("%w: unknown filter %q", domain.ErrMalformedInput, key)
		}
	}
	return c, nil
}

func isDateOnly(value string) bool {
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}

// Completeness is the share of schema questions the record answers.
func Completeness(rec domain.SurveyRecord, schema *domain.Schema) float64 {
	questions := schema.Questions()
	if len(questions) == 0 {
		return 0
	}
	answered := 0
	for _, q := range questions {
		if a, ok := rec.Answer(q.ID); ok && !a.Empty() {
			answered++
		}
	}
	return float64(answered) / float64(len(questions))
}

// Match reports whether rec satisfies every criterion.
func (c Criteria) Match(rec domain.SurveyRecord, schema *domain.Schema) bool {
	if c.Profession != "" && rec.Profession != c.Profession {
		return false
	}
	if c.Experience != "" && rec.Experience != c.Experience {
		return false
	}
	if c.Tenure != "" && rec.Tenure != c.Tenure {
		return false
	}
	if c.From != nil || c.To != nil {
		t, ok := rec.Time()
		if !ok {
			return false
		}
		if c.From != nil && t.Before(*c.From) {
			return false
		}
		if c.To != nil && t.After(*c.To) {
			return false
		}
	}
	if c.MinCompleteness != nil && Completeness(rec, schema) < *c.MinCompleteness {
		return false
	}
	return true
}

// Apply returns copies of the records matching c, in input order.
func Apply(records []domain.SurveyRecord, schema *domain.Schema, c Criteria) []domain.SurveyRecord {
	out := make([]domain.SurveyRecord, 0, len(records))
	for _, rec := range records {
		if c.Empty() || c.Match(rec, schema) {
			out = append(out, rec.Clone())
		}
	}
	return out
}
