package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the ISO-8601 layout used for generated timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Answer is one question-answer slot. Likert items carry Score, free-text
// items carry Text.
type Answer struct {
	QuestionID string
	Score      *int
	Text       string
}

// Empty reports whether the slot carries no value.
func (a Answer) Empty() bool {
	return a.Score == nil && strings.TrimSpace(a.Text) == ""
}

// ScoreAnswer builds a Likert slot.
func ScoreAnswer(questionID string, score int) Answer {
	v := score
	return Answer{QuestionID: questionID, Score: &v}
}

// TextAnswer builds a free-text slot.
func TextAnswer(questionID, text string) Answer {
	return Answer{QuestionID: questionID, Text: text}
}

func (a Answer) clone() Answer {
	cp := a
	if a.Score != nil {
		v := *a.Score
		cp.Score = &v
	}
	return cp
}

// SurveyRecord is one respondent's answers plus identity and time metadata.
type SurveyRecord struct {
	ID         string
	Timestamp  string
	Profession string
	Experience string
	Tenure     string
	Answers    []Answer
}

// Clone returns a deep copy of the record.
func (r SurveyRecord) Clone() SurveyRecord {
	cp := r
	if r.Answers != nil {
		cp.Answers = make([]Answer, len(r.Answers))
		for i, a := range r.Answers {
			cp.Answers[i] = a.clone()
		}
	}
	return cp
}

// Answer returns the slot for a question.
func (r SurveyRecord) Answer(questionID string) (Answer, bool) {
	for _, a := range r.Answers {
		if a.QuestionID == questionID {
			return a.clone(), true
		}
	}
	return Answer{}, false
}

// Score returns the Likert value recorded for a question.
func (r SurveyRecord) Score(questionID string) (int, bool) {
	for _, a := range r.Answers {
		if a.QuestionID == questionID && a.Score != nil {
			return *a.Score, true
		}
	}
	return 0, false
}

// Text returns the free-text value recorded for a question.
func (r SurveyRecord) Text(questionID string) (string, bool) {
	for _, a := range r.Answers {
		if a.QuestionID == questionID && a.Score == nil && a.Text != "" {
			return a.Text, true
		}
	}
	return "", false
}

// SetAnswer replaces the slot for a.QuestionID, appending when absent.
// An empty answer clears the slot.
func (r *SurveyRecord) SetAnswer(a Answer) {
	if a.Empty() {
		r.ClearAnswer(a.QuestionID)
		return
	}
	for i := range r.Answers {
		if r.Answers[i].QuestionID == a.QuestionID {
			r.Answers[i] = a.clone()
			return
		}
	}
	r.Answers = append(r.Answers, a.clone())
}

// SetScore records a Likert value.
func (r *SurveyRecord) SetScore(questionID string, score int) {
	r.SetAnswer(ScoreAnswer(questionID, score))
}

// SetText records a free-text value.
func (r *SurveyRecord) SetText(questionID, text string) {
	r.SetAnswer(TextAnswer(questionID, text))
}

// ClearAnswer removes the slot for a question.
func (r *SurveyRecord) ClearAnswer(questionID string) {
	out := r.Answers[:0]
	for _, a := range r.Answers {
		if a.QuestionID != questionID {
			out = append(out, a)
		}
	}
	r.Answers = out
}

// Demographic returns the code stored for a demographic field.
func (r SurveyRecord) Demographic(field string) string {
	switch field {
	case FieldProfession:
		return r.Profession
	case FieldExperience:
		return r.Experience
	case FieldTenure:
		return r.Tenure
	default:
		return ""
	}
}

// SetDemographic stores a code on a demographic field.
func (r *SurveyRecord) SetDemographic(field, code string) error {
	switch field {
	case FieldProfession:
		r.Profession = code
	case FieldExperience:
		r.Experience = code
	case FieldTenure:
		r.Tenure = code
	default:
		return fmt.Errorf("%w: unknown demographic field %q", ErrMalformedInput, field)
	}
	return nil
}

// Time parses the record timestamp.
func (r SurveyRecord) Time() (time.Time, bool) {
	return ParseTimestamp(r.Timestamp)
}

var reservedKeys = map[string]struct{}{
	FieldID: {}, FieldTimestamp: {}, FieldProfession: {}, FieldExperience: {}, FieldTenure: {},
}

// MarshalJSON renders the flat {"id":..,"q1":3,..} object used by snapshots.
func (r SurveyRecord) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		b, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
		return nil
	}
	if err := write(FieldID, r.ID); err != nil {
		return nil, err
	}
	if err := write(FieldTimestamp, r.Timestamp); err != nil {
		return nil, err
	}
	for _, f := range []struct{ key, val string }{
		{FieldProfession, r.Profession},
		{FieldExperience, r.Experience},
		{FieldTenure, r.Tenure},
	} {
		if f.val == "" {
			continue
		}
		if err := write(f.key, f.val); err != nil {
			return nil, err
		}
	}
	for _, a := range r.Answers {
		var err error
		if a.Score != nil {
			err = write(a.QuestionID, *a.Score)
		} else {
			err = write(a.QuestionID, a.Text)
		}
		if err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the flat object form. Numbers become Likert scores,
// strings become text, nulls are skipped. Key order is preserved for slots.
func (r *SurveyRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: survey record must be a JSON object", ErrMalformedInput)
	}
	out := SurveyRecord{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		key, _ := keyTok.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: field %s: %v", ErrMalformedInput, key, err)
		}
		if _, reserved := reservedKeys[key]; reserved {
			s, err := scalarString(raw)
			if err != nil {
				return fmt.Errorf("%w: field %s: %v", ErrMalformedInput, key, err)
			}
			switch key {
			case FieldID:
				out.ID = s
			case FieldTimestamp:
				out.Timestamp = s
			default:
				_ = out.SetDemographic(key, s)
			}
			continue
		}
		switch v := raw.(type) {
		case nil:
		case json.Number:
			f, err := v.Float64()
			if err != nil || f != math.Trunc(f) {
				// non-integral numbers keep their text so validation can report them
				out.SetText(key, v.String())
				continue
			}
			out.SetScore(key, int(f))
		case string:
			if v != "" {
				out.SetText(key, v)
			}
		default:
			return fmt.Errorf("%w: field %s must be a number or string", ErrMalformedInput, key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	*r = out
	return nil
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

// NewSurveyID generates an id of the form survey_<unix-millis>_<random>.
func NewSurveyID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("survey_%d_%s", now.UnixMilli(), suffix[:9])
}

// FormatTimestamp renders t with TimestampLayout in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 timestamps with or without zone, or a bare date.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
