package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"surveycore/pkg/domain"
)

// Patch is a partial update. Nil fields are left untouched; answer slots
// replace the slot for their question and an empty answer clears it.
type Patch struct {
	Timestamp  *string
	Profession *string
	Experience *string
	Tenure     *string
	Answers    []domain.Answer
}

// Apply merges the patch into a copy of rec. The id is never changed.
func (p Patch) Apply(rec domain.SurveyRecord) domain.SurveyRecord {
	out := rec.Clone()
	if p.Timestamp != nil && *p.Timestamp != "" {
		out.Timestamp = *p.Timestamp
	}
	if p.Profession != nil {
		out.Profession = *p.Profession
	}
	if p.Experience != nil {
		out.Experience = *p.Experience
	}
	if p.Tenure != nil {
		out.Tenure = *p.Tenure
	}
	for _, a := range p.Answers {
		out.SetAnswer(a)
	}
	return out
}

// ParsePatch decodes a flat JSON object into a Patch. Numbers become Likert
// scores, strings become text and null clears a question. The id key is ignored.
func ParsePatch(data []byte) (Patch, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return Patch{}, fmt.Errorf("%w: patch must be a JSON object", domain.ErrMalformedInput)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var p Patch
	for _, key := range keys {
		value := raw[key]
		switch key {
		case domain.FieldID:
			continue
		case domain.FieldTimestamp, domain.FieldProfession, domain.FieldExperience, domain.FieldTenure:
			s, ok := value.(string)
			if !ok && value != nil {
				return Patch{}, fmt.Errorf("%w: %s must be a string", domain.ErrMalformedInput, key)
			}
			switch key {
			case domain.FieldTimestamp:
				p.Timestamp = &s
			case domain.FieldProfession:
				p.Profession = &s
			case domain.FieldExperience:
				p.Experience = &s
			default:
				p.Tenure = &s
			}
			continue
		}
		switch v := value.(type) {
		case nil:
			p.Answers = append(p.Answers, domain.Answer{QuestionID: key})
		case json.Number:
			f, err := v.Float64()
			if err != nil || f != math.Trunc(f) {
				p.Answers = append(p.Answers, domain.TextAnswer(key, v.String()))
				continue
			}
			p.Answers = append(p.Answers, domain.ScoreAnswer(key, int(f)))
		case string:
			p.Answers = append(p.Answers, domain.TextAnswer(key, v))
		default:
			return Patch{}, fmt.Errorf("%w: %s must be a number, string or null", domain.ErrMalformedInput, key)
		}
	}
	return p, nil
}
