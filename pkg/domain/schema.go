package domain

import "strings"

// QuestionKind distinguishes Likert items from free-text items.
type QuestionKind string

const (
	// QuestionLikert is answered on the 1–5 ordinal scale.
	QuestionLikert QuestionKind = "likert"
	// QuestionText is answered with free text.
	QuestionText QuestionKind = "text"
)

// Likert scale bounds.
const (
	LikertMin = 1
	LikertMax = 5
)

// Demographic field identifiers.
const (
	FieldID         = "id"
	FieldTimestamp  = "timestamp"
	FieldProfession = "profession"
	FieldExperience = "experience"
	FieldTenure     = "tenure"
)

// Question describes a single catalogue item.
type Question struct {
	ID   string       `json:"id"`
	Text string       `json:"text"`
	Area string       `json:"area,omitempty"`
	Kind QuestionKind `json:"kind"`
}

// IsLikert reports whether the question is answered on the Likert scale.
func (q Question) IsLikert() bool { return q.Kind == QuestionLikert }

// Area groups related questions for aggregate reporting.
type Area struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	QuestionIDs []string `json:"questionIds"`
}

// Option is one {id, label} entry of a demographic lookup table.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Demographic describes a demographic field and its allowed codes.
type Demographic struct {
	Field   string   `json:"field"`
	Label   string   `json:"label"`
	Options []Option `json:"options"`
}

// Schema is the fixed survey catalogue. It is immutable after construction
// and safe to share between goroutines.
type Schema struct {
	questions    []Question
	areas        []Area
	demographics []Demographic

	questionIdx map[string]int
	areaIdx     map[string]int
	optionIdx   map[string]map[string]Option
}

// NewSchema builds a schema and its lookup indexes.
func NewSchema(questions []Question, areas []Area, demographics []Demographic) *Schema {
	s := &Schema{
		questions:    append([]Question(nil), questions...),
		areas:        make([]Area, len(areas)),
		demographics: make([]Demographic, len(demographics)),
		questionIdx:  make(map[string]int, len(questions)),
		areaIdx:      make(map[string]int, len(areas)),
		optionIdx:    make(map[string]map[string]Option, len(demographics)),
	}
	for i, q := range s.questions {
		s.questionIdx[q.ID] = i
	}
	for i, a := range areas {
		a.QuestionIDs = append([]string(nil), a.QuestionIDs...)
		s.areas[i] = a
		s.areaIdx[a.ID] = i
	}
	for i, d := range demographics {
		d.Options = append([]Option(nil), d.Options...)
		s.demographics[i] = d
		opts := make(map[string]Option, len(d.Options))
		for _, o := range d.Options {
			opts[o.ID] = o
		}
		s.optionIdx[d.Field] = opts
	}
	return s
}

// Questions returns the catalogue in its canonical order.
func (s *Schema) Questions() []Question {
	return append([]Question(nil), s.questions...)
}

// LikertQuestions returns the Likert subset of the catalogue, in canonical order.
func (s *Schema) LikertQuestions() []Question {
	out := make([]Question, 0, len(s.questions))
	for _, q := range s.questions {
		if q.IsLikert() {
			out = append(out, q)
		}
	}
	return out
}

// QuestionIDs returns every question id in canonical order.
func (s *Schema) QuestionIDs() []string {
	out := make([]string, len(s.questions))
	for i, q := range s.questions {
		out[i] = q.ID
	}
	return out
}

// Question looks up a question by id.
func (s *Schema) Question(id string) (Question, bool) {
	i, ok := s.questionIdx[id]
	if !ok {
		return Question{}, false
	}
	return s.questions[i], true
}

// QuestionOrder returns the canonical position of a question, or -1.
func (s *Schema) QuestionOrder(id string) int {
	if i, ok := s.questionIdx[id]; ok {
		return i
	}
	return -1
}

// Areas returns the area catalogue.
func (s *Schema) Areas() []Area {
	out := make([]Area, len(s.areas))
	for i, a := range s.areas {
		a.QuestionIDs = append([]string(nil), a.QuestionIDs...)
		out[i] = a
	}
	return out
}

// Area looks up an area by id.
func (s *Schema) Area(id string) (Area, bool) {
	i, ok := s.areaIdx[id]
	if !ok {
		return Area{}, false
	}
	a := s.areas[i]
	a.QuestionIDs = append([]string(nil), a.QuestionIDs...)
	return a, true
}

// Demographics returns the demographic field definitions.
func (s *Schema) Demographics() []Demographic {
	out := make([]Demographic, len(s.demographics))
	for i, d := range s.demographics {
		d.Options = append([]Option(nil), d.Options...)
		out[i] = d
	}
	return out
}

// DemographicFields returns the demographic field names in canonical order.
func (s *Schema) DemographicFields() []string {
	out := make([]string, len(s.demographics))
	for i, d := range s.demographics {
		out[i] = d.Field
	}
	return out
}

// IsDemographic reports whether field names a demographic field.
func (s *Schema) IsDemographic(field string) bool {
	_, ok := s.optionIdx[field]
	return ok
}

// Option resolves a demographic code to its option entry.
func (s *Schema) Option(field, code string) (Option, bool) {
	opts, ok := s.optionIdx[field]
	if !ok {
		return Option{}, false
	}
	o, ok := opts[code]
	return o, ok
}

// Fields returns the canonical field order used by the export header:
// id, timestamp, questions, then demographics.
func (s *Schema) Fields() []string {
	out := make([]string, 0, 2+len(s.questions)+len(s.demographics))
	out = append(out, FieldID, FieldTimestamp)
	out = append(out, s.QuestionIDs()...)
	out = append(out, s.DemographicFields()...)
	return out
}

// IsField reports whether name is a mappable target field.
func (s *Schema) IsField(name string) bool {
	if name == FieldID || name == FieldTimestamp || s.IsDemographic(name) {
		return true
	}
	_, ok := s.questionIdx[name]
	return ok
}

// FieldLabel returns a human readable label for a target field.
func (s *Schema) FieldLabel(name string) string {
	switch name {
	case FieldID:
		return "ID"
	case FieldTimestamp:
		return "Timestamp"
	}
	if q, ok := s.Question(name); ok {
		return q.Text
	}
	for _, d := range s.demographics {
		if d.Field == name {
			return d.Label
		}
	}
	return strings.TrimSpace(name)
}

var defaultSchema = NewSchema(
	[]Question{
		{ID: "q1", Text: "My manager gives me clear direction", Area: "leadership", Kind: QuestionLikert},
		{ID: "q2", Text: "Leadership decisions are explained to the team", Area: "leadership", Kind: QuestionLikert},
		{ID: "q3", Text: "I trust the leadership of my department", Area: "leadership", Kind: QuestionLikert},
		{ID: "q4", Text: "My manager recognises good work", Area: "leadership", Kind: QuestionLikert},
		{ID: "q5", Text: "Information reaches me in time to do my job", Area: "communication", Kind: QuestionLikert},
		{ID: "q6", Text: "I can voice concerns without fear", Area: "communication", Kind: QuestionLikert},
		{ID: "q7", Text: "Teams share knowledge with each other", Area: "communication", Kind: QuestionLikert},
		{ID: "q8", Text: "Feedback I give is acted upon", Area: "communication", Kind: QuestionLikert},
		{ID: "q9", Text: "My workload is manageable", Area: "workload", Kind: QuestionLikert},
		{ID: "q10", Text: "I have the resources I need", Area: "workload", Kind: QuestionLikert},
		{ID: "q11", Text: "Deadlines are realistic", Area: "workload", Kind: QuestionLikert},
		{ID: "q12", Text: "I rarely need to work overtime", Area: "workload", Kind: QuestionLikert},
		{ID: "q13", Text: "I have opportunities to learn new skills", Area: "development", Kind: QuestionLikert},
		{ID: "q14", Text: "There is a clear path for career progression", Area: "development", Kind: QuestionLikert},
		{ID: "q15", Text: "Training offered is relevant to my role", Area: "development", Kind: QuestionLikert},
		{ID: "q16", Text: "My goals are discussed regularly", Area: "development", Kind: QuestionLikert},
		{ID: "q17", Text: "I feel valued at work", Area: "wellbeing", Kind: QuestionLikert},
		{ID: "q18", Text: "I can balance work and personal life", Area: "wellbeing", Kind: QuestionLikert},
		{ID: "q19", Text: "The work environment is safe and healthy", Area: "wellbeing", Kind: QuestionLikert},
		{ID: "q20", Text: "I would recommend this organisation as a place to work", Area: "wellbeing", Kind: QuestionLikert},
		{ID: "q21", Text: "Additional comments", Kind: QuestionText},
	},
	[]Area{
		{ID: "leadership", Name: "Leadership", QuestionIDs: []string{"q1", "q2", "q3", "q4"}},
		{ID: "communication", Name: "Communication", QuestionIDs: []string{"q5", "q6", "q7", "q8"}},
		{ID: "workload", Name: "Workload", QuestionIDs: []string{"q9", "q10", "q11", "q12"}},
		{ID: "development", Name: "Development", QuestionIDs: []string{"q13", "q14", "q15", "q16"}},
		{ID: "wellbeing", Name: "Wellbeing", QuestionIDs: []string{"q17", "q18", "q19", "q20"}},
	},
	[]Demographic{
		{Field: FieldProfession, Label: "Profession", Options: []Option{
			{ID: "engineering", Label: "Engineering"},
			{ID: "operations", Label: "Operations"},
			{ID: "sales", Label: "Sales"},
			{ID: "support", Label: "Customer Support"},
			{ID: "administration", Label: "Administration"},
			{ID: "management", Label: "Management"},
			{ID: "other", Label: "Other"},
		}},
		{Field: FieldExperience, Label: "Professional experience", Options: []Option{
			{ID: "lt1", Label: "Less than 1 year"},
			{ID: "1to3", Label: "1 to 3 years"},
			{ID: "3to5", Label: "3 to 5 years"},
			{ID: "5to10", Label: "5 to 10 years"},
			{ID: "gt10", Label: "More than 10 years"},
		}},
		{Field: FieldTenure, Label: "Time at the organisation", Options: []Option{
			{ID: "lt1", Label: "Less than 1 year"},
			{ID: "1to2", Label: "1 to 2 years"},
			{ID: "2to5", Label: "2 to 5 years"},
			{ID: "gt5", Label: "More than 5 years"},
		}},
	},
)

// DefaultSchema returns the built-in employee survey catalogue.
func DefaultSchema() *Schema { return defaultSchema }
