package stats

import (
	"fmt"
	"time"

	"surveycore/internal/filter"
	"surveycore/pkg/domain"
)

// Unspecified is the group code for records without a demographic value.
const Unspecified = "unspecified"

// Group is one bucket of a demographic breakdown.
type Group struct {
	Code       string  `json:"code"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	// Average pools every Likert answer of the group.
	Average *float64 `json:"average"`
}

// DemographicBreakdown groups records by a demographic field. Every option
// of the field is listed in schema order, followed by an unspecified group
// when some records carry no (or an unknown) code.
func DemographicBreakdown(records []domain.SurveyRecord, schema *domain.Schema, field string) ([]Group, error) {
	var options []domain.Option
	found := false
	for _, d := range schema.Demographics() {
		if d.Field == field {
			options, found = d.Options, true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: demographic field %q", domain.ErrMalformedInput, field)
	}
	likert := schema.LikertQuestions()
	qids := make([]string, len(likert))
	for i, q := range likert {
		qids[i] = q.ID
	}
	buckets := make(map[string][]domain.SurveyRecord, len(options)+1)
	for _, rec := range records {
		code := rec.Demographic(field)
		if _, ok := schema.Option(field, code); !ok {
			code = Unspecified
		}
		buckets[code] = append(buckets[code], rec)
	}
	group := func(code, label string) Group {
		members := buckets[code]
		g := Group{Code: code, Label: label, Count: len(members)}
		if len(records) > 0 {
			g.Percentage = float64(len(members)) * 100 / float64(len(records))
		}
		if sum, n := pooled(members, qids); n > 0 {
			g.Average = ptr(sum/float64(n), true)
		}
		return g
	}
	out := make([]Group, 0, len(options)+1)
	for _, o := range options {
		out = append(out, group(o.ID, o.Label))
	}
	if len(buckets[Unspecified]) > 0 {
		out = append(out, group(Unspecified, "Not specified"))
	}
	return out, nil
}

// Summary is the aggregate report model rendered by the report worker and
// served by the statistics endpoint.
type Summary struct {
	GeneratedAt         time.Time           `json:"generatedAt"`
	TotalResponses      int                 `json:"totalResponses"`
	AverageCompleteness float64             `json:"averageCompleteness"`
	OverallAverage      *float64            `json:"overallAverage"`
	Questions           []QuestionStatistic `json:"questions"`
	Areas               []AreaSummary       `json:"areas"`
	Ranking             Ranking             `json:"ranking"`
	Correlations        []Correlation       `json:"correlations"`
	Demographics        map[string][]Group  `json:"demographics"`
}

// SummaryLimit caps the correlations listed in a summary.
const SummaryLimit = 10

// Summarize builds the full report model using the analysis settings for
// ranking size, minimum responses and correlation threshold.
func Summarize(records []domain.SurveyRecord, schema *domain.Schema, settings domain.AnalysisSettings, now time.Time) Summary {
	s := Summary{
		GeneratedAt:    now.UTC(),
		TotalResponses: len(records),
		Questions:      AllQuestionStats(records, schema),
		Areas:          AreaSummaries(records, schema),
		Ranking:        RankQuestions(records, schema, settings.RankingSize, settings.MinimumResponses),
		Correlations:   TopCorrelations(records, schema, settings.CorrelationThreshold, SummaryLimit),
		Demographics:   make(map[string][]Group),
	}
	if len(records) > 0 {
		var total float64
		for _, rec := range records {
			total += filter.Completeness(rec, schema)
		}
		s.AverageCompleteness = total / float64(len(records))
	}
	var qids []string
	for _, q := range schema.LikertQuestions() {
		qids = append(qids, q.ID)
	}
	if sum, n := pooled(records, qids); n > 0 {
		s.OverallAverage = ptr(sum/float64(n), true)
	}
	for _, field := range schema.DemographicFields() {
		groups, err := DemographicBreakdown(records, schema, field)
		if err == nil {
			s.Demographics[field] = groups
		}
	}
	return s
}
