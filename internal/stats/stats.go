// Package stats computes descriptive statistics over survey records.
//
// Every function receives the record collection explicitly, usually a
// filtered copy taken from the survey service, and never touches storage.
// Functions that can run out of data report it with ok=false or a nil
// pointer instead of dividing by zero.
package stats

import (
	"math"
	"sort"

	"surveycore/pkg/domain"
)

// Values returns the numeric answers recorded for a question, in record order.
func Values(records []domain.SurveyRecord, questionID string) []float64 {
	out := make([]float64, 0, len(records))
	for _, rec := range records {
		if v, ok := rec.Score(questionID); ok {
			out = append(out, float64(v))
		}
	}
	return out
}

// Average is the arithmetic mean of the numeric answers to a question.
func Average(records []domain.SurveyRecord, questionID string) (float64, bool) {
	return mean(Values(records, questionID))
}

// Median is the middle numeric answer; even counts average the two central values.
func Median(records []domain.SurveyRecord, questionID string) (float64, bool) {
	return median(Values(records, questionID))
}

// StandardDeviation is the population standard deviation (divides by N).
func StandardDeviation(records []domain.SurveyRecord, questionID string) (float64, bool) {
	return stddev(Values(records, questionID))
}

func mean(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), true
}

func median(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}

func stddev(xs []float64) (float64, bool) {
	m, ok := mean(xs)
	if !ok {
		return 0, false
	}
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs))), true
}

func ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// Distribution is the histogram of answers to one Likert question.
type Distribution struct {
	// Counts[i] holds the number of answers with score i+1.
	Counts   [domain.LikertMax]int `json:"counts"`
	NoAnswer int                   `json:"noAnswer"`
	Answered int                   `json:"answered"`
	// Percentages are relative to answered responses, not to all records.
	Percentages [domain.LikertMax]float64 `json:"percentages"`
}

// Count returns the number of answers with the given score.
func (d Distribution) Count(score int) int {
	if score < domain.LikertMin || score > domain.LikertMax {
		return 0
	}
	return d.Counts[score-1]
}

// Percentage returns the share of answered responses with the given score, 0..100.
func (d Distribution) Percentage(score int) float64 {
	if score < domain.LikertMin || score > domain.LikertMax {
		return 0
	}
	return d.Percentages[score-1]
}

// DistributionOf counts answers per score. Records without an in-range
// score for the question count as NoAnswer.
func DistributionOf(records []domain.SurveyRecord, questionID string) Distribution {
	var d Distribution
	for _, rec := range records {
		v, ok := rec.Score(questionID)
		if !ok || v < domain.LikertMin || v > domain.LikertMax {
			d.NoAnswer++
			continue
		}
		d.Counts[v-1]++
		d.Answered++
	}
	if d.Answered > 0 {
		for i, c := range d.Counts {
			d.Percentages[i] = float64(c) * 100 / float64(d.Answered)
		}
	}
	return d
}

// AreaAverage pools every answer to the area's questions into one mean, so
// questions with more responses weigh more. ok is false for unknown areas
// and areas without answers.
func AreaAverage(records []domain.SurveyRecord, schema *domain.Schema, areaID string) (float64, bool) {
	area, found := schema.Area(areaID)
	if !found {
		return 0, false
	}
	sum, n := pooled(records, area.QuestionIDs)
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func pooled(records []domain.SurveyRecord, questionIDs []string) (float64, int) {
	var sum float64
	n := 0
	for _, rec := range records {
		for _, qid := range questionIDs {
			if v, ok := rec.Score(qid); ok {
				sum += float64(v)
				n++
			}
		}
	}
	return sum, n
}

// QuestionStatistic aggregates one question. Nil pointers mean no data.
type QuestionStatistic struct {
	QuestionID        string       `json:"questionId"`
	Text              string       `json:"text"`
	Area              string       `json:"area,omitempty"`
	Average           *float64     `json:"average"`
	Median            *float64     `json:"median"`
	StandardDeviation *float64     `json:"standardDeviation"`
	Distribution      Distribution `json:"distribution"`
	SampleSize        int          `json:"sampleSize"`
}

// QuestionStats computes the full statistic for one Likert question.
func QuestionStats(records []domain.SurveyRecord, schema *domain.Schema, questionID string) (QuestionStatistic, bool) {
	q, ok := schema.Question(questionID)
	if !ok || !q.IsLikert() {
		return QuestionStatistic{}, false
	}
	return questionStats(records, q), true
}

func questionStats(records []domain.SurveyRecord, q domain.Question) QuestionStatistic {
	xs := Values(records, q.ID)
	return QuestionStatistic{
		QuestionID:        q.ID,
		Text:              q.Text,
		Area:              q.Area,
		Average:           ptr(mean(xs)),
		Median:            ptr(median(xs)),
		StandardDeviation: ptr(stddev(xs)),
		Distribution:      DistributionOf(records, q.ID),
		SampleSize:        len(xs),
	}
}

// AllQuestionStats returns statistics for every Likert question in schema order.
func AllQuestionStats(records []domain.SurveyRecord, schema *domain.Schema) []QuestionStatistic {
	qs := schema.LikertQuestions()
	out := make([]QuestionStatistic, 0, len(qs))
	for _, q := range qs {
		out = append(out, questionStats(records, q))
	}
	return out
}

// AreaSummary is the pooled view of one area.
type AreaSummary struct {
	AreaID      string   `json:"areaId"`
	Name        string   `json:"name"`
	QuestionIDs []string `json:"questionIds"`
	Average     *float64 `json:"average"`
	Responses   int      `json:"responses"`
}

// AreaSummaries returns one pooled summary per area in schema order.
func AreaSummaries(records []domain.SurveyRecord, schema *domain.Schema) []AreaSummary {
	areas := schema.Areas()
	out := make([]AreaSummary, 0, len(areas))
	for _, a := range areas {
		sum, n := pooled(records, a.QuestionIDs)
		s := AreaSummary{AreaID: a.ID, Name: a.Name, QuestionIDs: a.QuestionIDs, Responses: n}
		if n > 0 {
			s.Average = ptr(sum/float64(n), true)
		}
		out = append(out, s)
	}
	return out
}
