package stats

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"surveycore/pkg/domain"
)

const eps = 1e-9

func rec(id string, scores map[string]int) domain.SurveyRecord {
	r := domain.SurveyRecord{ID: id}
	for _, q := range domain.DefaultSchema().QuestionIDs() {
		if v, ok := scores[q]; ok {
			r.SetScore(q, v)
		}
	}
	return r
}

func column(qid string, values ...int) []domain.SurveyRecord {
	out := make([]domain.SurveyRecord, len(values))
	for i, v := range values {
		out[i] = rec(string(rune('a'+i)), map[string]int{qid: v})
	}
	return out
}

func TestAverageMedianPopulationStdDev(t *testing.T) {
	records := column("q1", 1, 2, 3, 4, 5)
	records = append(records, rec("blank", nil))
	avg, ok := Average(records, "q1")
	if !ok || math.Abs(avg-3) > eps {
		t.Fatalf("average: %v %v", avg, ok)
	}
	sd, ok := StandardDeviation(records, "q1")
	if !ok || math.Abs(sd-math.Sqrt2) > eps {
		t.Fatalf("expected population stddev sqrt(2), got %v", sd)
	}
	if med, _ := Median(records, "q1"); med != 3 {
		t.Fatalf("median: %v", med)
	}
	if med, _ := Median(column("q1", 4, 1, 3, 2), "q1"); med != 2.5 {
		t.Fatalf("even median should average central values, got %v", med)
	}
}

func TestNoDataIsReportedNotDividedByZero(t *testing.T) {
	records := []domain.SurveyRecord{rec("a", nil)}
	if _, ok := Average(records, "q1"); ok {
		t.Fatalf("expected no data")
	}
	if _, ok := Median(nil, "q1"); ok {
		t.Fatalf("expected no data")
	}
	if _, ok := StandardDeviation(records, "q1"); ok {
		t.Fatalf("expected no data")
	}
	st, ok := QuestionStats(records, domain.DefaultSchema(), "q1")
	if !ok || st.Average != nil || st.Median != nil || st.StandardDeviation != nil || st.SampleSize != 0 {
		t.Fatalf("unexpected statistic %+v", st)
	}
	if _, ok := QuestionStats(records, domain.DefaultSchema(), "q21"); ok {
		t.Fatalf("free-text question has no statistics")
	}
}

func TestDistributionPercentagesOfAnswered(t *testing.T) {
	records := append(column("q2", 1, 1, 5), rec("x", nil))
	d := DistributionOf(records, "q2")
	if d.Count(1) != 2 || d.Count(5) != 1 || d.NoAnswer != 1 || d.Answered != 3 {
		t.Fatalf("unexpected counts %+v", d)
	}
	if math.Abs(d.Percentage(1)-200.0/3) > eps || math.Abs(d.Percentage(5)-100.0/3) > eps {
		t.Fatalf("percentages must be relative to answered: %+v", d.Percentages)
	}
	if d.Count(0) != 0 || d.Percentage(6) != 0 {
		t.Fatalf("out of range scores must read as zero")
	}
	if empty := DistributionOf(nil, "q2"); empty.Percentages != [domain.LikertMax]float64{} {
		t.Fatalf("expected zero percentages, got %+v", empty)
	}
}

func TestAreaAverageIsPooled(t *testing.T) {
	schema := domain.DefaultSchema()
	records := []domain.SurveyRecord{
		rec("a", map[string]int{"q1": 5, "q2": 1}),
		rec("b", map[string]int{"q1": 5}),
		rec("c", map[string]int{"q1": 5}),
	}
	// per-question mean of means would be 3
	avg, ok := AreaAverage(records, schema, "leadership")
	if !ok || math.Abs(avg-4) > eps {
		t.Fatalf("expected pooled 4, got %v %v", avg, ok)
	}
	if _, ok := AreaAverage(records, schema, "wellbeing"); ok {
		t.Fatalf("area without answers has no average")
	}
	if _, ok := AreaAverage(records, schema, "nope"); ok {
		t.Fatalf("unknown area has no average")
	}
	summaries := AreaSummaries(records, schema)
	if len(summaries) != 5 || summaries[0].AreaID != "leadership" || summaries[0].Responses != 4 || *summaries[0].Average != 4 {
		t.Fatalf("unexpected summaries %+v", summaries[0])
	}
}

func TestRankQuestionsStableTopAndBottom(t *testing.T) {
	schema := domain.DefaultSchema()
	records := []domain.SurveyRecord{
		rec("a", map[string]int{"q1": 4, "q2": 4, "q3": 2, "q4": 5}),
		rec("b", map[string]int{"q1": 4, "q2": 4, "q3": 2}),
	}
	ids := func(qs []QuestionScore) []string {
		out := make([]string, len(qs))
		for i, q := range qs {
			out[i] = q.QuestionID
		}
		return out
	}
	r := RankQuestions(records, schema, 2, 2)
	if diff := cmp.Diff([]string{"q1", "q2"}, ids(r.Strengths)); diff != "" {
		t.Fatalf("strengths (-want +got):\n%s", diff)
	}
	// q1 and q2 tie; the bottom two come from the tail of the same ranking
	if diff := cmp.Diff([]string{"q3", "q2"}, ids(r.Weaknesses)); diff != "" {
		t.Fatalf("weaknesses (-want +got):\n%s", diff)
	}
	tied := RankQuestions([]domain.SurveyRecord{rec("c", map[string]int{"q1": 3, "q2": 3, "q3": 3})}, schema, 2, 1)
	if diff := cmp.Diff([]string{"q1", "q2"}, ids(tied.Strengths)); diff != "" {
		t.Fatalf("tied strengths (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"q3", "q2"}, ids(tied.Weaknesses)); diff != "" {
		t.Fatalf("tied weaknesses must mirror the descending order (-want +got):\n%s", diff)
	}
	all := RankQuestions(records, schema, 10, 1)
	if diff := cmp.Diff([]string{"q4", "q1", "q2", "q3"}, ids(all.Strengths)); diff != "" {
		t.Fatalf("k beyond size should return all (-want +got):\n%s", diff)
	}
	if none := RankQuestions(records, schema, 0, 1); len(none.Strengths) != 0 || none.Weaknesses == nil {
		t.Fatalf("k=0 yields empty rankings, got %+v", none)
	}
}
