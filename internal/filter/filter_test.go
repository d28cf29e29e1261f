package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"surveycore/pkg/domain"
)

func answered(id, ts, profession string, n int) domain.SurveyRecord {
	rec := domain.SurveyRecord{ID: id, Timestamp: ts, Profession: profession}
	for i, q := range domain.DefaultSchema().LikertQuestions() {
		if i >= n {
			break
		}
		rec.SetScore(q.ID, 3)
	}
	return rec
}

func fixture() []domain.SurveyRecord {
	return []domain.SurveyRecord{
		answered("a", "2024-01-01T09:00:00.000Z", "sales", 20),
		answered("b", "2024-01-15T18:30:00.000Z", "engineering", 16),
		answered("c", "2024-02-01T00:00:00.000Z", "sales", 10),
		answered("d", "not a date", "sales", 20),
	}
}

func ids(records []domain.SurveyRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestEmptyCriteriaIsIdentity(t *testing.T) {
	in := fixture()
	got := Apply(in, domain.DefaultSchema(), Criteria{})
	if diff := cmp.Diff(in, got); diff != "" {
		t.Fatalf("identity filter changed records (-want +got):\n%s", diff)
	}
}

func TestCompletenessThreshold(t *testing.T) {
	schema := domain.DefaultSchema()
	min := 0.75
	got := Apply(fixture(), schema, Criteria{MinCompleteness: &min})
	if diff := cmp.Diff([]string{"a", "b", "d"}, ids(got)); diff != "" {
		t.Fatalf("unexpected selection (-want +got):\n%s", diff)
	}
	for _, rec := range got {
		if Completeness(rec, schema) < min {
			t.Fatalf("record %s below threshold", rec.ID)
		}
	}
	again := Apply(got, schema, Criteria{MinCompleteness: &min})
	if diff := cmp.Diff(got, again); diff != "" {
		t.Fatalf("filter not idempotent (-first +second):\n%s", diff)
	}
	if c := Completeness(answered("x", "", "", 0), schema); c != 0 {
		t.Fatalf("expected zero completeness, got %v", c)
	}
}

func TestCriteriaCombineConjunctively(t *testing.T) {
	schema := domain.DefaultSchema()
	c, err := ParseCriteria(map[string]string{
		KeyProfession: "sales",
		KeyDateFrom:   "2024-01-01",
		KeyDateTo:     "2024-01-31",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, ids(Apply(fixture(), schema, c))); diff != "" {
		t.Fatalf("unexpected selection (-want +got):\n%s", diff)
	}
	onlyDate, _ := ParseCriteria(map[string]string{KeyDateFrom: "2024-01-15", KeyDateTo: "2024-01-15"})
	if diff := cmp.Diff([]string{"b"}, ids(Apply(fixture(), schema, onlyDate))); diff != "" {
		t.Fatalf("date-only upper bound must include the whole day (-want +got):\n%s", diff)
	}
	// order of criteria does not matter
	byProfession := Apply(Apply(fixture(), schema, Criteria{Profession: "sales"}), schema, onlyDate)
	byDate := Apply(Apply(fixture(), schema, onlyDate), schema, Criteria{Profession: "sales"})
	if diff := cmp.Diff(ids(byProfession), ids(byDate)); diff != "" {
		t.Fatalf("criteria not commutative:\n%s", diff)
	}
}

func TestApplyDoesNotMutate(t *testing.T) {
	in := fixture()
	before := fixture()
	out := Apply(in, domain.DefaultSchema(), Criteria{Profession: "sales"})
	out[0].SetScore("q1", 1)
	out[0].Profession = "changed"
	if diff := cmp.Diff(before, in); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
}

func TestParseCriteria(t *testing.T) {
	c, err := ParseCriteria(map[string]string{KeyTenure: " gt5 ", KeyExperience: "", KeyMinCompleteness: "0.5"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Tenure != "gt5" || c.Experience != "" || c.MinCompleteness == nil || *c.MinCompleteness != 0.5 {
		t.Fatalf("unexpected criteria %+v", c)
	}
	if !(Criteria{}).Empty() || c.Empty() {
		t.Fatalf("Empty misreports")
	}
	to, _ := ParseCriteria(map[string]string{KeyDateTo: "2024-03-01T12:00:00Z"})
	if !to.To.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("full timestamps are not extended, got %v", to.To)
	}
	for _, bad := range []map[string]string{
		{"department": "x"},
		{KeyDateFrom: "last week"},
		{KeyDateTo: "31/01/2024"},
		{KeyMinCompleteness: "1.5"},
		{KeyMinCompleteness: "most"},
	} {
		if _, err := ParseCriteria(bad); !errors.Is(err, domain.ErrMalformedInput) {
			t.Fatalf("%v: expected ErrMalformedInput, got %v", bad, err)
		}
	}
}
