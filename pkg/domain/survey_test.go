package domain

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSurveyRecordJSONFlatShape(t *testing.T) {
	rec := SurveyRecord{ID: "s1", Timestamp: "2024-01-02T03:04:05.000Z", Profession: "sales"}
	rec.SetScore("q1", 4)
	rec.SetText("q21", "more coffee")

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"s1","timestamp":"2024-01-02T03:04:05.000Z","profession":"sales","q1":4,"q21":"more coffee"}`
	if string(data) != want {
		t.Fatalf("unexpected json\n got %s\nwant %s", data, want)
	}

	var back SurveyRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(rec, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSurveyRecordUnmarshalRejectsNonObject(t *testing.T) {
	for _, input := range []string{`[]`, `"x"`, `42`} {
		var rec SurveyRecord
		err := json.Unmarshal([]byte(input), &rec)
		if !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("input %s: expected ErrMalformedInput, got %v", input, err)
		}
	}
}

func TestSurveyRecordUnmarshalKeepsNonIntegralAsText(t *testing.T) {
	var rec SurveyRecord
	if err := json.Unmarshal([]byte(`{"id":"a","q1":2.5,"q2":null}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := rec.Score("q1"); ok {
		t.Fatalf("expected q1 not to be a score")
	}
	if txt, _ := rec.Text("q1"); txt != "2.5" {
		t.Fatalf("expected q1 text 2.5, got %q", txt)
	}
	if _, ok := rec.Answer("q2"); ok {
		t.Fatalf("expected null answer to be skipped")
	}
}

func TestSetAnswerReplacesAndClears(t *testing.T) {
	var rec SurveyRecord
	rec.SetScore("q1", 2)
	rec.SetScore("q2", 3)
	rec.SetScore("q1", 5)
	if len(rec.Answers) != 2 {
		t.Fatalf("expected replace in place, got %+v", rec.Answers)
	}
	if v, _ := rec.Score("q1"); v != 5 {
		t.Fatalf("expected q1=5, got %d", v)
	}
	rec.SetText("q2", "  ")
	if _, ok := rec.Answer("q2"); ok {
		t.Fatalf("expected blank text to clear slot")
	}
}

func TestCloneIsDeep(t *testing.T) {
	rec := SurveyRecord{ID: "a"}
	rec.SetScore("q1", 1)
	cp := rec.Clone()
	*cp.Answers[0].Score = 5
	if v, _ := rec.Score("q1"); v != 1 {
		t.Fatalf("clone shares score pointer")
	}
}

func TestNewSurveyIDFormat(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewSurveyID(now)
	if !regexp.MustCompile(`^survey_1700000000123_[0-9a-f]{9}$`).MatchString(id) {
		t.Fatalf("unexpected id %q", id)
	}
	if NewSurveyID(now) == id {
		t.Fatalf("expected distinct ids")
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	for _, s := range []string{"2024-03-01T10:00:00.000Z", "2024-03-01T10:00:00+02:00", "2024-03-01T10:00:00", "2024-03-01"} {
		if _, ok := ParseTimestamp(s); !ok {
			t.Fatalf("expected %q to parse", s)
		}
	}
	if _, ok := ParseTimestamp("yesterday"); ok {
		t.Fatalf("expected free text to fail")
	}
	ts := FormatTimestamp(time.Date(2024, 3, 1, 10, 0, 0, 5e6, time.FixedZone("x", 3600)))
	if ts != "2024-03-01T09:00:00.005Z" {
		t.Fatalf("unexpected format %s", ts)
	}
}

func TestDecodeSnapshotMergesDefaults(t *testing.T) {
	payload := `{"surveys":[{"id":"a","timestamp":"2024-01-01","q1":3}],"appSettings":{"analysis":{"minimumResponses":10}}}`
	snap, err := DecodeSnapshot([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	def := DefaultSettings()
	if snap.AppSettings.Analysis.MinimumResponses != 10 {
		t.Fatalf("saved key should override default")
	}
	if snap.AppSettings.Analysis.CorrelationThreshold != def.Analysis.CorrelationThreshold {
		t.Fatalf("absent key should keep default")
	}
	if snap.AppSettings.Export.Delimiter != "," || snap.Metadata.Version != SnapshotVersion {
		t.Fatalf("expected defaults for missing sections, got %+v", snap)
	}
	if snap.Metadata.TotalEntries != 1 {
		t.Fatalf("expected total entries resynced, got %d", snap.Metadata.TotalEntries)
	}
	if _, err := DecodeSnapshot([]byte(`{"surveys":`)); !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
}

func TestSchemaFieldsCanonicalOrder(t *testing.T) {
	s := DefaultSchema()
	fields := s.Fields()
	if fields[0] != FieldID || fields[1] != FieldTimestamp {
		t.Fatalf("expected id,timestamp first: %v", fields[:2])
	}
	tail := strings.Join(fields[len(fields)-3:], ",")
	if tail != "profession,experience,tenure" {
		t.Fatalf("expected demographics last, got %s", tail)
	}
	if len(fields) != 2+len(s.Questions())+3 {
		t.Fatalf("unexpected field count %d", len(fields))
	}
	if _, ok := s.Option(FieldTenure, "gt5"); !ok {
		t.Fatalf("expected tenure option gt5")
	}
	if s.QuestionOrder("q3") != 2 || s.QuestionOrder("nope") != -1 {
		t.Fatalf("unexpected question order")
	}
}
