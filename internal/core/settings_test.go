package core

import (
	"encoding/json"
	"errors"
	"testing"

	"surveycore/pkg/domain"
)

func TestApplySettingCoercion(t *testing.T) {
	cases := []struct {
		path  string
		value any
		want  any
	}{
		{SettingMinimumResponses, "7", 7},
		{SettingMinimumResponses, json.Number("4"), 4},
		{SettingMinimumResponses, 2.0, 2},
		{SettingCorrelationThreshold, json.Number("0.45"), 0.45},
		{SettingRankingSize, 10, 10},
		{SettingExportDelimiter, ";", ";"},
		{SettingExportDelimiter, "tab", "\t"},
		{SettingExportIncludeHeader, "false", false},
		{SettingAutoSave, false, false},
		{SettingAutoSaveInterval, "60", 60},
		{SettingOverwriteExisting, "true", true},
		{SettingReportTitle, "  Q3 pulse  ", "Q3 pulse"},
	}
	for _, tc := range cases {
		s := domain.DefaultSettings()
		if err := ApplySetting(&s, tc.path, tc.value); err != nil {
			t.Fatalf("%s=%v: %v", tc.path, tc.value, err)
		}
		got, err := GetSetting(s, tc.path)
		if err != nil || got != tc.want {
			t.Fatalf("%s: got %v (%T) want %v (%T)", tc.path, got, got, tc.want, tc.want)
		}
	}
}

func TestApplySettingRejects(t *testing.T) {
	cases := []struct {
		path  string
		value any
		want  error
	}{
		{"analysis.bogus", 1, domain.ErrInvalidPath},
		{SettingMinimumResponses, 0, domain.ErrMalformedInput},
		{SettingMinimumResponses, 1.5, domain.ErrMalformedInput},
		{SettingMinimumResponses, "many", domain.ErrMalformedInput},
		{SettingCorrelationThreshold, -0.1, domain.ErrMalformedInput},
		{SettingExportDelimiter, ",,", domain.ErrMalformedInput},
		{SettingExportDelimiter, `"`, domain.ErrMalformedInput},
		{SettingExportDelimiter, 1, domain.ErrMalformedInput},
		{SettingAutoSave, "sometimes", domain.ErrMalformedInput},
		{SettingAutoSaveInterval, -5, domain.ErrMalformedInput},
	}
	for _, tc := range cases {
		s := domain.DefaultSettings()
		before := s
		if err := ApplySetting(&s, tc.path, tc.value); !errors.Is(err, tc.want) {
			t.Fatalf("%s=%v: expected %v, got %v", tc.path, tc.value, tc.want, err)
		}
		if s != before {
			t.Fatalf("%s: rejected value changed settings", tc.path)
		}
	}
}

func TestSettingPathsSorted(t *testing.T) {
	paths := SettingPaths()
	if len(paths) != 9 || paths[0] != SettingCorrelationThreshold {
		t.Fatalf("unexpected paths %v", paths)
	}
}
