package core

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"surveycore/pkg/domain"
)

// Setting paths addressable through GetSetting and ApplySetting.
const (
	SettingMinimumResponses     = "analysis.minimumResponses"
	SettingCorrelationThreshold = "analysis.correlationThreshold"
	SettingRankingSize          = "analysis.rankingSize"
	SettingExportDelimiter      = "export.delimiter"
	SettingExportIncludeHeader  = "export.includeHeader"
	SettingAutoSave             = "storage.autoSave"
	SettingAutoSaveInterval     = "storage.autoSaveInterval"
	SettingOverwriteExisting    = "import.overwriteExisting"
	SettingReportTitle          = "report.title"
)

type settingAccessor struct {
	get func(domain.Settings) any
	set func(*domain.Settings, any) error
}

var settingTable = map[string]settingAccessor{
	SettingMinimumResponses: {
		get: func(s domain.Settings) any { return s.Analysis.MinimumResponses },
		set: func(s *domain.Settings, v any) error {
			n, err := intValue(v, 1)
			if err == nil {
				s.Analysis.MinimumResponses = n
			}
			return err
		},
	},
	SettingCorrelationThreshold: {
		get: func(s domain.Settings) any { return s.Analysis.CorrelationThreshold },
		set: func(s *domain.Settings, v any) error {
			f, err := floatValue(v)
			if err != nil {
				return err
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("%w: threshold %v outside 0..1", domain.ErrMalformedInput, f)
			}
			s.Analysis.CorrelationThreshold = f
			return nil
		},
	},
	SettingRankingSize: {
		get: func(s domain.Settings) any { return s.Analysis.RankingSize },
		set: func(s *domain.Settings, v any) error {
			n, err := intValue(v, 1)
			if err == nil {
				s.Analysis.RankingSize = n
			}
			return err
		},
	},
	SettingExportDelimiter: {
		get: func(s domain.Settings) any { return s.Export.Delimiter },
		set: func(s *domain.Settings, v any) error {
			d, err := stringValue(v)
			if err != nil {
				return err
			}
			if d == `\t` || strings.EqualFold(d, "tab") {
				d = "\t"
			}
			if utf8.RuneCountInString(d) != 1 || strings.ContainsAny(d, "\"\r\n") {
				return fmt.Errorf("%w: delimiter must be a single character other than quote or newline", domain.ErrMalformedInput)
			}
			s.Export.Delimiter = d
			return nil
		},
	},
	SettingExportIncludeHeader: {
		get: func(s domain.Settings) any { return s.Export.IncludeHeader },
		set: func(s *domain.Settings, v any) error {
			b, err := boolValue(v)
			if err == nil {
				s.Export.IncludeHeader = b
			}
			return err
		},
	},
	SettingAutoSave: {
		get: func(s domain.Settings) any { return s.Storage.AutoSave },
		set: func(s *domain.Settings, v any) error {
			b, err := boolValue(v)
			if err == nil {
				s.Storage.AutoSave = b
			}
			return err
		},
	},
	SettingAutoSaveInterval: {
		get: func(s domain.Settings) any { return s.Storage.AutoSaveInterval },
		set: func(s *domain.Settings, v any) error {
			n, err := intValue(v, 1)
			if err == nil {
				s.Storage.AutoSaveInterval = n
			}
			return err
		},
	},
	SettingOverwriteExisting: {
		get: func(s domain.Settings) any { return s.Import.OverwriteExisting },
		set: func(s *domain.Settings, v any) error {
			b, err := boolValue(v)
			if err == nil {
				s.Import.OverwriteExisting = b
			}
			return err
		},
	},
	SettingReportTitle: {
		get: func(s domain.Settings) any { return s.Report.Title },
		set: func(s *domain.Settings, v any) error {
			t, err := stringValue(v)
			if err == nil {
				s.Report.Title = strings.TrimSpace(t)
			}
			return err
		},
	},
}

// SettingPaths lists every addressable settings path, sorted.
func SettingPaths() []string {
	out := make([]string, 0, len(settingTable))
	for p := range settingTable {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// GetSetting reads the value at path.
func GetSetting(s domain.Settings, path string) (any, error) {
	acc, ok := settingTable[path]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
	}
	return acc.get(s), nil
}

// ApplySetting writes value at path. Strings are parsed into the target type,
// so values coming from a CLI or query string can be passed through as-is.
func ApplySetting(s *domain.Settings, path string, value any) error {
	acc, ok := settingTable[path]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
	}
	return acc.set(s, value)
}

func intValue(v any, min int) (int, error) {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%w: %v is not an integer", domain.ErrMalformedInput, t)
		}
		n = int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", domain.ErrMalformedInput, t)
		}
		n = i
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", domain.ErrMalformedInput, v)
	}
	if n < min {
		return 0, fmt.Errorf("%w: %d is below %d", domain.ErrMalformedInput, n, min)
	}
	return n, nil
}

func floatValue(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", domain.ErrMalformedInput, t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: expected number, got %T", domain.ErrMalformedInput, v)
	}
}

func boolValue(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", domain.ErrMalformedInput, t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: expected boolean, got %T", domain.ErrMalformedInput, v)
	}
}

func stringValue(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected string, got %T", domain.ErrMalformedInput, v)
	}
	return s, nil
}
