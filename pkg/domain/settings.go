package domain

import "time"

// Settings is the typed application configuration persisted with the snapshot.
type Settings struct {
	Analysis AnalysisSettings `json:"analysis"`
	Export   ExportSettings   `json:"export"`
	Storage  StorageSettings  `json:"storage"`
	Import   ImportSettings   `json:"import"`
	Report   ReportSettings   `json:"report"`
}

// AnalysisSettings tune the statistics engine.
type AnalysisSettings struct {
	MinimumResponses     int     `json:"minimumResponses"`
	CorrelationThreshold float64 `json:"correlationThreshold"`
	RankingSize          int     `json:"rankingSize"`
}

// ExportSettings tune the delimited-text serializer.
type ExportSettings struct {
	Delimiter     string `json:"delimiter"`
	IncludeHeader bool   `json:"includeHeader"`
}

// StorageSettings control background snapshot persistence.
type StorageSettings struct {
	AutoSave bool `json:"autoSave"`
	// AutoSaveInterval is expressed in seconds.
	AutoSaveInterval int `json:"autoSaveInterval"`
}

// Interval returns AutoSaveInterval as a duration.
func (s StorageSettings) Interval() time.Duration {
	return time.Duration(s.AutoSaveInterval) * time.Second
}

// ImportSettings hold defaults for the import pipeline.
type ImportSettings struct {
	OverwriteExisting bool `json:"overwriteExisting"`
}

// ReportSettings configure generated report artifacts.
type ReportSettings struct {
	Title string `json:"title"`
}

// DefaultSettings returns the settings applied when nothing has been saved.
func DefaultSettings() Settings {
	return Settings{
		Analysis: AnalysisSettings{
			MinimumResponses:     3,
			CorrelationThreshold: 0.3,
			RankingSize:          5,
		},
		Export: ExportSettings{
			Delimiter:     ",",
			IncludeHeader: true,
		},
		Storage: StorageSettings{
			AutoSave:         true,
			AutoSaveInterval: 30,
		},
		Import: ImportSettings{OverwriteExisting: false},
		Report: ReportSettings{Title: "Employee Survey Report"},
	}
}

// DelimiterRune returns the configured export delimiter, falling back to a comma.
func (s ExportSettings) DelimiterRune() rune {
	for _, r := range s.Delimiter {
		return r
	}
	return ','
}
