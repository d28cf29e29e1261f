package domain

import "time"

// EventType names a notification emitted after a store mutation.
type EventType string

// Event types published on the service event bus.
const (
	EventDataChanged     EventType = "dataChanged"
	EventSurveyAdded     EventType = "surveyAdded"
	EventSurveyUpdated   EventType = "surveyUpdated"
	EventSurveyDeleted   EventType = "surveyDeleted"
	EventDataImported    EventType = "dataImported"
	EventSettingsChanged EventType = "settingsChanged"
)

// Event carries the payload of a notification. Fields not relevant to the
// event type are left zero.
type Event struct {
	Type       EventType
	OccurredAt time.Time
	// Action is set on dataChanged to describe what triggered it.
	Action Action
	Change *Change
	// Surveys holds the pre-clear records for a clear, or the imported records.
	Surveys []SurveyRecord
	Import  *ImportStats
	Setting *SettingChange
}

// ImportStats summarises a batch import for event listeners.
type ImportStats struct {
	Imported    int
	Overwritten int
	Skipped     int
	Invalid     int
}

// SettingChange describes a settings path update.
type SettingChange struct {
	Path     string
	Previous any
	Value    any
}
