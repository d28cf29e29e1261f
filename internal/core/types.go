package core

import "surveycore/pkg/domain"

type (
	SurveyRecord       = domain.SurveyRecord
	Answer             = domain.Answer
	Schema             = domain.Schema
	Settings           = domain.Settings
	Snapshot           = domain.Snapshot
	Severity           = domain.Severity
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Event              = domain.Event
	EventType          = domain.EventType
)

const (
	SeverityError   = domain.SeverityError
	SeverityWarning = domain.SeverityWarning
	SeverityInfo    = domain.SeverityInfo
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
	ActionClear  = domain.ActionClear
	ActionImport = domain.ActionImport
)
