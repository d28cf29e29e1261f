package core

import (
	"surveycore/pkg/domain"
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in record checks.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewDemographicCodesRule())
	engine.Register(NewLikertDomainRule())
	engine.Register(NewUniqueAnswersRule())
	engine.Register(NewTimestampFormatRule())
	return engine
}

// schemaView is a RuleView with no stored records.
type schemaView struct {
	schema *domain.Schema
}

func (v schemaView) Schema() *domain.Schema { return v.schema }

func (schemaView) FindSurvey(string) (domain.SurveyRecord, bool) {
	return domain.SurveyRecord{}, false
}
