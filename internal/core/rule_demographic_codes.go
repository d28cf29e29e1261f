package core

import (
	"context"
	"fmt"

	"surveycore/pkg/domain"
)

// NewDemographicCodesRule rejects demographic values missing from the schema option tables.
func NewDemographicCodesRule() domain.Rule {
	return demographicCodesRule{}
}

type demographicCodesRule struct{}

func (demographicCodesRule) Name() string { return "demographic_codes" }

func (r demographicCodesRule) Evaluate(_ context.Context, view domain.RuleView, record domain.SurveyRecord) (domain.Result, error) {
	res := domain.Result{}
	schema := view.Schema()
	for _, field := range schema.DemographicFields() {
		code := record.Demographic(field)
		if code == "" {
			continue
		}
		if _, ok := schema.Option(field, code); ok {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("%s: %v %q", field, domain.ErrInvalidEnumValue, code),
			Field:    field,
			RecordID: record.ID,
		})
	}
	return res, nil
}
