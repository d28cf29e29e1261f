package core

import (
	"context"
	"fmt"

	"surveycore/pkg/domain"
)

// NewUniqueAnswersRule enforces one answer slot per question.
func NewUniqueAnswersRule() domain.Rule {
	return uniqueAnswersRule{}
}

type uniqueAnswersRule struct{}

func (uniqueAnswersRule) Name() string { return "unique_answers" }

func (r uniqueAnswersRule) Evaluate(_ context.Context, _ domain.RuleView, record domain.SurveyRecord) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[string]int, len(record.Answers))
	for _, a := range record.Answers {
		seen[a.QuestionID]++
		if seen[a.QuestionID] == 2 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityError,
				Message:  fmt.Sprintf("%s: answered more than once", a.QuestionID),
				Field:    a.QuestionID,
				RecordID: record.ID,
			})
		}
	}
	return res, nil
}
