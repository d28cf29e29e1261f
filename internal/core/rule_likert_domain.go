package core

import (
	"context"
	"fmt"

	"surveycore/pkg/domain"
)

// NewLikertDomainRule checks that every answer slot fits its question: Likert
// slots hold an integer in 1..5, text slots target text questions, and slots
// reference known questions.
func NewLikertDomainRule() domain.Rule {
	return likertDomainRule{}
}

type likertDomainRule struct{}

func (likertDomainRule) Name() string { return "likert_domain" }

func (r likertDomainRule) Evaluate(_ context.Context, view domain.RuleView, record domain.SurveyRecord) (domain.Result, error) {
	res := domain.Result{}
	schema := view.Schema()
	add := func(field, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityError,
			Message:  msg,
			Field:    field,
			RecordID: record.ID,
		})
	}
	for _, a := range record.Answers {
		if a.Empty() {
			continue
		}
		q, ok := schema.Question(a.QuestionID)
		if !ok {
			add(a.QuestionID, fmt.Sprintf("%s: unknown question", a.QuestionID))
			continue
		}
		switch {
		case q.IsLikert() && a.Score == nil:
			add(q.ID, fmt.Sprintf("%s: value %q is not an integer between %d and %d", q.ID, a.Text, domain.LikertMin, domain.LikertMax))
		case q.IsLikert() && (*a.Score < domain.LikertMin || *a.Score > domain.LikertMax):
			add(q.ID, fmt.Sprintf("%s: value %d is outside %d-%d", q.ID, *a.Score, domain.LikertMin, domain.LikertMax))
		case !q.IsLikert() && a.Score != nil:
			add(q.ID, fmt.Sprintf("%s: expects free text, got %d", q.ID, *a.Score))
		}
	}
	return res, nil
}
