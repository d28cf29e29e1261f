package stats

import (
	"sort"

	"surveycore/pkg/domain"
)

// QuestionScore is one entry of a ranking.
type QuestionScore struct {
	QuestionID string  `json:"questionId"`
	Text       string  `json:"text"`
	Area       string  `json:"area,omitempty"`
	Average    float64 `json:"average"`
	SampleSize int     `json:"sampleSize"`
}

// Ranking holds the best and worst rated questions.
type Ranking struct {
	// Strengths are ordered by average descending.
	Strengths []QuestionScore `json:"strengths"`
	// Weaknesses are the tail of the same descending ranking, reversed so
	// the weakest comes first.
	Weaknesses []QuestionScore `json:"weaknesses"`
}

// RankQuestions ranks Likert questions by average and returns the top and
// bottom k. Questions with fewer than minResponses answers (and at least one)
// are left out. Ties keep schema order.
func RankQuestions(records []domain.SurveyRecord, schema *domain.Schema, k, minResponses int) Ranking {
	if minResponses < 1 {
		minResponses = 1
	}
	var scored []QuestionScore
	for _, q := range schema.LikertQuestions() {
		xs := Values(records, q.ID)
		if len(xs) < minResponses {
			continue
		}
		avg, _ := mean(xs)
		scored = append(scored, QuestionScore{QuestionID: q.ID, Text: q.Text, Area: q.Area, Average: avg, SampleSize: len(xs)})
	}
	if k <= 0 || len(scored) == 0 {
		return Ranking{Strengths: []QuestionScore{}, Weaknesses: []QuestionScore{}}
	}
	if k > len(scored) {
		k = len(scored)
	}
	desc := append([]QuestionScore(nil), scored...)
	sort.SliceStable(desc, func(i, j int) bool { return desc[i].Average > desc[j].Average })
	weak := make([]QuestionScore, k)
	for i := range weak {
		weak[i] = desc[len(desc)-1-i]
	}
	return Ranking{Strengths: desc[:k:k], Weaknesses: weak}
}
