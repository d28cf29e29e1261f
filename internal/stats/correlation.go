package stats

import (
	"fmt"
	"math"
	"sort"

	"surveycore/pkg/domain"
)

// Direction of a correlation.
type Direction string

// Strength tier of a correlation.
type Strength string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"

	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
)

// StrongThreshold is the |r| from which a correlation is tagged strong.
const StrongThreshold = 0.7

// MinPairs is the smallest number of complete pairs a coefficient is computed from.
const MinPairs = 3

// Correlation is the Pearson coefficient between two Likert questions.
type Correlation struct {
	QuestionID string    `json:"questionId"`
	OtherID    string    `json:"otherId"`
	R          float64   `json:"r"`
	Direction  Direction `json:"direction"`
	Strength   Strength  `json:"strength"`
	SampleSize int       `json:"sampleSize"`
}

// columns holds the scores of each Likert question aligned by record index.
type columns map[string][]*int

func extract(records []domain.SurveyRecord, qids []string) columns {
	cols := make(columns, len(qids))
	for _, qid := range qids {
		col := make([]*int, len(records))
		for i, rec := range records {
			if v, ok := rec.Score(qid); ok {
				v := v
				col[i] = &v
			}
		}
		cols[qid] = col
	}
	return cols
}

// pearson uses the raw-score formula over pairwise-complete observations.
// A zero denominator yields r=0.
func pearson(xs, ys []*int) (float64, int) {
	var n, sx, sy, sxy, sxx, syy float64
	for i := range xs {
		if xs[i] == nil || ys[i] == nil {
			continue
		}
		x, y := float64(*xs[i]), float64(*ys[i])
		n++
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
		syy += y * y
	}
	count := int(n)
	if count < MinPairs {
		return 0, count
	}
	den := math.Sqrt((n*sxx - sx*sx) * (n*syy - sy*sy))
	if den == 0 || math.IsNaN(den) {
		return 0, count
	}
	r := (n*sxy - sx*sy) / den
	return math.Max(-1, math.Min(1, r)), count
}

func newCorrelation(a, b string, r float64, n int) Correlation {
	c := Correlation{QuestionID: a, OtherID: b, R: r, SampleSize: n, Direction: DirectionPositive, Strength: StrengthModerate}
	if r < 0 {
		c.Direction = DirectionNegative
	}
	if math.Abs(r) >= StrongThreshold {
		c.Strength = StrengthStrong
	}
	return c
}

func sortByMagnitude(out []Correlation) {
	sort.SliceStable(out, func(i, j int) bool { return math.Abs(out[i].R) > math.Abs(out[j].R) })
}

// Correlate returns the correlations of questionID with every other Likert
// question whose |r| reaches threshold, strongest first. Pairs with fewer
// than MinPairs complete observations are skipped.
func Correlate(records []domain.SurveyRecord, schema *domain.Schema, questionID string, threshold float64) ([]Correlation, error) {
	q, ok := schema.Question(questionID)
	if !ok || !q.IsLikert() {
		return nil, fmt.Errorf("%w: likert question %q", domain.ErrNotFound, questionID)
	}
	var likert []string
	for _, lq := range schema.LikertQuestions() {
		likert = append(likert, lq.ID)
	}
	cols := extract(records, likert)
	out := []Correlation{}
	for _, other := range likert {
		if other == questionID {
			continue
		}
		r, n := pearson(cols[questionID], cols[other])
		if n < MinPairs || math.Abs(r) < threshold {
			continue
		}
		out = append(out, newCorrelation(questionID, other, r, n))
	}
	sortByMagnitude(out)
	return out, nil
}

// TopCorrelations scans every unordered pair of Likert questions and returns
// those reaching threshold, strongest first, at most limit entries (limit<=0
// means all).
func TopCorrelations(records []domain.SurveyRecord, schema *domain.Schema, threshold float64, limit int) []Correlation {
	var likert []string
	for _, q := range schema.LikertQuestions() {
		likert = append(likert, q.ID)
	}
	cols := extract(records, likert)
	out := []Correlation{}
	for i := 0; i < len(likert); i++ {
		for j := i + 1; j < len(likert); j++ {
			r, n := pearson(cols[likert[i]], cols[likert[j]])
			if n < MinPairs || math.Abs(r) < threshold {
				continue
			}
			out = append(out, newCorrelation(likert[i], likert[j], r, n))
		}
	}
	sortByMagnitude(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Matrix is the full coefficient table between Likert questions. Cells with
// fewer than MinPairs complete pairs are nil.
type Matrix struct {
	QuestionIDs []string     `json:"questionIds"`
	R           [][]*float64 `json:"r"`
	SampleSize  [][]int      `json:"sampleSize"`
}

// CorrelationMatrix computes the symmetric matrix for every Likert question.
func CorrelationMatrix(records []domain.SurveyRecord, schema *domain.Schema) Matrix {
	var likert []string
	for _, q := range schema.LikertQuestions() {
		likert = append(likert, q.ID)
	}
	cols := extract(records, likert)
	m := Matrix{QuestionIDs: likert, R: make([][]*float64, len(likert)), SampleSize: make([][]int, len(likert))}
	for i := range likert {
		m.R[i] = make([]*float64, len(likert))
		m.SampleSize[i] = make([]int, len(likert))
	}
	for i := range likert {
		for j := i; j < len(likert); j++ {
			r, n := pearson(cols[likert[i]], cols[likert[j]])
			m.SampleSize[i][j], m.SampleSize[j][i] = n, n
			if n < MinPairs {
				continue
			}
			if i == j && r == 0 {
				// constant columns still correlate perfectly with themselves
				r = 1
			}
			m.R[i][j] = ptr(r, true)
			m.R[j][i] = m.R[i][j]
		}
	}
	return m
}
