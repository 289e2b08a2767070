package scoring

import "rating-service/internal/domain"

// ScoreMap is the scoring view of a question catalog: option points by index plus the question weight.
type ScoreMap struct {
	order     []string
	questions map[string]questionScore
}

type questionScore struct {
	points   []*float64
	weight   float64
	maxScore float64
	hasMax   bool
}

// NewScoreMap indexes the catalog. Not-applicable options are left out of the max score.
func NewScoreMap(questions []domain.Question) ScoreMap {
	m := ScoreMap{
		order:     make([]string, 0, len(questions)),
		questions: make(map[string]questionScore, len(questions)),
	}
	for _, q := range questions {
		qs := questionScore{
			points: make([]*float64, len(q.Options)),
			weight: q.EffectiveWeight(),
		}
		for i, opt := range q.Options {
			qs.points[i] = opt.Points
			if opt.Points == nil {
				continue
			}
			if !qs.hasMax || *opt.Points > qs.maxScore {
				qs.maxScore = *opt.Points
				qs.hasMax = true
			}
		}
		if _, dup := m.questions[q.ID]; !dup {
			m.order = append(m.order, q.ID)
		}
		m.questions[q.ID] = qs
	}
	return m
}

// Points looks up the numeric value of an answer. ok is false for unknown questions,
// out-of-range indexes and not-applicable options.
func (m ScoreMap) Points(a domain.Answer) (float64, bool) {
	qs, found := m.questions[a.QuestionID]
	if !found || a.Index < 0 || a.Index >= len(qs.points) {
		return 0, false
	}
	p := qs.points[a.Index]
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Sum adds the numeric points of the answers per question. Questions with no numeric
// contribution get no key.
func (m ScoreMap) Sum(answers []domain.Answer) map[string]float64 {
	sums := make(map[string]float64)
	for _, a := range answers {
		if p, ok := m.Points(a); ok {
			sums[a.QuestionID] += p
		}
	}
	return sums
}

// Fold adds one submission's answers to base.
func (m ScoreMap) Fold(base domain.RawCalculationArguments, answers []domain.Answer) domain.RawCalculationArguments {
	return base.Add(domain.RawCalculationArguments{SumScoreByQuestion: m.Sum(answers), Total: 1})
}
