package domain

// RawCalculationArguments is the running aggregate of per-question score sums and the number of
// submissions folded into them. Values are treated as immutable; Add returns a new value.
type RawCalculationArguments struct {
	SumScoreByQuestion map[string]float64 `json:"sumScoreByQuestion" bson:"sumScoreByQuestion"`
	Total              int                `json:"total" bson:"total"`
}

// NewRawArgs copies sums into a fresh value.
func NewRawArgs(sums map[string]float64, total int) RawCalculationArguments {
	copied := make(map[string]float64, len(sums))
	for k, v := range sums {
		copied[k] = v
	}
	return RawCalculationArguments{SumScoreByQuestion: copied, Total: total}
}

// Add sums two aggregates over the union of their question ids.
func (a RawCalculationArguments) Add(b RawCalculationArguments) RawCalculationArguments {
	sums := make(map[string]float64, len(a.SumScoreByQuestion)+len(b.SumScoreByQuestion))
	for k, v := range a.SumScoreByQuestion {
		sums[k] += v
	}
	for k, v := range b.SumScoreByQuestion {
		sums[k] += v
	}
	return RawCalculationArguments{SumScoreByQuestion: sums, Total: a.Total + b.Total}
}

// Mean returns the per-question mean. ok is false when the question has no numeric contribution.
func (a RawCalculationArguments) Mean(questionID string) (mean float64, ok bool) {
	sum, ok := a.SumScoreByQuestion[questionID]
	if !ok || a.Total <= 0 {
		return 0, false
	}
	return sum / float64(a.Total), true
}

// Equal compares totals and sums exactly.
func (a RawCalculationArguments) Equal(b RawCalculationArguments) bool {
	if a.Total != b.Total || len(a.SumScoreByQuestion) != len(b.SumScoreByQuestion) {
		return false
	}
	for k, v := range a.SumScoreByQuestion {
		if w, ok := b.SumScoreByQuestion[k]; !ok || w != v {
			return false
		}
	}
	return true
}
