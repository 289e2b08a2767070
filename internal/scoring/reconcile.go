package scoring

import "rating-service/internal/domain"

// Reconcile builds the new global aggregate for a subject from a sample of completed ratings
// (ordered by descending RawArgs.Total) and the finalizing user's answers.
//
// When the head of the sample carries an aggregate, it is used as the baseline. Entries that share
// the head's total were saved against the same not-yet-advanced aggregate, so their answers are
// folded on top of the last sibling's aggregate instead of being dropped. Without a usable head the
// whole sample is rescanned and its size stands in for the total.
func Reconcile(sample []domain.Rating, answers []domain.Answer, m ScoreMap) domain.RawCalculationArguments {
	baseline, ok := Baseline(sample, m)
	if !ok {
		return FullScan(sample, answers, m)
	}
	return m.Fold(baseline, answers)
}

// Baseline reconstructs the aggregate of everyone before the finalizing user. ok is false when
// the sample has no head aggregate to start from.
func Baseline(sample []domain.Rating, m ScoreMap) (domain.RawCalculationArguments, bool) {
	if len(sample) == 0 || sample[0].RawArgs == nil || sample[0].RawArgs.Total <= 0 {
		return domain.RawCalculationArguments{}, false
	}

	last := 0
	for last+1 < len(sample) {
		next := sample[last+1].RawArgs
		if next == nil || next.Total != sample[last].RawArgs.Total {
			break
		}
		last++
	}

	baseline := *sample[last].RawArgs
	for i := last - 1; i >= 0; i-- {
		baseline = m.Fold(baseline, sample[i].Answers)
	}
	return baseline, true
}

// FullScan sums every sampled answer together with the new answers.
// The total is the sample size plus one even if the sample was truncated.
func FullScan(sample []domain.Rating, answers []domain.Answer, m ScoreMap) domain.RawCalculationArguments {
	all := make([]domain.Answer, 0, len(answers)+len(sample)*len(answers))
	all = append(all, answers...)
	for _, r := range sample {
		all = append(all, r.Answers...)
	}
	return domain.RawCalculationArguments{
		SumScoreByQuestion: m.Sum(all),
		Total:              len(sample) + 1,
	}
}
