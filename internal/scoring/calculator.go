package scoring

import (
	"math"

	"rating-service/internal/domain"
)

// gradeScale is ordered from the highest threshold down.
var gradeScale = []struct {
	grade domain.Grade
	min   float64
}{
	{domain.GradeA, 80},
	{domain.GradeB, 60},
	{domain.GradeC, 40},
	{domain.GradeD, 20},
	{domain.GradeF, 0},
}

// LetterGrade maps a 0-100 rating to the highest grade whose threshold it reaches.
func LetterGrade(rating float64) domain.Grade {
	if math.IsNaN(rating) {
		return domain.GradeUnknown
	}
	for _, step := range gradeScale {
		if rating >= step.min {
			return step.grade
		}
	}
	return domain.GradeUnknown
}

// Rate turns an aggregate into a 0-100 rating. Each question's mean is rescaled onto its weight
// (mean / (maxScore / weight)) and the result is normalized by the total weight of the included
// questions. ok is false when no question could be included.
func Rate(args domain.RawCalculationArguments, m ScoreMap) (float64, bool) {
	var (
		included  int
		valueSum  float64
		weightSum float64
	)
	for _, id := range m.order {
		mean, ok := args.Mean(id)
		if !ok || math.IsNaN(mean) {
			continue
		}
		qs := m.questions[id]
		// a question without positive numeric options has no scale to normalize against
		if !qs.hasMax || qs.maxScore <= 0 {
			continue
		}
		valueSum += mean / (qs.maxScore / qs.weight)
		weightSum += qs.weight
		included++
	}
	if included == 0 || weightSum == 0 {
		return 0, false
	}
	scaledSum := float64(100*included) * (valueSum / weightSum)
	return scaledSum / float64(included), true
}

// Grade rates args and maps the result to a letter.
func Grade(args domain.RawCalculationArguments, m ScoreMap) domain.Grade {
	rating, ok := Rate(args, m)
	if !ok {
		return domain.GradeUnknown
	}
	return LetterGrade(rating)
}

// UsersGrade scores a single answer set with no other submissions folded in.
func UsersGrade(answers []domain.Answer, m ScoreMap) domain.Grade {
	return Grade(m.Fold(domain.RawCalculationArguments{}, answers), m)
}
