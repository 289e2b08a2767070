package app

import (
	"context"
	"fmt"

	"rating-service/internal/domain"
	"rating-service/internal/scoring"
)

// QuestionCatalog returns the active questionnaire in display order.
type QuestionCatalog interface {
	GetQuestions(ctx context.Context) ([]domain.Question, error)
}

// RatingStore abstracts where ratings live (in-memory, MongoDB, etc).
// GetSampleRatings must return completed ratings ordered by descending RawArgs.Total.
type RatingStore interface {
	GetUsersAnswers(ctx context.Context, userID, subjectID string) ([]domain.Answer, error)
	GetSampleRatings(ctx context.Context, subjectID string) ([]domain.Rating, error)
	UpsertRating(ctx context.Context, rating domain.Rating) error
}

// RatingEngine runs the questionnaire state machine for one subject kind.
// It keeps no state between calls.
type RatingEngine struct {
	kind      domain.SubjectKind
	questions QuestionCatalog
	ratings   RatingStore
}

func NewRatingEngine(kind domain.SubjectKind, questions QuestionCatalog, ratings RatingStore) *RatingEngine {
	return &RatingEngine{kind: kind, questions: questions, ratings: ratings}
}

func NewMovieRatingEngine(questions QuestionCatalog, ratings RatingStore) *RatingEngine {
	return NewRatingEngine(domain.MovieSubjects, questions, ratings)
}

func NewShowRatingEngine(questions QuestionCatalog, ratings RatingStore) *RatingEngine {
	return NewRatingEngine(domain.ShowSubjects, questions, ratings)
}

// Kind reports which subjects this engine rates.
func (e *RatingEngine) Kind() domain.SubjectKind {
	return e.kind
}

// IsAnswerFinal reports whether the submission would complete the questionnaire.
// Revisions of an already answered question never do.
func (e *RatingEngine) IsAnswerFinal(ctx context.Context, submitted domain.SubmittedAnswer, userID string) (bool, error) {
	questions, existing, err := e.load(ctx, submitted, userID)
	if err != nil {
		return false, err
	}
	return isFinal(existing, questions) && indexOfAnswer(existing, submitted.QuestionID) < 0, nil
}

// ProcessAnswer classifies the submission against the catalog and the user's recorded answers,
// persists the updated rating when the answer is accepted, and grades the questionnaire on the
// final answer.
func (e *RatingEngine) ProcessAnswer(ctx context.Context, submitted domain.SubmittedAnswer, userID, displayName string) (domain.Outcome, error) {
	questions, existing, err := e.load(ctx, submitted, userID)
	if err != nil {
		return domain.Outcome{}, err
	}
	revision := indexOfAnswer(existing, submitted.QuestionID) >= 0

	switch {
	case len(existing) >= len(questions):
		return domain.Outcome{Result: domain.AttemptToRetakeTest}, nil

	case !validAnswer(submitted, questions):
		return domain.Outcome{Result: domain.InvalidAnswer}, nil

	// a one-question catalog completes on its first answer
	case len(existing) == 0 && !isFinal(existing, questions):
		if err := e.save(ctx, submitted, userID, displayName, mergeAnswer(existing, submitted.Answer())); err != nil {
			return domain.Outcome{}, err
		}
		return domain.Outcome{Result: domain.TestStarted}, nil

	case revision || (len(existing) > 0 && len(existing) < len(questions)-1):
		if err := e.save(ctx, submitted, userID, displayName, mergeAnswer(existing, submitted.Answer())); err != nil {
			return domain.Outcome{}, err
		}
		return domain.Outcome{Result: domain.AnswerAccepted}, nil

	case isFinal(existing, questions):
		return e.complete(ctx, submitted, userID, displayName, questions, mergeAnswer(existing, submitted.Answer()))
	}

	return domain.Outcome{Result: domain.InvalidAnswer}, nil
}

func (e *RatingEngine) complete(ctx context.Context, submitted domain.SubmittedAnswer, userID, displayName string, questions []domain.Question, answers []domain.Answer) (domain.Outcome, error) {
	subjectID := e.kind.SubjectID(submitted.SubjectID)
	sample, err := e.ratings.GetSampleRatings(ctx, subjectID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("load sample ratings: %w", err)
	}

	scores := scoring.NewScoreMap(questions)
	global := scoring.Reconcile(sample, answers, scores)
	usersGrade := scoring.UsersGrade(answers, scores)
	globalGrade := scoring.Grade(global, scores)

	rating := domain.Rating{
		SubjectID:   subjectID,
		UserID:      userID,
		UserName:    displayName,
		Answers:     answers,
		UsersRating: usersGrade,
		RawArgs:     &global,
	}
	if err := e.ratings.UpsertRating(ctx, rating); err != nil {
		return domain.Outcome{}, fmt.Errorf("save completed rating: %w", err)
	}
	return domain.Outcome{
		Result:      domain.TestCompleted,
		GlobalGrade: globalGrade,
		UsersGrade:  usersGrade,
		Submissions: global.Total,
	}, nil
}

func (e *RatingEngine) save(ctx context.Context, submitted domain.SubmittedAnswer, userID, displayName string, answers []domain.Answer) error {
	rating := domain.Rating{
		SubjectID: e.kind.SubjectID(submitted.SubjectID),
		UserID:    userID,
		UserName:  displayName,
		Answers:   answers,
	}
	if err := e.ratings.UpsertRating(ctx, rating); err != nil {
		return fmt.Errorf("save rating: %w", err)
	}
	return nil
}

func (e *RatingEngine) load(ctx context.Context, submitted domain.SubmittedAnswer, userID string) ([]domain.Question, []domain.Answer, error) {
	questions, err := e.questions.GetQuestions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load questions: %w", err)
	}
	existing, err := e.ratings.GetUsersAnswers(ctx, userID, e.kind.SubjectID(submitted.SubjectID))
	if err != nil {
		return nil, nil, fmt.Errorf("load answers: %w", err)
	}
	return questions, existing, nil
}

func isFinal(existing []domain.Answer, questions []domain.Question) bool {
	return len(questions)-len(existing) == 1
}

// validAnswer checks the question exists and the index addresses one of its options.
func validAnswer(submitted domain.SubmittedAnswer, questions []domain.Question) bool {
	for i := range questions {
		if questions[i].ID == submitted.QuestionID {
			return submitted.Index >= 0 && submitted.Index < len(questions[i].Options)
		}
	}
	return false
}

func indexOfAnswer(answers []domain.Answer, questionID string) int {
	for i := range answers {
		if answers[i].QuestionID == questionID {
			return i
		}
	}
	return -1
}

// mergeAnswer returns a copy of answers with a replaced in place or appended.
func mergeAnswer(answers []domain.Answer, a domain.Answer) []domain.Answer {
	merged := make([]domain.Answer, len(answers), len(answers)+1)
	copy(merged, answers)
	if i := indexOfAnswer(merged, a.QuestionID); i >= 0 {
		merged[i] = a
		return merged
	}
	return append(merged, a)
}
