package app

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"unicode/utf8"

	"rating-service/internal/domain"
)

// ChallengeVerifier checks a CAPTCHA token before a questionnaire is completed.
type ChallengeVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// SummaryStore keeps the per-subject grade and how many users completed or reviewed it.
type SummaryStore interface {
	RecordCompletion(ctx context.Context, kind domain.SubjectKind, subjectID string, grade domain.Grade) error
	RecordReview(ctx context.Context, kind domain.SubjectKind, subjectID string, delta int) error
	GetSummary(ctx context.Context, kind domain.SubjectKind, subjectID string) (domain.SubjectSummary, error)
}

// EventPublisher announces completed ratings to other services.
type EventPublisher interface {
	PublishRatingCompleted(ctx context.Context, event domain.RatingCompleted) error
}

// ReviewStore writes the free-text review kept next to a user's answers.
// Both methods report whether a review was present before the call.
type ReviewStore interface {
	SetReview(ctx context.Context, userID, subjectID, userName, review string) (domain.Rating, bool, error)
	DeleteReview(ctx context.Context, userID, subjectID string) (domain.Rating, bool, error)
}

// RatingReader serves read-only views of stored ratings.
type RatingReader interface {
	GetRating(ctx context.Context, userID, subjectID string) (domain.Rating, error)
	GetSampleRatings(ctx context.Context, subjectID string) ([]domain.Rating, error)
}

// AnswerService routes submissions to the engine for their subject kind and handles everything
// around a completed questionnaire.
type AnswerService struct {
	engines   map[string]*RatingEngine
	ratings   RatingReader
	verifier  ChallengeVerifier
	reviews   ReviewStore
	summaries SummaryStore
	events    EventPublisher
}

// Option configures optional collaborators of the AnswerService.
type Option func(*AnswerService)

func WithChallengeVerifier(v ChallengeVerifier) Option { return func(s *AnswerService) { s.verifier = v } }
func WithSummaryStore(st SummaryStore) Option          { return func(s *AnswerService) { s.summaries = st } }
func WithEventPublisher(p EventPublisher) Option       { return func(s *AnswerService) { s.events = p } }
func WithReviewStore(st ReviewStore) Option            { return func(s *AnswerService) { s.reviews = st } }

func NewAnswerService(ratings RatingReader, engines []*RatingEngine, opts ...Option) *AnswerService {
	s := &AnswerService{
		engines: make(map[string]*RatingEngine, len(engines)),
		ratings: ratings,
	}
	for _, e := range engines {
		s.engines[e.Kind().Name] = e
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit processes one answer from an authenticated user. The CAPTCHA token is only checked
// when the answer would complete the questionnaire.
func (s *AnswerService) Submit(ctx context.Context, kind string, submitted domain.SubmittedAnswer, userID, fullName, challengeToken string) (domain.Outcome, error) {
	engine, ok := s.engines[kind]
	if !ok {
		return domain.Outcome{}, domain.ErrUnknownSubjectKind
	}

	if s.verifier != nil {
		final, err := engine.IsAnswerFinal(ctx, submitted, userID)
		if err != nil {
			return domain.Outcome{}, err
		}
		if final {
			passed, err := s.verifier.Verify(ctx, challengeToken)
			if err != nil {
				return domain.Outcome{}, fmt.Errorf("%w: %v", domain.ErrChallengeUnavailable, err)
			}
			if !passed {
				return domain.Outcome{Result: domain.InvalidChallenge}, nil
			}
		}
	}

	outcome, err := engine.ProcessAnswer(ctx, submitted, userID, ShortName(fullName))
	if err != nil {
		return domain.Outcome{}, err
	}
	if outcome.Result == domain.TestCompleted {
		s.afterCompletion(ctx, engine.Kind(), submitted.SubjectID, userID, outcome)
	}
	return outcome, nil
}

// afterCompletion runs once the rating is persisted; failures here are logged and do not undo it.
func (s *AnswerService) afterCompletion(ctx context.Context, kind domain.SubjectKind, rawSubjectID, userID string, outcome domain.Outcome) {
	subjectID := kind.SubjectID(rawSubjectID)
	if s.summaries != nil {
		if err := s.summaries.RecordCompletion(ctx, kind, subjectID, outcome.GlobalGrade); err != nil {
			log.Printf("record completion for %s: %v", subjectID, err)
		}
	}
	if s.events == nil {
		return
	}
	event := domain.RatingCompleted{
		Kind:        kind.Name,
		SubjectID:   subjectID,
		UserID:      userID,
		UsersGrade:  outcome.UsersGrade,
		GlobalGrade: outcome.GlobalGrade,
		Submissions: outcome.Submissions,
	}
	if err := s.events.PublishRatingCompleted(ctx, event); err != nil {
		log.Printf("publish completion for %s: %v", subjectID, err)
	}
}

// AddReview attaches a review to the user's rating, creating an unanswered rating if needed.
// The CAPTCHA token is always checked. The subject's reviews counter only moves for a first review.
func (s *AnswerService) AddReview(ctx context.Context, kind, subjectID, userID, fullName, review, challengeToken string) (domain.Rating, error) {
	k, ok := domain.SubjectKindByName(kind)
	if !ok {
		return domain.Rating{}, domain.ErrUnknownSubjectKind
	}
	if s.reviews == nil {
		return domain.Rating{}, domain.ErrReviewsDisabled
	}
	review = strings.TrimSpace(review)
	if review == "" {
		return domain.Rating{}, domain.ErrEmptyReview
	}
	if s.verifier != nil {
		passed, err := s.verifier.Verify(ctx, challengeToken)
		if err != nil {
			return domain.Rating{}, fmt.Errorf("%w: %v", domain.ErrChallengeUnavailable, err)
		}
		if !passed {
			return domain.Rating{}, domain.ErrChallengeFailed
		}
	}

	id := k.SubjectID(subjectID)
	rating, existed, err := s.reviews.SetReview(ctx, userID, id, ShortName(fullName), html.EscapeString(review))
	if err != nil {
		return domain.Rating{}, err
	}
	if !existed {
		s.recordReview(ctx, k, id, 1)
	}
	return rating, nil
}

// DeleteReview removes the user's review for a subject.
func (s *AnswerService) DeleteReview(ctx context.Context, kind, subjectID, userID string) (domain.Rating, error) {
	k, ok := domain.SubjectKindByName(kind)
	if !ok {
		return domain.Rating{}, domain.ErrUnknownSubjectKind
	}
	if s.reviews == nil {
		return domain.Rating{}, domain.ErrReviewsDisabled
	}
	id := k.SubjectID(subjectID)
	rating, existed, err := s.reviews.DeleteReview(ctx, userID, id)
	if err != nil {
		return domain.Rating{}, err
	}
	if existed {
		s.recordReview(ctx, k, id, -1)
	}
	return rating, nil
}

func (s *AnswerService) recordReview(ctx context.Context, kind domain.SubjectKind, subjectID string, delta int) {
	if s.summaries == nil {
		return
	}
	if err := s.summaries.RecordReview(ctx, kind, subjectID, delta); err != nil {
		log.Printf("record review for %s: %v", subjectID, err)
	}
}

// GetUserRating returns a user's rating for a subject.
func (s *AnswerService) GetUserRating(ctx context.Context, kind, subjectID, userID string) (domain.Rating, error) {
	k, ok := domain.SubjectKindByName(kind)
	if !ok {
		return domain.Rating{}, domain.ErrUnknownSubjectKind
	}
	return s.ratings.GetRating(ctx, userID, k.SubjectID(subjectID))
}

// ListRatings returns the stored sample of completed ratings for a subject.
func (s *AnswerService) ListRatings(ctx context.Context, kind, subjectID string) ([]domain.Rating, error) {
	k, ok := domain.SubjectKindByName(kind)
	if !ok {
		return nil, domain.ErrUnknownSubjectKind
	}
	return s.ratings.GetSampleRatings(ctx, k.SubjectID(subjectID))
}

// GetSummary returns the aggregate grade of a subject.
func (s *AnswerService) GetSummary(ctx context.Context, kind, subjectID string) (domain.SubjectSummary, error) {
	k, ok := domain.SubjectKindByName(kind)
	if !ok {
		return domain.SubjectSummary{}, domain.ErrUnknownSubjectKind
	}
	if s.summaries == nil {
		return domain.SubjectSummary{SubjectID: k.SubjectID(subjectID), Kind: k.Name, Rating: domain.GradeUnknown}, nil
	}
	return s.summaries.GetSummary(ctx, k, k.SubjectID(subjectID))
}

// ShortName turns "Jane Mary Doe" into "Jane D.".
func ShortName(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return ""
	}
	initial, _ := utf8.DecodeRuneInString(parts[len(parts)-1])
	return parts[0] + " " + string(initial) + "."
}
