package memory

import (
	"context"
	"sort"
	"sync"

	"rating-service/internal/domain"
)

// DefaultSampleSize caps how many completed ratings GetSampleRatings returns.
const DefaultSampleSize = 50

// RatingStore is an in-memory implementation of app.RatingStore.
type RatingStore struct {
	sampleSize int

	mu      sync.RWMutex
	seq     int
	ratings map[ratingKey]storedRating
}

type ratingKey struct {
	subjectID string
	userID    string
}

type storedRating struct {
	rating domain.Rating
	seq    int
}

func NewRatingStore(sampleSize int) *RatingStore {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &RatingStore{
		sampleSize: sampleSize,
		ratings:    make(map[ratingKey]storedRating),
	}
}

func (s *RatingStore) GetUsersAnswers(_ context.Context, userID, subjectID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.ratings[ratingKey{subjectID: subjectID, userID: userID}]
	if !ok {
		return []domain.Answer{}, nil
	}
	return cloneRating(stored.rating).Answers, nil
}

func (s *RatingStore) GetRating(_ context.Context, userID, subjectID string) (domain.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.ratings[ratingKey{subjectID: subjectID, userID: userID}]
	if !ok {
		return domain.Rating{}, domain.ErrRatingNotFound
	}
	return cloneRating(stored.rating), nil
}

// GetSampleRatings returns completed ratings, largest aggregate first. Ties keep save order.
func (s *RatingStore) GetSampleRatings(_ context.Context, subjectID string) ([]domain.Rating, error) {
	s.mu.RLock()
	matches := make([]storedRating, 0)
	for key, stored := range s.ratings {
		if key.subjectID == subjectID && stored.rating.Completed() {
			matches = append(matches, stored)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		ti, tj := total(matches[i].rating), total(matches[j].rating)
		if ti != tj {
			return ti > tj
		}
		return matches[i].seq < matches[j].seq
	})
	if len(matches) > s.sampleSize {
		matches = matches[:s.sampleSize]
	}

	sample := make([]domain.Rating, len(matches))
	for i, stored := range matches {
		sample[i] = cloneRating(stored.rating)
	}
	return sample, nil
}

// UpsertRating replaces the whole record for (subject, user) but keeps an existing review
// when the new record carries none.
func (s *RatingStore) UpsertRating(_ context.Context, rating domain.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ratingKey{subjectID: rating.SubjectID, userID: rating.UserID}
	prev, ok := s.ratings[key]
	if ok && rating.Review == "" {
		rating.Review = prev.rating.Review
	}
	if ok && rating.UsersRating == "" && rating.RawArgs == nil {
		rating.UsersRating = prev.rating.UsersRating
		rating.RawArgs = prev.rating.RawArgs
	}
	s.seq++
	s.ratings[key] = storedRating{rating: cloneRating(rating), seq: s.seq}
	return nil
}

// SetReview stores the review, creating a rating without answers when the user has none yet.
// The bool reports whether a review was already present.
func (s *RatingStore) SetReview(_ context.Context, userID, subjectID, userName, review string) (domain.Rating, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ratingKey{subjectID: subjectID, userID: userID}
	stored, ok := s.ratings[key]
	if !ok {
		s.seq++
		stored = storedRating{
			rating: domain.Rating{SubjectID: subjectID, UserID: userID, UserName: userName, Answers: []domain.Answer{}},
			seq:    s.seq,
		}
	}
	existed := stored.rating.Review != ""
	stored.rating.Review = review
	s.ratings[key] = stored
	return cloneRating(stored.rating), existed, nil
}

// DeleteReview clears the review and reports whether there was one.
func (s *RatingStore) DeleteReview(_ context.Context, userID, subjectID string) (domain.Rating, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ratingKey{subjectID: subjectID, userID: userID}
	stored, ok := s.ratings[key]
	if !ok {
		return domain.Rating{}, false, domain.ErrRatingNotFound
	}
	existed := stored.rating.Review != ""
	stored.rating.Review = ""
	s.ratings[key] = stored
	return cloneRating(stored.rating), existed, nil
}

func total(r domain.Rating) int {
	if r.RawArgs == nil {
		return -1
	}
	return r.RawArgs.Total
}

func cloneRating(r domain.Rating) domain.Rating {
	out := r
	out.Answers = append([]domain.Answer{}, r.Answers...)
	if r.RawArgs != nil {
		raw := domain.NewRawArgs(r.RawArgs.SumScoreByQuestion, r.RawArgs.Total)
		out.RawArgs = &raw
	}
	return out
}
