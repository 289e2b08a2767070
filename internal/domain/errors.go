package domain

import "errors"

var (
	// ErrRatingNotFound is returned when a user has no rating for a subject.
	ErrRatingNotFound = errors.New("rating not found")
	// ErrUnknownSubjectKind indicates a kind other than movie or show.
	ErrUnknownSubjectKind = errors.New("unknown subject kind")
	// ErrNoQuestions indicates the catalog source returned nothing to cache.
	ErrNoQuestions = errors.New("question catalog is empty")
	// ErrChallengeUnavailable is returned when the CAPTCHA service cannot be reached.
	ErrChallengeUnavailable = errors.New("challenge verification unavailable")
	// ErrChallengeFailed is returned when a review is submitted with a rejected CAPTCHA token.
	ErrChallengeFailed = errors.New("challenge verification failed")
	ErrEmptyReview     = errors.New("review is empty")
	// ErrReviewsDisabled means the service was built without a review store.
	ErrReviewsDisabled = errors.New("reviews are not enabled")
)
