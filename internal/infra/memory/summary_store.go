package memory

import (
	"context"
	"sync"

	"rating-service/internal/domain"
)

// SummaryStore is an in-memory implementation of app.SummaryStore.
type SummaryStore struct {
	mu        sync.RWMutex
	summaries map[string]domain.SubjectSummary
}

func NewSummaryStore() *SummaryStore {
	return &SummaryStore{summaries: make(map[string]domain.SubjectSummary)}
}

func (s *SummaryStore) RecordCompletion(_ context.Context, kind domain.SubjectKind, subjectID string, grade domain.Grade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := s.summaries[subjectID]
	summary.SubjectID = subjectID
	summary.Kind = kind.Name
	summary.Rating = grade
	summary.RatedCounter++
	s.summaries[subjectID] = summary
	return nil
}

// RecordReview moves the reviews counter by delta. A subject seen for the first time keeps an unknown grade.
func (s *SummaryStore) RecordReview(_ context.Context, kind domain.SubjectKind, subjectID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.summaries[subjectID]
	if !ok {
		summary = domain.SubjectSummary{SubjectID: subjectID, Rating: domain.GradeUnknown}
	}
	summary.Kind = kind.Name
	summary.ReviewsCounter += delta
	s.summaries[subjectID] = summary
	return nil
}

func (s *SummaryStore) GetSummary(_ context.Context, kind domain.SubjectKind, subjectID string) (domain.SubjectSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if summary, ok := s.summaries[subjectID]; ok {
		return summary, nil
	}
	return domain.SubjectSummary{SubjectID: subjectID, Kind: kind.Name, Rating: domain.GradeUnknown}, nil
}
