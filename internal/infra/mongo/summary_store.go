package mongo

import (
	"context"
	"errors"
	"fmt"

	"rating-service/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SummaryStore keeps the per-subject grade and completion counter, one document per subject.
type SummaryStore struct {
	collection *mongo.Collection
}

func NewSummaryStore(database *mongo.Database, collection string) *SummaryStore {
	return &SummaryStore{collection: database.Collection(collection)}
}

func (s *SummaryStore) InitializeIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "subjectId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create summary indexes: %w", err)
	}
	return nil
}

func (s *SummaryStore) RecordCompletion(ctx context.Context, kind domain.SubjectKind, subjectID string, grade domain.Grade) error {
	update := bson.M{
		"$set":         bson.M{"rating": grade, "kind": kind.Name},
		"$inc":         bson.M{"ratedCounter": 1},
		"$currentDate": bson.M{"ratingUpdatedAt": true},
	}
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"subjectId": subjectID},
		update,
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

// RecordReview moves reviewsCounter by delta, creating the subject with an unknown grade if needed.
func (s *SummaryStore) RecordReview(ctx context.Context, kind domain.SubjectKind, subjectID string, delta int) error {
	update := bson.M{
		"$set":         bson.M{"kind": kind.Name},
		"$setOnInsert": bson.M{"rating": domain.GradeUnknown, "ratedCounter": 0},
		"$inc":         bson.M{"reviewsCounter": delta},
	}
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"subjectId": subjectID},
		update,
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to record review: %w", err)
	}
	return nil
}

func (s *SummaryStore) GetSummary(ctx context.Context, kind domain.SubjectKind, subjectID string) (domain.SubjectSummary, error) {
	var summary domain.SubjectSummary
	err := s.collection.FindOne(ctx, bson.M{"subjectId": subjectID}).Decode(&summary)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.SubjectSummary{SubjectID: subjectID, Kind: kind.Name, Rating: domain.GradeUnknown}, nil
		}
		return domain.SubjectSummary{}, fmt.Errorf("failed to get summary: %w", err)
	}
	return summary, nil
}
