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

// DefaultSampleSize caps how many completed ratings GetSampleRatings returns.
const DefaultSampleSize = 50

// RatingStore keeps one document per (subjectId, userId) in a ratings collection.
type RatingStore struct {
	collection *mongo.Collection
	sampleSize int64
}

func NewRatingStore(database *mongo.Database, collection string, sampleSize int) *RatingStore {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &RatingStore{
		collection: database.Collection(collection),
		sampleSize: int64(sampleSize),
	}
}

// InitializeIndexes creates the unique rating key and the index backing the sample query.
func (s *RatingStore) InitializeIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "subjectId", Value: 1},
				{Key: "userId", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "subjectId", Value: 1},
				{Key: "rawArgs.total", Value: -1},
			},
		},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create rating indexes: %w", err)
	}
	return nil
}

func (s *RatingStore) GetUsersAnswers(ctx context.Context, userID, subjectID string) ([]domain.Answer, error) {
	var doc struct {
		Answers []domain.Answer `bson:"answers"`
	}
	opts := options.FindOne().SetProjection(bson.M{"answers": 1})
	err := s.collection.FindOne(ctx, ratingFilter(userID, subjectID), opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []domain.Answer{}, nil
		}
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	if doc.Answers == nil {
		return []domain.Answer{}, nil
	}
	return doc.Answers, nil
}

func (s *RatingStore) GetRating(ctx context.Context, userID, subjectID string) (domain.Rating, error) {
	var rating domain.Rating
	err := s.collection.FindOne(ctx, ratingFilter(userID, subjectID)).Decode(&rating)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Rating{}, domain.ErrRatingNotFound
		}
		return domain.Rating{}, fmt.Errorf("failed to get rating: %w", err)
	}
	return rating, nil
}

// GetSampleRatings returns completed ratings for the subject, largest aggregate first.
func (s *RatingStore) GetSampleRatings(ctx context.Context, subjectID string) ([]domain.Rating, error) {
	filter := bson.M{
		"subjectId":   subjectID,
		"usersRating": bson.M{"$exists": true},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "rawArgs.total", Value: -1}}).
		SetLimit(s.sampleSize)

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find sample ratings: %w", err)
	}
	defer cursor.Close(ctx)

	sample := make([]domain.Rating, 0)
	if err := cursor.All(ctx, &sample); err != nil {
		return nil, fmt.Errorf("failed to decode sample ratings: %w", err)
	}
	return sample, nil
}

// UpsertRating sets the answers and, once completed, the grade and aggregate. A stored review is
// never touched unless the new record carries one.
func (s *RatingStore) UpsertRating(ctx context.Context, rating domain.Rating) error {
	set := bson.M{
		"subjectId": rating.SubjectID,
		"userId":    rating.UserID,
		"userName":  rating.UserName,
		"answers":   rating.Answers,
	}
	if rating.Review != "" {
		set["review"] = rating.Review
	}
	if rating.Completed() {
		set["usersRating"] = rating.UsersRating
	}
	if rating.RawArgs != nil {
		set["rawArgs"] = rating.RawArgs
	}

	_, err := s.collection.UpdateOne(ctx,
		ratingFilter(rating.UserID, rating.SubjectID),
		bson.M{"$set": set},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}
	return nil
}

// SetReview stores the review, inserting a rating without answers when the user has none yet.
// The bool reports whether a review was already present.
func (s *RatingStore) SetReview(ctx context.Context, userID, subjectID, userName, review string) (domain.Rating, bool, error) {
	update := bson.M{
		"$set":         bson.M{"review": review},
		"$setOnInsert": bson.M{"userName": userName, "answers": []domain.Answer{}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	var prev domain.Rating
	err := s.collection.FindOneAndUpdate(ctx, ratingFilter(userID, subjectID), update, opts).Decode(&prev)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Rating{SubjectID: subjectID, UserID: userID, UserName: userName, Answers: []domain.Answer{}, Review: review}, false, nil
		}
		return domain.Rating{}, false, fmt.Errorf("failed to set review: %w", err)
	}
	existed := prev.Review != ""
	prev.Review = review
	return prev, existed, nil
}

// DeleteReview unsets the review and reports whether there was one.
func (s *RatingStore) DeleteReview(ctx context.Context, userID, subjectID string) (domain.Rating, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var prev domain.Rating
	err := s.collection.FindOneAndUpdate(ctx, ratingFilter(userID, subjectID), bson.M{"$unset": bson.M{"review": ""}}, opts).Decode(&prev)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Rating{}, false, domain.ErrRatingNotFound
		}
		return domain.Rating{}, false, fmt.Errorf("failed to delete review: %w", err)
	}
	existed := prev.Review != ""
	prev.Review = ""
	return prev, existed, nil
}

func ratingFilter(userID, subjectID string) bson.M {
	return bson.M{"subjectId": subjectID, "userId": userID}
}
