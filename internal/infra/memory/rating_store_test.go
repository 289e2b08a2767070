package memory

import (
	"context"
	"errors"
	"testing"

	"rating-service/internal/domain"
)

func TestRatingStoreUpsertAndAnswers(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore(0)

	answers, err := store.GetUsersAnswers(ctx, "u1", "m1")
	if err != nil || len(answers) != 0 {
		t.Fatalf("expected no answers, got %v (err=%v)", answers, err)
	}

	_ = store.UpsertRating(ctx, domain.Rating{SubjectID: "m1", UserID: "u1", Answers: []domain.Answer{{QuestionID: "q1", Index: 0}}})
	_ = store.UpsertRating(ctx, domain.Rating{SubjectID: "m1", UserID: "u1", Answers: []domain.Answer{{QuestionID: "q1", Index: 1}}})

	answers, _ = store.GetUsersAnswers(ctx, "u1", "m1")
	if len(answers) != 1 || answers[0].Index != 1 {
		t.Fatalf("expected one replaced answer, got %+v", answers)
	}
	if _, err := store.GetRating(ctx, "u2", "m1"); !errors.Is(err, domain.ErrRatingNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRatingStoreKeepsReview(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore(0)
	_ = store.UpsertRating(ctx, domain.Rating{SubjectID: "m1", UserID: "u1", Review: "loved it"})
	_ = store.UpsertRating(ctx, domain.Rating{SubjectID: "m1", UserID: "u1", Answers: []domain.Answer{{QuestionID: "q1"}}})

	rating, err := store.GetRating(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("get rating: %v", err)
	}
	if rating.Review != "loved it" {
		t.Fatalf("review overwritten: %+v", rating)
	}
}

func TestRatingStoreSetAndDeleteReview(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore(0)

	rating, existed, err := store.SetReview(ctx, "u1", "m1", "Alice S.", "first")
	if err != nil || existed {
		t.Fatalf("expected new review, got existed=%v err=%v", existed, err)
	}
	if rating.Answers == nil || len(rating.Answers) != 0 || rating.UserName != "Alice S." {
		t.Fatalf("unexpected review-only rating %+v", rating)
	}
	if _, existed, _ = store.SetReview(ctx, "u1", "m1", "Alice S.", "second"); !existed {
		t.Fatalf("expected edit to report an existing review")
	}

	_ = store.UpsertRating(ctx, domain.Rating{SubjectID: "m1", UserID: "u1", Answers: []domain.Answer{{QuestionID: "q1"}}})
	rating, existed, err = store.DeleteReview(ctx, "u1", "m1")
	if err != nil || !existed || rating.Review != "" || len(rating.Answers) != 1 {
		t.Fatalf("unexpected delete result %+v existed=%v err=%v", rating, existed, err)
	}
	if _, existed, _ = store.DeleteReview(ctx, "u1", "m1"); existed {
		t.Fatalf("second delete must report no review")
	}
	if _, _, err := store.DeleteReview(ctx, "u2", "m1"); !errors.Is(err, domain.ErrRatingNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if sample, _ := store.GetSampleRatings(ctx, "m1"); len(sample) != 0 {
		t.Fatalf("review-only ratings are not completed, got %+v", sample)
	}
}

func TestRatingStoreSampleOrderAndCap(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore(3)
	for i, total := range []int{1, 3, 2, 3, 4} {
		raw := domain.NewRawArgs(map[string]float64{"q1": 10}, total)
		_ = store.UpsertRating(ctx, domain.Rating{
			SubjectID:   "m1",
			UserID:      string(rune('a' + i)),
			UsersRating: domain.GradeA,
			RawArgs:     &raw,
		})
	}
	_ = store.UpsertRating(ctx, domain.Rating{SubjectID: "m1", UserID: "pending"})
	_ = store.UpsertRating(ctx, domain.Rating{SubjectID: "s1", UserID: "other", UsersRating: domain.GradeF})

	sample, err := store.GetSampleRatings(ctx, "m1")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(sample) != 3 {
		t.Fatalf("expected capped sample of 3, got %d", len(sample))
	}
	want := []string{"e", "b", "d"}
	for i, r := range sample {
		if r.UserID != want[i] {
			t.Fatalf("sample[%d] = %s, want %s", i, r.UserID, want[i])
		}
	}
}
