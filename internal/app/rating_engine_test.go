package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"rating-service/internal/app"
	"rating-service/internal/domain"
	"rating-service/internal/infra/memory"
)

func TestQuestionnaireLifecycleInAnyOrder(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8} {
		t.Run(fmt.Sprintf("%d questions", n), func(t *testing.T) {
			ctx := context.Background()
			engine, _ := newTestEngine(n)
			order := rand.New(rand.NewSource(int64(n))).Perm(n)

			counts := map[domain.ProcessingResult]int{}
			for _, i := range order {
				outcome, err := engine.ProcessAnswer(ctx, submit("42", i, optNo), "u1", "Alice S.")
				if err != nil {
					t.Fatalf("process: %v", err)
				}
				counts[outcome.Result]++
			}

			if counts[domain.TestStarted] != 1 || counts[domain.AnswerAccepted] != n-2 || counts[domain.TestCompleted] != 1 {
				t.Fatalf("unexpected result counts %v", counts)
			}
		})
	}
}

func TestFinalizedRatingRejectsRetakes(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(3)
	answerAll(t, engine, "42", "u1", optNo)

	for i := 0; i < 3; i++ {
		outcome, err := engine.ProcessAnswer(ctx, submit("42", i, optYes), "u1", "Alice S.")
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if outcome.Result != domain.AttemptToRetakeTest {
			t.Fatalf("expected retake, got %s", outcome.Result)
		}
	}
	rating, _ := store.GetRating(ctx, "u1", "m42")
	for _, a := range rating.Answers {
		if a.Index != optNo {
			t.Fatalf("retake must not change answers: %+v", rating.Answers)
		}
	}
}

func TestInvalidAnswersLeaveRatingUntouched(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(3)
	if _, err := engine.ProcessAnswer(ctx, submit("42", 0, optNo), "u1", "Alice S."); err != nil {
		t.Fatalf("process: %v", err)
	}

	invalid := []domain.SubmittedAnswer{
		{SubjectID: "42", QuestionID: "q2", Index: 3},
		{SubjectID: "42", QuestionID: "q2", Index: 99},
		{SubjectID: "42", QuestionID: "q2", Index: -1},
		{SubjectID: "42", QuestionID: "nope", Index: 0},
	}
	for _, s := range invalid {
		outcome, err := engine.ProcessAnswer(ctx, s, "u1", "Alice S.")
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if outcome.Result != domain.InvalidAnswer {
			t.Fatalf("expected invalid answer for %+v, got %s", s, outcome.Result)
		}
	}

	answers, _ := store.GetUsersAnswers(ctx, "u1", "m42")
	if len(answers) != 1 || answers[0].QuestionID != "q1" {
		t.Fatalf("stored answers changed: %+v", answers)
	}
}

func TestInvalidFirstAnswerCreatesNothing(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(3)
	outcome, _ := engine.ProcessAnswer(ctx, domain.SubmittedAnswer{SubjectID: "42", QuestionID: "q1", Index: 3}, "u1", "Alice S.")
	if outcome.Result != domain.InvalidAnswer {
		t.Fatalf("expected invalid answer, got %s", outcome.Result)
	}
	if _, err := store.GetRating(ctx, "u1", "m42"); !errors.Is(err, domain.ErrRatingNotFound) {
		t.Fatalf("expected no rating, got %v", err)
	}
}

func TestRevisionReplacesAnswerAndNeverCompletes(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(3)
	_, _ = engine.ProcessAnswer(ctx, submit("42", 0, optYes), "u1", "Alice S.")
	_, _ = engine.ProcessAnswer(ctx, submit("42", 1, optYes), "u1", "Alice S.")

	// two of three answered: revising one of them is accepted, not final
	final, err := engine.IsAnswerFinal(ctx, submit("42", 0, optNo), "u1")
	if err != nil {
		t.Fatalf("is final: %v", err)
	}
	if final {
		t.Fatalf("a revision must not be final")
	}
	outcome, _ := engine.ProcessAnswer(ctx, submit("42", 0, optNo), "u1", "Alice S.")
	if outcome.Result != domain.AnswerAccepted {
		t.Fatalf("expected accepted revision, got %s", outcome.Result)
	}

	answers, _ := store.GetUsersAnswers(ctx, "u1", "m42")
	if len(answers) != 2 || answers[0].QuestionID != "q1" || answers[0].Index != optNo {
		t.Fatalf("expected q1 revised in place, got %+v", answers)
	}
}

func TestIsAnswerFinalAgreesWithProcessAnswer(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{1, 2, 4} {
		engine, _ := newTestEngine(n)
		for i := 0; i < n; i++ {
			final, err := engine.IsAnswerFinal(ctx, submit("7", i, optNo), "u1")
			if err != nil {
				t.Fatalf("is final: %v", err)
			}
			outcome, _ := engine.ProcessAnswer(ctx, submit("7", i, optNo), "u1", "Alice S.")
			if final != (outcome.Result == domain.TestCompleted) {
				t.Fatalf("n=%d i=%d: final=%v but result %s", n, i, final, outcome.Result)
			}
		}
	}
}

func TestFirstUserGetsOwnGradeAsGlobal(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(5)
	outcome := answerAll(t, engine, "42", "u1", optNo)

	if outcome.Result != domain.TestCompleted {
		t.Fatalf("expected completion, got %s", outcome.Result)
	}
	if outcome.UsersGrade != domain.GradeA || outcome.GlobalGrade != domain.GradeA {
		t.Fatalf("expected A/A, got users=%s global=%s", outcome.UsersGrade, outcome.GlobalGrade)
	}

	rating, err := store.GetRating(ctx, "u1", "m42")
	if err != nil {
		t.Fatalf("get rating: %v", err)
	}
	if rating.UsersRating != domain.GradeA || rating.RawArgs == nil || rating.RawArgs.Total != 1 {
		t.Fatalf("completed rating not persisted: %+v", rating)
	}
	if rating.UserName != "Alice S." {
		t.Fatalf("expected display name stored, got %q", rating.UserName)
	}
}

func TestLowRatingPullsDownGlobalGrade(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(5)
	prior := uniformArgs(5, 30, 3)
	_ = store.UpsertRating(ctx, domain.Rating{SubjectID: "m42", UserID: "earlier", UsersRating: domain.GradeA, RawArgs: &prior})

	outcome := answerAll(t, engine, "42", "u1", optYes)
	if outcome.GlobalGrade != domain.GradeB || outcome.UsersGrade != domain.GradeF {
		t.Fatalf("expected global B users F, got global=%s users=%s", outcome.GlobalGrade, outcome.UsersGrade)
	}

	rating, _ := store.GetRating(ctx, "u1", "m42")
	if rating.RawArgs.Total != 4 || rating.RawArgs.SumScoreByQuestion["q1"] != 30 {
		t.Fatalf("unexpected aggregate %+v", rating.RawArgs)
	}
}

func TestMoviesAndShowsAreSeparateNamespaces(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRatingStore(0)
	catalog := memory.NewQuestionCatalog(memory.NewStaticQuestionLoader(yesNoCatalog(2)), time.Minute)
	movies := app.NewMovieRatingEngine(catalog, store)
	shows := app.NewShowRatingEngine(catalog, store)

	answerAll(t, movies, "1", "u1", optNo)
	outcome, err := shows.ProcessAnswer(ctx, submit("1", 0, optNo), "u1", "Alice S.")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Result != domain.TestStarted {
		t.Fatalf("show 1 must not share movie 1's rating, got %s", outcome.Result)
	}
	if _, err := store.GetRating(ctx, "u1", "s1"); err != nil {
		t.Fatalf("expected show rating under s1: %v", err)
	}
}

func TestSingleQuestionCatalogCompletesOnFirstAnswer(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(1)

	final, err := engine.IsAnswerFinal(ctx, submit("42", 0, optNo), "u1")
	if err != nil || !final {
		t.Fatalf("expected the only answer to be final, got %v (err=%v)", final, err)
	}
	outcome, err := engine.ProcessAnswer(ctx, submit("42", 0, optNo), "u1", "Alice S.")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Result != domain.TestCompleted || outcome.GlobalGrade != domain.GradeA || outcome.UsersGrade != domain.GradeA || outcome.Submissions != 1 {
		t.Fatalf("expected completion with grades, got %+v", outcome)
	}
	if rating, _ := store.GetRating(ctx, "u1", "m42"); !rating.Completed() {
		t.Fatalf("expected completed rating, got %+v", rating)
	}

	outcome, _ = engine.ProcessAnswer(ctx, submit("42", 0, optYes), "u1", "Alice S.")
	if outcome.Result != domain.AttemptToRetakeTest {
		t.Fatalf("expected retake, got %s", outcome.Result)
	}
}

func TestSequentialUsersAccumulateAggregate(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(3)
	for i := 0; i < 4; i++ {
		answerAll(t, engine, "42", fmt.Sprintf("u%d", i), i%3)
	}
	sample, _ := store.GetSampleRatings(ctx, "m42")
	if len(sample) != 4 || sample[0].RawArgs.Total != 4 {
		t.Fatalf("expected head aggregate over 4 users, got %+v", sample[0].RawArgs)
	}
	// 0 + 10 + 3 + 0 per question
	if got := sample[0].RawArgs.SumScoreByQuestion["q1"]; got != 13 {
		t.Fatalf("expected 13, got %v", got)
	}
}

func TestStoreFailuresPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store unavailable")
	catalog := memory.NewQuestionCatalog(memory.NewStaticQuestionLoader(yesNoCatalog(2)), time.Minute)

	cases := map[string]*failingStore{
		"answers": {RatingStore: memory.NewRatingStore(0), failAnswers: boom},
		"upsert":  {RatingStore: memory.NewRatingStore(0), failUpsert: boom},
	}
	for name, store := range cases {
		engine := app.NewMovieRatingEngine(catalog, store)
		if _, err := engine.ProcessAnswer(ctx, submit("1", 0, optNo), "u1", "A B."); !errors.Is(err, boom) {
			t.Fatalf("%s: expected store error, got %v", name, err)
		}
	}

	sampleStore := &failingStore{RatingStore: memory.NewRatingStore(0), failSample: boom}
	engine := app.NewMovieRatingEngine(catalog, sampleStore)
	_, _ = engine.ProcessAnswer(ctx, submit("1", 0, optNo), "u1", "A B.")
	if _, err := engine.ProcessAnswer(ctx, submit("1", 1, optNo), "u1", "A B."); !errors.Is(err, boom) {
		t.Fatalf("expected sample error, got %v", err)
	}
	answers, _ := sampleStore.GetUsersAnswers(ctx, "u1", "m1")
	if len(answers) != 1 {
		t.Fatalf("failed completion must not persist a partial rating, got %+v", answers)
	}
}

type failingStore struct {
	*memory.RatingStore
	failAnswers error
	failSample  error
	failUpsert  error
}

func (s *failingStore) GetUsersAnswers(ctx context.Context, userID, subjectID string) ([]domain.Answer, error) {
	if s.failAnswers != nil {
		return nil, s.failAnswers
	}
	return s.RatingStore.GetUsersAnswers(ctx, userID, subjectID)
}

func (s *failingStore) GetSampleRatings(ctx context.Context, subjectID string) ([]domain.Rating, error) {
	if s.failSample != nil {
		return nil, s.failSample
	}
	return s.RatingStore.GetSampleRatings(ctx, subjectID)
}

func (s *failingStore) UpsertRating(ctx context.Context, rating domain.Rating) error {
	if s.failUpsert != nil {
		return s.failUpsert
	}
	return s.RatingStore.UpsertRating(ctx, rating)
}

const (
	optYes = 0
	optNo  = 1
)

func newTestEngine(n int) (*app.RatingEngine, *memory.RatingStore) {
	store := memory.NewRatingStore(0)
	catalog := memory.NewQuestionCatalog(memory.NewStaticQuestionLoader(yesNoCatalog(n)), time.Minute)
	return app.NewMovieRatingEngine(catalog, store), store
}

func yesNoCatalog(n int) []domain.Question {
	yes, no, na := 0.0, 10.0, 3.0
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			ID:      fmt.Sprintf("q%d", i+1),
			Text:    fmt.Sprintf("Question %d", i+1),
			Weight:  100,
			Options: []domain.Option{{Answer: "Yes", Points: &yes}, {Answer: "No", Points: &no}, {Answer: "N/A", Points: &na}},
		}
	}
	return questions
}

func submit(subjectID string, question, index int) domain.SubmittedAnswer {
	return domain.SubmittedAnswer{SubjectID: subjectID, QuestionID: fmt.Sprintf("q%d", question+1), Index: index}
}

func answerAll(t *testing.T, engine *app.RatingEngine, subjectID, userID string, index int) domain.Outcome {
	t.Helper()
	var outcome domain.Outcome
	for i := 0; ; i++ {
		var err error
		outcome, err = engine.ProcessAnswer(context.Background(), submit(subjectID, i, index), userID, "Alice S.")
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if outcome.Result == domain.TestCompleted {
			return outcome
		}
		if outcome.Result != domain.TestStarted && outcome.Result != domain.AnswerAccepted {
			t.Fatalf("unexpected result %s at question %d", outcome.Result, i+1)
		}
	}
}

func uniformArgs(n int, sum float64, total int) domain.RawCalculationArguments {
	sums := make(map[string]float64, n)
	for i := 0; i < n; i++ {
		sums[fmt.Sprintf("q%d", i+1)] = sum
	}
	return domain.NewRawArgs(sums, total)
}
