package domain

// SubjectKind describes a family of rated subjects and how their ids are namespaced.
type SubjectKind struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
}

var (
	// MovieSubjects namespaces movie ids as "m<id>".
	MovieSubjects = SubjectKind{Name: "movie", Prefix: "m"}
	// ShowSubjects namespaces show ids as "s<id>".
	ShowSubjects = SubjectKind{Name: "show", Prefix: "s"}
)

// SubjectID returns the namespaced id stored on ratings.
func (k SubjectKind) SubjectID(id string) string {
	return k.Prefix + id
}

// SubjectKindByName resolves "movie" or "show".
func SubjectKindByName(name string) (SubjectKind, bool) {
	switch name {
	case MovieSubjects.Name:
		return MovieSubjects, true
	case ShowSubjects.Name:
		return ShowSubjects, true
	}
	return SubjectKind{}, false
}

// Option is one selectable answer. Nil Points marks the option as not applicable.
type Option struct {
	Answer string   `json:"answer" bson:"answer"`
	Points *float64 `json:"points,omitempty" bson:"points,omitempty"`
}

// Question is a weighted questionnaire item.
type Question struct {
	ID       string   `json:"id" bson:"_id"`
	Header   string   `json:"header" bson:"header"`
	Text     string   `json:"question" bson:"question"`
	HelpText string   `json:"helptext" bson:"helptext"`
	Weight   float64  `json:"weight" bson:"weight"` // defaults to 100 if zero
	Options  []Option `json:"options" bson:"options"`
}

// EffectiveWeight applies the default weight.
func (q Question) EffectiveWeight() float64 {
	if q.Weight <= 0 {
		return DefaultQuestionWeight
	}
	return q.Weight
}

// DefaultQuestionWeight is used for questions stored without a weight.
const DefaultQuestionWeight = 100

// Answer is the selected option index for one question.
type Answer struct {
	QuestionID string `json:"questionId" bson:"questionId"`
	Index      int    `json:"answer" bson:"answer"`
}

// SubmittedAnswer is an answer as it arrives from a client, before the subject id is namespaced.
type SubmittedAnswer struct {
	SubjectID  string `json:"subjectId"`
	QuestionID string `json:"questionId"`
	Index      int    `json:"answer"`
}

// Answer drops the subject part of the submission.
func (s SubmittedAnswer) Answer() Answer {
	return Answer{QuestionID: s.QuestionID, Index: s.Index}
}

// Rating is one user's questionnaire state for one subject.
type Rating struct {
	SubjectID   string                   `json:"subjectId" bson:"subjectId"`
	UserID      string                   `json:"userId" bson:"userId"`
	UserName    string                   `json:"userName" bson:"userName"`
	Answers     []Answer                 `json:"answers" bson:"answers"`
	Review      string                   `json:"review,omitempty" bson:"review,omitempty"`
	UsersRating Grade                    `json:"usersRating,omitempty" bson:"usersRating,omitempty"`
	RawArgs     *RawCalculationArguments `json:"rawArgs,omitempty" bson:"rawArgs,omitempty"`
}

// Completed reports whether the questionnaire was finished.
func (r Rating) Completed() bool {
	return r.UsersRating != ""
}

// Grade is a letter bucket for a 0-100 rating.
type Grade string

const (
	GradeA       Grade = "A"
	GradeB       Grade = "B"
	GradeC       Grade = "C"
	GradeD       Grade = "D"
	GradeF       Grade = "F"
	GradeUnknown Grade = "?"
)

// ProcessingResult is the outcome class of a submitted answer.
type ProcessingResult string

const (
	AnswerAccepted      ProcessingResult = "ANSWER_ACCEPTED"
	AttemptToRetakeTest ProcessingResult = "ATTEMPT_TO_RETAKE_TEST"
	InvalidAnswer       ProcessingResult = "INVALID_ANSWER"
	TestStarted         ProcessingResult = "TEST_STARTED"
	TestCompleted       ProcessingResult = "TEST_COMPLETED"
	// InvalidChallenge is produced by the answer service when the final answer fails CAPTCHA verification.
	InvalidChallenge ProcessingResult = "INVALID_CHALLENGE"
)

// Outcome is what ProcessAnswer reports. Grades and Submissions are set only for TestCompleted.
type Outcome struct {
	Result      ProcessingResult `json:"result"`
	GlobalGrade Grade            `json:"globalRating,omitempty"`
	UsersGrade  Grade            `json:"usersRating,omitempty"`
	// Submissions is the RawArgs.Total persisted with the completed rating.
	Submissions int              `json:"-"`
}

// SubjectSummary is the per-subject aggregate shown in listings.
type SubjectSummary struct {
	SubjectID      string `json:"subjectId" bson:"subjectId"`
	Kind           string `json:"kind" bson:"kind"`
	Rating         Grade  `json:"rating" bson:"rating"`
	RatedCounter   int    `json:"ratedCounter" bson:"ratedCounter"`
	ReviewsCounter int    `json:"reviewsCounter" bson:"reviewsCounter"`
}

// RatingCompleted is published once a user finishes the questionnaire for a subject.
type RatingCompleted struct {
	Kind        string `json:"kind"`
	SubjectID   string `json:"subjectId"`
	UserID      string `json:"userId"`
	UsersGrade  Grade  `json:"usersRating"`
	GlobalGrade Grade  `json:"globalRating"`
	Submissions int    `json:"submissions"`
}
