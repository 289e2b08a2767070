package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"rating-service/internal/app"
	"rating-service/internal/domain"
)

// Identity headers are set by the gateway after authenticating the caller.
const (
	HeaderUserID         = "X-User-Id"
	HeaderUserName       = "X-User-Name"
	HeaderChallengeToken = "g-recaptcha-response"
)

// APIHandler serves the REST surface of the rating service.
type APIHandler struct {
	service *app.AnswerService
}

func NewAPIHandler(service *app.AnswerService) *APIHandler {
	return &APIHandler{service: service}
}

// Register mounts all routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /answers/{kind}", h.SubmitAnswer)
	mux.HandleFunc("GET /answers/{kind}/{subjectId}", h.GetAnswers)
	mux.HandleFunc("GET /answers/{kind}/{subjectId}/ratings", h.ListRatings)
	mux.HandleFunc("GET /answers/{kind}/{subjectId}/ratings/currentUser", h.GetCurrentUserRating)
	mux.HandleFunc("POST /answers/{kind}/review", h.AddReview)
	mux.HandleFunc("DELETE /answers/{kind}/{subjectId}/review", h.DeleteReview)
	mux.HandleFunc("GET /subjects/{kind}/{subjectId}", h.GetSummary)
}

// RatingResponse is returned for every processed answer.
type RatingResponse struct {
	Status       string                  `json:"status"`
	Message      string                  `json:"message"`
	Result       domain.ProcessingResult `json:"result"`
	GlobalRating *domain.Grade           `json:"globalRating"`
	UsersRating  *domain.Grade           `json:"usersRating"`
}

type answerRequest struct {
	SubjectID  string `json:"subjectId"`
	QuestionID string `json:"questionId"`
	Answer     *int   `json:"answer"`
}

type reviewRequest struct {
	SubjectID string `json:"subjectId"`
	Review    string `json:"review"`
}

type apiError struct {
	Message string `json:"message"`
}

var responseMessages = map[domain.ProcessingResult]struct{ status, message string }{
	domain.AnswerAccepted:      {"Success", "Added answer to rating object"},
	domain.TestStarted:         {"Success", "Created new rating object"},
	domain.TestCompleted:       {"Success", "Updated subject info with new rating"},
	domain.AttemptToRetakeTest: {"Error", "The test has been answered already, or answer out of range"},
	domain.InvalidAnswer:       {"Error", "Invalid answer"},
	domain.InvalidChallenge:    {"Failed", "Failed to verify reCaptcha"},
}

// NewRatingResponse maps an outcome to its client-facing message. Grades are only present on completion.
func NewRatingResponse(outcome domain.Outcome) RatingResponse {
	msg := responseMessages[outcome.Result]
	resp := RatingResponse{Status: msg.status, Message: msg.message, Result: outcome.Result}
	if outcome.Result == domain.TestCompleted {
		global, users := outcome.GlobalGrade, outcome.UsersGrade
		resp.GlobalRating = &global
		resp.UsersRating = &users
	}
	return resp
}

// SubmitAnswer handles POST /answers/{kind}.
func (h *APIHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "missing " + HeaderUserID})
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "invalid request body"})
		return
	}
	if req.SubjectID == "" || req.QuestionID == "" || req.Answer == nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "subjectId, questionId and answer are required"})
		return
	}

	outcome, err := h.service.Submit(r.Context(), r.PathValue("kind"), domain.SubmittedAnswer{
		SubjectID:  req.SubjectID,
		QuestionID: req.QuestionID,
		Index:      *req.Answer,
	}, userID, r.Header.Get(HeaderUserName), r.Header.Get(HeaderChallengeToken))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRatingResponse(outcome))
}

// GetAnswers handles GET /answers/{kind}/{subjectId}: the caller's answers, or null.
func (h *APIHandler) GetAnswers(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "missing " + HeaderUserID})
		return
	}
	rating, err := h.service.GetUserRating(r.Context(), r.PathValue("kind"), r.PathValue("subjectId"), userID)
	if errors.Is(err, domain.ErrRatingNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating.Answers)
}

// ListRatings handles GET /answers/{kind}/{subjectId}/ratings.
func (h *APIHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.service.ListRatings(r.Context(), r.PathValue("kind"), r.PathValue("subjectId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

// GetCurrentUserRating handles GET /answers/{kind}/{subjectId}/ratings/currentUser.
func (h *APIHandler) GetCurrentUserRating(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "missing " + HeaderUserID})
		return
	}
	rating, err := h.service.GetUserRating(r.Context(), r.PathValue("kind"), r.PathValue("subjectId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

// AddReview handles POST /answers/{kind}/review and returns the caller's updated rating.
func (h *APIHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "missing " + HeaderUserID})
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "invalid request body"})
		return
	}
	if req.SubjectID == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "subjectId is required"})
		return
	}

	rating, err := h.service.AddReview(r.Context(), r.PathValue("kind"), req.SubjectID, userID,
		r.Header.Get(HeaderUserName), req.Review, r.Header.Get(HeaderChallengeToken))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

// DeleteReview handles DELETE /answers/{kind}/{subjectId}/review.
func (h *APIHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "missing " + HeaderUserID})
		return
	}
	rating, err := h.service.DeleteReview(r.Context(), r.PathValue("kind"), r.PathValue("subjectId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

// GetSummary handles GET /subjects/{kind}/{subjectId}.
func (h *APIHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(r.Context(), r.PathValue("kind"), r.PathValue("subjectId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnknownSubjectKind), errors.Is(err, domain.ErrRatingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyReview):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrChallengeFailed):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNoQuestions), errors.Is(err, domain.ErrChallengeUnavailable), errors.Is(err, domain.ErrReviewsDisabled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, apiError{Message: err.Error()})
}
