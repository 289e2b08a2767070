package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"rating-service/internal/app"
	"rating-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.AnswerService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AnswerService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID     string `json:"questionId"`
	Answer         *int   `json:"answer"`
	ChallengeToken string `json:"challengeToken"`
}

type joinedPayload struct {
	Kind      string          `json:"kind"`
	SubjectID string          `json:"subjectId"`
	Answers   []domain.Answer `json:"answers"`
}

type answerResult struct {
	QuestionID string `json:"questionId"`
	RatingResponse
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and streams answers for one subject into the answer service.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		http.Error(w, "missing "+HeaderUserID, http.StatusUnauthorized)
		return
	}
	displayName := r.Header.Get(HeaderUserName)
	kind := r.URL.Query().Get("kind")
	subjectID := r.URL.Query().Get("subjectId")
	if kind == "" || subjectID == "" {
		http.Error(w, "missing kind or subjectId", http.StatusBadRequest)
		return
	}
	if _, ok := domain.SubjectKindByName(kind); !ok {
		http.Error(w, domain.ErrUnknownSubjectKind.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	answers := []domain.Answer{}
	rating, err := h.service.GetUserRating(r.Context(), kind, subjectID, userID)
	switch {
	case err == nil:
		answers = rating.Answers
	case !errors.Is(err, domain.ErrRatingNotFound):
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Single writer; gorilla connections do not support concurrent writes.
	// After a failed write the channel is still drained so the read loop never blocks.
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				failed = true
				_ = conn.Close()
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{Kind: kind, SubjectID: subjectID, Answers: answers}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" || payload.Answer == nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			outcome, err := h.service.Submit(r.Context(), kind, domain.SubmittedAnswer{
				SubjectID:  subjectID,
				QuestionID: payload.QuestionID,
				Index:      *payload.Answer,
			}, userID, displayName, payload.ChallengeToken)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: answerResult{
				QuestionID:     payload.QuestionID,
				RatingResponse: NewRatingResponse(outcome),
			}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}
