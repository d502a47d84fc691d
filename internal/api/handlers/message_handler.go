package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/econlens/econlens/internal/api/middlewares"
	"github.com/econlens/econlens/internal/apperr"
	"github.com/econlens/econlens/internal/core"
)

type MessageHandler struct {
	messages core.MessageStore
}

func NewMessageHandler(messages core.MessageStore) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type feedbackRequest struct {
	Upvoted *bool `json:"upvoted"`
}

// Feedback records an upvote or downvote on an assistant message.
func (h *MessageHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	if middleware.UserID(r.Context()) == "" {
		writeErrorKind(w, apperr.KindAuth, "unauthorized")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorKind(w, apperr.KindValidation, "invalid request body")
		return
	}
	if req.Upvoted == nil {
		writeErrorKind(w, apperr.KindValidation, "upvoted is required")
		return
	}

	messageID := chi.URLParam(r, "messageID")
	msg, err := h.messages.UpdateMessage(r.Context(), messageID, core.MessageUpdate{Upvoted: req.Upvoted})
	if err != nil {
		writeError(w, err)
		return
	}
	if msg == nil {
		writeErrorKind(w, apperr.KindNotFound, "message not found")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}
