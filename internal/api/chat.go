package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/campushq/placemate/internal/chat"
)

// maxChatBodyBytes bounds the chat request body.
const maxChatBodyBytes = 1 << 20

// ChatService answers chat queries. Implemented by chat.Orchestrator.
type ChatService interface {
	Answer(ctx context.Context, q chat.Query) (*chat.Reply, error)
}

// chatHandler serves POST /api/v1/chat.
type chatHandler struct {
	chat   ChatService
	logger *slog.Logger
}

// chatRequest is the request body for the chat endpoint.
type chatRequest struct {
	Message string `json:"message"`
}

func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	actor, _ := actorFromContext(r.Context())

	reply, err := h.chat.Answer(r.Context(), chat.Query{
		Message:   req.Message,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, reply)
}
