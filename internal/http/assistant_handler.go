package http

import (
	"log/slog"
	"net/http"

	"github.com/orderbuddy/orderbuddy/internal/assistant"
)

type AssistantRequestDTO struct {
	Message string `json:"message"`
	Context string `json:"context"`
}

type AssistantHandler struct {
	assistant Assistant
	log       *slog.Logger
}

func NewAssistantHandler(a Assistant, log *slog.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: a, log: log}
}

// POST /api/ai/assistant
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req AssistantRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.assistant.Ask(r.Context(), actor, assistant.Request{Message: req.Message, Context: req.Context})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
