package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"livepoll-service/internal/app"
	"livepoll-service/internal/domain"
)

// HistoryHandler is the read-only REST projection over closed questions.
type HistoryHandler struct {
	history *app.HistoryService
}

func NewHistoryHandler(history *app.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// ServeHistory handles GET /api/sessions/{id}/history.
func (h *HistoryHandler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	history, err := h.history.History(r.Context(), sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("history for %s: %v", sessionID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(history); err != nil {
		log.Printf("encode history for %s: %v", sessionID, err)
	}
}
