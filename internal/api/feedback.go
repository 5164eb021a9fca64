package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/munipolis/vasefirma-ai/internal/log"
)

type feedbackRequest struct {
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
	Rating    string `json:"rating"`
}

type feedbackHandler struct {
	logger log.Logger
}

// handle records an answer rating. Feedback is logged, not persisted; the
// log stream is the dataset.
func (h *feedbackHandler) handle(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid feedback", h.logger)
		return
	}

	if req.Rating != "up" && req.Rating != "down" {
		writeError(w, http.StatusBadRequest, "Invalid feedback", h.logger)
		return
	}

	h.logger.Info("feedback received",
		"event", uuid.NewString(),
		"session", truncateLabel(req.SessionID, 20),
		"message", truncateLabel(req.MessageID, 40),
		"rating", req.Rating,
	)

	writeJSON(w, http.StatusOK, map[string]bool{"success": true}, h.logger)
}

// truncateLabel bounds client-supplied identifiers before they reach logs.
func truncateLabel(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
