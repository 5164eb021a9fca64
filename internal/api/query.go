package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/munipolis/vasefirma-ai/internal/assist"
	"github.com/munipolis/vasefirma-ai/internal/log"
)

const fallbackAnswer = assist.FallbackAnswer

// queryRequest is the widget's query payload. Question stays raw so a
// non-string value is distinguishable from a missing one; history elements
// stay raw because malformed turns are dropped, not rejected.
type queryRequest struct {
	Question    json.RawMessage   `json:"question"`
	SessionID   string            `json:"sessionId"`
	ChatHistory []json.RawMessage `json:"chatHistory"`
}

type queryHandler struct {
	svc        *assist.Service
	trustProxy bool
	logger     log.Logger
}

func (h *queryHandler) handle(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Question required", h.logger)
		return
	}

	var question string
	if err := json.Unmarshal(req.Question, &question); err != nil || string(req.Question) == "null" {
		writeError(w, http.StatusBadRequest, "Question required", h.logger)
		return
	}

	resp, err := h.svc.Answer(r.Context(), assist.Request{
		Question:  question,
		SessionID: req.SessionID,
		ClientKey: clientIP(r, h.trustProxy),
		History:   req.ChatHistory,
	})
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}

// writeFailure maps pipeline errors onto the widget contract. Upstream
// detail stays in the server log; clients only ever see the fixed apology.
func (h *queryHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assist.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"answer": assist.RateLimitAnswer,
			"error":  "rate_limited",
		}, h.logger)

	case errors.Is(err, assist.ErrInvalidQuestion):
		writeError(w, http.StatusBadRequest, "Question required", h.logger)

	default:
		h.logger.Error("query failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"answer": fallbackAnswer,
		}, h.logger)
	}
}
