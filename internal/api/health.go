package api

import (
	"net/http"
	"time"

	"github.com/munipolis/vasefirma-ai/internal/log"
)

type healthChecks struct {
	OpenAI        bool   `json:"openai"`
	Pinecone      bool   `json:"pinecone"`
	PineconeIndex string `json:"pineconeIndex"`
}

type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Checks    healthChecks `json:"checks"`
}

// healthHandler reports credential presence without calling upstream, so
// the probe stays cheap and cannot be used to burn quota.
type healthHandler struct {
	checks healthChecks
	logger log.Logger
	now    func() time.Time
}

func (h *healthHandler) handle(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    h.checks,
	}, h.logger)
}
