package assist

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates a required upstream credential is missing.
	// Raised at first use, not at startup.
	ErrNotConfigured = errors.New("service configuration error")

	// ErrRateLimited indicates the caller exhausted its query quota for the
	// current window.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidQuestion indicates the question is missing or blank after
	// trimming.
	ErrInvalidQuestion = errors.New("question required")
)

// UpstreamError reports a failed call to an external service. Detail is for
// server logs only and must never reach a client response.
type UpstreamError struct {
	Service    string // "openai-embeddings", "openai-chat" or "pinecone"
	StatusCode int    // upstream HTTP status, 0 when the call never completed
	Detail     string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Detail)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
