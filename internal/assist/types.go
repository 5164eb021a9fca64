// Package assist implements the retrieval-augmented query pipeline behind
// the Vaše Firma employee assistant: admission, validation, embedding,
// vector retrieval, context assembly and answer generation.
package assist

import "encoding/json"

// Chat roles on the generation request.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User-facing strings. These are part of the widget contract and must not
// be reworded.
const (
	// FallbackAnswer is returned verbatim whenever the pipeline fails after
	// admission, regardless of which stage failed.
	FallbackAnswer = "Omlouvám se, při zpracování dotazu došlo k chybě. Zkuste to prosím znovu."

	// RateLimitAnswer is returned when a client exhausts its query quota.
	RateLimitAnswer = "Překročen limit dotazů. Zkuste to prosím za chvíli."

	// DefaultSourceLabel names documents whose metadata carries no source.
	DefaultSourceLabel = "Interní dokument"

	// noContextMarker is injected into the system prompt when no document
	// clears the relevance threshold.
	noContextMarker = "Žádné relevantní dokumenty nebyly nalezeny."
)

// Request is a single assistant query as received from the widget.
type Request struct {
	// Question is the raw user question; the service trims and truncates it.
	Question string

	// SessionID is an opaque client-generated identifier, used for log
	// correlation only.
	SessionID string

	// ClientKey identifies the caller for rate limiting, typically the
	// client IP.
	ClientKey string

	// History holds the prior conversation turns as raw JSON. Elements that
	// do not decode into a valid turn are dropped, not rejected.
	History []json.RawMessage
}

// Turn is one validated conversation turn.
type Turn struct {
	Text   string
	IsUser bool
}

// Message is one chat message sent to the generation model.
type Message struct {
	Role    string
	Content string
}

// Document is a scored match returned from the vector index.
type Document struct {
	ID     string
	Score  float64
	Text   string
	Source string
}

// Source attributes part of an answer to a document, as exposed to the
// widget.
type Source struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Completion is the generation result.
type Completion struct {
	Text       string
	TokensUsed int
}

// Response is the successful pipeline result.
type Response struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	DocumentsFound int      `json:"documentsFound"`
	TopScore       float64  `json:"topScore"`
	TokensUsed     int      `json:"tokensUsed"`
}
