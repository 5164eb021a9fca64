package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munipolis/vasefirma-ai/internal/assist"
	"github.com/munipolis/vasefirma-ai/internal/log"
)

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, s.err
}

type stubRetriever struct {
	docs []assist.Document
	err  error
}

func (s stubRetriever) Retrieve(context.Context, []float32, int) ([]assist.Document, error) {
	return s.docs, s.err
}

type stubGenerator struct {
	completion assist.Completion
	err        error
}

func (s stubGenerator) Generate(context.Context, []assist.Message) (assist.Completion, error) {
	return s.completion, s.err
}

type serverOptions struct {
	quota     int
	embedErr  error
	docs      []assist.Document
	genAnswer assist.Completion
}

func newTestServer(t *testing.T, opts serverOptions) *Server {
	t.Helper()

	if opts.quota == 0 {
		opts.quota = 30
	}
	svc := assist.NewService(
		assist.Config{RelevanceThreshold: 0.3, TopK: 10, MaxHistoryTurns: 6, MaxInputChars: 2000},
		assist.NewRateLimiter(opts.quota, time.Minute),
		stubEmbedder{err: opts.embedErr},
		stubRetriever{docs: opts.docs},
		stubGenerator{completion: opts.genAnswer},
		log.NewNop(),
	)

	srv, err := NewServer(ServerConfig{
		Service:            svc,
		CORSOrigins:        []string{"https://vasefirma.munipolis.cz", "http://localhost:3000"},
		OpenAIConfigured:   true,
		PineconeConfigured: true,
		PineconeIndex:      "vasefirma-docs",
	})
	require.NoError(t, err)
	return srv
}

func postJSON(srv *Server, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, r)
	return w
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestQuery_Success(t *testing.T) {
	srv := newTestServer(t, serverOptions{
		docs:      []assist.Document{{ID: "d1", Score: 0.9, Text: "Moduly aplikace...", Source: "Moduly"}},
		genAnswer: assist.Completion{Text: "📱 Aplikace nabízí tyto moduly...", TokensUsed: 512},
	})

	w := postJSON(srv, "/api/query", `{
		"question": "Jaké moduly aplikace nabízí?",
		"sessionId": "sess-42",
		"chatHistory": [{"text":"ahoj","isUser":true}]
	}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp assist.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "📱 Aplikace nabízí tyto moduly...", resp.Answer)
	assert.Equal(t, []assist.Source{{Source: "Moduly", Score: 0.9}}, resp.Sources)
	assert.Equal(t, 1, resp.DocumentsFound)
	assert.InDelta(t, 0.9, resp.TopScore, 1e-9)
	assert.Equal(t, 512, resp.TokensUsed)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestQuery_InvalidQuestion(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	tests := []struct {
		name string
		body string
	}{
		{"missing question", `{"sessionId":"s"}`},
		{"non-string question", `{"question": 42}`},
		{"null question", `{"question": null}`},
		{"blank question", `{"question": "   "}`},
		{"malformed body", `{`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(srv, "/api/query", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"Question required"}`, w.Body.String())
		})
	}
}

func TestQuery_RateLimited(t *testing.T) {
	srv := newTestServer(t, serverOptions{quota: 1})

	w := postJSON(srv, "/api/query", `{"question":"první"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(srv, "/api/query", `{"question":"druhá"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{
		"answer": "Překročen limit dotazů. Zkuste to prosím za chvíli.",
		"error": "rate_limited"
	}`, w.Body.String())
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestQuery_UpstreamFailure(t *testing.T) {
	srv := newTestServer(t, serverOptions{
		embedErr: &assist.UpstreamError{Service: "openai-embeddings", StatusCode: 502, Detail: "secret detail"},
	})

	w := postJSON(srv, "/api/query", `{"question":"otázka"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"answer":"Omlouvám se, při zpracování dotazu došlo k chybě. Zkuste to prosím znovu."}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret detail", "upstream detail must not leak to clients")
}

func TestQuery_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestFeedback(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"thumbs up", `{"sessionId":"s","messageId":"m","rating":"up"}`, http.StatusOK, `{"success":true}`},
		{"thumbs down", `{"rating":"down"}`, http.StatusOK, `{"success":true}`},
		{"unknown rating", `{"rating":"meh"}`, http.StatusBadRequest, `{"error":"Invalid feedback"}`},
		{"missing rating", `{"sessionId":"s"}`, http.StatusBadRequest, `{"error":"Invalid feedback"}`},
		{"malformed body", `{`, http.StatusBadRequest, `{"error":"Invalid feedback"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(srv, "/api/feedback", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestConfig(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	r.Host = "vasefirma-ai.example.cz"
	srv.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp configResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Vaše Firma", resp.Name)
	assert.Equal(t, "#564fd8", resp.WidgetConfig.PrimaryColor)
	assert.Equal(t, "https://vasefirma-ai.example.cz/logo.png", resp.WidgetConfig.Logo)
	assert.Len(t, resp.WidgetConfig.QuickReplies, 4)
	assert.Equal(t, 8000, resp.WidgetConfig.AutoPopupDelay)
}

func TestConfig_ForwardedHost(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	r.Header.Set("X-Forwarded-Proto", "http")
	r.Header.Set("X-Forwarded-Host", "widget.internal")
	srv.Handler().ServeHTTP(w, r)

	var resp configResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "http://widget.internal/cover.jpg", resp.WidgetConfig.CoverPhoto)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Checks.OpenAI)
	assert.True(t, resp.Checks.Pinecone)
	assert.Equal(t, "vasefirma-docs", resp.Checks.PineconeIndex)

	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err)
}

func TestHealth_IndexNotSet(t *testing.T) {
	svc := assist.NewService(assist.Config{TopK: 1, MaxInputChars: 10},
		assist.NewRateLimiter(1, time.Minute), stubEmbedder{}, stubRetriever{}, stubGenerator{}, log.NewNop())
	srv, err := NewServer(ServerConfig{Service: svc})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not set", resp.Checks.PineconeIndex)
	assert.False(t, resp.Checks.OpenAI)
}
