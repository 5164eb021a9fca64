package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/munipolis/vasefirma-ai/internal/log"
)

// maxSources caps how many source attributions a response carries.
const maxSources = 3

// Embedder turns a question into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever finds the top-K scored documents for a query vector.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float32, topK int) ([]Document, error)
}

// Generator produces the answer from an assembled chat request.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (Completion, error)
}

// Config carries the pipeline policy knobs.
type Config struct {
	RelevanceThreshold float64
	TopK               int
	MaxHistoryTurns    int
	MaxInputChars      int
}

// Service orchestrates the query pipeline. Stages run strictly in order:
// admission, validation, embedding, retrieval, assembly, generation. No
// stage after a failed one is reached, so rejected requests cost nothing
// upstream.
type Service struct {
	cfg       Config
	limiter   *RateLimiter
	embedder  Embedder
	retriever Retriever
	generator Generator
	logger    log.Logger
}

// NewService creates the pipeline service. A nil logger discards output.
func NewService(cfg Config, limiter *RateLimiter, embedder Embedder, retriever Retriever, generator Generator, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		cfg:       cfg,
		limiter:   limiter,
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		logger:    logger,
	}
}

// Answer runs one question through the pipeline.
//
// Returns ErrRateLimited before validation and ErrInvalidQuestion before any
// upstream call. Upstream failures come back wrapped; callers map them all
// to the same FallbackAnswer.
func (s *Service) Answer(ctx context.Context, req Request) (*Response, error) {
	if !s.limiter.Admit(req.ClientKey) {
		s.logger.Warn("rate limit exceeded", "ip", req.ClientKey, "session", sessionLabel(req.SessionID))
		return nil, ErrRateLimited
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrInvalidQuestion
	}
	question = truncate(question, s.cfg.MaxInputChars)

	s.logger.Info("query received",
		"question", truncate(question, 80),
		"session", sessionLabel(req.SessionID),
		"ip", req.ClientKey,
	)

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	docs, err := s.retriever.Retrieve(ctx, vector, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieving documents: %w", err)
	}

	topScore := 0.0
	if len(docs) > 0 {
		topScore = docs[0].Score
	}
	s.logger.Info("documents retrieved", "matches", len(docs), "top_score", topScore)

	// The turn window applies to the raw history; malformed elements inside
	// the window are dropped, they do not pull older turns back in.
	history := req.History
	if s.cfg.MaxHistoryTurns >= 0 && len(history) > s.cfg.MaxHistoryTurns {
		history = history[len(history)-s.cfg.MaxHistoryTurns:]
	}

	messages := BuildMessages(question, docs, ParseHistory(history), PromptConfig{
		RelevanceThreshold: s.cfg.RelevanceThreshold,
		MaxHistoryTurns:    s.cfg.MaxHistoryTurns,
		MaxTurnChars:       s.cfg.MaxInputChars,
	})

	completion, err := s.generator.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Response{
		Answer:         completion.Text,
		Sources:        collectSources(docs, s.cfg.RelevanceThreshold),
		DocumentsFound: len(docs),
		TopScore:       topScore,
		TokensUsed:     completion.TokensUsed,
	}, nil
}

// collectSources re-filters the retrieval result independently of context
// assembly: documents above the threshold, retrieval order preserved, at
// most maxSources entries. Always non-nil so the response serializes as [].
func collectSources(docs []Document, threshold float64) []Source {
	sources := make([]Source, 0, maxSources)
	for _, doc := range docs {
		if doc.Score <= threshold {
			continue
		}
		label := doc.Source
		if label == "" {
			label = DefaultSourceLabel
		}
		sources = append(sources, Source{Source: label, Score: doc.Score})
		if len(sources) == maxSources {
			break
		}
	}
	return sources
}

// sessionLabel normalizes the client-supplied session identifier for logs.
func sessionLabel(id string) string {
	if id == "" {
		return "anon"
	}
	return truncate(id, 20)
}
