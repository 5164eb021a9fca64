package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/munipolis/vasefirma-ai/internal/api"
	"github.com/munipolis/vasefirma-ai/internal/assist"
	"github.com/munipolis/vasefirma-ai/internal/config"
	"github.com/munipolis/vasefirma-ai/internal/openai"
	"github.com/munipolis/vasefirma-ai/internal/pinecone"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // generation can be slow on long answers
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(*cobra.Command, []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting HTTP API server", "version", Version)

	ai := openai.New(openai.Config{
		APIKey:             cfg.OpenAIAPIKey,
		EmbeddingModel:     cfg.EmbeddingModel,
		EmbeddingDimension: cfg.EmbeddingDimension,
		ChatModel:          cfg.ChatModel,
		Temperature:        cfg.Temperature,
		MaxAnswerTokens:    cfg.MaxAnswerTokens,
		MaxInputChars:      cfg.MaxInputChars,
	})

	index := pinecone.New(pinecone.Config{
		APIKey:     cfg.PineconeAPIKey,
		Index:      cfg.PineconeIndex,
		ControlURL: cfg.PineconeControlURL,
	}, logger)

	svc := assist.NewService(
		assist.Config{
			RelevanceThreshold: cfg.RelevanceThreshold,
			TopK:               cfg.TopK,
			MaxHistoryTurns:    cfg.MaxHistoryTurns,
			MaxInputChars:      cfg.MaxInputChars,
		},
		assist.NewRateLimiter(cfg.RateLimitQuota, cfg.RateLimitWindow),
		ai, index, ai,
		logger,
	)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:             logger,
		Service:            svc,
		CORSOrigins:        cfg.CORSOrigins,
		TrustProxy:         cfg.TrustProxy,
		OpenAIConfigured:   cfg.OpenAIAPIKey != "",
		PineconeConfigured: cfg.PineconeAPIKey != "",
		PineconeIndex:      cfg.PineconeIndex,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ListenAddr,
		"api", "/api/*",
		"health", "/health",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
