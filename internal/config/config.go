// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables
//  2. Config file (./config.yaml)
//  3. Default values
//
// API credentials are deliberately NOT validated here: the upstream clients
// fail with a configuration error on first use, so the service can boot
// (and serve /health) without keys present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidThreshold indicates the relevance threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid relevance threshold")

	// ErrInvalidQuota indicates the rate limit quota is not positive.
	ErrInvalidQuota = errors.New("invalid rate limit quota")

	// ErrInvalidWindow indicates the rate limit window is not positive.
	ErrInvalidWindow = errors.New("invalid rate limit window")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidHistoryTurns indicates the history turn limit is negative.
	ErrInvalidHistoryTurns = errors.New("invalid max history turns")

	// ErrInvalidMaxInputChars indicates the input truncation limit is not positive.
	ErrInvalidMaxInputChars = errors.New("invalid max input chars")

	// ErrInvalidMaxAnswerTokens indicates the answer token cap is not positive.
	ErrInvalidMaxAnswerTokens = errors.New("invalid max answer tokens")

	// ErrInvalidTemperature indicates the generation temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")
)

// Defaults for the query pipeline. These are policy values, not structural
// requirements; every one of them can be overridden via config file or env.
const (
	DefaultEmbeddingModel     = "text-embedding-3-small"
	DefaultEmbeddingDimension = 1536
	DefaultChatModel          = "gpt-4o-mini"
	DefaultTemperature        = 0.3
	DefaultMaxAnswerTokens    = 800
	DefaultRelevanceThreshold = 0.3
	DefaultTopK               = 10
	DefaultMaxHistoryTurns    = 6
	DefaultMaxInputChars      = 2000
	DefaultRateLimitQuota     = 30
	DefaultRateLimitWindow    = 60 * time.Second
	DefaultPineconeIndex      = "vasefirma-docs"
	DefaultPineconeControlURL = "https://api.pinecone.io"
	DefaultListenAddr         = "127.0.0.1:8080"
	DefaultIngestBatchSize    = 50
)

// Config stores application configuration.
// SECURITY: API keys are masked by never being logged; do not add them to
// any LogValue/String implementation.
type Config struct {
	// Upstream credentials (env only, checked at first use by the clients)
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	PineconeAPIKey string `mapstructure:"pinecone_api_key"`

	// Vector index
	PineconeIndex      string `mapstructure:"pinecone_index"`
	PineconeControlURL string `mapstructure:"pinecone_control_url"`

	// Models
	EmbeddingModel     string  `mapstructure:"embedding_model"`
	EmbeddingDimension int     `mapstructure:"embedding_dimension"`
	ChatModel          string  `mapstructure:"chat_model"`
	Temperature        float64 `mapstructure:"temperature"`
	MaxAnswerTokens    int     `mapstructure:"max_answer_tokens"`

	// Query pipeline policy
	RelevanceThreshold float64       `mapstructure:"relevance_threshold"`
	TopK               int           `mapstructure:"top_k"`
	MaxHistoryTurns    int           `mapstructure:"max_history_turns"`
	MaxInputChars      int           `mapstructure:"max_input_chars"`
	RateLimitQuota     int           `mapstructure:"rate_limit_quota"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`

	// HTTP server
	ListenAddr  string   `mapstructure:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"`

	// Bulk importer
	IngestBatchSize int     `mapstructure:"ingest_batch_size"`
	IngestRateLimit float64 `mapstructure:"ingest_rate_limit"` // embedding calls per second
}

// Load loads configuration.
// Priority: environment variables > config file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("config file not found, using defaults", "config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pinecone_index", DefaultPineconeIndex)
	v.SetDefault("pinecone_control_url", DefaultPineconeControlURL)

	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("temperature", DefaultTemperature)
	v.SetDefault("max_answer_tokens", DefaultMaxAnswerTokens)

	v.SetDefault("relevance_threshold", DefaultRelevanceThreshold)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("max_history_turns", DefaultMaxHistoryTurns)
	v.SetDefault("max_input_chars", DefaultMaxInputChars)
	v.SetDefault("rate_limit_quota", DefaultRateLimitQuota)
	v.SetDefault("rate_limit_window", DefaultRateLimitWindow)

	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("cors_origins", []string{
		"https://vasefirma.munipolis.cz",
		"https://vasefirma-ai.vercel.app",
		"http://localhost:3000",
	})
	v.SetDefault("trust_proxy", false)

	v.SetDefault("ingest_batch_size", DefaultIngestBatchSize)
	v.SetDefault("ingest_rate_limit", 2.0)
}

// bindEnvVariables binds environment variables explicitly. Secrets are env
// only; they have no config-file default on purpose.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("pinecone_api_key", "PINECONE_API_KEY")
	mustBind("pinecone_index", "PINECONE_INDEX_NAME")

	mustBind("listen_addr", "VASEFIRMA_ADDR")
	mustBind("cors_origins", "VASEFIRMA_CORS_ORIGINS")
	mustBind("trust_proxy", "VASEFIRMA_TRUST_PROXY")
	mustBind("chat_model", "VASEFIRMA_CHAT_MODEL")
}

// Validate checks configuration ranges (fail-fast). Credentials are not
// checked here; see the package comment.
func (c *Config) Validate() error {
	if c.RelevanceThreshold < -1 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("%w: %v (must be within [-1, 1])", ErrInvalidThreshold, c.RelevanceThreshold)
	}
	if c.RateLimitQuota <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidQuota, c.RateLimitQuota)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("%w: %v (must be positive)", ErrInvalidWindow, c.RateLimitWindow)
	}
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: %d (must be within [1, 100])", ErrInvalidTopK, c.TopK)
	}
	if c.MaxHistoryTurns < 0 {
		return fmt.Errorf("%w: %d (must not be negative)", ErrInvalidHistoryTurns, c.MaxHistoryTurns)
	}
	if c.MaxInputChars <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidMaxInputChars, c.MaxInputChars)
	}
	if c.MaxAnswerTokens <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidMaxAnswerTokens, c.MaxAnswerTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be within [0, 2])", ErrInvalidTemperature, c.Temperature)
	}
	return nil
}
