// Package ai wraps the external embedding model behind a small client.
package ai

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/usesemdex/semdex/internal/profile"
	svcerrors "github.com/usesemdex/semdex/server/internal/errors"
)

// Config holds the embedding client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimension is the vector length D every response must have.
	Dimension int
	// MaxTextLen is the truncation limit in runes applied before the
	// model call.
	MaxTextLen int
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dimension:  384,
		MaxTextLen: 8192,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// NewConfigFromProfile builds the embedding config from the server profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		BaseURL:    p.EmbeddingBaseURL,
		APIKey:     p.EmbeddingAPIKey,
		Model:      p.EmbeddingModel,
		Dimension:  p.EmbeddingDim,
		MaxTextLen: p.MaxTextLen,
		MaxRetries: 3,
		Timeout:    p.RequestTimeout,
	}
}

// Embedder turns a text into a fixed-dimension vector. Implementations must
// be deterministic for identical input and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// EmbeddingService is the OpenAI-compatible Embedder implementation.
type EmbeddingService struct {
	client *openai.Client
	config *Config
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg *Config) (*EmbeddingService, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension <= 0 {
		return nil, svcerrors.InvalidArgument("embedding dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &EmbeddingService{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Dimension returns the fixed vector length D.
func (s *EmbeddingService) Dimension() int {
	return s.config.Dimension
}

// Embed generates an embedding vector for the given text. Input is trimmed
// and truncated to the configured maximum length; empty input is rejected
// before the model is contacted. A response of the wrong dimension is an
// error, never silently padded or substituted.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, svcerrors.InvalidArgument("text is empty")
	}
	if s.config.MaxTextLen > 0 {
		if runes := []rune(text); len(runes) > s.config.MaxTextLen {
			text = string(runes[:s.config.MaxTextLen])
		}
	}

	var result []float32
	err := s.doWithRetry(ctx, func(ctx context.Context) error {
		req := openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(s.config.Model),
		}
		resp, err := s.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return svcerrors.EmbeddingFailed("empty embedding response", nil)
		}
		result = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if ctxErr == context.DeadlineExceeded {
				return nil, svcerrors.Timeout("embedding call exceeded deadline", err)
			}
			return nil, svcerrors.ContextCanceled(err)
		}
		return nil, svcerrors.EmbeddingFailed("failed to generate embedding", err)
	}

	if len(result) != s.config.Dimension {
		return nil, svcerrors.EmbeddingFailed(
			"model returned vector of wrong dimension", nil)
	}
	return result, nil
}

// doWithRetry executes fn with exponential backoff, bounding each attempt
// by the configured timeout.
func (s *EmbeddingService) doWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < s.config.MaxRetries-1 {
			waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			slog.Debug("embedding request failed, retrying",
				"attempt", attempt+1,
				"wait_time", waitTime,
				"error", err)
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
