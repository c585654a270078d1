package textgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"newsroom/internal/config"
	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

// Generator implements ports.TextGenerator on top of the OpenAI chat
// completions API. Retry and timeout policy live here; the SDK's own retry
// loop is disabled so attempts stay observable and bounded.
type Generator struct {
	client      openai.Client
	model       string
	temperature float64
	policy      retryPolicy
	logger      *slog.Logger
}

var _ ports.TextGenerator = (*Generator)(nil)

// Option customizes the generator; used by tests.
type Option func(*Generator)

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(g *Generator) {
		g.policy.sleep = sleep
	}
}

// New builds a generator from configuration.
func New(cfg config.GenerationConfig, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	g := &Generator{
		client:      openai.NewClient(clientOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		policy:      newRetryPolicy(cfg.MaxAttempts, time.Duration(cfg.RetryDelayMillis)*time.Millisecond),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate sends the prompt with a per-call deadline and returns the raw
// model output. Failures are mapped to the pipeline taxonomy.
func (g *Generator) Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: empty prompt", domain.ErrGenerationFailed)
	}

	op := func(ctx context.Context) (string, error) {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := g.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(g.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(g.temperature),
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return "", errEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	}

	out, err := g.policy.run(ctx, transientError, op)
	if err != nil {
		g.logger.Warn("generation failed", "model", g.model, "error", err)
		return "", classify(err)
	}
	return out, nil
}

var errEmptyCompletion = errors.New("empty completion")

// transientError decides retry eligibility: timeouts, rate limits, server
// errors, and empty completions retry; everything else aborts immediately.
// Quota exhaustion looks like a 429 but retrying it only burns attempts.
func transientError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, errEmptyCompletion):
		return true
	case isQuotaError(err):
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// classify maps the final error onto the pipeline taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrGenerationTimeout, err)
	case isQuotaError(err):
		return fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
}

func isQuotaError(err error) bool {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		return false
	}
	return strings.Contains(err.Error(), "insufficient_quota") ||
		strings.Contains(err.Error(), "exceeded your current quota")
}
