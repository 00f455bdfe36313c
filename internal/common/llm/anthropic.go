package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	commonerrors "parts-agent/internal/common/errors"
	"parts-agent/internal/common/logger"
	"parts-agent/internal/common/metrics"
)

var errProviderDisabled = errors.New("language model provider disabled")

// AnthropicConfig configures the Anthropic-backed provider.
type AnthropicConfig struct {
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// AnthropicProvider implements Provider on the Anthropic Messages API with
// bounded retry. Quota errors are retried with exponential backoff; other
// provider errors are returned immediately so callers can degrade to their
// deterministic fallbacks.
type AnthropicProvider struct {
	client anthropic.Client
	config AnthropicConfig
	logger logger.Logger
}

func NewAnthropicProvider(cfg AnthropicConfig, log logger.Logger) *AnthropicProvider {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &AnthropicProvider{
		// SDK-level retries stay off; the backoff policy lives here.
		client: anthropic.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0),
		),
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"provider": "anthropic"}),
	}
}

func (p *AnthropicProvider) Enabled() bool {
	return p.config.APIKey != ""
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if !p.Enabled() {
		return "", commonerrors.NewProviderError(errProviderDisabled)
	}

	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	if opts.ResponseFormat == ResponseFormatJSON {
		prompt += "\n\nRespond with a single JSON object only. No markdown, no surrounding text."
	}

	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := 500 * time.Millisecond << (attempt - 1)
			if backoff > 4*time.Second {
				backoff = 4 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", commonerrors.NewProviderError(ctx.Err())
			}
		}

		text, err := p.call(ctx, prompt, opts)
		if err == nil {
			metrics.ProviderCallsTotal.WithLabelValues("anthropic", "ok").Inc()
			return text, nil
		}
		lastErr = err

		if !commonerrors.IsQuota(err) {
			// Fail fast on non-quota errors; the component falls back.
			metrics.ProviderCallsTotal.WithLabelValues("anthropic", "error").Inc()
			return "", err
		}
		metrics.ProviderCallsTotal.WithLabelValues("anthropic", "quota").Inc()
		p.logger.Warn("provider quota error, backing off", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return "", lastErr
}

func (p *AnthropicProvider) call(ctx context.Context, prompt string, opts Options) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	message, err := p.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.config.Model),
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyAPIError(err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}

// classifyAPIError maps transport failures onto the pipeline taxonomy.
// 429 and 529 (overloaded) count as quota exhaustion.
func classifyAPIError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests, 529:
			return commonerrors.NewProviderQuotaError(err)
		}
	}
	return commonerrors.NewProviderError(err)
}
