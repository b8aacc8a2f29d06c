package generative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// AnthropicConfig configures the Anthropic-backed provider.
type AnthropicConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint (tests).
	BaseURL string

	RequestsPerSecond float64
	MaxConcurrent     int64
	MaxTokens         int
	// ContextTokens bounds the transcript context sent with a request.
	ContextTokens int
	Timeout       time.Duration

	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	FailureThreshold int64
	OpenTimeout      time.Duration
}

// DefaultAnthropicConfig returns the default provider configuration without credentials.
func DefaultAnthropicConfig() AnthropicConfig {
	return AnthropicConfig{
		Model:             "claude-3-5-haiku-latest",
		RequestsPerSecond: 2,
		MaxConcurrent:     4,
		MaxTokens:         1024,
		ContextTokens:     3000,
		Timeout:           45 * time.Second,
		MaxRetries:        2,
		InitialBackoff:    time.Second,
		MaxBackoff:        10 * time.Second,
		FailureThreshold:  5,
		OpenTimeout:       60 * time.Second,
	}
}

// Anthropic is a Provider backed by the Anthropic Messages API.
type Anthropic struct {
	client  anthropic.Client
	config  AnthropicConfig
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	breaker *CircuitBreaker
	codec   tokenizer.Codec
	logger  zerolog.Logger
}

// NewAnthropic creates the provider.
func NewAnthropic(config AnthropicConfig, logger zerolog.Logger) (*Anthropic, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	defaults := DefaultAnthropicConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.ContextTokens <= 0 {
		config.ContextTokens = defaults.ContextTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = defaults.OpenTimeout
	}

	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// Retries are handled here so the breaker sees every failure.
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	log := logger.With().Str("component", "generative").Str("model", config.Model).Logger()
	return &Anthropic{
		client:  anthropic.NewClient(opts...),
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		sem:     semaphore.NewWeighted(config.MaxConcurrent),
		breaker: NewCircuitBreaker(config.FailureThreshold, config.OpenTimeout, log),
		codec:   codec,
		logger:  log,
	}, nil
}

// BreakerState reports the circuit breaker state.
func (a *Anthropic) BreakerState() string {
	return a.breaker.State()
}

// Generate implements Provider.
func (a *Anthropic) Generate(ctx context.Context, req Request) (*Answer, error) {
	req.Context = a.truncate(req.Context)
	text, err := a.call(ctx, "generate", generateSystemPrompt, buildGeneratePrompt(req))
	if err != nil {
		return nil, err
	}
	answer, err := parseAnswer(text)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Unparseable provider answer")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return answer, nil
}

// Merge implements Provider.
func (a *Anthropic) Merge(ctx context.Context, req MergeRequest) (string, error) {
	text, err := a.call(ctx, "merge", mergeSystemPrompt, buildMergePrompt(req))
	if err != nil {
		return "", err
	}
	merged := strings.TrimSpace(text)
	if merged == "" {
		return "", fmt.Errorf("%w: empty merge result", ErrUnavailable)
	}
	return merged, nil
}

// truncate keeps the first ContextTokens tokens of text.
func (a *Anthropic) truncate(text string) string {
	if text == "" {
		return text
	}
	ids, _, err := a.codec.Encode(text)
	if err != nil || len(ids) <= a.config.ContextTokens {
		return text
	}
	out, err := a.codec.Decode(ids[:a.config.ContextTokens])
	if err != nil {
		return text
	}
	return out
}

func (a *Anthropic) call(ctx context.Context, operation, system, prompt string) (string, error) {
	if !a.breaker.Allow() {
		return "", fmt.Errorf("%s: %w: circuit open", operation, ErrUnavailable)
	}
	defer a.breaker.Abandon()
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%s: acquire slot: %w", operation, err)
	}
	defer a.sem.Release(1)

	var (
		lastErr error
		backoff = a.config.InitialBackoff
	)
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%s: rate limit wait: %w", operation, err)
		}

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		resp, err := a.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.config.Model),
			MaxTokens: int64(a.config.MaxTokens),
			System:    []anthropic.TextBlockParam{{Text: system}},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		cancel()

		if err == nil {
			a.breaker.RecordSuccess()
			var b strings.Builder
			for _, block := range resp.Content {
				if block.Type == "text" {
					b.WriteString(block.Text)
				}
			}
			a.logger.Debug().
				Str("operation", operation).
				Int64("input_tokens", resp.Usage.InputTokens).
				Int64("output_tokens", resp.Usage.OutputTokens).
				Dur("duration", time.Since(start)).
				Msg("Provider call completed")
			return b.String(), nil
		}

		lastErr = err
		if !isRetriable(err) {
			return "", fmt.Errorf("%s: %w", operation, err)
		}
		a.breaker.RecordFailure()
		if attempt == a.config.MaxRetries || !a.breaker.Allow() {
			break
		}

		a.logger.Warn().Err(err).Str("operation", operation).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("Provider call failed, retrying")
		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, a.config.MaxBackoff)
		case <-ctx.Done():
			return "", fmt.Errorf("%s: %w", operation, ctx.Err())
		}
	}
	return "", fmt.Errorf("%s: %w: %v", operation, ErrUnavailable, lastErr)
}

// isRetriable reports whether err is transient: timeouts, rate limits and server errors.
func isRetriable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "eof")
}

// parseAnswer extracts the JSON object of a provider response. Models sometimes wrap it in
// prose or code fences.
func parseAnswer(text string) (*Answer, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in response")
	}
	var answer Answer
	if err := json.Unmarshal([]byte(text[start:end+1]), &answer); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	answer.Answer = strings.TrimSpace(answer.Answer)
	if answer.Answer == "" {
		return nil, errors.New("empty answer")
	}
	answer.Confidence = max(0, min(100, answer.Confidence))
	return &answer, nil
}
