// Package llm wraps the OpenAI chat completion API behind a small
// Completer interface shared by quiz generation and punctuation restoration.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/listening-companion/internal/platform/observe"
)

var (
	// ErrNotConfigured means no API key was supplied.
	ErrNotConfigured = errors.New("llm: api key not configured")
	// ErrInvalidKey means the provider rejected the API key.
	ErrInvalidKey = errors.New("llm: invalid api key")
	// ErrUnavailable means the circuit breaker is refusing calls.
	ErrUnavailable = errors.New("llm: provider unavailable")
	// ErrEmpty means the provider answered without any content.
	ErrEmpty = errors.New("llm: empty completion")
)

// Request is one single-turn chat completion.
type Request struct {
	// Kind labels the call in metrics, e.g. "quiz" or "punctuate".
	Kind        string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer returns the trimmed assistant text for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Client struct {
	client     oai.Client
	model      string
	configured bool
	cb         *gobreaker.CircuitBreaker
	metrics    *observe.Metrics
	log        *zap.Logger
}

type config struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	metrics    *observe.Metrics
	log        *zap.Logger
}

type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxRetries sets the SDK's own retry count. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithHTTPClient routes requests through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *config) { c.cb = cb }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.log = log }
}

// New builds a client for model. An empty apiKey yields a client whose
// every call fails with ErrNotConfigured.
func New(apiKey, model string, opts ...Option) *Client {
	cfg := &config{maxRetries: 2, timeout: 45 * time.Second}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.log == nil {
		cfg.log = zap.NewNop()
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	apiKey = strings.TrimSpace(apiKey)
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}
	reqOpts = append(reqOpts, option.WithHTTPClient(hc))

	return &Client{
		client:     oai.NewClient(reqOpts...),
		model:      model,
		configured: apiKey != "",
		cb:         cfg.cb,
		metrics:    cfg.metrics,
		log:        cfg.log,
	}
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool { return c.configured }

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.configured {
		return "", ErrNotConfigured
	}
	start := time.Now()
	text, err := c.completeWithBreaker(ctx, req)
	c.metrics.RecordProviderRequest(ctx, "openai", req.Kind, outcome(err), time.Since(start).Seconds())
	if err != nil {
		c.log.Warn("llm completion failed", zap.String("kind", req.Kind), zap.Error(err))
	}
	return text, err
}

func (c *Client) completeWithBreaker(ctx context.Context, req Request) (string, error) {
	if c.cb == nil {
		return c.complete(ctx, req)
	}
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	var messages []oai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, oai.SystemMessage(req.System))
	}
	messages = append(messages, oai.UserMessage(req.User))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.Code == "invalid_api_key") {
			return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmpty
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnavailable):
		return "rejected"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}
