// Package genai provides GenAI-enhanced operations using the OpenAI API.
//
// All conversational stages (parameter extraction, question generation,
// empathetic responses, slot fabrication) go through the Client defined
// here. Callers pick a sampling temperature per call: extraction runs cold
// for precision, empathy runs hot for warmth.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default model configuration.
const (
	// DefaultModel is used when no model is configured.
	DefaultModel = openai.ChatModelGPT4oMini
	// DefaultTemperature is the sampling temperature when the caller does not override it.
	DefaultTemperature = 0.7
	// DefaultMaxCompletionTokens bounds response length for conversational turns.
	DefaultMaxCompletionTokens = 600
)

// ErrNoChoicesReturned indicates the API returned an empty choice list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openAIChatService adapts the OpenAI SDK service to the chatService interface.
type openAIChatService struct {
	completions openai.ChatCompletionService
}

func (s openAIChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// ClientInterface defines the GenAI operations the flow stages depend on.
// It exists so stages can be tested with a mock chat backend.
type ClientInterface interface {
	// GenerateWithMessages runs a chat completion at the client's default temperature.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	// GenerateWithTemperature runs a chat completion at an explicit temperature.
	GenerateWithTemperature(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, temperature float64) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey              string
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) {
		o.Temperature = t
	}
}

// WithMaxCompletionTokens bounds the completion length.
func WithMaxCompletionTokens(n int64) Option {
	return func(o *Opts) {
		o.MaxCompletionTokens = n
	}
}

// Client wraps the OpenAI ChatCompletion service.
type Client struct {
	chat                chatService
	model               string
	temperature         float64
	maxCompletionTokens int64
}

// NewClient initializes a new GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := cfg.MaxCompletionTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxCompletionTokens
	}

	cli := openai.NewClient(option.WithAPIKey(apiKey))
	slog.Debug("GenAI client initialized", "model", model, "temperature", temperature)
	return &Client{
		chat:                openAIChatService{completions: cli.Chat.Completions},
		model:               model,
		temperature:         temperature,
		maxCompletionTokens: maxTokens,
	}, nil
}

// GenerateWithMessages runs a chat completion at the default temperature.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return c.GenerateWithTemperature(ctx, messages, c.temperature)
}

// GenerateWithTemperature runs a chat completion at an explicit temperature.
func (c *Client) GenerateWithTemperature(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		Messages:            messages,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(c.maxCompletionTokens),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("GenAI chat completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CleanJSONResponse strips markdown code fences that models sometimes wrap
// around JSON payloads, returning the bare JSON text.
func CleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
