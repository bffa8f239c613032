package flow

import (
	"context"
	"errors"
	"sync"

	"github.com/openai/openai-go"

	"github.com/FranckBG1/agentic-ia-agent/internal/genai"
)

// scriptedGenAI returns canned responses in order and records every prompt it
// received. When the script runs out it returns an error, which exercises the
// fallback paths.
type scriptedGenAI struct {
	mu        sync.Mutex
	responses []string
	calls     [][]openai.ChatCompletionMessageParamUnion
	temps     []float64
}

var errScriptExhausted = errors.New("scripted responses exhausted")

func (s *scriptedGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return s.GenerateWithTemperature(ctx, messages, genai.DefaultTemperature)
}

func (s *scriptedGenAI) GenerateWithTemperature(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, temperature float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, messages)
	s.temps = append(s.temps, temperature)
	if len(s.responses) == 0 {
		return "", errScriptExhausted
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

// failingGenAI always errors, forcing every LLM-backed stage onto its fallback.
type failingGenAI struct{}

func (failingGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return "", errors.New("upstream unavailable")
}

func (failingGenAI) GenerateWithTemperature(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, temperature float64) (string, error) {
	return "", errors.New("upstream unavailable")
}
