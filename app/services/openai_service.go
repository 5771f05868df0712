package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cantalab/leadflow/config"
	openai "github.com/sashabaranov/go-openai"
)

var ErrEmptyCompletion = errors.New("generator returned an empty completion")

// LyricGenerator produces text from a system and a user prompt
type LyricGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIService implements LyricGenerator with chat completions
type OpenAIService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIService creates a generator for the configured model
func NewOpenAIService(cfg config.OpenAIConfig) LyricGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIService{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: cfg.Timeout,
	}
}

// Generate asks the model for a single completion bounded by the configured timeout
func (s *OpenAIService) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// MockLyricGenerator implements LyricGenerator for testing
type MockLyricGenerator struct {
	mu       sync.Mutex
	Response string
	Err      error
	Prompts  []MockPrompt
}

// MockPrompt records one generation request
type MockPrompt struct {
	System string
	User   string
}

// NewMockLyricGenerator creates a mock answering with response
func NewMockLyricGenerator(response string) *MockLyricGenerator {
	return &MockLyricGenerator{Response: response}
}

func (m *MockLyricGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, MockPrompt{System: systemPrompt, User: userPrompt})
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// GetPrompts returns the recorded prompts
func (m *MockLyricGenerator) GetPrompts() []MockPrompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockPrompt, len(m.Prompts))
	copy(out, m.Prompts)
	return out
}
