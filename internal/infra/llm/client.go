package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/starlight-bridge/starlight/internal/log"
)

const defaultModel = "gpt-4o-mini"

// ChatCompleter is the slice of the OpenAI client the adapter needs
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client sends chat completions through a circuit breaker so a failing
// endpoint is not hammered by every incoming message
type Client struct {
	api     ChatCompleter
	model   string
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a client for an OpenAI compatible endpoint
func NewClient(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return NewClientWithAPI(openai.NewClientWithConfig(config), model)
}

// NewClientWithAPI wraps an existing completer
func NewClientWithAPI(api ChatCompleter, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		api:   api,
		model: model,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("[LLM] circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Model returns the default model
func (c *Client) Model() string {
	return c.model
}

// Request is one completion request
type Request struct {
	Model        string
	SystemPrompt string
	UserMessage  string
	Temperature  float32
	MaxTokens    int
}

// Chat sends a message and returns the response
func (c *Client) Chat(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserMessage})

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("no response choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return out.(string), nil
}
