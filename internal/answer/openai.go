package answer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "Answer the question using only the given context. " +
	"Reply with a short phrase copied from the context when possible. " +
	"If the context does not contain the answer, reply with an empty message."

// OpenAIConfig configures the chat answerer.
type OpenAIConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// OpenAI answers questions with an OpenAI-compatible chat completion model.
type OpenAI struct {
	client *goopenai.Client
	model  string
}

// NewOpenAI creates a chat answerer.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	oc := goopenai.DefaultConfig(key)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAI{client: goopenai.NewClientWithConfig(oc), model: cfg.Model}, nil
}

// Answer implements domain.Answerer.
func (a *OpenAI) Answer(ctx context.Context, question, passage string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: a.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: "Context:\n" + passage + "\n\nQuestion: " + question},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
