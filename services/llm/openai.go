// Package llmsvc talks to an OpenAI-compatible chat completion API (Groq by default).
package llmsvc

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/assistant"
)

var (
	// errors
	ErrNotConfigured = errors.New("no AI API key configured")
	ErrEmptyResponse = errors.New("AI provider returned no choices")
)

type openAICompleter struct {
	client *openai.Client
	model  string
}

var _ assistant.Completer = (*openAICompleter)(nil)

// NewCompleter returns a Completer for the configured provider, or one that always fails
// with ErrNotConfigured when no API key is set.
func NewCompleter(conf *core.Config, httpClient *http.Client) assistant.Completer {
	if conf.AI.APIKey == "" {
		return disabledCompleter{}
	}
	cfg := openai.DefaultConfig(conf.AI.APIKey)
	if conf.AI.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(conf.AI.BaseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &openAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  conf.AI.Model,
	}
}

func (c *openAICompleter) Complete(ctx context.Context, req assistant.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == assistant.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", errors.Wrapf(err, "chat completion (status %d)", apiErr.HTTPStatusCode)
		}
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type disabledCompleter struct{}

func (disabledCompleter) Complete(context.Context, assistant.CompletionRequest) (string, error) {
	return "", ErrNotConfigured
}
