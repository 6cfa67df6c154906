package assist

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAI is a Completer backed by an OpenAI-compatible chat endpoint.
type OpenAI struct {
	client *openai.Client
	logger *zap.Logger
}

var _ Completer = (*OpenAI)(nil)

// NewOpenAI creates a client for apiKey. An empty baseURL uses the
// library's default endpoint.
func NewOpenAI(apiKey, baseURL string, logger *zap.Logger) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), logger: logger}
}

// Complete sends req and returns the first choice's content.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	o.logger.Debug("sending chat completion",
		zap.String("model", req.Model),
		zap.Int("messages", len(msgs)),
		zap.Float32("temperature", req.Temperature),
	)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
