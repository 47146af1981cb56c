package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient talks to any OpenAI-compatible chat endpoint (OpenAI, Groq,
// local gateways) through the official SDK.
type OpenAIClient struct {
	client openai.Client
	hasKey bool
}

func NewOpenAIClient(apiKey, baseURL string, httpClient *http.Client) OpenAIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		// Retries are owned by Responder.
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return OpenAIClient{
		client: openai.NewClient(opts...),
		hasKey: strings.TrimSpace(apiKey) != "",
	}
}

func (c OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if !c.hasKey {
		return "", ErrMissingAPIKey
	}
	if err := validateRequest(req); err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return completion.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case "system":
			out = append(out, openai.SystemMessage(message.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(message.Content))
		default:
			out = append(out, openai.UserMessage(message.Content))
		}
	}
	return out
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if body == "" {
			body = http.StatusText(apiErr.StatusCode)
		}
		return &StatusError{Provider: "openai", StatusCode: apiErr.StatusCode, Body: body}
	}
	return err
}
