package llm

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

type ResponderConfig struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxAttempts  int
	RetryDelay   time.Duration
}

// Responder sends a single user prompt and returns the reply text,
// retrying transient provider failures with backoff.
type Responder struct {
	client Completer
	cfg    ResponderConfig
}

func NewResponder(client Completer, cfg ResponderConfig) *Responder {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Responder{client: client, cfg: cfg}
}

func (r *Responder) Respond(ctx context.Context, prompt string) (string, error) {
	messages := make([]Message, 0, 2)
	if system := strings.TrimSpace(r.cfg.SystemPrompt); system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	temperature := r.cfg.Temperature
	req := Request{Model: r.cfg.Model, Messages: messages, Temperature: &temperature}

	var out string
	err := retry.Do(
		func() error {
			text, err := r.client.Complete(ctx, req)
			if err != nil {
				return err
			}
			out = text
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.cfg.MaxAttempts)),
		retry.Delay(r.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
	)
	if err != nil {
		return "", err
	}
	return out, nil
}
