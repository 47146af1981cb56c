package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

const maxErrorBodyBytes = 8 * 1024

var (
	ErrMissingAPIKey   = errors.New("llm api key is not configured")
	ErrEmptyCompletion = errors.New("llm returned an empty completion")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
}

// Completer returns the full assistant text for a chat request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx answer from an upstream provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsRetryable reports whether a completion error is worth another attempt:
// rate limits, upstream 5xx, transport failures and empty completions.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyCompletion) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func validateRequest(req Request) error {
	if req.Model == "" {
		return errors.New("model is required")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages are required")
	}
	return nil
}
