package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// throttledRenderer spaces out requests to the same host by at least minInterval.
type throttledRenderer struct {
	inner       Renderer
	minInterval time.Duration

	mu            sync.Mutex
	nextAllowedAt map[string]time.Time
}

// NewThrottledRenderer returns inner unchanged when minInterval is not positive.
func NewThrottledRenderer(inner Renderer, minInterval time.Duration) Renderer {
	if inner == nil || minInterval <= 0 {
		return inner
	}
	return &throttledRenderer{
		inner:         inner,
		minInterval:   minInterval,
		nextAllowedAt: make(map[string]time.Time),
	}
}

func (t *throttledRenderer) Render(ctx context.Context, rawURL string) (Document, error) {
	if err := t.waitTurn(ctx, hostKey(rawURL)); err != nil {
		return Document{URL: rawURL, Status: "cancelled"}, err
	}
	return t.inner.Render(ctx, rawURL)
}

func (t *throttledRenderer) waitTurn(ctx context.Context, host string) error {
	for {
		t.mu.Lock()
		now := time.Now()
		next := t.nextAllowedAt[host]
		if next.IsZero() || !next.After(now) {
			t.nextAllowedAt[host] = now.Add(t.minInterval)
			t.mu.Unlock()
			return nil
		}
		wait := time.Until(next)
		t.mu.Unlock()

		if err := waitWithContext(ctx, wait); err != nil {
			return err
		}
	}
}

func hostKey(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	return strings.ToLower(parsed.Host)
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
