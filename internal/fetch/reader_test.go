package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func staticClient(status int, contentType, body string, seen *http.Request) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if seen != nil {
				*seen = *req
			}
			return &http.Response{
				StatusCode: status,
				Header:     http.Header{"Content-Type": []string{contentType}},
				Body:       io.NopCloser(strings.NewReader(body)),
				Request:    req,
			}, nil
		}),
	}
}

func TestURLGuardSchemeAllowDeny(t *testing.T) {
	guard := urlGuard{}
	if _, err := guard.validate("https://example.com/page"); err != nil {
		t.Fatalf("expected https to be allowed: %v", err)
	}
	if _, err := guard.validate("http://example.com/page"); err != nil {
		t.Fatalf("expected http to be allowed: %v", err)
	}
	if _, err := guard.validate("file:///etc/passwd"); err == nil {
		t.Fatal("expected file scheme to be denied")
	}
	if _, err := guard.validate("ftp://example.com/file"); !errors.Is(err, ErrInvalidURLScheme) {
		t.Fatalf("expected ftp scheme to be denied, got %v", err)
	}
}

func TestURLGuardPrivateHosts(t *testing.T) {
	if _, err := (urlGuard{}).validate("http://127.0.0.1:8080/admin"); !errors.Is(err, ErrBlockedURLHost) {
		t.Fatalf("expected loopback to be blocked, got %v", err)
	}
	if _, err := (urlGuard{}).validate("http://[::1]/"); !errors.Is(err, ErrBlockedURLHost) {
		t.Fatalf("expected ipv6 loopback to be blocked, got %v", err)
	}
	if _, err := (urlGuard{allowPrivate: true}).validate("http://127.0.0.1:8080/admin"); err != nil {
		t.Fatalf("expected loopback to be allowed when private networks are enabled: %v", err)
	}
}

func TestHTTPRendererReturnsDocument(t *testing.T) {
	var seen http.Request
	client := staticClient(http.StatusOK, "text/html; charset=utf-8", "<html><body><p>hi</p></body></html>", &seen)
	renderer := NewHTTPRenderer(HTTPConfig{RequestTimeout: time.Second}, client)

	doc, err := renderer.Render(context.Background(), "https://example.com/page")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.ContentType != "text/html" {
		t.Fatalf("expected media type without params, got %q", doc.ContentType)
	}
	if doc.Status != "ok" || !strings.Contains(string(doc.Body), "<p>hi</p>") {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if seen.Header.Get("User-Agent") == "" {
		t.Fatal("expected a user agent header")
	}
}

func TestHTTPRendererBodySizeCap(t *testing.T) {
	client := staticClient(http.StatusOK, "text/plain", strings.Repeat("a", 2048), nil)
	renderer := NewHTTPRenderer(HTTPConfig{MaxBytes: 256, RequestTimeout: time.Second}, client)

	doc, err := renderer.Render(context.Background(), "https://example.com/large")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !doc.Truncated || len(doc.Body) != 256 {
		t.Fatalf("expected truncated 256 byte body, got truncated=%v len=%d", doc.Truncated, len(doc.Body))
	}
}

func TestHTTPRendererErrorStatus(t *testing.T) {
	client := staticClient(http.StatusNotFound, "text/html", "missing", nil)
	renderer := NewHTTPRenderer(HTTPConfig{RequestTimeout: time.Second}, client)

	doc, err := renderer.Render(context.Background(), "https://example.com/missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if doc.Status != "http_404" {
		t.Fatalf("expected http_404 status, got %q", doc.Status)
	}
}

func TestHTTPRendererTimeout(t *testing.T) {
	client := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		}),
	}
	renderer := NewHTTPRenderer(HTTPConfig{RequestTimeout: 20 * time.Millisecond}, client)

	_, err := renderer.Render(context.Background(), "https://example.com/slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHTTPRendererBlocksPrivateTarget(t *testing.T) {
	called := false
	client := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			called = true
			return nil, errors.New("unreachable")
		}),
	}
	renderer := NewHTTPRenderer(HTTPConfig{}, client)

	doc, err := renderer.Render(context.Background(), "http://localhost/admin")
	if !errors.Is(err, ErrBlockedURLHost) {
		t.Fatalf("expected blocked host error, got %v", err)
	}
	if doc.Status != "blocked" || called {
		t.Fatalf("expected request to be refused before dialing, status=%q called=%v", doc.Status, called)
	}
}

func TestURLGuardDialerRefusesPrivateAddress(t *testing.T) {
	dialer := (urlGuard{}).dialer(time.Second)
	if dialer.Control == nil {
		t.Fatal("expected a dial control hook")
	}
	if err := dialer.Control("tcp", "10.0.0.5:443", nil); !errors.Is(err, ErrBlockedURLHost) {
		t.Fatalf("expected private address to be refused, got %v", err)
	}
	if err := dialer.Control("tcp", "93.184.216.34:443", nil); err != nil {
		t.Fatalf("expected public address to be allowed: %v", err)
	}
	if (urlGuard{allowPrivate: true}).dialer(time.Second).Control != nil {
		t.Fatal("expected no hook when private networks are allowed")
	}
}
