package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxRedirects   = 5
	defaultMaxBodyBytes   = int64(2_000_000)
)

type HTTPConfig struct {
	RequestTimeout       time.Duration
	MaxBytes             int64
	MaxRedirects         int
	AllowPrivateNetworks bool
}

// HTTPRenderer fetches raw documents without executing scripts.
type HTTPRenderer struct {
	cfg        HTTPConfig
	guard      urlGuard
	httpClient *http.Client
}

func NewHTTPRenderer(cfg HTTPConfig, httpClient *http.Client) *HTTPRenderer {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBodyBytes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	guard := urlGuard{allowPrivate: cfg.AllowPrivateNetworks}

	if httpClient == nil {
		httpClient = &http.Client{Transport: guard.transport(cfg.RequestTimeout)}
	}
	httpClient.CheckRedirect = guard.checkRedirect(cfg.MaxRedirects)

	return &HTTPRenderer{cfg: cfg, guard: guard, httpClient: httpClient}
}

func (r *HTTPRenderer) Render(ctx context.Context, rawURL string) (Document, error) {
	parsed, err := r.guard.validate(rawURL)
	if err != nil {
		return Document{URL: rawURL, Status: "blocked"}, err
	}

	requestCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Document{URL: parsed.String(), Status: "request_failed"}, err
	}
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,application/json,application/pdf;q=0.9,*/*;q=0.2")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Document{URL: parsed.String(), Status: "fetch_failed"}, err
	}
	defer resp.Body.Close()

	doc := Document{
		URL:       parsed.String(),
		FinalURL:  parsed.String(),
		Status:    fmt.Sprintf("http_%d", resp.StatusCode),
		FetchedAt: time.Now().UTC(),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		doc.FinalURL = resp.Request.URL.String()
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if mediaType, _, parseErr := mime.ParseMediaType(contentType); parseErr == nil {
		contentType = mediaType
	}
	if contentType == "" {
		contentType = "text/html"
	}
	doc.ContentType = contentType

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return doc, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	body, truncated, err := readBoundedBody(resp.Body, r.cfg.MaxBytes)
	if err != nil {
		doc.Status = "read_failed"
		return doc, err
	}
	doc.Body = body
	doc.Truncated = truncated
	doc.Status = "ok"
	return doc, nil
}

func readBoundedBody(r io.Reader, maxBytes int64) ([]byte, bool, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	payload, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(payload)) > maxBytes {
		return payload[:maxBytes], true, nil
	}
	return payload, false, nil
}
