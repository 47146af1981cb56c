package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type BrowserConfig struct {
	// Bin is the Chrome/Chromium executable. Empty lets rod download or locate one.
	Bin string
	// ControlURL attaches to an already running browser instead of launching.
	ControlURL           string
	Headless             bool
	NavigationTimeout    time.Duration
	AllowPrivateNetworks bool
}

// BrowserRenderer renders pages in a shared headless browser so that
// script-built navigation shows up in the returned HTML.
type BrowserRenderer struct {
	cfg   BrowserConfig
	guard urlGuard
	// proxy performs the page's network requests when private networks are
	// blocked, so Chrome never resolves or dials a host itself.
	proxy *http.Client

	mu      sync.Mutex
	browser *rod.Browser
}

func NewBrowserRenderer(cfg BrowserConfig) *BrowserRenderer {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultRequestTimeout
	}
	guard := urlGuard{allowPrivate: cfg.AllowPrivateNetworks}
	renderer := &BrowserRenderer{cfg: cfg, guard: guard}
	if !cfg.AllowPrivateNetworks {
		renderer.proxy = guard.httpClient(cfg.NavigationTimeout, defaultMaxRedirects)
	}
	return renderer
}

func (r *BrowserRenderer) Render(ctx context.Context, rawURL string) (Document, error) {
	parsed, err := r.guard.validate(rawURL)
	if err != nil {
		return Document{URL: rawURL, Status: "blocked"}, err
	}
	doc := Document{URL: parsed.String(), FinalURL: parsed.String(), ContentType: "text/html"}

	browser, err := r.connect(ctx)
	if err != nil {
		doc.Status = "browser_unavailable"
		return doc, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		doc.Status = "page_failed"
		return doc, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if r.proxy != nil {
		stop, err := r.guardRequests(page)
		if err != nil {
			doc.Status = "page_failed"
			return doc, fmt.Errorf("guard page requests: %w", err)
		}
		defer stop()
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: randomUserAgent()}); err != nil {
		doc.Status = "page_failed"
		return doc, fmt.Errorf("set user agent: %w", err)
	}

	bounded := page.Timeout(r.cfg.NavigationTimeout)
	if err := bounded.Navigate(parsed.String()); err != nil {
		doc.Status = "navigation_failed"
		return doc, fmt.Errorf("navigate %s: %w", parsed.String(), err)
	}
	if err := bounded.WaitLoad(); err != nil {
		doc.Status = "navigation_failed"
		return doc, fmt.Errorf("wait load %s: %w", parsed.String(), err)
	}

	html, err := bounded.HTML()
	if err != nil {
		doc.Status = "render_failed"
		return doc, fmt.Errorf("read html: %w", err)
	}
	if info, infoErr := page.Info(); infoErr == nil && strings.TrimSpace(info.URL) != "" {
		if _, guardErr := r.guard.validate(info.URL); guardErr != nil {
			doc.Status = "blocked"
			return doc, guardErr
		}
		doc.FinalURL = info.URL
	}

	doc.Body = []byte(html)
	doc.Status = "ok"
	doc.FetchedAt = time.Now().UTC()
	return doc, nil
}

// guardRequests answers every request the page makes, including redirects
// and subresources, through the guarded proxy client.
func (r *BrowserRenderer) guardRequests(page *rod.Page) (func(), error) {
	router := page.HijackRequests()
	if err := router.Add("*", "", r.routeRequest); err != nil {
		return nil, err
	}
	go router.Run()
	return func() { _ = router.Stop() }, nil
}

func (r *BrowserRenderer) routeRequest(h *rod.Hijack) {
	rawURL := ""
	if target := h.Request.URL(); target != nil {
		rawURL = target.String()
	}

	switch r.guard.browserRoute(rawURL) {
	case routeInBrowser:
		h.ContinueRequest(&proto.FetchContinueRequest{})
	case routeBlocked:
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
	default:
		if err := h.LoadResponse(r.proxy, true); err != nil {
			reason := proto.NetworkErrorReasonConnectionFailed
			if errors.Is(err, ErrBlockedURLHost) {
				reason = proto.NetworkErrorReasonBlockedByClient
			}
			h.Response.Fail(reason)
		}
	}
}

func (r *BrowserRenderer) connect(ctx context.Context) (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	var browser *rod.Browser
	err := retry.Do(
		func() error {
			controlURL := strings.TrimSpace(r.cfg.ControlURL)
			if controlURL == "" {
				l := launcher.New().Headless(r.cfg.Headless)
				if bin := strings.TrimSpace(r.cfg.Bin); bin != "" {
					l = l.Bin(bin)
				}
				launched, err := l.Launch()
				if err != nil {
					return fmt.Errorf("launch browser: %w", err)
				}
				controlURL = launched
			}
			candidate := rod.New().ControlURL(controlURL)
			if err := candidate.Connect(); err != nil {
				return fmt.Errorf("connect browser: %w", err)
			}
			browser = candidate
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	r.browser = browser
	return browser, nil
}

func (r *BrowserRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
