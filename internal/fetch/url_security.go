package fetch

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

var (
	ErrInvalidURLScheme = errors.New("unsupported url scheme")
	ErrBlockedURLHost   = errors.New("blocked url host")
)

var blockedHostSuffixes = []string{".localhost", ".local", ".internal"}

// urlGuard keeps exploration on the public web. allowPrivate lifts the
// restriction for local development and loopback test servers.
type urlGuard struct {
	allowPrivate bool
}

func (g urlGuard) validate(rawURL string) (*url.URL, error) {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	switch target.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidURLScheme, target.Scheme)
	}
	host := strings.ToLower(target.Hostname())
	if host == "" {
		return nil, errors.New("url host is required")
	}
	if !g.allowPrivate && blockedHost(host) {
		return nil, fmt.Errorf("%w: %s", ErrBlockedURLHost, host)
	}
	return target, nil
}

func blockedHost(host string) bool {
	if host == "localhost" {
		return true
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return blockedAddr(addr)
	}
	return false
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return !addr.IsValid() ||
		addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast()
}

// dialer checks the address actually being dialed, after DNS resolution, so a
// public name pointing at a private address is still refused.
func (g urlGuard) dialer(timeout time.Duration) *net.Dialer {
	d := &net.Dialer{Timeout: timeout}
	if g.allowPrivate {
		return d
	}
	d.Control = func(_, address string, _ syscall.RawConn) error {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			host = address
		}
		addr, err := netip.ParseAddr(host)
		if err != nil {
			return fmt.Errorf("%w: unparseable dial address %q", ErrBlockedURLHost, address)
		}
		if blockedAddr(addr) {
			return fmt.Errorf("%w: %s", ErrBlockedURLHost, addr)
		}
		return nil
	}
	return d
}

func (g urlGuard) transport(timeout time.Duration) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = g.dialer(timeout).DialContext
	return transport
}

// checkRedirect validates every hop of a redirect chain, not only the last.
func (g urlGuard) checkRedirect(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects")
		}
		_, err := g.validate(req.URL.String())
		return err
	}
}

// httpClient sends requests only to public addresses, checked after DNS
// resolution and on every redirect hop.
func (g urlGuard) httpClient(timeout time.Duration, maxRedirects int) *http.Client {
	return &http.Client{
		Transport:     g.transport(timeout),
		CheckRedirect: g.checkRedirect(maxRedirects),
		Timeout:       timeout,
	}
}

type browserRoute int

const (
	routeProxied browserRoute = iota
	// routeInBrowser covers data: and blob: URLs, which never touch the network.
	routeInBrowser
	routeBlocked
)

// browserRoute decides how a request made by a rendered page is served.
func (g urlGuard) browserRoute(rawURL string) browserRoute {
	scheme, _, ok := strings.Cut(rawURL, ":")
	if !ok {
		return routeBlocked
	}
	switch strings.ToLower(scheme) {
	case "data", "blob":
		return routeInBrowser
	}
	if _, err := g.validate(rawURL); err != nil {
		return routeBlocked
	}
	return routeProxied
}
