package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultTimeout bounds one HTTP request including the body.
	DefaultTimeout = 60 * time.Second

	// maxRedirects stops redirect loops.
	maxRedirects = 10

	// checkProxyTimeout bounds the SOCKS5 handshake in CheckProxy.
	checkProxyTimeout = 2 * time.Second
)

// SiteHeaders are added to every request for one host.
type SiteHeaders struct {
	// Cookie is a raw cookie string such as "session=abc; theme=dark".
	Cookie string

	// Headers are set on the request, replacing existing values.
	Headers map[string]string
}

// Options configures NewHTTPClient.
type Options struct {
	// Timeout bounds one request. Zero means DefaultTimeout.
	Timeout time.Duration

	// Insecure disables TLS certificate verification.
	Insecure bool

	// ProxyAddress is a SOCKS5 proxy in "host:port" form. Empty means direct.
	ProxyAddress string

	// Sites maps a host ("example.com" or "example.com:8443") to extra
	// request headers.
	Sites map[string]SiteHeaders
}

// NewHTTPClient creates the client used by the fetcher.
func NewHTTPClient(opts Options) (*http.Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		// The fetcher negotiates and decodes content encodings itself.
		DisableCompression: true,
	}

	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // Explicitly requested with --insecure
		}
	}

	if opts.ProxyAddress != "" {
		if !isValidProxyAddress(opts.ProxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		socks, err := proxy.SOCKS5("tcp", opts.ProxyAddress, nil, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = dialContextFunc(socks)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var rt http.RoundTripper = transport
	if len(opts.Sites) > 0 {
		rt = newSiteHeaderTransport(transport, opts.Sites)
	}

	return &http.Client{
		Transport: rt,
		Timeout:   opts.Timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// dialContextFunc adapts a proxy.Dialer to http.Transport.DialContext.
// The SOCKS5 dialer from x/net supports contexts directly; other dialers
// are dialed in a goroutine so that a cancelled context still returns.
func dialContextFunc(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)

		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case result := <-resultCh:
			return result.conn, result.err
		case <-ctx.Done():
			go func() {
				if result := <-resultCh; result.conn != nil {
					_ = result.conn.Close()
				}
			}()
			return nil, ctx.Err()
		}
	}
}

// isValidProxyAddress checks for a non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// SOCKS5 protocol constants
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// CheckProxy verifies that address accepts a SOCKS5 greeting without
// authentication. It does not open a connection through the proxy.
func CheckProxy(ctx context.Context, address string) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// version, one method, "no authentication"
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}

	if reply[0] != socks5Version || reply[1] == socks5AuthNoAccept || reply[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// siteHeaderTransport adds the configured cookie and headers to requests
// whose host has an entry. Requests to other hosts pass through unchanged.
type siteHeaderTransport struct {
	base  http.RoundTripper
	sites map[string]SiteHeaders
}

func newSiteHeaderTransport(base http.RoundTripper, sites map[string]SiteHeaders) *siteHeaderTransport {
	normalized := make(map[string]SiteHeaders, len(sites))
	for host, h := range sites {
		normalized[strings.ToLower(host)] = h
	}
	return &siteHeaderTransport{base: base, sites: normalized}
}

// RoundTrip implements http.RoundTripper.
func (t *siteHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	site, ok := t.sites[strings.ToLower(req.URL.Host)]
	if !ok {
		site, ok = t.sites[strings.ToLower(req.URL.Hostname())]
	}
	if !ok {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if site.Cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+site.Cookie)
		} else {
			clone.Header.Set("Cookie", site.Cookie)
		}
	}
	for key, value := range site.Headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
