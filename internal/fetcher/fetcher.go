package fetcher

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/nao1215/offmirror/internal/model"
)

const (
	// DefaultTries is the number of attempts made for each URL.
	DefaultTries = 20

	// DefaultMaxBodySize caps a single response body.
	DefaultMaxBodySize int64 = 50 * 1024 * 1024

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "offmirror"
)

// Credentials is an HTTP basic auth pair.
type Credentials struct {
	Username string
	Password string
}

// LogValue implements slog.LogValuer so a password never reaches a log line.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", "[REDACTED]"),
	)
}

// Fetcher retrieves URLs through an *http.Client.
// It is safe for concurrent use once constructed.
type Fetcher struct {
	client       *http.Client
	tries        int
	userAgent    string
	credentials  map[string]Credentials
	maxBodyBytes int64
	retryDelay   time.Duration
	logger       *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTries sets the number of attempts per URL. Values below 1 mean 1.
func WithTries(n int) Option {
	return func(f *Fetcher) {
		if n < 1 {
			n = 1
		}
		f.tries = n
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithCredentials sets the per-host basic auth table. Keys are either
// "host" or "host:port" and are compared case-insensitively.
func WithCredentials(creds map[string]Credentials) Option {
	return func(f *Fetcher) {
		f.credentials = make(map[string]Credentials, len(creds))
		for host, c := range creds {
			f.credentials[strings.ToLower(host)] = c
		}
	}
}

// WithMaxBodySize caps the decoded size of a response body.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodyBytes = n
		}
	}
}

// WithRetryDelay sets a linear backoff: attempt k waits k*d before retrying.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.retryDelay = d
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher that sends requests with client.
func New(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	f := &Fetcher{
		client:       client,
		tries:        DefaultTries,
		userAgent:    DefaultUserAgent,
		credentials:  map[string]Credentials{},
		maxBodyBytes: DefaultMaxBodySize,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Get fetches u, retrying on transport errors.
//
// A context cancellation stops retrying immediately and returns ctx.Err().
func (f *Fetcher) Get(ctx context.Context, u *url.URL) (*model.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= f.tries; attempt++ {
		resp, err := f.fetchOnce(ctx, u)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		f.logger.Warn("fetch attempt failed",
			"url", u.String(),
			"attempt", attempt,
			"tries", f.tries,
			"error", err,
		)

		if errors.Is(err, ErrBodyTooLarge) {
			break
		}
		if attempt < f.tries && f.retryDelay > 0 {
			if err := sleep(ctx, time.Duration(attempt)*f.retryDelay); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w: %s: %w", ErrRetriesExhausted, u.String(), lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, u *url.URL) (*model.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	if c, ok := f.credentialsFor(u); ok {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("unexpected status", "url", u.String(), "status", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	result := &model.Response{
		URL:         u.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Kind:        model.KindFromContentType(contentType),
		Body:        body,
		Charset:     charsetParam(contentType),
	}
	if !result.IsHTML() {
		result.Filename = suggestedFilename(resp.Header.Get("Content-Disposition"))
	}
	result.ComputeHash()

	return result, nil
}

// credentialsFor returns the credentials configured for u's exact host.
func (f *Fetcher) credentialsFor(u *url.URL) (Credentials, bool) {
	if c, ok := f.credentials[strings.ToLower(u.Host)]; ok {
		return c, true
	}
	c, ok := f.credentials[strings.ToLower(u.Hostname())]
	return c, ok
}

func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl, err := newDeflateReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("deflate decode: %w", err)
		}
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBodyBytes)
	}
	return body, nil
}

// charsetParam returns the charset parameter of a Content-Type value.
func charsetParam(contentType string) string {
	if contentType == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		return params["charset"]
	}

	// Malformed headers such as "text/html; charset=latin1;;" still carry
	// a usable charset.
	_, after, ok := strings.Cut(strings.ToLower(contentType), "charset=")
	if !ok {
		return ""
	}
	after, _, _ = strings.Cut(after, ";")
	return strings.Trim(strings.TrimSpace(after), `"'`)
}

// suggestedFilename extracts the filename from a Content-Disposition value.
// Only the base name is kept, so a hostile header cannot escape the mirror.
func suggestedFilename(disposition string) string {
	if disposition == "" {
		return ""
	}

	var name string
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		name = params["filename"]
	} else if _, after, ok := strings.Cut(disposition, "="); ok {
		name, _, _ = strings.Cut(after, ";")
		name = strings.Trim(strings.TrimSpace(name), `"'`)
	}

	name = filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if name == "/" || name == "." || name == ".." {
		return ""
	}
	return name
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newDeflateReader decodes an HTTP "deflate" body. That is zlib-wrapped
// DEFLATE, though some servers send raw DEFLATE instead.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	if hdr, _ := br.Peek(2); isZlibHeader(hdr) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// isZlibHeader reports whether hdr is a zlib CMF/FLG pair (RFC 1950).
func isZlibHeader(hdr []byte) bool {
	if len(hdr) < 2 {
		return false
	}
	return hdr[0]&0x0f == 8 && hdr[0]>>4 <= 7 && (uint16(hdr[0])<<8|uint16(hdr[1]))%31 == 0
}
