// Package robots answers whether a URL may be fetched according to the
// robots.txt of its host.
package robots

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// DefaultTTL is how long a host's rules are cached.
const DefaultTTL = 30 * time.Minute

// Agent evaluates robots.txt rules with a per-host cache.
// Lookup errors fail open: an unreachable or broken robots.txt allows
// everything.
type Agent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	fetched time.Time
	// rules is nil when the lookup failed.
	rules *robotstxt.RobotsData
}

// Option configures an Agent.
type Option func(*Agent)

// WithTTL sets how long rules are cached per host.
func WithTTL(ttl time.Duration) Option {
	return func(a *Agent) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for lookup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAgent returns an Agent that fetches robots.txt through client and
// matches groups for userAgent.
func NewAgent(client *http.Client, userAgent string, opts ...Option) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	a := &Agent{
		client:    client,
		userAgent: userAgent,
		ttl:       DefaultTTL,
		logger:    slog.Default(),
		cache:     make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allowed reports whether the target URL is permitted.
func (a *Agent) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || !target.IsAbs() {
		return false
	}
	// robots.txt itself is always fetchable.
	if target.Path == "/robots.txt" {
		return true
	}

	rules := a.rules(ctx, target)
	if rules == nil {
		return true
	}

	group := rules.FindGroup(a.userAgent)
	if group == nil {
		group = rules.FindGroup("*")
		if group == nil {
			return true
		}
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return group.Test(path)
}

// rules returns the cached or freshly fetched rules for target's host, or
// nil when none could be obtained.
func (a *Agent) rules(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := strings.ToLower(target.Host)

	a.mu.RLock()
	entry, ok := a.cache[host]
	a.mu.RUnlock()
	if ok && time.Since(entry.fetched) < a.ttl {
		return entry.rules
	}

	data, err := a.fetch(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			// Do not cache a lookup cut short by cancellation.
			return nil
		}
		a.logger.Warn("robots.txt lookup failed, allowing host", "host", host, "error", err)
	}

	a.mu.Lock()
	a.cache[host] = cacheEntry{fetched: time.Now(), rules: data}
	a.mu.Unlock()

	return data
}

func (a *Agent) fetch(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("robots returned status %d", resp.StatusCode)
	}

	// FromResponse treats 4xx as "allow all".
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
