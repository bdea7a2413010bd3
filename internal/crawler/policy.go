package crawler

import (
	"fmt"
	"regexp"
	"time"
)

// Unlimited disables a depth limit.
const Unlimited = -1

// Filter is an include/exclude pair of regular expressions matched against
// the full URL string. A URL passes when it matches Include and does not
// match Exclude.
type Filter struct {
	Include *regexp.Regexp
	Exclude *regexp.Regexp
}

// NewFilter compiles a Filter. The usual defaults are ".*" and "$^"
// (which matches nothing).
func NewFilter(include, exclude string) (Filter, error) {
	inc, err := regexp.Compile(include)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid include pattern %q: %w", include, err)
	}
	exc, err := regexp.Compile(exclude)
	if err != nil {
		return Filter{}, fmt.Errorf("invalid exclude pattern %q: %w", exclude, err)
	}
	return Filter{Include: inc, Exclude: exc}, nil
}

// Match reports whether s passes the filter. A zero Filter passes everything.
func (f Filter) Match(s string) bool {
	if f.Include != nil && !f.Include.MatchString(s) {
		return false
	}
	if f.Exclude != nil && f.Exclude.MatchString(s) {
		return false
	}
	return true
}

// Policy decides what the engine follows and what it saves.
// It is read-only once a run has started.
type Policy struct {
	// DepthLimit bounds hops inside the origin host. Unlimited disables it.
	DepthLimit int

	// ExternalDepthLimit bounds hops since leaving the page's host.
	// Zero means off-site links are mapped and rewritten but never fetched.
	ExternalDepthLimit int

	// Visit decides whether a newly discovered URL is enqueued.
	Visit Filter

	// Download decides whether a fetched URL is written to disk.
	Download Filter

	// VisitFilterIsDownloadFilter makes the enqueue decision use Download.
	VisitFilterIsDownloadFilter bool

	// ContinueOnError turns a failed download into a warning.
	ContinueOnError bool

	// DryRun fetches and rewrites but never writes.
	DryRun bool

	// Delay is slept by a worker after each of its fetches.
	Delay time.Duration

	// RandomDelay adds a uniform random [0, RandomDelay] to Delay.
	RandomDelay time.Duration
}

// DefaultPolicy returns a policy with unlimited depth, no off-site crawling
// and filters that accept everything.
func DefaultPolicy() Policy {
	return Policy{
		DepthLimit:         Unlimited,
		ExternalDepthLimit: 0,
		Visit:              Filter{Include: regexp.MustCompile(".*"), Exclude: regexp.MustCompile("$^")},
		Download:           Filter{Include: regexp.MustCompile(".*"), Exclude: regexp.MustCompile("$^")},
	}
}

// visitFilter returns the filter that gates enqueueing.
func (p *Policy) visitFilter() Filter {
	if p.VisitFilterIsDownloadFilter {
		return p.Download
	}
	return p.Visit
}

// withinLimit reports whether a hop count may grow by one under limit.
func withinLimit(value, limit int) bool {
	return limit == Unlimited || value < limit
}
