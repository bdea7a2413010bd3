package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoOrigin is returned when no URL to mirror is given.
	ErrNoOrigin = errors.New("no URL specified: provide the URL to mirror")

	// ErrInvalidOrigin is returned when the URL is not an absolute http(s) URL.
	ErrInvalidOrigin = errors.New("invalid URL: must be an absolute http or https URL")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidJobs is returned when the worker count is below 1.
	ErrInvalidJobs = errors.New("invalid jobs: must be at least 1")

	// ErrInvalidTries is returned when the attempt count is below 1.
	ErrInvalidTries = errors.New("invalid tries: must be at least 1")

	// ErrInvalidDepth is returned when a depth limit is below -1.
	ErrInvalidDepth = errors.New("invalid depth: must be -1 (unlimited) or non-negative")

	// ErrInvalidExtDepth is returned when the external depth limit is below -1.
	ErrInvalidExtDepth = errors.New("invalid external depth: must be -1 (unlimited) or non-negative")

	// ErrInvalidDelay is returned when a delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body size cap is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidPattern is returned when a visit or download pattern does not
	// compile. The wrapped error names the pattern.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrInvalidAuth is returned when an --auth value is not "user pass [host]".
	ErrInvalidAuth = errors.New(`invalid auth: expected "username password [host]"`)

	// ErrConflictingTransport is returned when both --proxy and --tor are set.
	ErrConflictingTransport = errors.New("conflicting transport: --proxy and --tor cannot be used together")

	// ErrOnionNeedsTor is returned for a .onion URL without a proxy or --tor.
	ErrOnionNeedsTor = errors.New(".onion URLs need --tor or a Tor SOCKS5 --proxy")
)
