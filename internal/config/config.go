package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/offmirror/internal/transport"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "offmirror"

	// DefaultOutputDir is where the mirror is written.
	DefaultOutputDir = "."

	// DefaultJobs is the number of concurrent workers.
	DefaultJobs = 1

	// DefaultDepth follows internal links without limit.
	DefaultDepth = -1

	// DefaultExtDepth maps off-site links but never fetches them.
	DefaultExtDepth = 0

	// DefaultTries is the number of download attempts per URL.
	DefaultTries = 20

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "offmirror"

	// DefaultInclude matches every URL.
	DefaultInclude = ".*"

	// DefaultExclude matches no URL.
	DefaultExclude = "$^"

	// DefaultTimeout bounds one HTTP request including its body.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxBodySize caps one response body.
	DefaultMaxBodySize int64 = 50 * 1024 * 1024

	// DefaultTorStartupTimeout bounds bootstrap of the embedded Tor daemon.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds every option of a mirror run. It is populated from CLI
// flags and the config file, then passed down explicitly.
type Config struct {
	// Origin is the URL the mirror starts from.
	Origin string

	// OutputDir is the root directory of the mirror.
	OutputDir string

	// Jobs is the number of concurrent workers.
	Jobs int

	// Depth bounds link hops inside the origin host; -1 is unlimited.
	Depth int

	// ExtDepth bounds link hops outside the page's host; -1 is unlimited.
	ExtDepth int

	// Tries is the number of download attempts per URL.
	Tries int

	// Verbose enables Debug logging.
	Verbose bool

	// LogJSON switches the log output to JSON.
	LogJSON bool

	// Delay is slept by each worker after each download.
	Delay time.Duration

	// RandomDelay adds a uniform random [0, RandomDelay] to Delay.
	RandomDelay time.Duration

	// UserAgent is the User-Agent header.
	UserAgent string

	// VisitInclude and VisitExclude decide which discovered URLs are followed.
	VisitInclude string
	VisitExclude string

	// DownloadInclude and DownloadExclude decide which fetched URLs are saved.
	DownloadInclude string
	DownloadExclude string

	// VisitFilterIsDownloadFilter follows only URLs that would be saved.
	VisitFilterIsDownloadFilter bool

	// Auth holds basic auth entries from --auth. They win over the file.
	Auth []Auth

	// ContinueOnError turns failed downloads into warnings.
	ContinueOnError bool

	// DryRun crawls without writing files.
	DryRun bool

	// Insecure disables TLS certificate verification.
	Insecure bool

	// ProxyAddress is a SOCKS5 proxy ("host:port"). Empty means direct.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes through it.
	UseTor bool

	// TorStartupTimeout bounds Tor bootstrap when UseTor is set.
	TorStartupTimeout time.Duration

	// Timeout bounds one HTTP request.
	Timeout time.Duration

	// RateLimit caps requests per second across all workers; 0 disables it.
	RateLimit float64

	// RespectRobots consults robots.txt before every fetch.
	RespectRobots bool

	// RetryDelay is the base of the linear backoff between attempts.
	RetryDelay time.Duration

	// MaxBodySize caps one response body in bytes.
	MaxBodySize int64

	// NoJournal disables the SQLite run journal.
	NoJournal bool

	// JournalDir holds the journal database. Empty means XDGDataDir().
	JournalDir string

	// ReportFile receives a Markdown run report when set.
	ReportFile string

	// ConfigFilePath is the explicit --config path, if any.
	ConfigFilePath string

	// SiteConfigs holds the loaded config file, or nil.
	SiteConfigs *File
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputDir:         DefaultOutputDir,
		Jobs:              DefaultJobs,
		Depth:             DefaultDepth,
		ExtDepth:          DefaultExtDepth,
		Tries:             DefaultTries,
		UserAgent:         DefaultUserAgent,
		VisitInclude:      DefaultInclude,
		VisitExclude:      DefaultExclude,
		DownloadInclude:   DefaultInclude,
		DownloadExclude:   DefaultExclude,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Timeout:           DefaultTimeout,
		MaxBodySize:       DefaultMaxBodySize,
	}
}

// XDGDataDir returns the directory of the run journal
// (~/.local/share/offmirror on Linux).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the user configuration directory
// (~/.config/offmirror on Linux).
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// JournalPath returns the directory the journal lives in.
func (c *Config) JournalPath() string {
	if c.JournalDir != "" {
		return c.JournalDir
	}
	return XDGDataDir()
}

// OriginURL parses Origin.
func (c *Config) OriginURL() (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(c.Origin))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrigin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrigin, c.Origin)
	}
	return u, nil
}

// Validate returns the first violated rule, or nil.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Origin) == "" {
		return ErrNoOrigin
	}
	origin, err := c.OriginURL()
	if err != nil {
		return err
	}

	if c.OutputDir == "" && !c.DryRun {
		return ErrNoOutputDir
	}
	if c.Jobs < 1 {
		return ErrInvalidJobs
	}
	if c.Tries < 1 {
		return ErrInvalidTries
	}
	if c.Depth < -1 {
		return ErrInvalidDepth
	}
	if c.ExtDepth < -1 {
		return ErrInvalidExtDepth
	}
	if c.Delay < 0 || c.RandomDelay < 0 || c.RetryDelay < 0 {
		return ErrInvalidDelay
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	for _, p := range []string{c.VisitInclude, c.VisitExclude, c.DownloadInclude, c.DownloadExclude} {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidPattern, p, err)
		}
	}

	if c.ProxyAddress != "" && c.UseTor {
		return ErrConflictingTransport
	}
	if transport.IsOnionHost(origin.Host) {
		if !transport.IsValidOnionHost(origin.Hostname()) {
			return fmt.Errorf("%w: malformed onion address %s", ErrInvalidOrigin, origin.Hostname())
		}
		if c.ProxyAddress == "" && !c.UseTor {
			return ErrOnionNeedsTor
		}
	}

	return nil
}
