package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultTorStartupTimeout bounds Tor bootstrap when no timeout is given.
const DefaultTorStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon through tornago so .onion sites can
// be mirrored without a system Tor installation.
//
// Bootstrapping takes from several seconds to a few minutes: Tor has to
// fetch directory information and build its first circuits.
type EmbeddedTor struct {
	// process is the running Tor daemon process.
	process *tornago.TorProcess

	// socksAddr is the SOCKS5 proxy address (set after successful startup).
	socksAddr string

	// startupTimeout is the maximum time to wait for Tor to bootstrap.
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor creates a new embedded Tor manager.
// Call Start to launch the daemon.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: DefaultTorStartupTimeout}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start launches Tor on OS-assigned ports and blocks until it has
// bootstrapped or the startup timeout expires.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	// StartTorDaemon does not take a context; honour a cancel that arrived
	// while it was bootstrapping.
	if ctx.Err() != nil {
		_ = process.Stop() //nolint:errcheck // Best effort cleanup
		return ctx.Err()
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts the daemon down. It is safe to call on an unstarted instance
// and more than once.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}

	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	return err
}

// SocksAddr returns the daemon's SOCKS5 address ("127.0.0.1:42715"), or ""
// when Tor is not running.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// IsRunning reports whether the daemon has been started and not stopped.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// HTTPClient returns a client that routes through the daemon. opts.ProxyAddress
// is overwritten with the daemon's SOCKS address.
func (e *EmbeddedTor) HTTPClient(opts Options) (*http.Client, error) {
	if !e.IsRunning() {
		return nil, ErrTorNotRunning
	}
	opts.ProxyAddress = e.socksAddr
	return NewHTTPClient(opts)
}
