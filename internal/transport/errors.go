package transport

import "errors"

// Proxy errors.
var (
	// ErrProxyNotSOCKS5 is returned when the proxy answers but does not speak
	// SOCKS5 without authentication.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// can be made.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the proxy does not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrTorNotRunning is returned when a client is requested from an
	// embedded Tor daemon that has not been started.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus is the result of CheckProxy.
type ProxyStatus int

const (
	// ProxyStatusOK indicates a working SOCKS5 proxy.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates something other than a SOCKS5 proxy.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates the TCP connection failed.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the proxy did not answer in time.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the matching error, or nil for ProxyStatusOK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
