// Package transport builds the *http.Client used for mirroring.
//
// The client keeps cookies across requests (with a public suffix list so
// one site cannot set cookies for another), follows at most ten redirects,
// and can optionally:
//
//   - route every connection through a SOCKS5 proxy (ProxyAddress),
//   - start an embedded Tor daemon and use its SOCKS port (EmbeddedTor),
//   - skip TLS verification (Insecure),
//   - add a fixed cookie and headers to requests for specific hosts (Sites).
//
// Content decoding is left to the caller: the transport never adds
// Accept-Encoding on its own.
package transport
