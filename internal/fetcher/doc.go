// Package fetcher downloads one URL with retries and classifies the result.
//
// The Fetcher sits on top of a plain *http.Client (see package transport for
// how that client is built). It owns the parts of a download that the crawl
// engine relies on:
//
//   - Retry: up to N attempts on transport errors, returning the first success
//     or the last error wrapped in ErrRetriesExhausted.
//   - Auth: HTTP basic credentials are attached only when the request host
//     matches a configured host exactly. Credentials never follow a link to
//     another host.
//   - Classification: text/html is HTML, text/css is CSS, anything else is
//     saved verbatim.
//   - Metadata: the server-suggested filename (Content-Disposition) and the
//     declared charset (Content-Type).
//
// HTTP error statuses are not failures. A 404 page is still a page and is
// mirrored like any other response.
package fetcher
