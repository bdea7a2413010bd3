package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Kind classifies a fetched payload.
type Kind int

const (
	// KindOther is any payload that is saved verbatim (images, PDFs, scripts...).
	KindOther Kind = iota

	// KindHTML is markup whose links are discovered and rewritten.
	KindHTML

	// KindCSS is a stylesheet whose url() references are discovered and rewritten.
	KindCSS
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindCSS:
		return "css"
	default:
		return "other"
	}
}

// KindFromContentType classifies a Content-Type header value.
// Anything containing text/html is HTML; text/css is CSS; the rest is Other.
func KindFromContentType(contentType string) Kind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"):
		return KindHTML
	case strings.Contains(ct, "text/css"):
		return KindCSS
	default:
		return KindOther
	}
}

// Response is the result of one successful fetch.
// It is built by the fetcher, consumed once by the crawler, then discarded.
type Response struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// StatusCode is the HTTP status code of the final response.
	// Error statuses are not failures: the body is still mirrored.
	StatusCode int `json:"status_code"`

	// ContentType is the raw Content-Type header.
	ContentType string `json:"content_type"`

	// Kind is the payload classification derived from ContentType.
	Kind Kind `json:"kind"`

	// Body is the decoded (decompressed) response body.
	Body []byte `json:"-"`

	// Filename is the server-suggested file name from Content-Disposition.
	// Empty when the server did not suggest one.
	Filename string `json:"filename,omitempty"`

	// Charset is the charset parameter declared in Content-Type.
	// Empty when none was declared; the crawler then sniffs the markup.
	Charset string `json:"charset,omitempty"`

	// Hash is the SHA-256 of Body, hex encoded.
	Hash string `json:"hash"`
}

// IsHTML reports whether the payload is HTML.
func (r *Response) IsHTML() bool {
	return r.Kind == KindHTML
}

// ComputeHash calculates and sets the SHA-256 hash of the body.
func (r *Response) ComputeHash() {
	if len(r.Body) == 0 {
		r.Hash = ""
		return
	}

	hash := sha256.Sum256(r.Body)
	r.Hash = hex.EncodeToString(hash[:])
}
