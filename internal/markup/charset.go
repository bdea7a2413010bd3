package markup

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// CharsetSource records where a document's encoding came from.
type CharsetSource string

const (
	// CharsetFromHeader means the Content-Type header declared the charset.
	CharsetFromHeader CharsetSource = "header"

	// CharsetFromMeta means a <meta> declaration in the markup did.
	CharsetFromMeta CharsetSource = "meta"

	// CharsetFallback means nothing usable was declared and UTF-8 was assumed.
	CharsetFallback CharsetSource = "fallback"
)

// metaCharsetPattern matches both <meta charset="x"> and the http-equiv form
// <meta http-equiv="Content-Type" content="text/html; charset=x">.
var metaCharsetPattern = regexp.MustCompile(`(?i)<meta[^>]*?charset\s*=\s*["']?\s*([a-z0-9_\-:.]+)`)

// Charset is a resolved document encoding.
type Charset struct {
	// Name is the canonical (WHATWG) name of the encoding.
	Name string

	// Source tells whether Name was declared or assumed.
	Source CharsetSource

	enc encoding.Encoding
}

// SniffCharset returns the first charset label declared by a <meta> tag in
// b, or "" when there is none.
func SniffCharset(b []byte) string {
	m := metaCharsetPattern.FindSubmatch(b)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// LookupEncoding resolves a charset label such as "latin1" or "Shift_JIS".
func LookupEncoding(label string) (encoding.Encoding, string, bool) {
	enc, name := charset.Lookup(strings.TrimSpace(label))
	if enc == nil {
		return nil, "", false
	}
	return enc, name, true
}

// ResolveCharset picks the encoding for an HTML body. declared is the
// Content-Type charset parameter and may be empty. Labels that are declared
// but unknown are skipped, as if absent.
func ResolveCharset(declared string, body []byte) Charset {
	if declared != "" {
		if enc, name, ok := LookupEncoding(declared); ok {
			return Charset{Name: name, Source: CharsetFromHeader, enc: enc}
		}
	}
	if sniffed := SniffCharset(body); sniffed != "" {
		if enc, name, ok := LookupEncoding(sniffed); ok {
			return Charset{Name: name, Source: CharsetFromMeta, enc: enc}
		}
	}
	return Charset{Name: "utf-8", Source: CharsetFallback, enc: unicode.UTF8}
}

// IsUTF8 reports whether no conversion is needed.
func (c Charset) IsUTF8() bool {
	return c.enc == nil || c.enc == unicode.UTF8 || c.Name == "utf-8"
}

// Decode converts b from the charset to UTF-8.
func (c Charset) Decode(b []byte) ([]byte, error) {
	if c.IsUTF8() {
		return b, nil
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", c.Name, err)
	}
	return out, nil
}

// Encode converts UTF-8 b back to the charset. Characters the charset cannot
// represent are written as HTML numeric character references.
func (c Charset) Encode(b []byte) ([]byte, error) {
	if c.IsUTF8() {
		return b, nil
	}
	out, err := encoding.HTMLEscapeUnsupported(c.enc.NewEncoder()).Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", c.Name, err)
	}
	return out, nil
}
