package crawler

import (
	"net/url"
	"strings"
)

// resolveLink turns the raw text of a link found on page into the absolute
// URL used as a table key.
//
// It returns ok=false for links that are left untouched: empty links, bare
// fragments, and pseudo-links with no host (mailto:, javascript:, data:...).
// The returned fragment is already escaped and excludes the '#'.
func resolveLink(page *url.URL, raw string) (target *url.URL, fragment string, ok bool, err error) {
	raw = strings.Map(dropTabOrNewline, strings.TrimSpace(raw))
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, "", false, nil
	}

	// "///host/x" is a common typo for "//host/x".
	if strings.HasPrefix(raw, "///") {
		raw = raw[1:]
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	ref, err := url.Parse(escapeStrayPercent(raw))
	if err != nil {
		if s, ok := scheme(raw); ok && s != "http" && s != "https" {
			return nil, "", false, nil
		}
		return nil, "", false, err
	}
	if ref.IsAbs() {
		if ref.Opaque != "" || ref.Host == "" {
			return nil, "", false, nil
		}
		if s := strings.ToLower(ref.Scheme); s != "http" && s != "https" {
			return nil, "", false, nil
		}
	}

	resolved := page.ResolveReference(ref)
	return canonical(resolved), resolved.EscapedFragment(), true, nil
}

// escapeStrayPercent rewrites a '%' that does not start a valid escape as
// "%25", the way browsers read such links.
func escapeStrayPercent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && (i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// dropTabOrNewline removes ASCII tab, CR and LF, which browsers ignore
// anywhere in a URL.
func dropTabOrNewline(r rune) rune {
	if r == '\t' || r == '\r' || r == '\n' {
		return -1
	}
	return r
}

// scheme returns the lower-cased scheme of raw, if it starts with one.
func scheme(raw string) (string, bool) {
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		case i > 0 && c == ':':
			return strings.ToLower(raw[:i]), true
		default:
			return "", false
		}
	}
	return "", false
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// sameHost reports whether a and b name the same host and port.
func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Host, b.Host)
}

// canonical returns u without its fragment, as used for table keys.
func canonical(u *url.URL) *url.URL {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
	}
	return &c
}
