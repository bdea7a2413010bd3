package pathmap

import (
	"encoding/hex"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// DefaultDocument is the file name used for directory-like URLs.
	DefaultDocument = "index.html"

	// MaxNameLength is the longest path component most filesystems accept.
	MaxNameLength = 255

	// QuerySeparator joins a file stem and its query string.
	QuerySeparator = "@"

	// maxExtLength bounds the extension kept on hashed names.
	maxExtLength = 16
)

// ToPath returns the slash-separated path, relative to the mirror root, that
// stores the resource at u. The first component is always the host name.
// The fragment is ignored.
func ToPath(u *url.URL) string {
	segments := []string{sanitizeSegment(strings.ToLower(u.Hostname()))}

	p := u.Path
	if p == "" {
		p = "/"
	}
	dirLike := strings.HasSuffix(p, "/")

	parts := make([]string, 0, strings.Count(p, "/"))
	for _, s := range strings.Split(p, "/") {
		if s == "" || s == "." || s == ".." {
			continue
		}
		parts = append(parts, sanitizeSegment(s))
	}

	name := DefaultDocument
	if !dirLike && len(parts) > 0 && path.Ext(parts[len(parts)-1]) != "" {
		name = parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	}

	if u.RawQuery != "" {
		ext := path.Ext(name)
		name = strings.TrimSuffix(name, ext) + QuerySeparator + sanitizeSegment(u.RawQuery) + ext
	}

	for _, s := range parts {
		segments = append(segments, shorten(s, false))
	}
	segments = append(segments, shorten(name, true))

	return strings.Join(segments, "/")
}

// Relative returns the link text that leads from the document stored at
// fromPath to the file stored at toPath. Both arguments are ToPath results.
// The result is URL-escaped per component so it can be placed in an href.
func Relative(fromPath, toPath string) string {
	rel, err := filepath.Rel(filepath.Dir(filepath.FromSlash(fromPath)), filepath.FromSlash(toPath))
	if err != nil {
		// Both paths are relative to the same root, so Rel cannot fail in
		// practice. Fall back to a root-relative climb.
		rel = strings.Repeat("../", strings.Count(fromPath, "/")) + toPath
	}
	rel = filepath.ToSlash(rel)

	parts := strings.Split(rel, "/")
	for i, p := range parts {
		if p == ".." {
			continue
		}
		parts[i] = url.PathEscape(p)
	}
	out := strings.Join(parts, "/")

	// "a:b.html" would otherwise be read as a URL with scheme "a".
	if first, _, _ := strings.Cut(out, "/"); strings.Contains(first, ":") {
		out = "./" + out
	}
	return out
}

// Resolve joins a link produced by Relative onto the directory of fromPath,
// returning the mapped path it points at. It is the inverse of Relative.
func Resolve(fromPath, link string) (string, error) {
	link, _, _ = strings.Cut(link, "#")
	unescaped, err := url.PathUnescape(link)
	if err != nil {
		return "", err
	}
	return path.Join(path.Dir(fromPath), unescaped), nil
}

// sanitizeSegment replaces bytes that cannot appear in a path component.
func sanitizeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, s)
}

// shorten replaces an overlong component with the hex SHA3-256 of its bytes.
func shorten(name string, keepExt bool) string {
	if len(name) <= MaxNameLength {
		return name
	}

	sum := sha3.Sum256([]byte(name))
	hashed := hex.EncodeToString(sum[:])
	if keepExt {
		hashed += stableExt(name)
	}
	return hashed
}

// stableExt returns the extension of name when it is short and alphanumeric.
// Extensions taken from long, query-laden names are often garbage.
func stableExt(name string) string {
	ext := path.Ext(name)
	if len(ext) < 2 || len(ext) > maxExtLength {
		return ""
	}
	for _, r := range ext[1:] {
		if !isAlnum(r) {
			return ""
		}
	}
	return ext
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
