package markup

import (
	"regexp"
	"strings"
)

// cssRefPattern captures url(...) in any quoting style, and the quoted form
// of @import. Group 2 or group 4 holds the reference.
var cssRefPattern = regexp.MustCompile(`url\(\s*(['"]?)([^'")]*?)['"]?\s*\)|@import\s+(['"])([^'"]+)['"]`)

// CSSDocument is a stylesheet split into literal text and link segments.
type CSSDocument struct {
	parts []string
	links []Link
}

// ParseCSS splits b around every url() and @import reference. It never
// fails: text that does not match is kept verbatim.
func ParseCSS(b []byte) *CSSDocument {
	src := string(b)
	matches := cssRefPattern.FindAllStringSubmatchIndex(src, -1)

	parts := make([]string, 0, 2*len(matches)+1)
	linkIdx := make([]int, 0, len(matches))

	last := 0
	for _, m := range matches {
		start, end := m[4], m[5]
		if start < 0 {
			start, end = m[8], m[9]
		}
		parts = append(parts, src[last:start])
		linkIdx = append(linkIdx, len(parts))
		parts = append(parts, src[start:end])
		last = end
	}
	parts = append(parts, src[last:])

	doc := &CSSDocument{parts: parts, links: make([]Link, 0, len(linkIdx))}
	for _, i := range linkIdx {
		doc.links = append(doc.links, Link{Attr: "css", val: &doc.parts[i]})
	}
	return doc
}

// Links returns a handle for every reference in source order.
func (d *CSSDocument) Links() []Link {
	return d.links
}

// Render joins the stylesheet back together with any edits applied.
func (d *CSSDocument) Render() []byte {
	return []byte(strings.Join(d.parts, ""))
}
