// Package markup exposes the link-bearing parts of HTML and CSS documents as
// mutable handles.
//
// A caller parses a document, walks its Links, rewrites any of them with
// Link.Set, then calls Render. Edits land exactly where the link was found,
// so two identical link strings in one document can be rewritten
// independently.
//
// The package also owns character set detection and conversion for HTML:
// the declared Content-Type charset wins, then a <meta> declaration sniffed
// from the markup, then UTF-8.
package markup
