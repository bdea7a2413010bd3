package markup

// Link is a handle to one link string inside a parsed document.
// Handles stay valid until the document is rendered or discarded.
type Link struct {
	// Attr names where the link was found: "src", "href", "style"
	// (an inline style attribute or <style> element) or "css".
	Attr string

	val *string
}

// Value returns the current link text.
func (l Link) Value() string {
	return *l.val
}

// Set replaces the link text in the owning document.
func (l Link) Set(v string) {
	*l.val = v
}
