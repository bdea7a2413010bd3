package markup

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// linkSelector matches every element that can carry a link attribute.
const linkSelector = "[src],[href]"

// HTMLDocument is a parsed HTML tree with addressable link attributes.
type HTMLDocument struct {
	doc *goquery.Document

	// styles are CSS fragments embedded in the tree. Their edits are copied
	// back to the owning node on Render.
	styles []embeddedStyle
}

type embeddedStyle struct {
	css *CSSDocument

	// Exactly one of attr and text is set.
	attr *html.Attribute
	text *html.Node
}

// ParseHTML parses b as an HTML document. The parser is error tolerant, so
// malformed markup yields a tree with fewer (possibly zero) links rather than
// an error; an error is only returned when the input cannot be read.
func ParseHTML(b []byte) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

// Base returns the href of the first <base> element, if any.
func (d *HTMLDocument) Base() (string, bool) {
	return d.doc.Find("base[href]").First().Attr("href")
}

// RemoveBase drops the href of every <base> element.
func (d *HTMLDocument) RemoveBase() {
	d.doc.Find("base[href]").RemoveAttr("href")
}

// Links returns a handle for every src and href attribute in document order.
// The href of a <base> element is not a link and is left out.
// Calling Links again returns handles to the same, possibly edited, values.
func (d *HTMLDocument) Links() []Link {
	var links []Link

	d.doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			if n.Data == "base" {
				continue
			}
			for i := range n.Attr {
				a := &n.Attr[i]
				if a.Namespace != "" {
					continue
				}
				if a.Key == "src" || a.Key == "href" {
					links = append(links, Link{Attr: a.Key, val: &a.Val})
				}
			}
		}
	})

	return links
}

// StyleLinks returns handles for url() references inside inline style
// attributes and <style> elements, in document order.
func (d *HTMLDocument) StyleLinks() []Link {
	if d.styles == nil {
		d.collectStyles()
	}

	var links []Link
	for _, s := range d.styles {
		links = append(links, s.css.Links()...)
	}
	return links
}

func (d *HTMLDocument) collectStyles() {
	d.styles = []embeddedStyle{}

	d.doc.Find("[style],style").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			for i := range n.Attr {
				a := &n.Attr[i]
				if a.Namespace == "" && a.Key == "style" {
					d.addStyle(ParseCSS([]byte(a.Val)), a, nil)
				}
			}
			if n.Data != "style" {
				continue
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					d.addStyle(ParseCSS([]byte(c.Data)), nil, c)
				}
			}
		}
	})
}

func (d *HTMLDocument) addStyle(css *CSSDocument, attr *html.Attribute, text *html.Node) {
	if len(css.links) == 0 {
		return
	}
	for i := range css.links {
		css.links[i].Attr = "style"
	}
	d.styles = append(d.styles, embeddedStyle{css: css, attr: attr, text: text})
}

// Render serializes the tree, including every edit made through a handle.
func (d *HTMLDocument) Render() ([]byte, error) {
	for _, s := range d.styles {
		rendered := string(s.css.Render())
		if s.attr != nil {
			s.attr.Val = rendered
		} else {
			s.text.Data = rendered
		}
	}

	out, err := goquery.OuterHtml(d.doc.Selection)
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}
	return []byte(out), nil
}
