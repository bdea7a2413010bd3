package model

import "net/url"

// WorkItem is one unit of crawl work.
//
// Depth counts hops inside the origin's host. ExternalDepth counts hops since
// the crawl crossed to a different host. The two are tracked independently so
// off-site crawling can be bounded separately from on-site crawling.
//
// A WorkItem is immutable: the URL is copied on the way in and on the way out.
type WorkItem struct {
	url           url.URL
	depth         int
	externalDepth int
}

// NewWorkItem creates a WorkItem for u at the given depths.
func NewWorkItem(u *url.URL, depth, externalDepth int) WorkItem {
	return WorkItem{url: *u, depth: depth, externalDepth: externalDepth}
}

// URL returns a copy of the item's URL.
func (w WorkItem) URL() *url.URL {
	u := w.url
	return &u
}

// Depth returns the number of internal hops from the origin.
func (w WorkItem) Depth() int {
	return w.depth
}

// ExternalDepth returns the number of hops since leaving the origin's host.
func (w WorkItem) ExternalDepth() int {
	return w.externalDepth
}

// InternalChild returns the item for a same-host link found on w.
func (w WorkItem) InternalChild(u *url.URL) WorkItem {
	return NewWorkItem(u, w.depth+1, w.externalDepth)
}

// ExternalChild returns the item for a cross-host link found on w.
func (w WorkItem) ExternalChild(u *url.URL) WorkItem {
	return NewWorkItem(u, w.depth, w.externalDepth+1)
}

// String returns the item's URL.
func (w WorkItem) String() string {
	return w.url.String()
}
