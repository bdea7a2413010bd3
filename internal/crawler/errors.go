package crawler

import "errors"

var (
	// ErrFetchFailed is returned by Run when a URL could not be downloaded
	// and the policy does not allow continuing.
	ErrFetchFailed = errors.New("download failed")

	// ErrUnresolvableLink is returned by Run when a link found on a page
	// cannot be resolved against the page URL.
	ErrUnresolvableLink = errors.New("cannot resolve link")

	// ErrPersist is returned by Run when a file or symlink cannot be written.
	ErrPersist = errors.New("cannot write mirror file")

	// ErrInvalidOrigin is returned by Run for an origin that is not an
	// absolute http or https URL.
	ErrInvalidOrigin = errors.New("origin must be an absolute http or https URL")
)
