package fetcher

import "errors"

var (
	// ErrRetriesExhausted is returned when every attempt to fetch a URL failed.
	// The last underlying error is wrapped alongside it.
	ErrRetriesExhausted = errors.New("all fetch attempts failed")

	// ErrBodyTooLarge is returned when a response exceeds the body size limit.
	// It is not retried: the next attempt would hit the same limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)
