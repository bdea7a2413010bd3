package journal

import "errors"

var (
	// ErrNotFound is returned when the journal database does not exist and
	// Options.CreateIfNotExists is false.
	ErrNotFound = errors.New("journal database not found")

	// ErrRunNotFound is returned when no run matches an ID or prefix.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when a prefix matches more than one run.
	ErrAmbiguousRunID = errors.New("run ID prefix matches more than one run")
)
