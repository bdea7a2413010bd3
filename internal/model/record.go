package model

import "time"

// Outcome is what happened to a URL during a run.
type Outcome string

const (
	// OutcomeSaved means the URL was fetched and written to disk.
	OutcomeSaved Outcome = "saved"

	// OutcomeVisited means the URL was fetched but not written
	// (download filter, or dry run).
	OutcomeVisited Outcome = "visited"

	// OutcomeFailed means every fetch attempt failed.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped means the URL was dequeued but not fetched
	// (for example, disallowed by robots.txt).
	OutcomeSkipped Outcome = "skipped"
)

// PageRecord describes the processing of one URL.
type PageRecord struct {
	// RunID identifies the run the record belongs to.
	RunID string `json:"run_id"`

	// URL is the canonical absolute URL (fragment stripped).
	URL string `json:"url"`

	// MappedPath is the URL's path relative to the output directory.
	MappedPath string `json:"mapped_path"`

	// SavedPath is where the bytes were actually written. It differs from
	// MappedPath when the server suggested a filename.
	SavedPath string `json:"saved_path,omitempty"`

	// Depth and ExternalDepth are copied from the WorkItem.
	Depth         int `json:"depth"`
	ExternalDepth int `json:"external_depth"`

	// Kind is the payload kind ("html", "css", "other"); empty on failure.
	Kind string `json:"kind,omitempty"`

	// StatusCode is the HTTP status; zero on failure.
	StatusCode int `json:"status_code,omitempty"`

	// Bytes is the size of what was written (or would have been).
	Bytes int64 `json:"bytes"`

	// SHA256 is the hex digest of the body as downloaded, before rewriting.
	SHA256 string `json:"sha256,omitempty"`

	// Outcome is the final state of the URL.
	Outcome Outcome `json:"outcome"`

	// Error is the failure message for OutcomeFailed and OutcomeSkipped.
	Error string `json:"error,omitempty"`

	// Timestamp is when processing finished.
	Timestamp time.Time `json:"timestamp"`
}

// RunSummary holds the counters of one crawl run.
type RunSummary struct {
	// ID is the run identifier (a UUID).
	ID string `json:"id"`

	// Origin is the entry-point URL.
	Origin string `json:"origin"`

	// OutputDir is the directory the mirror was written to.
	OutputDir string `json:"output_dir"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Queued is the number of URLs that were enqueued.
	Queued int `json:"queued"`

	// Fetched is the number of successful fetches.
	Fetched int `json:"fetched"`

	// Saved is the number of files written.
	Saved int `json:"saved"`

	// Failed is the number of URLs whose fetch failed after all retries.
	Failed int `json:"failed"`

	// Skipped is the number of URLs dequeued but never fetched.
	Skipped int `json:"skipped"`

	// Error is the fatal error that ended the run, if any.
	Error string `json:"error,omitempty"`
}

// Elapsed returns the run duration, or zero if it has not finished.
func (s *RunSummary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Complete reports whether the run ended without a fatal error.
func (s *RunSummary) Complete() bool {
	return s.Error == "" && !s.FinishedAt.IsZero()
}
