package crawler

import "sync/atomic"

// Stats counts what happened during a run.
type Stats struct {
	// Queued is the number of URLs that were enqueued, including the origin.
	Queued int `json:"queued"`

	// Fetched is the number of successful downloads.
	Fetched int `json:"fetched"`

	// Saved is the number of files written.
	Saved int `json:"saved"`

	// Failed is the number of URLs that could not be downloaded.
	Failed int `json:"failed"`

	// Skipped is the number of URLs dequeued but not fetched.
	Skipped int `json:"skipped"`
}

// counters is the concurrent form of Stats.
type counters struct {
	queued  atomic.Int64
	fetched atomic.Int64
	saved   atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Queued:  int(c.queued.Load()),
		Fetched: int(c.fetched.Load()),
		Saved:   int(c.saved.Load()),
		Failed:  int(c.failed.Load()),
		Skipped: int(c.skipped.Load()),
	}
}
