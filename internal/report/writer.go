package report

import (
	"io"
	"time"

	"github.com/nao1215/offmirror/internal/model"
)

// Run is one crawl run and, optionally, its page records.
type Run struct {
	// Summary holds the run counters and timestamps.
	Summary model.RunSummary `json:"summary"`

	// Pages are the per-URL records in processing order.
	Pages []model.PageRecord `json:"pages,omitempty"`
}

// Failures returns the pages whose outcome is failed or skipped.
func (r *Run) Failures() []model.PageRecord {
	var out []model.PageRecord
	for _, p := range r.Pages {
		if p.Outcome == model.OutcomeFailed || p.Outcome == model.OutcomeSkipped {
			out = append(out, p)
		}
	}
	return out
}

// Visited returns the number of fetched URLs that were not written.
func (r *Run) Visited() int {
	if v := r.Summary.Fetched - r.Summary.Saved; v > 0 {
		return v
	}
	return 0
}

// Writer renders runs.
type Writer interface {
	// WriteRun renders one run with its pages.
	WriteRun(run *Run) (int, error)

	// WriteRuns renders a list of run summaries.
	WriteRuns(runs []model.RunSummary) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeLayout is used for every timestamp shown to people.
const timeLayout = "2006-01-02 15:04:05 MST"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// statusText describes how a run ended.
func statusText(s *model.RunSummary) string {
	switch {
	case s.Error != "":
		return "error: " + s.Error
	case s.Complete():
		return "complete"
	default:
		return "unfinished"
	}
}

// shortID shortens a UUID for tables; history accepts the prefix back.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
