package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/offmirror/internal/model"
)

// SimpleWriter outputs plain-text run listings for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every page, not only failures.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every page of a run.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteRun outputs a run header, its counters and its pages.
func (w *SimpleWriter) WriteRun(run *Run) (int, error) {
	var sb strings.Builder
	s := &run.Summary

	sb.WriteString(fmt.Sprintf("Run:       %s\n", s.ID))
	sb.WriteString(fmt.Sprintf("Origin:    %s\n", s.Origin))
	sb.WriteString(fmt.Sprintf("Output:    %s\n", s.OutputDir))
	sb.WriteString(fmt.Sprintf("Started:   %s\n", formatTime(s.StartedAt)))
	sb.WriteString(fmt.Sprintf("Finished:  %s\n", formatTime(s.FinishedAt)))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", statusText(s)))
	sb.WriteString(fmt.Sprintf("Counters:  queued=%d fetched=%d saved=%d failed=%d skipped=%d\n",
		s.Queued, s.Fetched, s.Saved, s.Failed, s.Skipped))

	pages := run.Pages
	if !w.verbose {
		pages = run.Failures()
	}

	if len(pages) > 0 {
		sb.WriteString("\n")
		for _, p := range pages {
			w.writePage(&sb, p)
		}
	}

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writePage(sb *strings.Builder, p model.PageRecord) {
	status := "-"
	if p.StatusCode != 0 {
		status = fmt.Sprintf("%d", p.StatusCode)
	}
	sb.WriteString(fmt.Sprintf("  %-8s %-4s %s\n", p.Outcome, status, p.URL))

	if w.verbose && p.SavedPath != "" {
		sb.WriteString(fmt.Sprintf("           -> %s\n", p.SavedPath))
	}
	if w.verbose && p.SHA256 != "" {
		sb.WriteString(fmt.Sprintf("           sha256 %s\n", p.SHA256))
	}
	if p.Error != "" {
		sb.WriteString(fmt.Sprintf("           %s\n", p.Error))
	}
}

// WriteRuns outputs one line per run, newest first as given.
func (w *SimpleWriter) WriteRuns(runs []model.RunSummary) (int, error) {
	if len(runs) == 0 {
		return io.WriteString(w.output, "No runs recorded.\n")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-8s  %-23s  %6s  %6s  %-10s  %s\n",
		"RUN", "STARTED", "SAVED", "FAILED", "STATUS", "ORIGIN"))

	for _, r := range runs {
		status := statusText(&r)
		if r.Error != "" {
			status = "error"
		}
		sb.WriteString(fmt.Sprintf("%-8s  %-23s  %6d  %6d  %-10s  %s\n",
			shortID(r.ID), formatTime(r.StartedAt), r.Saved, r.Failed, status, r.Origin))
	}

	return w.output.Write([]byte(sb.String()))
}
