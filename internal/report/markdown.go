package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/offmirror/internal/model"
)

// MarkdownWriter outputs runs as Markdown documents.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteRun outputs one run: metadata, counters, an outcome chart and the
// failures table.
func (w *MarkdownWriter) WriteRun(run *Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeCounters(md, run)
	w.writeFailures(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteRuns outputs a table of runs.
func (w *MarkdownWriter) WriteRuns(runs []model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("offmirror history")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			"`" + shortID(r.ID) + "`",
			formatTime(r.StartedAt),
			truncateString(r.Origin, 60),
			strconv.Itoa(r.Saved),
			strconv.Itoa(r.Failed),
			statusText(&r),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Origin", "Saved", "Failed", "Status"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *Run) {
	s := &run.Summary

	md.H1("Mirror Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + s.ID + "`"},
			{"Origin", s.Origin},
			{"Output", "`" + s.OutputDir + "`"},
			{"Started", formatTime(s.StartedAt)},
			{"Finished", formatTime(s.FinishedAt)},
			{"Elapsed", s.Elapsed().Round(time.Millisecond).String()},
			{"Status", statusText(s)},
		},
	})
	md.PlainText("")

	if s.Error != "" {
		md.Cautionf("The run stopped early: %s", s.Error)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeCounters(md *markdown.Markdown, run *Run) {
	s := &run.Summary

	md.H2("Counters")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Count"},
		Rows: [][]string{
			{"Queued", strconv.Itoa(s.Queued)},
			{"Fetched", strconv.Itoa(s.Fetched)},
			{"Saved", strconv.Itoa(s.Saved)},
			{"Visited only", strconv.Itoa(run.Visited())},
			{"Failed", strconv.Itoa(s.Failed)},
			{"Skipped", strconv.Itoa(s.Skipped)},
		},
	})
	md.PlainText("")

	if s.Saved+run.Visited()+s.Failed+s.Skipped > 0 {
		w.writePieChart(md, run)
	}
}

// writePieChart writes a mermaid pie chart of URL outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, run *Run) {
	s := &run.Summary
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("URL Outcomes"),
		piechart.WithShowData(true),
	)

	slices := []struct {
		label string
		count int
	}{
		{string(model.OutcomeSaved), s.Saved},
		{string(model.OutcomeVisited), run.Visited()},
		{string(model.OutcomeFailed), s.Failed},
		{string(model.OutcomeSkipped), s.Skipped},
	}
	for _, sl := range slices {
		if sl.count > 0 {
			chart.LabelAndIntValue(sl.label, uint64(sl.count))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, run *Run) {
	md.H2("Failures")
	md.PlainText("")

	failures := run.Failures()
	if len(failures) == 0 {
		md.Tip("Every URL was mirrored.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(failures))
	for i, p := range failures {
		msg := p.Error
		if msg == "" {
			msg = "-"
		}
		rows[i] = []string{
			truncateString(p.URL, 70),
			string(p.Outcome),
			strconv.Itoa(p.Depth) + "/" + strconv.Itoa(p.ExternalDepth),
			truncateString(msg, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Outcome", "Depth/Ext", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [offmirror](https://github.com/nao1215/offmirror)*")
}
