// Package report renders mirror runs for people and tools.
//
// Three writers share one interface:
//   - SimpleWriter: plain text for the terminal (history command)
//   - JSONWriter: JSON for scripts (history --json)
//   - MarkdownWriter: a Markdown document with tables and a mermaid chart
//     (mirror --report)
//
// Writers take data from the model package and never query the journal
// themselves.
package report
