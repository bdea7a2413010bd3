package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/offmirror/internal/config"
	"github.com/nao1215/offmirror/internal/journal"
	"github.com/nao1215/offmirror/internal/report"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// It reads past runs back from the journal written by mirror.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past mirror runs",
		Long: `History lists the runs recorded in the journal, newest first.

With a run ID it shows that run's counters and every URL it processed.
A unique prefix of the ID is enough.

Examples:
  # List the last 20 runs
  offmirror history

  # Show one run
  offmirror history 3f2a9c1e

  # Show only the URLs that failed or were skipped
  offmirror history --failed 3f2a9c1e

  # Output in JSON format
  offmirror history --json 3f2a9c1e`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolP("failed", "F", false,
		"Show only failed and skipped URLs of the run")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format (mutually exclusive with --json)")
	cmd.Flags().String("journal-dir", "",
		"Directory of the run journal (default: $XDG_DATA_HOME/offmirror)")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	limit      int
	failed     bool
	json       bool
	markdown   bool
	journalDir string
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryFlags(cmd)
	if err != nil {
		return err
	}

	j, err := journal.Open(opts.journalDir, journal.Options{EnableWAL: true})
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		return err
	}
	defer j.Close()

	w := historyWriter(cmd.OutOrStdout(), opts)

	if len(args) == 0 {
		runs, err := j.ListRuns(cmd.Context(), opts.limit)
		if err != nil {
			return err
		}
		_, err = w.WriteRuns(runs)
		return err
	}

	summary, err := j.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	pages, err := j.ListPages(cmd.Context(), summary.ID, journal.PageFilter{})
	if err != nil {
		return err
	}

	run := &report.Run{Summary: *summary, Pages: pages}
	if opts.failed {
		run.Pages = run.Failures()
	}

	_, err = w.WriteRun(run)
	return err
}

func parseHistoryFlags(cmd *cobra.Command) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	flags := cmd.Flags()

	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.failed, err = flags.GetBool("failed"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.journalDir, err = flags.GetString("journal-dir"); err != nil {
		return opts, err
	}
	if opts.journalDir == "" {
		opts.journalDir = config.XDGDataDir()
	}

	return opts, nil
}

// historyWriter picks the output format. The plain text writer lists
// every page it is given.
func historyWriter(out io.Writer, opts historyOptions) report.Writer {
	switch {
	case opts.json:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(true))
	}
}
