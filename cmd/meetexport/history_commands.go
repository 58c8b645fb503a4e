package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"meetexport/internal/history"
	"meetexport/internal/textutil"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show past export runs",
		Long: `Without arguments, lists recent export runs. With a run ID (or an
unambiguous prefix of one), shows every meeting attempted in that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				run, items, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, struct {
						history.Run
						Items []history.ItemRecord `json:"items"`
					}{run, items})
				}
				printRunDetail(cmd.OutOrStdout(), run, items)
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No export runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortRunID(run.ID),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.Outcome,
					fmt.Sprintf("%d/%d", run.Completed, run.Total),
					formatRunDuration(run),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]column{col("Run"), col("Started"), col("Outcome"), numCol("Exported"), numCol("Duration")},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print as JSON")
	return cmd
}

func printRunDetail(out io.Writer, run history.Run, items []history.ItemRecord) {
	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "  Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(out, "  Finished: %s (%s)\n", run.FinishedAt.Local().Format(time.DateTime), formatRunDuration(run))
	}
	fmt.Fprintf(out, "  Outcome:  %s\n", run.Outcome)
	fmt.Fprintf(out, "  Exported: %d of %d (%d failed)\n", run.Completed, run.Total, run.Failed)
	fmt.Fprintf(out, "  Output:   %s\n", run.OutputDir)
	if len(items) == 0 {
		return
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		result := item.Filename
		if !item.Complete {
			result = item.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.Itoa(item.Position),
			textutil.Truncate(item.Title, 40),
			yesNo(item.Complete),
			strconv.Itoa(item.Attempts),
			strconv.Itoa(item.ContentLength),
			result,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{numCol("#"), col("Meeting"), col("Complete"), numCol("Attempts"), numCol("Chars"), wideCol("File / error", 50)},
		rows,
	))
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatRunDuration(run history.Run) string {
	d := run.Duration()
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
