package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"meetexport/internal/meeting"
	"meetexport/internal/remote"
	"meetexport/internal/textutil"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		rangeName  string
		from, to   string
		jsonOutput bool
		demo       demoFlags
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings in a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			r, err := dateRange(cfg, rangeName, from, to)
			if err != nil {
				return err
			}
			source := ctx.fetcher(cfg, demo, nil)
			items, err := source.ListMeetings(cmd.Context(), r)
			if err != nil {
				return fmt.Errorf("list meetings: %w", err)
			}
			if jsonOutput {
				if items == nil {
					items = []meeting.Item{}
				}
				return writeJSON(cmd, items)
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintf(out, "No meetings found for %s\n", r.Label())
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				date := item.Date
				if t, ok := meeting.ParseDate(item.Date); ok {
					date = t.Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{date, textutil.Truncate(item.DisplayTitle(), 50), item.ID})
			}
			fmt.Fprintln(out, renderTable([]column{col("Date"), col("Title"), col("ID")}, rows))
			fmt.Fprintf(out, "%d meeting(s) in %s\n", len(items), r.Label())
			return nil
		},
	}

	cmd.Flags().StringVarP(&rangeName, "range", "r", "", "Date range preset ("+strings.Join(remote.Presets(), ", ")+")")
	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD), requires --to")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD), requires --from")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print meetings as JSON")
	demo.register(cmd)
	return cmd
}
