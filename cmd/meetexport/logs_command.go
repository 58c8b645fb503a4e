package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meetexport/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		match  []string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the meetexport log file",
		Long: `Prints the tail of the log file. Use --follow to keep watching while an
export runs, and --match to narrow output to a run or meeting ID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogPath()
			filter := logs.Filter{Contains: match}
			out := cmd.OutOrStdout()

			recent, offset, err := logs.ReadLast(path, lines, filter)
			if err != nil {
				return err
			}
			for _, line := range recent {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, logs.DefaultPollInterval, filter, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringSliceVarP(&match, "match", "m", nil, "Only show lines containing this text (repeatable)")
	return cmd
}
