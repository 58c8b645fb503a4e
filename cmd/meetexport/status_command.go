package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"meetexport/internal/demo"
	"meetexport/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		demoMode   demoFlags
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check directories, login and remote connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var remote preflight.Pinger = ctx.fetcher(cfg, demoMode, nil)
			creds := preflight.CredentialReporter(ctx.tokenManager(cfg))
			if demoMode.enabled {
				creds = demo.Credentials{}
			}
			results := preflight.RunAll(cmd.Context(), cfg, creds, remote)

			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				sw := newStatusWriter(cmd.OutOrStdout())
				sw.header("meetexport " + version)
				sw.value("Config", ctx.configPath())
				for _, r := range results {
					sw.line(r.Name, checkKind(r), r.Detail)
				}
			}

			for _, r := range results {
				if checkKind(r) == statusError {
					return errors.New("one or more checks failed")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print check results as JSON")
	demoMode.register(cmd)
	return cmd
}

// checkKind maps a preflight result to a status line. A missing login and
// the checks it skips warn instead of failing.
func checkKind(r preflight.Result) statusKind {
	if !r.Passed && (strings.HasPrefix(r.Detail, "skipped") || strings.HasPrefix(r.Detail, "not logged in")) {
		return statusWarn
	}
	if r.Passed {
		return statusOK
	}
	return statusError
}
