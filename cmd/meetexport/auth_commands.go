package main

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the remote service login",
	}
	authCmd.AddCommand(newAuthLoginCommand(ctx))
	authCmd.AddCommand(newAuthLogoutCommand(ctx))
	authCmd.AddCommand(newAuthStatusCommand(ctx))
	return authCmd
}

func newAuthLoginCommand(ctx *commandContext) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in through the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			prompt := cmd.ErrOrStderr()
			open := func(authURL string) error {
				fmt.Fprintln(prompt, "Open this URL to authorize meetexport:")
				fmt.Fprintf(prompt, "  %s\n", authURL)
				if noBrowser {
					return nil
				}
				return openBrowser(authURL)
			}

			creds, err := ctx.loginFlow(cfg, open).Login(cmd.Context())
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Logged in")
			if !creds.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "Access token expires %s\n", creds.ExpiresAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL without opening a browser")
	return cmd
}

func newAuthLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := ctx.tokenManager(cfg).Logout(); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newAuthStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored login",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := ctx.tokenManager(cfg).Status()
			if err != nil {
				return fmt.Errorf("read credentials: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			sw := newStatusWriter(cmd.OutOrStdout())
			if !status.LoggedIn {
				sw.line("Login", statusWarn, "not logged in (run meetexport auth login)")
				return nil
			}
			sw.line("Login", statusOK, "logged in")
			if status.Email != "" {
				sw.value("Account", status.Email)
			}
			if !status.ExpiresAt.IsZero() {
				kind := statusOK
				if status.AccessExpired {
					kind = statusWarn
				}
				sw.line("Access token", kind, "expires "+status.ExpiresAt.Local().Format(time.DateTime))
			}
			sw.value("Refresh token", yesNo(status.HasRefreshToken))
			sw.value("Credentials", cfg.CredentialsPath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status as JSON")
	return cmd
}

func openBrowser(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
