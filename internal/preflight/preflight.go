package preflight

import (
	"context"

	"meetexport/internal/auth"
	"meetexport/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// CredentialReporter exposes the stored session.
type CredentialReporter interface {
	Status() (auth.Status, error)
}

// Pinger performs a lightweight round trip to the remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes every check. The remote check only runs when credentials
// are present.
func RunAll(ctx context.Context, cfg *config.Config, creds CredentialReporter, remote Pinger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckOutputDirectory("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	credentials := CheckCredentials(creds)
	results = append(results, credentials)
	if credentials.Passed {
		results = append(results, CheckRemote(ctx, cfg.Remote.MCPURL, remote))
	} else {
		results = append(results, Result{Name: remoteCheckName, Detail: "skipped (not logged in)"})
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNotificationTopic(cfg.Notifications.NtfyTopic))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
