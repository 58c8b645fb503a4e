package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"meetexport/internal/services"
)

const (
	remoteCheckName = "Meeting service"
	remoteTimeout   = 30 * time.Second
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOutputDirectory accepts a missing directory when its nearest existing
// ancestor is writable, since exports create it on first write.
func CheckOutputDirectory(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return CheckDirectoryAccess(name, path)
	}

	ancestor := filepath.Dir(filepath.Clean(path))
	for {
		if _, err := os.Stat(ancestor); err == nil {
			break
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing parent)", path)}
		}
		ancestor = parent
	}
	if err := unix.Access(ancestor, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, ancestor, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckCredentials verifies that a session is stored.
func CheckCredentials(creds CredentialReporter) Result {
	const name = "Credentials"
	if creds == nil {
		return Result{Name: name, Detail: "unavailable"}
	}
	status, err := creds.Status()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreadable (%v)", err)}
	}
	if !status.LoggedIn {
		return Result{Name: name, Detail: "not logged in (run `meetexport auth login`)"}
	}
	who := status.Email
	if who == "" {
		who = "logged in"
	}
	switch {
	case status.AccessExpired && !status.HasRefreshToken:
		return Result{Name: name, Detail: fmt.Sprintf("%s (access token expired, no refresh token)", who)}
	case status.AccessExpired:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (token refreshes on next call)", who)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (expires %s)", who, status.ExpiresAt.Local().Format(time.DateTime))}
	}
}

// CheckRemote performs the protocol handshake with a single attempt.
func CheckRemote(ctx context.Context, endpoint string, remote Pinger) Result {
	if remote == nil {
		return Result{Name: remoteCheckName, Detail: "unavailable"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	if err := remote.Ping(checkCtx); err != nil {
		return Result{Name: remoteCheckName, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: remoteCheckName, Passed: true, Detail: fmt.Sprintf("%s (reachable)", endpoint)}
}

// CheckNotificationTopic validates the configured ntfy topic URL without
// publishing to it.
func CheckNotificationTopic(topic string) Result {
	const name = "Notifications"
	parsed, err := url.Parse(strings.TrimSpace(topic))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%q is not an http(s) topic URL", topic)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("ntfy via %s", parsed.Host)}
}

func summarizeRemoteError(err error) string {
	switch {
	case errors.Is(err, services.ErrAuthRequired):
		return "authentication rejected (run `meetexport auth login`)"
	case errors.Is(err, services.ErrRateLimited), errors.Is(err, services.ErrRateLimitExhausted):
		return "rate limited (try again later)"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return err.Error()
	}
}
