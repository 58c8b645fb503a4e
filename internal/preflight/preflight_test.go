package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meetexport/internal/auth"
	"meetexport/internal/config"
	"meetexport/internal/services"
)

type stubCreds struct {
	status auth.Status
	err    error
}

func (s stubCreds) Status() (auth.Status, error) { return s.status, s.err }

type stubPinger struct {
	err   error
	calls int
}

func (s *stubPinger) Ping(context.Context) error {
	s.calls++
	return s.err
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckOutputDirectory_WillBeCreated(t *testing.T) {
	result := CheckOutputDirectory("out", filepath.Join(t.TempDir(), "a", "b"))
	if !result.Passed {
		t.Fatalf("expected pass for creatable dir, got: %s", result.Detail)
	}
}

func TestCheckOutputDirectory_UnderFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckOutputDirectory("out", f)
	if result.Passed {
		t.Fatal("expected failure when output path is a file")
	}
}

func TestCheckCredentials(t *testing.T) {
	future := time.Now().Add(time.Hour)
	tests := []struct {
		name   string
		creds  CredentialReporter
		passed bool
	}{
		{"missing", stubCreds{}, false},
		{"read error", stubCreds{err: errors.New("corrupt")}, false},
		{"valid", stubCreds{status: auth.Status{LoggedIn: true, ExpiresAt: future, HasRefreshToken: true}}, true},
		{"expired refreshable", stubCreds{status: auth.Status{LoggedIn: true, AccessExpired: true, HasRefreshToken: true}}, true},
		{"expired final", stubCreds{status: auth.Status{LoggedIn: true, AccessExpired: true}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckCredentials(tt.creds); got.Passed != tt.passed {
				t.Fatalf("Passed = %v, want %v (%s)", got.Passed, tt.passed, got.Detail)
			}
		})
	}
}

func TestCheckRemote(t *testing.T) {
	ok := CheckRemote(context.Background(), "https://mcp.example", &stubPinger{})
	if !ok.Passed {
		t.Fatalf("expected pass, got %s", ok.Detail)
	}
	rejected := CheckRemote(context.Background(), "https://mcp.example", &stubPinger{err: services.Wrap(services.ErrAuthRequired, "remote", "initialize", "", nil)})
	if rejected.Passed || rejected.Detail != "authentication rejected (run `meetexport auth login`)" {
		t.Fatalf("unexpected result %+v", rejected)
	}
}

func TestCheckNotificationTopic(t *testing.T) {
	if !CheckNotificationTopic("https://ntfy.sh/my-topic").Passed {
		t.Fatal("expected valid topic URL to pass")
	}
	if CheckNotificationTopic("my-topic").Passed {
		t.Fatal("expected bare topic name to fail")
	}
}

func TestRunAllSkipsRemoteWithoutCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Paths.StateDir = t.TempDir()
	pinger := &stubPinger{}

	results := RunAll(context.Background(), &cfg, stubCreds{}, pinger)
	if pinger.calls != 0 {
		t.Fatal("remote should not be contacted without credentials")
	}
	if AllPassed(results) {
		t.Fatal("expected overall failure")
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results without notifications, got %d", len(results))
	}
}

func TestRunAllWithSession(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/meetings"
	pinger := &stubPinger{}
	creds := stubCreds{status: auth.Status{LoggedIn: true, ExpiresAt: time.Now().Add(time.Hour)}}

	results := RunAll(context.Background(), &cfg, creds, pinger)
	if !AllPassed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}
	if pinger.calls != 1 || len(results) != 5 {
		t.Fatalf("unexpected results %+v (pings=%d)", results, pinger.calls)
	}
}
