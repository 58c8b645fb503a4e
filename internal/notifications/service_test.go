package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meetexport/internal/config"
	"meetexport/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		got.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func serviceFor(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyBatchFailed(context.Background(), 1, 3, "Standup", "boom"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "batch started",
			send: func(s notifications.Service) error {
				return s.NotifyBatchStarted(context.Background(), 1, "last_week")
			},
			expectTitle:    "meetexport - Export Started",
			expectMessage:  "Exporting 1 meeting (last_week)",
			expectTags:     "meetexport,batch,started",
			expectPriority: "low",
		},
		{
			name: "batch completed",
			send: func(s notifications.Service) error {
				return s.NotifyBatchCompleted(context.Background(), 5, 1501*time.Millisecond+10*time.Minute, "/exports")
			},
			expectTitle:   "meetexport - Export Complete",
			expectMessage: "✅ Exported 5 meetings in 10m2s\nFolder: /exports",
			expectTags:    "meetexport,batch,completed",
		},
		{
			name: "batch failed",
			send: func(s notifications.Service) error {
				return s.NotifyBatchFailed(context.Background(), 2, 5, "Design Review", "Verification failed after retries")
			},
			expectTitle:    "meetexport - Export Failed",
			expectMessage:  "❌ Export stopped after 2 of 5\nFailed: Design Review\nReason: Verification failed after retries",
			expectTags:     "meetexport,batch,failed",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyError(context.Background(), errors.New("token expired"), "list")
			},
			expectTitle:    "meetexport - Error",
			expectMessage:  "❌ Error with list: token expired",
			expectTags:     "meetexport,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := newCaptureServer(t, http.StatusOK)
			if err := tc.send(serviceFor(server.URL)); err != nil {
				t.Fatalf("send: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Errorf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if got.body != tc.expectMessage {
				t.Errorf("message = %q, want %q", got.body, tc.expectMessage)
			}
			if got.tags != tc.expectTags {
				t.Errorf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if got.priority != tc.expectPriority {
				t.Errorf("priority = %q, want %q", got.priority, tc.expectPriority)
			}
		})
	}
}

func TestCancelledNotificationIgnoresDoneContext(t *testing.T) {
	server, got := newCaptureServer(t, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := serviceFor(server.URL).NotifyBatchCancelled(ctx, 1, 4); err != nil {
		t.Fatalf("NotifyBatchCancelled: %v", err)
	}
	if got.body != "Export cancelled after 1 of 4" {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestNtfyErrorStatus(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusForbidden)
	if err := serviceFor(server.URL).TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
