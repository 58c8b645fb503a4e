package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meetexport/internal/config"
)

const userAgent = "meetexport/0.1"

// Service defines the notification surface used by the CLI.
type Service interface {
	NotifyBatchStarted(ctx context.Context, total int, rangeLabel string) error
	NotifyBatchCompleted(ctx context.Context, completed int, duration time.Duration, outputDir string) error
	NotifyBatchFailed(ctx context.Context, completed, total int, title, reason string) error
	NotifyBatchCancelled(ctx context.Context, completed, total int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyBatchStarted(ctx context.Context, total int, rangeLabel string) error {
	message := fmt.Sprintf("Exporting %s", plural(total, "meeting"))
	if rangeLabel = strings.TrimSpace(rangeLabel); rangeLabel != "" {
		message += " (" + rangeLabel + ")"
	}
	return n.send(ctx, payload{
		title:    "meetexport - Export Started",
		message:  message,
		tags:     []string{"meetexport", "batch", "started"},
		priority: "low",
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, completed int, duration time.Duration, outputDir string) error {
	message := fmt.Sprintf("✅ Exported %s in %s", plural(completed, "meeting"), formatDuration(duration))
	if outputDir = strings.TrimSpace(outputDir); outputDir != "" {
		message += "\nFolder: " + outputDir
	}
	return n.send(ctx, payload{
		title:   "meetexport - Export Complete",
		message: message,
		tags:    []string{"meetexport", "batch", "completed"},
	})
}

func (n *ntfyService) NotifyBatchFailed(ctx context.Context, completed, total int, title, reason string) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "❌ Export stopped after %d of %d", completed, total)
	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(&builder, "\nFailed: %s", title)
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		fmt.Fprintf(&builder, "\nReason: %s", reason)
	}
	return n.send(ctx, payload{
		title:    "meetexport - Export Failed",
		message:  builder.String(),
		tags:     []string{"meetexport", "batch", "failed"},
		priority: "high",
	})
}

// NotifyBatchCancelled is sent after the caller's context is already done,
// so delivery is detached from it.
func (n *ntfyService) NotifyBatchCancelled(ctx context.Context, completed, total int) error {
	return n.send(context.WithoutCancel(ctx), payload{
		title:   "meetexport - Export Cancelled",
		message: fmt.Sprintf("Export cancelled after %d of %d", completed, total),
		tags:    []string{"meetexport", "batch", "cancelled"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "meetexport - Error",
		message:  builder.String(),
		tags:     []string{"meetexport", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "meetexport - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"meetexport", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifyBatchStarted(context.Context, int, string) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, time.Duration, string) error {
	return nil
}
func (noopService) NotifyBatchFailed(context.Context, int, int, string, string) error { return nil }
func (noopService) NotifyBatchCancelled(context.Context, int, int) error              { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
