package export_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meetexport/internal/export"
	"meetexport/internal/meeting"
	"meetexport/internal/services"
	"meetexport/internal/verification"
)

type stubSource struct {
	details     map[string]meeting.Item
	contents    []string
	contentErrs []error
	detailCalls int
	contentCall int
}

func (s *stubSource) FetchDetail(_ context.Context, id string) (meeting.Item, error) {
	s.detailCalls++
	if detail, ok := s.details[id]; ok {
		return detail, nil
	}
	return meeting.Item{ID: id}, nil
}

func (s *stubSource) FetchContent(context.Context, string) (string, error) {
	idx := s.contentCall
	s.contentCall++
	if idx < len(s.contentErrs) && s.contentErrs[idx] != nil {
		return "", s.contentErrs[idx]
	}
	if len(s.contents) == 0 {
		return "", nil
	}
	return s.contents[min(idx, len(s.contents)-1)], nil
}

func completeTranscript(n int) string {
	const closing = " Thanks everyone, goodbye."
	body := strings.Repeat("Speaker A: we reviewed the launch checklist ", n/44+1)
	return body[:n-len(closing)] + closing
}

func newTestExporter(t *testing.T, source export.Source) *export.Exporter {
	t.Helper()
	engine, err := verification.NewEngine(verification.DefaultRules())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	now := func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) }
	return export.NewExporter(source, engine, nil, export.WithClock(now))
}

func TestExportWritesVerifiedTranscript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	source := &stubSource{
		details: map[string]meeting.Item{
			"m1": {ID: "m1", Summary: "Launch is go.", Participants: []string{"Ana", "Ben"}},
		},
		contents: []string{completeTranscript(12000)},
	}
	item := meeting.Item{ID: "m1", Title: "Q4: Planning/Review?", Date: "2024-03-05"}

	result, err := newTestExporter(t, source).Export(context.Background(), item, dir, 2)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if !result.Complete {
		t.Fatalf("expected complete result, got %+v", result)
	}
	if result.Filename != "2024-03-05_Q4__Planning_Review_.md" {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	if result.Attempts != 1 || result.ContentLength != 12000 {
		t.Fatalf("unexpected attempts/length: %+v", result)
	}

	content, err := os.ReadFile(filepath.Join(dir, result.Filename))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	for _, want := range []string{"# Q4: Planning/Review?\n", "**Participants:** Ana, Ben\n", "Launch is go.", "Thanks everyone, goodbye.\n"} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("export missing %q", want)
		}
	}
	if item.Summary != "" {
		t.Fatal("caller's item must not be mutated")
	}
}

func TestStagnationStopsRetries(t *testing.T) {
	dir := t.TempDir()
	source := &stubSource{contents: []string{"partial transcript that ends mid", "partial transcript that ends mi2"}}

	result, err := newTestExporter(t, source).Export(context.Background(), meeting.Item{ID: "m1", Title: "Sync"}, dir, 5)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if result.Complete {
		t.Fatal("expected failure")
	}
	if result.Error != export.ErrorUnchanged {
		t.Fatalf("unexpected error %q", result.Error)
	}
	if result.Attempts != 2 || source.contentCall != 2 {
		t.Fatalf("expected stop after second attempt, attempts=%d calls=%d", result.Attempts, source.contentCall)
	}
	if !errors.Is(result.Err, services.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", result.Err)
	}
	if result.Verdict == nil || result.Verdict.Complete {
		t.Fatalf("expected failing verdict attached, got %+v", result.Verdict)
	}
	assertEmptyDir(t, dir)
}

func TestVerificationFailureExhaustsRetries(t *testing.T) {
	dir := t.TempDir()
	source := &stubSource{contents: []string{"a", "ab", "abc", "abcd"}}

	result, err := newTestExporter(t, source).Export(context.Background(), meeting.Item{ID: "m1"}, dir, 2)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if result.Error != export.ErrorVerificationFinal {
		t.Fatalf("unexpected error %q", result.Error)
	}
	if result.Attempts != 3 || source.detailCalls != 3 {
		t.Fatalf("expected 3 attempts, got attempts=%d detailCalls=%d", result.Attempts, source.detailCalls)
	}
	if result.Kind() != "verification_failed" {
		t.Fatalf("unexpected kind %q", result.Kind())
	}
	assertEmptyDir(t, dir)
}

func TestRetryRecoversIncompleteTranscript(t *testing.T) {
	dir := t.TempDir()
	source := &stubSource{contents: []string{completeTranscript(9000), completeTranscript(15000)}}

	result, err := newTestExporter(t, source).Export(context.Background(), meeting.Item{ID: "m1", Title: "Retro", Date: "2024-01-02"}, dir, 2)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if !result.Complete || result.Attempts != 2 {
		t.Fatalf("expected success on second attempt, got %+v", result)
	}
}

func TestEmptyContentIsVerificationFailure(t *testing.T) {
	source := &stubSource{contents: []string{""}}

	result, err := newTestExporter(t, source).Export(context.Background(), meeting.Item{ID: "m1"}, t.TempDir(), 3)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if result.Error != export.ErrorUnchanged {
		t.Fatalf("expected stagnation on repeated empty content, got %q", result.Error)
	}
	if !errors.Is(result.Err, services.ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent in chain, got %v", result.Err)
	}
}

func TestRateLimitExhaustionIsNotRetried(t *testing.T) {
	exhausted := services.Wrap(services.ErrRateLimitExhausted, "ratelimit", "get_meeting_transcript", "still rate limited", nil)
	source := &stubSource{contentErrs: []error{exhausted}, contents: []string{completeTranscript(12000)}}

	result, err := newTestExporter(t, source).Export(context.Background(), meeting.Item{ID: "m1"}, t.TempDir(), 2)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if result.Complete || result.Attempts != 1 || source.contentCall != 1 {
		t.Fatalf("expected single attempt failure, got %+v calls=%d", result, source.contentCall)
	}
	if result.Error != exhausted.Error() {
		t.Fatalf("unexpected error %q", result.Error)
	}
	if result.Kind() != "rate_limit_exhausted" {
		t.Fatalf("unexpected kind %q", result.Kind())
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	transient := errors.New("http 502")
	source := &stubSource{contentErrs: []error{transient, transient}, contents: []string{completeTranscript(12000)}}

	result, err := newTestExporter(t, source).Export(context.Background(), meeting.Item{ID: "m1", Date: "2024-01-02"}, t.TempDir(), 2)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if !result.Complete || result.Attempts != 3 {
		t.Fatalf("expected success on final attempt, got %+v", result)
	}

	source = &stubSource{contentErrs: []error{transient, transient, transient}}
	result, err = newTestExporter(t, source).Export(context.Background(), meeting.Item{ID: "m1"}, t.TempDir(), 2)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if result.Complete || result.Error != "http 502" || result.Kind() != "transient" {
		t.Fatalf("expected transient failure, got %+v", result)
	}
}

func TestCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	source := &stubSource{contentErrs: []error{services.Cancelled(ctx)}}

	_, err := newTestExporter(t, source).Export(ctx, meeting.Item{ID: "m1"}, t.TempDir(), 2)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if source.contentCall != 1 {
		t.Fatalf("cancellation must not be retried, got %d calls", source.contentCall)
	}
}

func TestFilenameCollisionKeepsBothMeetings(t *testing.T) {
	dir := t.TempDir()
	source := &stubSource{contents: []string{completeTranscript(12000)}}
	exporter := newTestExporter(t, source)

	first, _ := exporter.Export(context.Background(), meeting.Item{ID: "alpha-1111", Title: "Standup", Date: "2024-03-05"}, dir, 0)
	second, _ := exporter.Export(context.Background(), meeting.Item{ID: "beta-22222", Title: "Standup", Date: "2024-03-05"}, dir, 0)
	if first.Filename != "2024-03-05_Standup.md" {
		t.Fatalf("unexpected first filename %q", first.Filename)
	}
	if second.Filename != "2024-03-05_Standup_beta-222.md" {
		t.Fatalf("unexpected second filename %q", second.Filename)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files written, found %v", entries)
	}
}
