package demo_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"meetexport/internal/countdown"
	"meetexport/internal/demo"
	"meetexport/internal/export"
	"meetexport/internal/remote"
	"meetexport/internal/services"
	"meetexport/internal/verification"
)

func TestTranscriptPassesVerification(t *testing.T) {
	engine, err := verification.NewEngine(verification.DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	verdict := engine.Verify(demo.Transcript([]string{"Ana", "Ben"}))
	if !verdict.Complete {
		t.Fatalf("demo transcript should verify, failures: %v", verdict.Failures)
	}
	verdict = engine.Verify(demo.Transcript(nil))
	if !verdict.Complete {
		t.Fatalf("anonymous transcript should verify, failures: %v", verdict.Failures)
	}
}

func TestListAndDetail(t *testing.T) {
	now := time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)
	src := demo.NewSource(demo.WithNow(func() time.Time { return now }))

	items, err := src.ListMeetings(context.Background(), remote.Range{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 5 || items[0].ID != "mock-001" || items[0].Date != "2025-03-18T10:00:00" {
		t.Fatalf("unexpected list %+v", items)
	}
	if len(items[0].Participants) != 0 {
		t.Fatal("list entries should not carry detail")
	}

	detail, err := src.FetchDetail(context.Background(), "mock-002")
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Participants) != 3 || detail.Summary == "" {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if _, err := src.FetchDetail(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatencyHonoursCancellation(t *testing.T) {
	src := demo.NewSource(demo.WithLatency(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.FetchContent(ctx, "mock-001"); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestFullPipelineOverDemoSource(t *testing.T) {
	src := demo.NewSource()
	engine, err := verification.NewEngine(verification.DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	timer := countdown.New(time.Second, countdown.ClockFunc(func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}))
	exporter := export.NewExporter(src, engine, nil)
	orchestrator := export.NewOrchestrator(exporter, src, export.Settings{Cooldown: 3 * time.Second, MaxRetries: 2}, export.WithTimer(timer))

	items, err := src.ListMeetings(context.Background(), remote.Range{})
	if err != nil {
		t.Fatal(err)
	}
	outputDir := t.TempDir()
	batch, err := orchestrator.Run(context.Background(), items, outputDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !batch.Success || batch.Completed != 5 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	for _, r := range batch.CompletedResults {
		wantAttempts := 1
		if r.ItemID == demo.FlakyID {
			wantAttempts = 2
		}
		if r.Attempts != wantAttempts {
			t.Fatalf("%s took %d attempts, want %d", r.ItemID, r.Attempts, wantAttempts)
		}
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 files, got %d", len(entries))
	}
	if src.Resets() != 4 {
		t.Fatalf("expected a session reset between each pair of meetings, got %d", src.Resets())
	}
}
