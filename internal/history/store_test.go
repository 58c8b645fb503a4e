package history_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meetexport/internal/export"
	"meetexport/internal/fileutil"
	"meetexport/internal/history"
	"meetexport/internal/services"
	"meetexport/internal/verification"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	outputDir := t.TempDir()
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := store.BeginRun(ctx, export.RunInfo{RunID: "run-aaaa-1", Total: 3, OutputDir: outputDir, StartedAt: started}); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	content := []byte("# Meeting\n")
	if err := os.WriteFile(filepath.Join(outputDir, "a.md"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	verdict := &verification.Verdict{Complete: true, Checks: []verification.Check{{Name: verification.CheckLength, Passed: true, Message: "ok"}}}
	if err := store.RecordItem(ctx, "run-aaaa-1", 1, export.Result{ItemID: "m1", Title: "A", Complete: true, Filename: "a.md", Verdict: verdict, Attempts: 1, ContentLength: 12000}); err != nil {
		t.Fatalf("RecordItem success: %v", err)
	}
	failure := export.Result{
		ItemID: "m2", Title: "B", Error: "Verification failed after retries", Attempts: 3,
		Err: services.Wrap(services.ErrVerificationFailed, "export", "verify", "", nil),
	}
	if err := store.RecordItem(ctx, "run-aaaa-1", 2, failure); err != nil {
		t.Fatalf("RecordItem failure: %v", err)
	}
	if err := store.FinishRun(ctx, "run-aaaa-1", export.OutcomeFailed, started.Add(5*time.Minute)); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, items, err := store.GetRun(ctx, "run-aaaa")
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if run.Outcome != export.OutcomeFailed || run.Completed != 1 || run.Failed != 1 || run.Total != 3 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Duration() != 5*time.Minute {
		t.Fatalf("unexpected duration %v", run.Duration())
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	want, _ := fileutil.SHA256File(filepath.Join(outputDir, "a.md"))
	if items[0].SHA256 != want || len(items[0].Checks) != 1 {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1].Complete || items[1].ErrorKind == "" || items[1].SHA256 != "" {
		t.Fatalf("unexpected failed item %+v", items[1])
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		started := base.Add(time.Duration(i) * time.Hour).Add(time.Duration(i) * 500 * time.Millisecond)
		if err := store.BeginRun(ctx, export.RunInfo{RunID: id, Total: 1, OutputDir: "/tmp", StartedAt: started}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		t.Fatalf("unexpected order %+v", runs)
	}
	if runs[0].Outcome != history.OutcomeRunning || !runs[0].FinishedAt.IsZero() {
		t.Fatalf("unfinished run should be running: %+v", runs[0])
	}
}

func TestGetRunErrors(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"abc-1", "abc-2"} {
		if err := store.BeginRun(ctx, export.RunInfo{RunID: id, Total: 1, OutputDir: "/tmp", StartedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	if _, _, err := store.GetRun(ctx, "zzz"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.GetRun(ctx, "abc"); err == nil {
		t.Fatal("expected ambiguous prefix error")
	}
	if run, _, err := store.GetRun(ctx, "abc-2"); err != nil || run.ID != "abc-2" {
		t.Fatalf("exact lookup failed: %+v %v", run, err)
	}
}

func TestRecordItemUnknownRun(t *testing.T) {
	store := openStore(t)
	err := store.RecordItem(context.Background(), "missing", 1, export.Result{ItemID: "x"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.FinishRun(context.Background(), "missing", export.OutcomeSuccess, time.Now()); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from FinishRun, got %v", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.BeginRun(context.Background(), export.RunInfo{RunID: "keep", Total: 1, OutputDir: "/tmp", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.ListRuns(context.Background(), 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected persisted run, got %+v %v", runs, err)
	}
}
