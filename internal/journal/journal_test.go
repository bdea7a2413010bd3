package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/offmirror/internal/model"
)

// setupTestJournal creates a journal in a temporary directory.
func setupTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func startRun(t *testing.T, j *Journal, id string, started time.Time) {
	t.Helper()

	err := j.StartRun(context.Background(), model.RunSummary{
		ID:        id,
		Origin:    "https://example.com/",
		OutputDir: "/tmp/mirror",
		StartedAt: started,
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
}

// TestOpen tests journal creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "newdir", "subdir")
		j, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open journal: %v", err)
		}
		defer j.Close()

		if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if j.Path() != filepath.Join(dir, FileName) {
			t.Errorf("got path %s", j.Path())
		}
	})

	t.Run("missing database without create", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		j, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open journal: %v", err)
		}
		startRun(t, j, "run-1", time.Now())
		_ = j.Close()

		reopened, err := Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen journal: %v", err)
		}
		defer reopened.Close()

		if _, err := reopened.GetRun(context.Background(), "run-1"); err != nil {
			t.Errorf("run lost after reopen: %v", err)
		}
	})
}

// TestNewRunID tests that run IDs are unique UUIDs.
func TestNewRunID(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("expected distinct run IDs")
	}
	if len(a) != 36 || strings.Count(a, "-") != 4 {
		t.Errorf("unexpected run ID format %q", a)
	}
}

// TestRunLifecycle tests StartRun, FinishRun and GetRun.
func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	j := setupTestJournal(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	startRun(t, j, "run-1", started)

	run, err := j.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("got StartedAt %v, expected %v", run.StartedAt, started)
	}
	if !run.FinishedAt.IsZero() || run.Complete() {
		t.Error("unfinished run must not be complete")
	}

	finished := started.Add(90 * time.Second)
	err = j.FinishRun(ctx, model.RunSummary{
		ID:         "run-1",
		FinishedAt: finished,
		Queued:     10,
		Fetched:    9,
		Saved:      7,
		Failed:     1,
		Skipped:    1,
	})
	if err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err = j.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Queued != 10 || run.Fetched != 9 || run.Saved != 7 || run.Failed != 1 || run.Skipped != 1 {
		t.Errorf("unexpected counters: %+v", run)
	}
	if run.Elapsed() != 90*time.Second {
		t.Errorf("got elapsed %v", run.Elapsed())
	}
	if !run.Complete() {
		t.Error("expected complete run")
	}
	if run.Origin != "https://example.com/" || run.OutputDir != "/tmp/mirror" {
		t.Errorf("unexpected run metadata: %+v", run)
	}
}

// TestFinishRunUnknown tests finishing a run that was never started.
func TestFinishRunUnknown(t *testing.T) {
	t.Parallel()

	j := setupTestJournal(t)
	err := j.FinishRun(context.Background(), model.RunSummary{ID: "missing", FinishedAt: time.Now()})
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

// TestGetRunPrefix tests run lookup by ID prefix.
func TestGetRunPrefix(t *testing.T) {
	t.Parallel()

	j := setupTestJournal(t)
	ctx := context.Background()
	now := time.Now()
	startRun(t, j, "abc111", now)
	startRun(t, j, "abc222", now)
	startRun(t, j, "xyz_99", now)

	tests := []struct {
		name    string
		id      string
		want    string
		wantErr error
	}{
		{name: "exact", id: "abc111", want: "abc111"},
		{name: "unique prefix", id: "abc2", want: "abc222"},
		{name: "ambiguous prefix", id: "abc", wantErr: ErrAmbiguousRunID},
		{name: "no match", id: "nope", wantErr: ErrRunNotFound},
		{name: "empty", id: "  ", wantErr: ErrRunNotFound},
		{name: "underscore is literal", id: "xyz_", want: "xyz_99"},
		{name: "percent is literal", id: "%", wantErr: ErrRunNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			run, err := j.GetRun(ctx, tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if run.ID != tt.want {
				t.Errorf("got %s, expected %s", run.ID, tt.want)
			}
		})
	}
}

// TestListRuns tests ordering and limits.
func TestListRuns(t *testing.T) {
	t.Parallel()

	j := setupTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	startRun(t, j, "first", base)
	startRun(t, j, "second", base.Add(500*time.Millisecond))
	startRun(t, j, "third", base.Add(time.Second))

	runs, err := j.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, expected 3", len(runs))
	}
	want := []string{"third", "second", "first"}
	for i, id := range want {
		if runs[i].ID != id {
			t.Errorf("runs[%d] = %s, expected %s", i, runs[i].ID, id)
		}
	}

	limited, err := j.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "third" {
		t.Errorf("unexpected limited result: %+v", limited)
	}
}

// TestRecordPage tests page storage, upsert and filtering.
func TestRecordPage(t *testing.T) {
	t.Parallel()

	j := setupTestJournal(t)
	ctx := context.Background()
	startRun(t, j, "run-1", time.Now())

	records := []model.PageRecord{
		{
			RunID:      "run-1",
			URL:        "https://example.com/",
			MappedPath: "example.com/index.html",
			SavedPath:  "example.com/index.html",
			Kind:       "html",
			StatusCode: 200,
			Bytes:      512,
			SHA256:     "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
			Outcome:    model.OutcomeSaved,
		},
		{
			RunID:         "run-1",
			URL:           "https://cdn.example.net/a.css",
			MappedPath:    "cdn.example.net/a.css",
			Depth:         0,
			ExternalDepth: 1,
			Outcome:       model.OutcomeFailed,
			Error:         "connection refused",
		},
	}
	for _, rec := range records {
		if err := j.RecordPage(ctx, rec); err != nil {
			t.Fatalf("RecordPage failed: %v", err)
		}
	}

	pages, err := j.ListPages(ctx, "run-1", PageFilter{})
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, expected 2", len(pages))
	}
	if pages[0].URL != "https://example.com/" || pages[0].Bytes != 512 || pages[0].Kind != "html" {
		t.Errorf("unexpected first page: %+v", pages[0])
	}
	if pages[0].SHA256 != records[0].SHA256 {
		t.Errorf("got digest %q, expected %q", pages[0].SHA256, records[0].SHA256)
	}
	if pages[1].SHA256 != "" {
		t.Errorf("expected no digest for a failed page, got %q", pages[1].SHA256)
	}
	if pages[0].Timestamp.IsZero() {
		t.Error("expected a timestamp to be filled in")
	}
	if pages[1].ExternalDepth != 1 || pages[1].Error != "connection refused" || pages[1].StatusCode != 0 {
		t.Errorf("unexpected second page: %+v", pages[1])
	}

	failed, err := j.ListPages(ctx, "run-1", PageFilter{Outcome: model.OutcomeFailed})
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Outcome != model.OutcomeFailed {
		t.Errorf("unexpected failed pages: %+v", failed)
	}

	// Same URL in the same run replaces the row.
	updated := records[1]
	updated.Outcome = model.OutcomeSaved
	updated.Error = ""
	updated.StatusCode = 200
	if err := j.RecordPage(ctx, updated); err != nil {
		t.Fatalf("RecordPage failed: %v", err)
	}
	pages, err = j.ListPages(ctx, "run-1", PageFilter{})
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("upsert created a duplicate: %d pages", len(pages))
	}
	if pages[1].Outcome != model.OutcomeSaved || pages[1].Error != "" {
		t.Errorf("upsert did not replace the row: %+v", pages[1])
	}

	other, err := j.ListPages(ctx, "run-2", PageFilter{})
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("pages leaked across runs: %+v", other)
	}
}

// TestRecordPageConcurrent tests inserts from many goroutines.
func TestRecordPageConcurrent(t *testing.T) {
	t.Parallel()

	j := setupTestJournal(t)
	ctx := context.Background()
	startRun(t, j, "run-1", time.Now())

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- j.RecordPage(ctx, model.PageRecord{
				RunID:      "run-1",
				URL:        "https://example.com/p" + strings.Repeat("x", i),
				MappedPath: "example.com/p/index.html",
				Outcome:    model.OutcomeVisited,
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent RecordPage failed: %v", err)
		}
	}

	pages, err := j.ListPages(ctx, "run-1", PageFilter{})
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(pages) != n {
		t.Errorf("got %d pages, expected %d", len(pages), n)
	}
}

// TestParseTimestamp tests the accepted timestamp formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	inputs := []string{
		formatTimestamp(want),
		"2026-05-04T03:02:01Z",
		"2026-05-04 03:02:01",
		"2026-05-04T03:02:01",
	}
	for _, in := range inputs {
		if got := parseTimestamp(in); !got.Equal(want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}
	if !parseTimestamp("garbage").IsZero() {
		t.Error("expected zero time for garbage")
	}
	if formatTimestamp(time.Time{}) != "" {
		t.Error("zero time must format as empty")
	}
}
