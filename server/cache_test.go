package server

import (
	"path/filepath"
	"testing"

	"github.com/chazu/jiki/trace"
)

func sampleTrace(output string) *trace.Trace {
	return &trace.Trace{
		Dialect: "javascript",
		Success: true,
		Frames: []trace.Frame{{
			Line:      1,
			Code:      "console.log(x)",
			Status:    "SUCCESS",
			Kind:      "expression",
			Variables: map[string]any{"x": float64(3)},
		}},
		LogLines: []trace.LogLine{{Output: output}},
	}
}

func openTestCache(t *testing.T, path string) *ResultCache {
	t.Helper()
	c, err := OpenResultCache(path)
	if err != nil {
		t.Fatalf("OpenResultCache(%s): %v", path, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestResultCache(t *testing.T) {
	c := openTestCache(t, ":memory:")

	if _, _, ok, err := c.Get(bg(), "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = %v, %v, want miss", ok, err)
	}

	if err := c.Put(bg(), "k1", "run-1", sampleTrace("3")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, runID, ok, err := c.Get(bg(), "k1")
	if err != nil || !ok {
		t.Fatalf("Get(k1) = %v, %v", ok, err)
	}
	if runID != "run-1" {
		t.Errorf("runID = %q, want run-1", runID)
	}
	if len(got.Frames) != 1 || got.Frames[0].Code != "console.log(x)" {
		t.Errorf("frames = %+v", got.Frames)
	}
	if x, _ := got.Frames[0].Variables["x"].(float64); x != 3 {
		t.Errorf("variable x = %v, want 3", got.Frames[0].Variables["x"])
	}

	// Put replaces.
	if err := c.Put(bg(), "k1", "run-2", sampleTrace("4")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, runID, _, _ = c.Get(bg(), "k1")
	if runID != "run-2" || got.LogLines[0].Output != "4" {
		t.Errorf("replaced entry = %q, %+v", runID, got.LogLines)
	}
	if n, err := c.Len(bg()); err != nil || n != 1 {
		t.Errorf("Len = %d, %v, want 1", n, err)
	}
}

func TestResultCacheUnreadableRow(t *testing.T) {
	c := openTestCache(t, ":memory:")
	if _, err := c.db.Exec(`INSERT INTO results (key, run_id, trace, created) VALUES ('bad', 'r', x'ff00', 0)`); err != nil {
		t.Fatal(err)
	}
	if _, _, ok, err := c.Get(bg(), "bad"); ok || err != nil {
		t.Errorf("Get(bad) = %v, %v, want miss", ok, err)
	}
}

func TestResultCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	c, err := OpenResultCache(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(bg(), "k", "run-1", sampleTrace("ok")); err != nil {
		t.Fatal(err)
	}
	c.Close()

	reopened := openTestCache(t, path)
	got, runID, ok, err := reopened.Get(bg(), "k")
	if err != nil || !ok {
		t.Fatalf("Get after reopen = %v, %v", ok, err)
	}
	if runID != "run-1" || got.LogLines[0].Output != "ok" {
		t.Errorf("reopened entry = %q, %+v", runID, got.LogLines)
	}
}
