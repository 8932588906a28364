package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/halcyon-data/altitude.report/internal/vheight"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordRunAndReadBack(t *testing.T) {
	db := newTestDB(t)

	run := &Run{
		VhMin:     0,
		VhMax:     1000,
		VhBox:     40,
		MinPoints: 20,
		MaxBins:   30,
	}
	heights := []float64{110.5, 205.2, 198.7, 202.1}
	bins := []vheight.Bin{
		{Min: 100, Max: 240, Peak: 200},
		{Min: 240, Max: 380, Peak: 310},
	}

	if err := db.RecordRun(run, heights, bins); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("RecordRun did not assign a run ID")
	}
	if run.SampleCount != len(heights) {
		t.Errorf("SampleCount = %d, want %d", run.SampleCount, len(heights))
	}

	runs, err := db.Runs(10)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Runs returned %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.ID != run.ID {
		t.Errorf("run ID = %q, want %q", got.ID, run.ID)
	}
	if got.VhBox != 40 || got.MinPoints != 20 || got.MaxBins != 30 {
		t.Errorf("run parameters not round-tripped: %+v", got)
	}
	if got.SampleCount != 4 {
		t.Errorf("SampleCount = %d, want 4", got.SampleCount)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}

	gotBins, err := db.RunBins(run.ID)
	if err != nil {
		t.Fatalf("RunBins failed: %v", err)
	}
	if len(gotBins) != 2 {
		t.Fatalf("RunBins returned %d bins, want 2", len(gotBins))
	}
	if gotBins[0] != bins[0] || gotBins[1] != bins[1] {
		t.Errorf("bins not round-tripped: got %+v, want %+v", gotBins, bins)
	}

	gotHeights, err := db.RunHeights(run.ID)
	if err != nil {
		t.Fatalf("RunHeights failed: %v", err)
	}
	if len(gotHeights) != len(heights) {
		t.Fatalf("RunHeights returned %d heights, want %d", len(gotHeights), len(heights))
	}
	for i, h := range heights {
		if gotHeights[i] != h {
			t.Errorf("height[%d] = %v, want %v", i, gotHeights[i], h)
		}
	}
}

func TestRecordRunKeepsProvidedID(t *testing.T) {
	db := newTestDB(t)

	run := &Run{ID: "fixed-id", VhMin: 0, VhMax: 500, VhBox: 50, MinPoints: 10, MaxBins: 20}
	if err := db.RecordRun(run, []float64{100}, nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if run.ID != "fixed-id" {
		t.Errorf("RecordRun replaced caller-provided ID with %q", run.ID)
	}
}

func TestRecordRunDuplicateIDRollsBack(t *testing.T) {
	db := newTestDB(t)

	run := &Run{ID: "dup", VhMin: 0, VhMax: 500, VhBox: 50, MinPoints: 10, MaxBins: 20}
	if err := db.RecordRun(run, []float64{100}, nil); err != nil {
		t.Fatalf("first RecordRun failed: %v", err)
	}

	again := &Run{ID: "dup", VhMin: 0, VhMax: 500, VhBox: 50, MinPoints: 10, MaxBins: 20}
	if err := db.RecordRun(again, []float64{200, 300}, nil); err == nil {
		t.Fatal("RecordRun with duplicate ID should fail")
	}

	// The failed run must not have left partial sample rows behind.
	heights, err := db.RunHeights("dup")
	if err != nil {
		t.Fatalf("RunHeights failed: %v", err)
	}
	if len(heights) != 1 {
		t.Errorf("duplicate insert leaked samples: got %d heights, want 1", len(heights))
	}
}

func TestRunBinsUnknownRun(t *testing.T) {
	db := newTestDB(t)

	_, err := db.RunBins("no-such-run")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("RunBins for unknown run returned %v, want sql.ErrNoRows", err)
	}
}

func TestRunBinsEmptyResult(t *testing.T) {
	db := newTestDB(t)

	run := &Run{VhMin: 0, VhMax: 500, VhBox: 50, MinPoints: 10, MaxBins: 20}
	if err := db.RecordRun(run, []float64{100}, nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	bins, err := db.RunBins(run.ID)
	if err != nil {
		t.Fatalf("RunBins failed: %v", err)
	}
	if len(bins) != 0 {
		t.Errorf("RunBins returned %d bins for a binless run, want 0", len(bins))
	}
}

func TestRunsLimit(t *testing.T) {
	db := newTestDB(t)

	for i := 0; i < 5; i++ {
		run := &Run{VhMin: 0, VhMax: 500, VhBox: 50, MinPoints: 10, MaxBins: 20}
		if err := db.RecordRun(run, nil, nil); err != nil {
			t.Fatalf("RecordRun %d failed: %v", i, err)
		}
	}

	runs, err := db.Runs(3)
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("Runs(3) returned %d runs, want 3", len(runs))
	}
}
