package vheight

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// checkPartition verifies the output invariants: ascending order, no gaps,
// no overlaps, every bin non-degenerate.
func checkPartition(t *testing.T, bins []Bin) {
	t.Helper()
	for i, b := range bins {
		if b.Min >= b.Max {
			t.Errorf("bin %d degenerate: [%g, %g]", i, b.Min, b.Max)
		}
		if i > 0 && math.Abs(bins[i-1].Max-b.Min) > 1e-9 {
			t.Errorf("bins %d/%d not flush: %g vs %g", i-1, i, bins[i-1].Max, b.Min)
		}
	}
}

func TestReconcile_Empty(t *testing.T) {
	bins, err := reconcileBoundaries(nil, 100, 500, 100, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bins != nil {
		t.Errorf("bins = %v, want nil", bins)
	}
}

func TestReconcile_SingleCandidate(t *testing.T) {
	cands := []candidate{{lo: 200, hi: 280, peak: 240}}
	bins, err := reconcileBoundaries(cands, 205, 275, 100, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Bin{{Min: 200, Max: 280, Peak: 240}}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_LeftStretch(t *testing.T) {
	// The lowest candidate starts less than one box width above the lowest
	// sample: its lower edge stretches down instead of gaining a filler bin.
	cands := []candidate{{lo: 210.5, hi: 280, peak: 240}}
	bins, err := reconcileBoundaries(cands, 205, 275, 100, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Bin{{Min: 205, Max: 280, Peak: 240}}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_LeftPadBins(t *testing.T) {
	cands := []candidate{{lo: 300, hi: 340, peak: 320}}
	bins, err := reconcileBoundaries(cands, 180, 340, 100, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 120 km of uncovered range below the candidate: two filler bins of 60.
	want := []Bin{
		{Min: 180, Max: 240, Peak: 210},
		{Min: 240, Max: 300, Peak: 270},
		{Min: 300, Max: 340, Peak: 320},
	}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
	checkPartition(t, bins)
}

func TestReconcile_LeftPadFractionalSpanFlush(t *testing.T) {
	// A fractional filler span rounds each upper edge up; every filler must
	// start where the previous one ended or the rounding opens overlaps.
	cands := []candidate{{lo: 225.8, hi: 300, peak: 263}}
	bins, err := reconcileBoundaries(cands, 100.3, 300, 0, 1000, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bins) != 3 {
		t.Fatalf("got %d bins (%v), want 3", len(bins), bins)
	}
	if bins[0].Min != 100 {
		t.Errorf("first filler Min = %g, want 100", bins[0].Min)
	}
	checkPartition(t, bins)
}

func TestReconcile_GapBridged(t *testing.T) {
	cands := []candidate{
		{lo: 100, hi: 150, peak: 120},
		{lo: 260, hi: 300, peak: 280},
	}
	bins, err := reconcileBoundaries(cands, 100, 300, 100, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 110 km gap: two bridging bins of 55 each.
	want := []Bin{
		{Min: 100, Max: 150, Peak: 120},
		{Min: 150, Max: 205, Peak: 177.5},
		{Min: 205, Max: 260, Peak: 232.5},
		{Min: 260, Max: 300, Peak: 280},
	}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
	checkPartition(t, bins)
}

func TestReconcile_SubBoxGapStretches(t *testing.T) {
	cands := []candidate{
		{lo: 100, hi: 150, peak: 120},
		{lo: 180, hi: 240, peak: 210},
	}
	bins, err := reconcileBoundaries(cands, 100, 240, 100, 500, 100, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Bin{
		{Min: 100, Max: 180, Peak: 120},
		{Min: 180, Max: 240, Peak: 210},
	}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_OverlapEarlierCandidateProtected(t *testing.T) {
	// The second candidate reaches into the first, but the first has the
	// lower original index: the newcomer keeps only the region past it and
	// is demoted to filler (midpoint peak).
	cands := []candidate{
		{lo: 100, hi: 200, peak: 150},
		{lo: 140, hi: 260, peak: 190},
	}
	bins, err := reconcileBoundaries(cands, 100, 260, 100, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Bin{
		{Min: 100, Max: 200, Peak: 150},
		{Min: 200, Max: 260, Peak: 230},
	}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
	checkPartition(t, bins)
}

func TestReconcile_OverlapNewcomerWins(t *testing.T) {
	// The newcomer has the lower original index: the accepted bin's upper
	// edge is pulled down to meet it.
	cands := []candidate{
		{lo: 200, hi: 260, peak: 230}, // index 0: most protected
		{lo: 190, hi: 400, peak: 300}, // index 1: sorted first (lower edge)
	}
	bins, err := reconcileBoundaries(cands, 190, 260, 100, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Bin{
		{Min: 190, Max: 200, Peak: 300},
		{Min: 200, Max: 260, Peak: 230},
	}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
	checkPartition(t, bins)
}

func TestReconcile_OverlapRetractsFillerBin(t *testing.T) {
	// A demoted filler bin created by an earlier conflict is popped once a
	// fitted candidate claims its range.
	cands := []candidate{
		{lo: 100.4, hi: 300, peak: 200},
		{lo: 150, hi: 320, peak: 310},
		{lo: 300, hi: 400, peak: 350},
	}
	bins, err := reconcileBoundaries(cands, 100.4, 399, 50, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Bin{
		{Min: 100, Max: 300, Peak: 200},
		{Min: 300, Max: 400, Peak: 350},
	}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
	checkPartition(t, bins)
}

func TestReconcile_DominantBinAbsorbsContained(t *testing.T) {
	// Candidates entirely inside an already accepted, better protected bin
	// vanish without leaving degenerate output.
	cands := []candidate{
		{lo: 90, hi: 300, peak: 200},
		{lo: 100, hi: 150, peak: 120},
		{lo: 160, hi: 210, peak: 185},
	}
	bins, err := reconcileBoundaries(cands, 90, 300, 50, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Bin{{Min: 90, Max: 300, Peak: 200}}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_RightPadBins(t *testing.T) {
	cands := []candidate{{lo: 100, hi: 150, peak: 120}}
	bins, err := reconcileBoundaries(cands, 100, 260, 100, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Bin{
		{Min: 100, Max: 150, Peak: 120},
		{Min: 150, Max: 205, Peak: 177.5},
		{Min: 205, Max: 260, Peak: 232.5},
	}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
	checkPartition(t, bins)
}

func TestReconcile_RightStretch(t *testing.T) {
	cands := []candidate{{lo: 100, hi: 150, peak: 120}}
	bins, err := reconcileBoundaries(cands, 100, 180, 100, 500, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Bin{{Min: 100, Max: 180, Peak: 120}}
	if diff := cmp.Diff(want, bins); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_RightPadClippedToVhMax(t *testing.T) {
	// Trailing filler stops at the analysis ceiling even though samples
	// were observed above it.
	cands := []candidate{{lo: 100, hi: 150, peak: 120}}
	bins, err := reconcileBoundaries(cands, 100, 400, 100, 250, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := bins[len(bins)-1]
	if last.Max > 250 {
		t.Errorf("last bin Max = %g, want <= vh_max 250", last.Max)
	}
	checkPartition(t, bins)
}

func TestReconcile_CapacityExceeded(t *testing.T) {
	cands := []candidate{
		{lo: 100, hi: 150, peak: 120},
		{lo: 260, hi: 300, peak: 280},
	}
	_, err := reconcileBoundaries(cands, 100, 300, 100, 500, 50, 2)
	if !errors.Is(err, ErrTooManyBins) {
		t.Fatalf("err = %v, want ErrTooManyBins", err)
	}
}
