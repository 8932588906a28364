package vheight

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestArgRelMax(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   []int // flagged indices
	}{
		{"single interior peak", []int{0, 5, 2, 1, 0, 0}, []int{1}},
		{"edge peak", []int{9, 4, 1, 0}, []int{0}},
		{"monotonic rise ends in edge peak", []int{1, 2, 3, 4, 5}, []int{4}},
		{"adjacent ties mask each other", []int{1, 7, 7, 1}, nil},
		{"flat", []int{3, 3, 3, 3, 3}, nil},
		{"two separated peaks", []int{0, 6, 1, 0, 0, 8, 2, 0}, []int{1, 5}},
		{"near peaks inside one window", []int{0, 6, 5, 7, 0}, []int{3}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			flags, n := ArgRelMax(tc.counts, 2)
			var got []int
			for i, f := range flags {
				if f {
					got = append(got, i)
				}
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("flagged indices mismatch (-want +got):\n%s", diff)
			}
			if n != len(tc.want) {
				t.Errorf("n = %d, want %d", n, len(tc.want))
			}
		})
	}
}

func TestArgAbsMax(t *testing.T) {
	if got := ArgAbsMax([]int{1, 9, 3}); got != 1 {
		t.Errorf("ArgAbsMax = %d, want 1", got)
	}
	if got := ArgAbsMax([]int{4, 9, 9, 2}); got != 1 {
		t.Errorf("ArgAbsMax ties = %d, want first index 1", got)
	}
	if got := ArgAbsMax(nil); got != -1 {
		t.Errorf("ArgAbsMax(nil) = %d, want -1", got)
	}
}

func TestArgSortStable(t *testing.T) {
	v := []float64{3.5, 1.0, 3.5, 0.5, 1.0}
	got := ArgSortStable(v)
	want := []int{3, 1, 4, 0, 2} // equal values keep original order
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("permutation mismatch (-want +got):\n%s", diff)
	}

	// Input must be untouched; priorities index into the original order.
	if diff := cmp.Diff([]float64{3.5, 1.0, 3.5, 0.5, 1.0}, v); diff != "" {
		t.Errorf("input was mutated (-want +got):\n%s", diff)
	}
}
