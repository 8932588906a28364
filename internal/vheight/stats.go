package vheight

import "sort"

// Count-sequence and permutation utilities shared by the peak detector and
// the boundary reconciler.

// ArgRelMax flags every index of counts that is a strict local maximum
// within the given neighbor window: counts[i] must exceed every other value
// no more than window positions away (the window is clipped at the sequence
// edges). Side-by-side equal values therefore flag neither index; the
// absolute-maximum rule in the peak detector compensates for that.
//
// The returned slice has one entry per input value; n is the number of
// flagged indices.
func ArgRelMax(counts []int, window int) (flags []bool, n int) {
	flags = make([]bool, len(counts))
	for i, c := range counts {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window
		if hi > len(counts)-1 {
			hi = len(counts) - 1
		}
		isMax := true
		for j := lo; j <= hi; j++ {
			if j != i && counts[j] >= c {
				isMax = false
				break
			}
		}
		if isMax {
			flags[i] = true
			n++
		}
	}
	return flags, n
}

// ArgAbsMax returns the index of the largest value in counts, taking the
// first on ties. Returns -1 for an empty sequence.
func ArgAbsMax(counts []int) int {
	best := -1
	for i, c := range counts {
		if best < 0 || c > counts[best] {
			best = i
		}
	}
	return best
}

// ArgSortStable returns the index permutation that orders v ascending,
// preserving the original relative order of equal values. The input is not
// modified, so callers can keep using original indices as stable identities
// after sorting.
func ArgSortStable(v []float64) []int {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return v[idx[a]] < v[idx[b]]
	})
	return idx
}
