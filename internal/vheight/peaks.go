package vheight

// peakWindow is the neighbor window used for relative-maximum detection.
const peakWindow = 2

// Peak is a histogram bin identified as a distinct height population.
type Peak struct {
	Bin   int // Histogram bin index
	Count int // Sample count in that bin
}

// DetectPeaks finds the histogram bins that mark distinct populations of
// virtual heights. A bin qualifies when it is a strict local maximum within
// peakWindow neighbors on each side.
//
// Two identical counts side by side mask each other from the relative test,
// so the dominant population of the whole histogram can go undetected. To
// cover that case the absolute-maximum bin is force-added whenever it was
// not already flagged and holds at least minPoints samples.
//
// Peaks are returned in bin order.
func DetectPeaks(counts []int, minPoints int) []Peak {
	flags, n := ArgRelMax(counts, peakWindow)

	// An empty bin holds no population. The relative test can still flag
	// one when it has no neighbors to out-count (a single-bin histogram
	// flags its only bin vacuously), and a zero minPoints would otherwise
	// force one through the absolute-maximum rule.
	for i, isMax := range flags {
		if isMax && counts[i] == 0 {
			flags[i] = false
			n--
		}
	}

	if i := ArgAbsMax(counts); i >= 0 && !flags[i] && counts[i] > 0 && counts[i] >= minPoints {
		flags[i] = true
		n++
	}

	if n == 0 {
		return nil
	}
	peaks := make([]Peak, 0, n)
	for i, isMax := range flags {
		if isMax {
			peaks = append(peaks, Peak{Bin: i, Count: counts[i]})
		}
	}
	return peaks
}
