package vheight

import (
	"fmt"
	"math"
)

// uniformBins produces evenly spaced bins of the suggested box width when
// the statistical path found nothing usable: no significant peak, a failed
// fit, or no validated candidate.
//
// The observed sample range [localMin, localMax] is divided into
// ceil(span/vhBox) bins of nominal width vhBox, anchored one box width below
// the mean-offset point so the observed range sits centered in the covered
// interval. Every edge is clipped into [vhMin, vhMax] and bin construction
// stops early once the upper analysis limit is reached.
func uniformBins(localMin, localMax, vhMin, vhMax, vhBox float64, maxBins int) ([]Bin, error) {
	n := int(math.Ceil((localMax - localMin) / vhBox))
	if n <= 0 {
		// Zero-spread input (every sample at one height): a single box
		// around that value.
		n = 1
	}
	if n > maxBins {
		return nil, fmt.Errorf("%w: box width %g needs %d bins over [%g, %g]",
			ErrTooManyBins, vhBox, n, localMin, localMax)
	}

	lo := (localMax-localMin)/float64(n) + localMin - vhBox
	if lo < vhMin {
		lo = vhMin
	}

	bins := make([]Bin, 0, n)
	for i := 0; i < n; i++ {
		hi := lo + vhBox
		if hi > vhMax {
			hi = vhMax
		}
		bins = append(bins, Bin{Min: lo, Max: hi, Peak: lo + 0.5*(hi-lo)})
		if hi >= vhMax {
			break
		}
		lo = hi
	}
	return bins, nil
}
