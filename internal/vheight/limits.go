package vheight

import "fmt"

// candidate is a pre-reconciliation altitude interval derived from one
// fitted mixture component.
type candidate struct {
	lo   float64 // Lower edge in km, clipped to the analysis range
	hi   float64 // Upper edge in km, clipped to the analysis range
	peak float64 // Fitted center height in km
}

// extractLimits converts fitted components into candidate altitude bins.
// Each component contributes its 3-sigma window, clipped to [vhMin, vhMax].
//
// A component is only trusted if the histogram peak that seeded it still
// lies inside the component's own 2-sigma window; a fit that drifted away
// from its seed is describing some other part of the distribution and is
// dropped. Dropping every component is a normal outcome handled by the
// uniform fallback.
//
// More surviving candidates than maxBins means the caller asked for fewer
// bins than the data's structure needs, reported as ErrTooManyBins.
func extractLimits(comps []GaussComponent, peaks []Peak, h *Histogram, vhMin, vhMax float64, maxBins int) ([]candidate, error) {
	var cands []candidate
	for j, c := range comps {
		lo := clamp(c.Mean-3*c.Sigma, vhMin, vhMax)
		hi := clamp(c.Mean+3*c.Sigma, vhMin, vhMax)

		vlow := clamp(c.Mean-2*c.Sigma, vhMin, vhMax)
		vhigh := clamp(c.Mean+2*c.Sigma, vhMin, vhMax)

		seed := h.Center(peaks[j].Bin)
		if seed < vlow || seed > vhigh {
			continue
		}

		if len(cands) >= maxBins {
			return nil, fmt.Errorf("%w: histogram fit produced more than %d height bins",
				ErrTooManyBins, maxBins)
		}
		cands = append(cands, candidate{lo: lo, hi: hi, peak: c.Mean})
	}
	return cands, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
