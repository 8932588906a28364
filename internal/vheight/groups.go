// Package vheight groups scattered virtual-height radar observations into a
// small set of altitude bins, one per distinct propagation population
// (E-region, F-region, ground scatter).
//
// The pipeline builds a histogram of the observed heights, detects candidate
// population peaks, fits a Gaussian mixture to quantify each peak, converts
// the fitted components into candidate intervals and reconciles those into a
// gap-free partition of the observed range. When no statistically meaningful
// structure exists, a uniform equal-width partition is produced instead.
//
// Everything here is a pure computation over the caller's samples: no state
// survives a call, so independent inputs can be grouped concurrently.
package vheight

import (
	"errors"
	"fmt"

	"github.com/halcyon-data/altitude.report/internal/leastsq"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNoSamples reports an empty input set.
	ErrNoSamples = errors.New("vheight: no height samples")
	// ErrRangeTooSmall reports an analysis range too narrow for the
	// requested box width to support histogram analysis.
	ErrRangeTooSmall = errors.New("vheight: height range too small for histogram analysis")
	// ErrTooManyBins reports that grouping needs more bins than the caller
	// allowed. The caller can retry with a wider box or a larger cap.
	ErrTooManyBins = errors.New("vheight: too many height bins")
)

// Options configures a grouping call.
type Options struct {
	VhMin     float64 // Minimum plausible virtual height in km
	VhMax     float64 // Maximum plausible virtual height in km
	VhBox     float64 // Suggested height bin width in km
	MinPoints int     // Minimum samples for a forced absolute-maximum peak
	MaxBins   int     // Maximum number of output bins
}

// Validate reports whether the options are internally consistent.
func (o Options) Validate() error {
	if o.VhMax <= o.VhMin {
		return fmt.Errorf("%w: vh_max %g <= vh_min %g", ErrRangeTooSmall, o.VhMax, o.VhMin)
	}
	if o.VhBox <= 0 {
		return fmt.Errorf("%w: non-positive box width %g", ErrRangeTooSmall, o.VhBox)
	}
	if o.MaxBins <= 0 {
		return fmt.Errorf("%w: non-positive bin capacity %d", ErrTooManyBins, o.MaxBins)
	}
	return nil
}

// Bin is one altitude interval of the final partition.
type Bin struct {
	Min  float64 `json:"vh_min"`  // Lower edge in km
	Max  float64 `json:"vh_max"`  // Upper edge in km
	Peak float64 `json:"vh_peak"` // Estimated population center in km
}

// SelectAltGroups partitions the observed virtual heights into altitude
// bins. The result is ordered ascending, free of gaps and overlaps, covers
// the full observed height range clipped to [VhMin, VhMax], and never holds
// more than MaxBins entries.
//
// Configuration problems (a range too small to histogram, samples entirely
// outside it, or a bin capacity the data's structure cannot fit into) are
// reported as errors wrapping ErrRangeTooSmall or ErrTooManyBins. Fit failures are not errors: they
// route to the uniform fallback partition.
func SelectAltGroups(heights []float64, opts Options) ([]Bin, error) {
	if len(heights) == 0 {
		return nil, ErrNoSamples
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	hist, err := BuildHistogram(heights, opts.VhMin, opts.VhMax, opts.VhBox)
	if err != nil {
		return nil, err
	}

	peaks := DetectPeaks(hist.Counts, opts.MinPoints)

	// The partition covers the observed range clipped to the analysis
	// range. Samples entirely outside [VhMin, VhMax] leave nothing to
	// partition.
	localMin := floats.Min(heights)
	localMax := floats.Max(heights)
	if localMax < opts.VhMin || localMin > opts.VhMax {
		return nil, fmt.Errorf("%w: observed heights [%g, %g] outside analysis range [%g, %g]",
			ErrRangeTooSmall, localMin, localMax, opts.VhMin, opts.VhMax)
	}
	if localMin < opts.VhMin {
		localMin = opts.VhMin
	}
	if localMax > opts.VhMax {
		localMax = opts.VhMax
	}

	// No significant maximum: partition the observed range uniformly at
	// the suggested width.
	if len(peaks) == 0 {
		return uniformBins(localMin, localMax, opts.VhMin, opts.VhMax, opts.VhBox, opts.MaxBins)
	}

	comps, status := FitGaussianMixture(hist, peaks, opts.VhBox)

	// Accept every convergence flavor stronger than the bare chi-square
	// test; anything else counts as "no usable fit".
	var cands []candidate
	if status > leastsq.StatusFTol {
		cands, err = extractLimits(comps, peaks, hist, opts.VhMin, opts.VhMax, opts.MaxBins)
		if err != nil {
			return nil, err
		}
	}

	if len(cands) == 0 {
		return uniformBins(localMin, localMax, opts.VhMin, opts.VhMax, opts.VhBox, opts.MaxBins)
	}

	bins, err := reconcileBoundaries(cands, localMin, localMax, opts.VhMin, opts.VhMax, opts.VhBox, opts.MaxBins)
	if err != nil {
		return nil, err
	}
	if len(bins) == 0 {
		// Every candidate was degenerate after clipping.
		return uniformBins(localMin, localMax, opts.VhMin, opts.VhMax, opts.VhBox, opts.MaxBins)
	}
	return bins, nil
}
