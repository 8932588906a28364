package vheight

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// maxHistogramBins caps the histogram resolution. Beyond ten bins the peak
// fit starts chasing sampling noise instead of population structure.
const maxHistogramBins = 10

// Histogram is a uniform-width binning of virtual height samples over the
// configured [VhMin, VhMax] analysis range.
type Histogram struct {
	// Edges holds nbin+1 bin dividers spanning the analysis range.
	Edges []float64
	// Counts holds the number of in-range samples per bin.
	Counts []int
}

// Bins returns the number of histogram bins.
func (h *Histogram) Bins() int { return len(h.Counts) }

// Width returns the uniform bin width in km.
func (h *Histogram) Width() float64 {
	if len(h.Edges) < 2 {
		return 0
	}
	return h.Edges[1] - h.Edges[0]
}

// Center returns the center height of bin i in km.
func (h *Histogram) Center(i int) float64 {
	return h.Edges[i] + 0.5*h.Width()
}

// BuildHistogram bins the height samples into uniform-width bins across
// [vhMin, vhMax]. The bin count is derived from the requested grouping
// resolution: (vhMax-vhMin)/(vhBox/4), capped at maxHistogramBins. Samples
// outside the analysis range are ignored.
//
// A non-positive derived bin count means the analysis range is too narrow
// for the requested box width; that is a configuration problem the caller
// has to resolve, reported as ErrRangeTooSmall.
func BuildHistogram(heights []float64, vhMin, vhMax, vhBox float64) (*Histogram, error) {
	nbin := int((vhMax - vhMin) / (vhBox * 0.25))
	if nbin > maxHistogramBins {
		nbin = maxHistogramBins
	}
	if nbin <= 0 {
		return nil, fmt.Errorf("%w: %d bins from range [%g, %g] at box width %g",
			ErrRangeTooSmall, nbin, vhMin, vhMax, vhBox)
	}

	edges := make([]float64, nbin+1)
	floats.Span(edges, vhMin, vhMax)

	// stat.Histogram wants sorted samples strictly inside [min, max); the
	// closed upper edge belongs to the last bin.
	in := make([]float64, 0, len(heights))
	atMax := 0
	for _, v := range heights {
		switch {
		case v >= vhMin && v < vhMax:
			in = append(in, v)
		case v == vhMax:
			atMax++
		}
	}
	sort.Float64s(in)

	weights := stat.Histogram(make([]float64, nbin), edges, in, nil)

	counts := make([]int, nbin)
	for i, w := range weights {
		counts[i] = int(w)
	}
	counts[nbin-1] += atMax

	return &Histogram{Edges: edges, Counts: counts}, nil
}
