package vheight

import (
	"math"
	"testing"

	"github.com/halcyon-data/altitude.report/internal/leastsq"
	"github.com/halcyon-data/altitude.report/internal/monitoring"
	"gonum.org/v1/gonum/floats"
)

func init() {
	monitoring.SetLogger(nil)
}

// testHistogram builds a Histogram directly from per-bin counts over
// [vhMin, vhMax].
func testHistogram(counts []int, vhMin, vhMax float64) *Histogram {
	edges := make([]float64, len(counts)+1)
	floats.Span(edges, vhMin, vhMax)
	return &Histogram{Edges: edges, Counts: counts}
}

// gaussCounts samples amp*exp(-0.5*((x-mean)/sigma)^2) at the bin centers.
func gaussCounts(nbin int, vhMin, vhMax, amp, mean, sigma float64) []int {
	width := (vhMax - vhMin) / float64(nbin)
	counts := make([]int, nbin)
	for i := range counts {
		x := vhMin + (float64(i)+0.5)*width
		z := (x - mean) / sigma
		counts[i] = int(amp * math.Exp(-0.5*z*z))
	}
	return counts
}

func TestFitGaussianMixture_SingleComponent(t *testing.T) {
	h := testHistogram(gaussCounts(10, 0, 400, 20, 200, 40), 0, 400)
	peaks := DetectPeaks(h.Counts, 1)
	if len(peaks) != 1 {
		t.Fatalf("DetectPeaks found %d peaks, want 1 (counts %v)", len(peaks), h.Counts)
	}

	comps, status := FitGaussianMixture(h, peaks, 100)
	if status <= leastsq.StatusFTol {
		t.Fatalf("status = %v, want an accepted convergence code", status)
	}
	if len(comps) != 1 {
		t.Fatalf("got %d components, want 1", len(comps))
	}

	c := comps[0]
	if math.Abs(c.Mean-200) > 5 {
		t.Errorf("Mean = %g, want ~200", c.Mean)
	}
	if c.Sigma < 30 || c.Sigma > 50 {
		t.Errorf("Sigma = %g, want ~40", c.Sigma)
	}
	if c.Amp < 14 || c.Amp > 26 {
		t.Errorf("Amp = %g, want ~20", c.Amp)
	}
}

func TestFitGaussianMixture_SigmaReportedPositive(t *testing.T) {
	// The sigma parameter only enters the model squared, so the solver may
	// land on a negative value; the component must still report it > 0.
	h := testHistogram(gaussCounts(10, 0, 400, 30, 180, 35), 0, 400)
	peaks := DetectPeaks(h.Counts, 1)

	comps, status := FitGaussianMixture(h, peaks, 100)
	if status <= leastsq.StatusFTol {
		t.Fatalf("status = %v, want an accepted convergence code", status)
	}
	for i, c := range comps {
		if c.Sigma < 0 {
			t.Errorf("component %d Sigma = %g, want >= 0", i, c.Sigma)
		}
	}
}

func TestMixtureResiduals_ZeroSigmaComponent(t *testing.T) {
	// A collapsed component contributes nothing rather than NaN.
	fn := mixtureResiduals([]float64{1, 2, 3}, []float64{5, 5, 5})
	resid := make([]float64, 3)
	fn([]float64{10, 2, 0}, resid)
	for i, r := range resid {
		if math.IsNaN(r) {
			t.Errorf("resid[%d] is NaN", i)
		}
		if r != 5 {
			t.Errorf("resid[%d] = %g, want 5 (model must be zero)", i, r)
		}
	}
}

func TestFitGaussianMixture_MoreParamsThanBins(t *testing.T) {
	// Three components over a 4-bin histogram cannot be fit (9 parameters,
	// 4 residuals); the fitter must report failure, not panic.
	h := testHistogram([]int{5, 1, 4, 2}, 100, 300)
	peaks := []Peak{{0, 5}, {2, 4}, {3, 2}}
	_, status := FitGaussianMixture(h, peaks, 50)
	if status != leastsq.StatusFailed {
		t.Errorf("status = %v, want StatusFailed", status)
	}
}
