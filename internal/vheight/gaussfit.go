package vheight

import (
	"math"

	"github.com/halcyon-data/altitude.report/internal/leastsq"
	"github.com/halcyon-data/altitude.report/internal/monitoring"
)

// Fixed solver settings for the mixture fit. The histogram never has more
// than ten points, so the evaluation budget is generous; exceeding it is a
// normal "no usable fit" outcome, not an error.
const (
	fitTolerance     = 1e-10
	fitMaxIterations = 200
	fitMaxFuncEvals  = 1600
)

// GaussComponent is one fitted term of the height-distribution mixture.
type GaussComponent struct {
	Amp   float64 // Peak amplitude in sample counts
	Mean  float64 // Center height in km
	Sigma float64 // Spread in km
}

// mixtureResiduals builds the residual function for a sum-of-Gaussians model
// over the histogram points (x, y) with unit uncertainty per point. The
// parameter vector is packed [amp0, mean0, sigma0, amp1, ...].
func mixtureResiduals(x, y []float64) leastsq.ResidualFunc {
	return func(p []float64, resid []float64) {
		for i := range x {
			model := 0.0
			for j := 0; j+2 < len(p); j += 3 {
				sig := p[j+2]
				if sig == 0 {
					continue
				}
				z := (x[i] - p[j+1]) / sig
				model += p[j] * math.Exp(-0.5*z*z)
			}
			resid[i] = y[i] - model
		}
	}
}

// FitGaussianMixture fits one Gaussian component per detected peak to the
// histogram. Each component starts at the peak's count and bin center with a
// spread of half the suggested box width.
//
// The returned status follows the leastsq convention: callers must reject
// StatusFailed and StatusFTol and may accept everything stronger, including
// the iteration- and evaluation-cap outcomes.
func FitGaussianMixture(h *Histogram, peaks []Peak, vhBox float64) ([]GaussComponent, leastsq.Status) {
	nbin := h.Bins()
	x := make([]float64, nbin)
	y := make([]float64, nbin)
	for i := 0; i < nbin; i++ {
		x[i] = h.Center(i)
		y[i] = float64(h.Counts[i])
	}

	params := make([]float64, 0, len(peaks)*3)
	for _, p := range peaks {
		params = append(params, float64(p.Count), h.Center(p.Bin), 0.5*vhBox)
	}

	cfg := leastsq.Config{
		FTol:          fitTolerance,
		XTol:          fitTolerance,
		GTol:          fitTolerance,
		StepFactor:    100.0,
		MaxIterations: fitMaxIterations,
		MaxFuncEvals:  fitMaxFuncEvals,
	}

	res, err := leastsq.Solve(mixtureResiduals(x, y), params, nbin, cfg)
	if err != nil {
		// More parameters than histogram points; nothing to fit.
		monitoring.Logf("vheight: mixture fit skipped: %v", err)
		return nil, leastsq.StatusFailed
	}

	monitoring.Logf("vheight: mixture fit %d components status=%v norm=%.4g iters=%d",
		len(peaks), res.Status, res.BestNorm, res.Iterations)

	comps := make([]GaussComponent, len(peaks))
	for j := range comps {
		comps[j] = GaussComponent{
			Amp:   res.Params[j*3],
			Mean:  res.Params[j*3+1],
			Sigma: math.Abs(res.Params[j*3+2]),
		}
	}
	return comps, res.Status
}
