// Package leastsq implements a Levenberg–Marquardt nonlinear least-squares
// minimizer over dense residual vectors. It exists to fit small parametric
// models (Gaussian mixtures, calibration curves) to binned observation data.
//
// The contract follows the classic MINPACK lmdif conventions: the caller
// supplies a residual function, an initial parameter vector and a Config of
// tolerances; the solver reports one of several convergence flavors as a
// Status code. Callers that need a robust fit conventionally reject
// StatusFTol (the chi-square-only test, which can fire on a plateau far from
// a minimum) and accept any stronger code.
package leastsq

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ResidualFunc evaluates the weighted residuals for a parameter vector,
// writing one value per data point into resid. len(resid) is fixed across
// calls and must not be changed.
type ResidualFunc func(params []float64, resid []float64)

// Status describes how the minimizer terminated.
type Status int

const (
	// StatusFailed indicates a numerical failure (singular normal matrix
	// that damping could not repair, or non-finite residuals).
	StatusFailed Status = 0
	// StatusFTol indicates the relative chi-square reduction dropped below
	// FTol without any parameter-space convergence. Historically the least
	// trustworthy outcome; callers typically treat it as non-convergence.
	StatusFTol Status = 1
	// StatusXTol indicates the relative parameter step dropped below XTol.
	StatusXTol Status = 2
	// StatusBoth indicates both the FTol and XTol tests were satisfied.
	StatusBoth Status = 3
	// StatusGTol indicates the gradient is orthogonal to the residuals to
	// within GTol.
	StatusGTol Status = 4
	// StatusMaxIterations indicates the iteration cap was reached. The
	// parameters hold the best point found so far.
	StatusMaxIterations Status = 5
	// StatusMaxFuncEvals indicates the function-evaluation cap was reached.
	StatusMaxFuncEvals Status = 6
)

func (s Status) String() string {
	switch s {
	case StatusFailed:
		return "failed"
	case StatusFTol:
		return "ftol"
	case StatusXTol:
		return "xtol"
	case StatusBoth:
		return "ftol+xtol"
	case StatusGTol:
		return "gtol"
	case StatusMaxIterations:
		return "max iterations"
	case StatusMaxFuncEvals:
		return "max function evaluations"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Config holds the solver tolerances and iteration caps.
type Config struct {
	FTol          float64 // Relative chi-square reduction tolerance
	XTol          float64 // Relative parameter step tolerance
	GTol          float64 // Gradient orthogonality tolerance
	StepFactor    float64 // Initial damping scale (MINPACK "factor")
	MaxIterations int     // Outer iteration cap
	MaxFuncEvals  int     // Residual evaluation cap
}

// DefaultConfig returns the MINPACK-flavored defaults.
func DefaultConfig() Config {
	return Config{
		FTol:          1e-10,
		XTol:          1e-10,
		GTol:          1e-10,
		StepFactor:    100.0,
		MaxIterations: 200,
		MaxFuncEvals:  0, // 0 means no cap
	}
}

// Result reports the terminal state of a Solve call.
type Result struct {
	Status     Status
	Params     []float64 // Best parameter vector found
	BestNorm   float64   // Sum of squared residuals at Params
	Iterations int
	FuncEvals  int
}

var errBadDimensions = errors.New("leastsq: need at least as many residuals as parameters")

// Solve minimizes the sum of squared residuals produced by fn, starting from
// params. nresid is the number of residual entries fn writes. The params
// slice is not mutated; the fitted vector is returned in Result.Params.
//
// Solve only returns a non-nil error for malformed input (dimension
// mismatch). All numerical outcomes, including failure to converge, are
// reported through Result.Status so callers can apply their own acceptance
// policy.
func Solve(fn ResidualFunc, params []float64, nresid int, cfg Config) (Result, error) {
	npar := len(params)
	res := Result{Status: StatusFailed}
	if npar == 0 || nresid < npar {
		return res, errBadDimensions
	}

	x := make([]float64, npar)
	copy(x, params)

	r := make([]float64, nresid)
	rTrial := make([]float64, nresid)
	evals := 0

	maxFev := cfg.MaxFuncEvals
	if maxFev <= 0 {
		maxFev = math.MaxInt
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 200
	}

	fn(x, r)
	evals++
	norm := sumSquares(r)
	if !isFinite(norm) {
		return res, nil
	}

	jac := mat.NewDense(nresid, npar, nil)
	grad := make([]float64, npar)
	ata := mat.NewSymDense(npar, nil)
	damped := mat.NewSymDense(npar, nil)
	step := make([]float64, npar)
	trial := make([]float64, npar)

	// Initial damping, scaled down from the MINPACK step factor so the
	// first iterations behave close to Gauss-Newton on well-posed problems.
	lambda := 1.0
	if cfg.StepFactor > 0 {
		lambda = 1.0 / cfg.StepFactor
	}

	finish := func(status Status, iters int) (Result, error) {
		res.Status = status
		res.Params = x
		res.BestNorm = norm
		res.Iterations = iters
		res.FuncEvals = evals
		return res, nil
	}

	for iter := 1; iter <= maxIter; iter++ {
		numJacobian(fn, x, r, jac, rTrial)
		evals += npar

		// grad = Jᵀ r and ata = Jᵀ J.
		for j := 0; j < npar; j++ {
			g := 0.0
			for i := 0; i < nresid; i++ {
				g += jac.At(i, j) * r[i]
			}
			grad[j] = g
			for k := j; k < npar; k++ {
				s := 0.0
				for i := 0; i < nresid; i++ {
					s += jac.At(i, j) * jac.At(i, k)
				}
				ata.SetSym(j, k, s)
			}
		}

		if gradConverged(grad, x, norm, cfg.GTol) {
			return finish(StatusGTol, iter)
		}

		// Inner damping loop: retry with stronger damping until the step
		// reduces the residual norm or the damping saturates.
		accepted := false
		var trialNorm float64
		for {
			for j := 0; j < npar; j++ {
				for k := j; k < npar; k++ {
					v := ata.At(j, k)
					if j == k {
						d := ata.At(j, j)
						if d == 0 {
							d = 1
						}
						v += lambda * d
					}
					damped.SetSym(j, k, v)
				}
			}

			if solveStep(damped, grad, step) {
				for j := 0; j < npar; j++ {
					trial[j] = x[j] - step[j]
				}
				fn(trial, rTrial)
				evals++
				trialNorm = sumSquares(rTrial)
				if isFinite(trialNorm) && trialNorm < norm {
					accepted = true
				}
			}
			if accepted {
				lambda *= 0.1
				if lambda < 1e-12 {
					lambda = 1e-12
				}
				break
			}

			lambda *= 10
			if lambda > 1e12 {
				break
			}
			if evals >= maxFev {
				return finish(StatusMaxFuncEvals, iter)
			}
		}

		if !accepted {
			// Damping saturated without improvement: the current point is
			// a (possibly flat) minimum of the quadratic model. Report by
			// the chi-square test only.
			return finish(StatusFTol, iter)
		}

		ftolOK := norm-trialNorm <= cfg.FTol*norm
		xtolOK := stepConverged(step, trial, cfg.XTol)

		copy(x, trial)
		copy(r, rTrial)
		norm = trialNorm

		switch {
		case ftolOK && xtolOK:
			return finish(StatusBoth, iter)
		case xtolOK:
			return finish(StatusXTol, iter)
		case ftolOK:
			return finish(StatusFTol, iter)
		}
		if evals >= maxFev {
			return finish(StatusMaxFuncEvals, iter)
		}
	}

	return finish(StatusMaxIterations, maxIter)
}

// numJacobian fills jac with forward-difference partial derivatives of fn
// around x, given the residuals r already evaluated at x. scratch receives
// perturbed residuals and must have the same length as r.
func numJacobian(fn ResidualFunc, x, r []float64, jac *mat.Dense, scratch []float64) {
	const sqrtEps = 1.4901161193847656e-08 // sqrt of float64 machine epsilon
	nresid, npar := jac.Dims()
	for j := 0; j < npar; j++ {
		h := sqrtEps * math.Abs(x[j])
		if h == 0 {
			h = sqrtEps
		}
		saved := x[j]
		x[j] = saved + h
		fn(x, scratch)
		x[j] = saved
		inv := 1.0 / h
		for i := 0; i < nresid; i++ {
			jac.Set(i, j, (scratch[i]-r[i])*inv)
		}
	}
}

// solveStep solves damped·step = grad, reporting false when the matrix is
// not positive definite.
func solveStep(damped *mat.SymDense, grad, step []float64) bool {
	var chol mat.Cholesky
	if !chol.Factorize(damped) {
		return false
	}
	g := mat.NewVecDense(len(grad), grad)
	s := mat.NewVecDense(len(step), step)
	if err := chol.SolveVecTo(s, g); err != nil {
		return false
	}
	return true
}

func gradConverged(grad, x []float64, norm, gtol float64) bool {
	if gtol <= 0 {
		return false
	}
	if norm == 0 {
		return true
	}
	for j := range grad {
		scale := math.Abs(x[j])
		if scale == 0 {
			scale = 1
		}
		if math.Abs(grad[j])*scale > gtol*norm {
			return false
		}
	}
	return true
}

func stepConverged(step, x []float64, xtol float64) bool {
	if xtol <= 0 {
		return false
	}
	for j := range step {
		scale := math.Abs(x[j])
		if scale == 0 {
			scale = 1
		}
		if math.Abs(step[j]) > xtol*scale {
			return false
		}
	}
	return true
}

func sumSquares(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
