// Package elevation inverts interferometer phase measurements into radar
// echo elevation angles.
//
// The inversion depends on site constants (interferometer offsets, beam
// geometry, electrical path difference) that never change within a
// processing run. Those are precomputed once into a Geometry owned by the
// caller, instead of being cached behind the inversion function.
package elevation

import "math"

// speedOfLight in m/s.
const speedOfLight = 2.99792458e8

// Lobe selects which field of view an echo is resolved into.
type Lobe int

const (
	// FrontLobe resolves echoes into the front field of view.
	FrontLobe Lobe = 1
	// BackLobe resolves echoes into the rear field of view.
	BackLobe Lobe = -1
)

// Geometry holds the precomputed site constants for one radar.
type Geometry struct {
	x, y, z float64 // Interferometer offsets from the main array in m
	sgn     float64 // Sign of the Y offset
	boff    float64 // Beam offset to the edge of the field of view
	beamSep float64 // Beam separation in rad
	tdiff   float64 // Electrical path time difference in microseconds
	yz      float64 // y*y + z*z
}

// NewGeometry precomputes the inversion constants for a radar site.
// interfer holds the interferometer offsets in meters, maxBeam the number of
// beams, beamSepDeg the angular beam separation in degrees and tdiffUs the
// electrical path time difference in microseconds.
func NewGeometry(interfer [3]float64, maxBeam int, beamSepDeg, tdiffUs float64) *Geometry {
	g := &Geometry{
		x:       interfer[0],
		y:       interfer[1],
		z:       interfer[2],
		sgn:     1,
		boff:    float64(maxBeam)/2.0 - 0.5,
		beamSep: beamSepDeg * math.Pi / 180.0,
		tdiff:   tdiffUs,
	}
	if g.y < 0 {
		g.sgn = -1
	}
	g.yz = g.y*g.y + g.z*g.z
	return g
}

// Angle computes the elevation angle in degrees for an observed phase lag
// psiObs (rad) on the given beam at transmit frequency tfreqKHz.
//
// The observed phase is only known modulo 2π; the inversion maps it onto the
// correct extended phase using the maximum geometrically possible phase
// difference, assuming negative elevation angles are unphysical.
func (g *Geometry) Angle(lobe Lobe, beam int, tfreqKHz, psiObs float64) float64 {
	phi0 := g.beamSep * (float64(beam) - g.boff)
	cp0 := math.Cos(phi0)
	sp0 := math.Sin(phi0)

	// Phase delay due to the electrical path difference. A shorter cable
	// run to the interferometer makes tdiff negative.
	psiEle := -2.0 * math.Pi * tfreqKHz * g.tdiff * 1.0e-3

	// Elevation angle where the phase difference peaks (wave vector
	// anti-parallel to the array baseline). Angles in [-a0, 0] would map
	// to negative elevations; clamping a0 maps them just under the
	// maximum instead.
	a0 := math.Asin(g.sgn * g.z * cp0 / math.Sqrt(g.yz))
	if a0 < 0 {
		a0 = 0
	}
	ca0 := math.Cos(a0)
	sa0 := math.Sin(a0)

	k := 2.0 * math.Pi * tfreqKHz * 1.0e3 / speedOfLight
	psiMax := psiEle + k*(g.x*sp0+g.y*math.Sqrt(ca0*ca0-sp0*sp0)+g.z*sa0)

	// Number of 2π wraps onto the correct region; the back lobe flips the
	// sign of the observed difference.
	dpsi := float64(lobe) * (psiMax - psiObs)
	var n2pi float64
	if g.y > 0 {
		n2pi = math.Floor(dpsi / (2.0 * math.Pi))
	} else {
		n2pi = math.Ceil(dpsi / (2.0 * math.Pi))
	}
	psi := psiObs + n2pi*2.0*math.Pi

	e := (psi/(2.0*math.Pi*tfreqKHz*1.0e3)+g.tdiff*1.0e-6)*speedOfLight - g.x*sp0
	alpha := math.Asin((e*g.z + math.Sqrt(e*e*g.z*g.z-g.yz*(e*e-g.y*g.y*cp0*cp0))) / g.yz)

	return alpha * 180.0 / math.Pi
}
