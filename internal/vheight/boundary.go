package vheight

import (
	"fmt"
	"math"
)

// Boundary reconciliation: turn the fitted candidate intervals, which may
// overlap each other or leave parts of the observed height range uncovered,
// into one ordered, gap-free partition.
//
// Conflicts are settled by priority. A candidate's priority is its original
// index in the candidate list; synthetic filler bins get priorities past the
// end of that list. Smaller values are better protected, so filler bins
// always yield ground to fitted bins and never displace them.

// boundBin is one accepted output interval plus the priority that defends it
// against later candidates.
type boundBin struct {
	Bin
	priority int
}

// binList is the growable output sequence the reconciler builds. Push
// enforces the bin-count capacity; pop supports the retraction step of the
// overlap rule.
type binList struct {
	bins    []boundBin
	maxBins int
}

func (l *binList) push(b boundBin) error {
	if len(l.bins) >= l.maxBins {
		return fmt.Errorf("%w: boundary reconciliation exceeded %d height bins",
			ErrTooManyBins, l.maxBins)
	}
	l.bins = append(l.bins, b)
	return nil
}

func (l *binList) pop()            { l.bins = l.bins[:len(l.bins)-1] }
func (l *binList) len() int        { return len(l.bins) }
func (l *binList) last() *boundBin { return &l.bins[len(l.bins)-1] }

// reconcileBoundaries merges the candidate bins into a partition of the
// observed height range [localMin, localMax], clipped to the analysis range
// [vhMin, vhMax]. Candidates are processed in ascending order of lower edge;
// the original candidate order supplies the conflict priorities.
func reconcileBoundaries(cands []candidate, localMin, localMax, vhMin, vhMax, vhBox float64, maxBins int) ([]Bin, error) {
	n := len(cands)
	if n == 0 {
		return nil, nil
	}

	lows := make([]float64, n)
	for i, c := range cands {
		lows[i] = c.lo
	}
	order := ArgSortStable(lows)

	out := &binList{maxBins: maxBins}

	// synthetic returns the priority for the next filler bin: past every
	// candidate index, so fillers lose all conflicts against fitted bins.
	synthetic := func() int { return out.len() + n }

	// Pad below: samples under the lowest candidate get filler bins of
	// roughly the suggested width. A sub-box gap instead stretches the
	// lowest candidate down to the observed minimum.
	if first := &cands[order[0]]; first.lo > localMin {
		vnum := int((first.lo - localMin) / vhBox)
		if vnum == 0 {
			first.lo = math.Floor(localMin)
			if first.lo < vhMin {
				first.lo = vhMin
			}
		} else {
			// Each filler starts where the previous one ended so the
			// rounding of one edge cannot open a gap or an overlap.
			vspan := (first.lo - localMin) / float64(vnum)
			lo := math.Floor(localMin)
			if lo < vhMin {
				lo = vhMin
			}
			for i := 0; i < vnum; i++ {
				err := out.push(boundBin{
					Bin:      Bin{Min: lo, Max: math.Ceil(lo + vspan), Peak: lo + 0.5*vspan},
					priority: synthetic(),
				})
				if err != nil {
					return nil, err
				}
				lo = out.last().Max
			}
		}
	}

	for _, idx := range order {
		c := cands[idx]

		if out.len() == 0 {
			// First accepted bin, rounded outward to integer km edges.
			if c.lo < c.hi {
				lo := math.Floor(c.lo)
				if lo < vhMin {
					lo = vhMin
				}
				if err := out.push(boundBin{Bin: Bin{Min: lo, Max: math.Ceil(c.hi), Peak: c.peak}, priority: idx}); err != nil {
					return nil, err
				}
			}
			continue
		}

		last := out.last()
		switch {
		case last.Max >= c.peak || c.lo <= last.Peak:
			// Significant overlap: one interval reaches past the other's
			// fitted center. The less protected side yields.
			if last.priority < idx {
				// The accepted bin stands; the newcomer keeps only the
				// region past it and is demoted to filler priority.
				lo, hi := last.Max, math.Ceil(c.hi)
				if lo < hi {
					err := out.push(boundBin{
						Bin:      Bin{Min: lo, Max: hi, Peak: lo + 0.5*(hi-lo)},
						priority: synthetic(),
					})
					if err != nil {
						return nil, err
					}
				}
			} else {
				// The newcomer wins: retract accepted bins it covers
				// entirely, pull the survivor's upper edge down to meet
				// it, then accept it.
				for out.len() > 0 && c.lo <= out.last().Min {
					out.pop()
				}
				lo := c.lo
				if out.len() > 0 {
					out.last().Max = c.lo
				} else {
					lo = math.Floor(c.lo)
					if lo < vhMin {
						lo = vhMin
					}
				}
				if hi := math.Ceil(c.hi); lo < hi {
					if err := out.push(boundBin{Bin: Bin{Min: lo, Max: hi, Peak: c.peak}, priority: idx}); err != nil {
						return nil, err
					}
				}
			}

		case last.Max < c.lo:
			// Gap: bridge it with filler bins sized so a whole number of
			// roughly box-width bins spans it exactly. A sub-box gap just
			// stretches the previous upper edge forward.
			vnum := int((c.lo - last.Max) / vhBox)
			if vnum == 0 {
				last.Max = c.lo
			} else {
				vspan := (c.lo - last.Max) / float64(vnum)
				for i := 0; i < vnum; i++ {
					lo := out.last().Max
					err := out.push(boundBin{
						Bin:      Bin{Min: lo, Max: math.Ceil(lo + vspan), Peak: lo + 0.5*vspan},
						priority: synthetic(),
					})
					if err != nil {
						return nil, err
					}
				}
			}
			// Accept the candidate flush against the covered boundary.
			lo, hi := out.last().Max, math.Ceil(c.hi)
			if lo < hi {
				if err := out.push(boundBin{Bin: Bin{Min: lo, Max: hi, Peak: c.peak}, priority: idx}); err != nil {
					return nil, err
				}
			}

		default:
			// Adjacent or trivially overlapping: the previous upper edge
			// sits between the newcomer's lower edge and its center.
			// Snapping the newcomer onto that edge keeps the partition
			// gap-free without moving a fitted boundary.
			lo, hi := last.Max, math.Ceil(c.hi)
			if lo < hi {
				if err := out.push(boundBin{Bin: Bin{Min: lo, Max: hi, Peak: c.peak}, priority: idx}); err != nil {
					return nil, err
				}
			}
		}
	}

	// Pad above: samples beyond the highest accepted edge get filler bins
	// up to the observed maximum, clipped to the analysis range.
	if out.len() > 0 && out.last().Max < localMax {
		vnum := int((localMax - out.last().Max) / vhBox)
		if vnum == 0 {
			hi := math.Ceil(localMax)
			if hi > vhMax {
				hi = vhMax
			}
			if hi > out.last().Max {
				out.last().Max = hi
			}
		} else {
			vspan := (localMax - out.last().Max) / float64(vnum)
			for i := 0; i < vnum && out.last().Max < vhMax; i++ {
				lo := out.last().Max
				top := lo + vspan
				if top > vhMax {
					top = vhMax
				}
				hi := math.Ceil(top)
				if hi > vhMax {
					hi = vhMax
				}
				err := out.push(boundBin{
					Bin:      Bin{Min: lo, Max: hi, Peak: lo + 0.5*(hi-lo)},
					priority: synthetic(),
				})
				if err != nil {
					return nil, err
				}
			}
		}
	}

	bins := make([]Bin, out.len())
	for i, b := range out.bins {
		bins[i] = b.Bin
	}
	return bins, nil
}
