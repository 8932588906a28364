// Command gen-vhlog generates synthetic virtual-height sample files for
// exercising the grouping pipeline: a single propagation cluster, two
// separated clusters, or structureless uniform noise.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
)

var (
	output = flag.String("o", "sample.vhlog", "output path")
	count  = flag.Int("n", 500, "number of samples")
	shape  = flag.String("shape", "bimodal", "sample distribution: single, bimodal, flat")
	seed   = flag.Int64("seed", 1, "random seed")
	vhMin  = flag.Float64("vh-min", 0, "lower edge of the flat distribution (km)")
	vhMax  = flag.Float64("vh-max", 1000, "upper edge of the flat distribution (km)")
)

func main() {
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	var sample func() float64
	switch *shape {
	case "single":
		// One F-region-like population.
		sample = func() float64 { return 300 + 40*rng.NormFloat64() }
	case "bimodal":
		// E-region and F-region populations, 2:3 mix.
		sample = func() float64 {
			if rng.Float64() < 0.4 {
				return 110 + 15*rng.NormFloat64()
			}
			return 320 + 45*rng.NormFloat64()
		}
	case "flat":
		sample = func() float64 { return *vhMin + (*vhMax-*vhMin)*rng.Float64() }
	default:
		log.Fatalf("unknown shape %q (want single, bimodal or flat)", *shape)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# synthetic virtual heights: shape=%s n=%d seed=%d\n", *shape, *count, *seed)
	written := 0
	for written < *count {
		v := sample()
		if v < *vhMin || v > *vhMax {
			continue
		}
		fmt.Fprintf(w, "%.2f\n", v)
		written++
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("failed to write output: %v", err)
	}
	log.Printf("✓ Created: %s (%d samples)", *output, written)
}
