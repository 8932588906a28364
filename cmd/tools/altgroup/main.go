// Command altgroup groups virtual-height samples from a file into altitude
// bins and prints the resulting partition. Optionally renders the histogram
// and bin edges to a PNG, or records the run in a database.
//
// Input is one height per line (km); blank lines and lines starting with '#'
// are skipped. Comma-separated lines are accepted too.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/halcyon-data/altitude.report/internal/db"
	"github.com/halcyon-data/altitude.report/internal/vheight"
)

var (
	vhMin     = flag.Float64("vh-min", 0, "minimum plausible virtual height (km)")
	vhMax     = flag.Float64("vh-max", 1000, "maximum plausible virtual height (km)")
	vhBox     = flag.Float64("vh-box", 50, "suggested bin width (km)")
	minPoints = flag.Int("min-points", 20, "threshold for a forced absolute-maximum peak")
	maxBins   = flag.Int("max-bins", 30, "output bin capacity")
	plotFile  = flag.String("plot", "", "write a histogram + bin edges PNG to this path")
	dbFile    = flag.String("db", "", "record the run in this sqlite database")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: altgroup [flags] <heights-file>\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	heights, err := readHeights(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read heights: %v", err)
	}

	opts := vheight.Options{
		VhMin:     *vhMin,
		VhMax:     *vhMax,
		VhBox:     *vhBox,
		MinPoints: *minPoints,
		MaxBins:   *maxBins,
	}

	bins, err := vheight.SelectAltGroups(heights, opts)
	if err != nil {
		log.Fatalf("Grouping failed: %v", err)
	}

	fmt.Printf("%d samples -> %d bins\n\n", len(heights), len(bins))
	fmt.Printf("%4s  %10s  %10s  %10s\n", "BIN", "VH_MIN", "VH_MAX", "PEAK")
	for i, b := range bins {
		fmt.Printf("%4d  %10.1f  %10.1f  %10.1f\n", i, b.Min, b.Max, b.Peak)
	}

	if *dbFile != "" {
		database, err := db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer database.Close()

		run := &db.Run{
			VhMin:     opts.VhMin,
			VhMax:     opts.VhMax,
			VhBox:     opts.VhBox,
			MinPoints: opts.MinPoints,
			MaxBins:   opts.MaxBins,
		}
		if err := database.RecordRun(run, heights, bins); err != nil {
			log.Fatalf("Failed to record run: %v", err)
		}
		fmt.Printf("\nrecorded run %s\n", run.ID)
	}

	if *plotFile != "" {
		if err := renderPlot(*plotFile, heights, opts, bins); err != nil {
			log.Fatalf("Failed to render plot: %v", err)
		}
		fmt.Printf("\nwrote %s\n", *plotFile)
	}
}

// readHeights parses one height per line; "-" reads stdin.
func readHeights(path string) ([]float64, error) {
	var r *os.File
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var heights []float64
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, field := range strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		}) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad height %q: %w", lineNo, field, err)
			}
			heights = append(heights, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return heights, nil
}

// renderPlot draws the height histogram as a step line with the final bin
// edges overlaid as vertical lines.
func renderPlot(path string, heights []float64, opts vheight.Options, bins []vheight.Bin) error {
	hist, err := vheight.BuildHistogram(heights, opts.VhMin, opts.VhMax, opts.VhBox)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Virtual Height Groups"
	p.X.Label.Text = "Virtual height (km)"
	p.Y.Label.Text = "Samples"

	maxCount := 0
	for _, c := range hist.Counts {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	// Histogram as a step outline.
	steps := make(plotter.XYs, 0, 2*hist.Bins()+2)
	steps = append(steps, plotter.XY{X: hist.Edges[0], Y: 0})
	for i := 0; i < hist.Bins(); i++ {
		y := float64(hist.Counts[i])
		steps = append(steps,
			plotter.XY{X: hist.Edges[i], Y: y},
			plotter.XY{X: hist.Edges[i+1], Y: y},
		)
	}
	steps = append(steps, plotter.XY{X: hist.Edges[hist.Bins()], Y: 0})

	histLine, err := plotter.NewLine(steps)
	if err != nil {
		return fmt.Errorf("failed to build histogram line: %w", err)
	}
	histLine.Width = vg.Points(1)
	p.Add(histLine)
	p.Legend.Add("histogram", histLine)

	// Bin edges as vertical lines; peaks as dashed lines.
	for i, b := range bins {
		for _, edge := range []float64{b.Min, b.Max} {
			edgeLine, err := plotter.NewLine(plotter.XYs{
				{X: edge, Y: 0},
				{X: edge, Y: float64(maxCount)},
			})
			if err != nil {
				return fmt.Errorf("failed to build edge line: %w", err)
			}
			edgeLine.Width = vg.Points(1)
			edgeLine.Color = color.RGBA{R: 200, A: 255}
			p.Add(edgeLine)
		}

		peakLine, err := plotter.NewLine(plotter.XYs{
			{X: b.Peak, Y: 0},
			{X: b.Peak, Y: float64(maxCount)},
		})
		if err != nil {
			return fmt.Errorf("failed to build peak line: %w", err)
		}
		peakLine.Width = vg.Points(1)
		peakLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		peakLine.Color = color.RGBA{B: 200, A: 255}
		p.Add(peakLine)
		if i == 0 {
			p.Legend.Add("bin edge", peakLine)
		}
	}

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}
