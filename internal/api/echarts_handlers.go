package api

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/halcyon-data/altitude.report/internal/vheight"
)

// groupsChart renders a quick HTML view of one recorded run using go-echarts:
// the height histogram the grouping saw, and the bins it produced. This is a
// debugging-only endpoint (no auth) to eyeball grouping output without
// re-running anything.
// Query params:
//   - run_id (required)
func (s *Server) groupsChart(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Persistence not configured")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run_id' parameter")
		return
	}

	run, err := s.db.Run(runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Unknown run %q", runID))
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load run: %v", err))
		return
	}

	heights, err := s.db.RunHeights(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load samples: %v", err))
		return
	}
	bins, err := s.db.RunBins(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load bins: %v", err))
		return
	}

	page := components.NewPage()

	if hist, err := vheight.BuildHistogram(heights, run.VhMin, run.VhMax, run.VhBox); err == nil {
		x := make([]string, hist.Bins())
		y := make([]opts.BarData, hist.Bins())
		for i := 0; i < hist.Bins(); i++ {
			x[i] = fmt.Sprintf("%.0f", hist.Center(i))
			y[i] = opts.BarData{Value: hist.Counts[i]}
		}

		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
			charts.WithTitleOpts(opts.Title{Title: "Height Histogram", Subtitle: fmt.Sprintf("run=%s samples=%d", runID, len(heights))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Virtual height (km)"}),
			charts.WithYAxisOpts(opts.YAxis{Name: "Samples"}),
		)
		bar.SetXAxis(x).AddSeries("samples", y)
		page.AddCharts(bar)
	}

	pts := make([]opts.ScatterData, 0, 3*len(bins))
	for i, b := range bins {
		pts = append(pts,
			opts.ScatterData{Value: []interface{}{b.Min, i}, Symbol: "triangle"},
			opts.ScatterData{Value: []interface{}{b.Peak, i}, Symbol: "circle", SymbolSize: 12},
			opts.ScatterData{Value: []interface{}{b.Max, i}, Symbol: "triangle"},
		)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Altitude Bins", Subtitle: fmt.Sprintf("run=%s bins=%d", runID, len(bins))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: run.VhMin, Max: run.VhMax, Name: "Virtual height (km)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Bin"}),
	)
	scatter.AddSeries("bins", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	page.AddCharts(scatter)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
