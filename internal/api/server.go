// Package api exposes the grouping engine over HTTP: compute altitude bins
// for a set of virtual heights, optionally record the run, and read back
// earlier runs.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/halcyon-data/altitude.report/internal/db"
	"github.com/halcyon-data/altitude.report/internal/vheight"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db       *db.DB
	defaults vheight.Options
}

// NewServer returns a Server backed by database. defaults fill in grouping
// parameters a request leaves unset.
func NewServer(database *db.DB, defaults vheight.Options) *Server {
	return &Server{
		db:       database,
		defaults: defaults,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/groups", s.computeGroups)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.showRunBins)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/debug/charts/groups", s.groupsChart)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// GroupRequest is the body of POST /api/groups. Unset parameters default to
// the server configuration.
type GroupRequest struct {
	Heights   []float64 `json:"heights"`
	VhMin     *float64  `json:"vh_min"`
	VhMax     *float64  `json:"vh_max"`
	VhBox     *float64  `json:"vh_box"`
	MinPoints *int      `json:"min_points"`
	MaxBins   *int      `json:"max_bins"`
	Persist   bool      `json:"persist"`
}

// GroupResponse carries the computed bins. RunID is set only when the run
// was persisted.
type GroupResponse struct {
	RunID string        `json:"run_id,omitempty"`
	Bins  []vheight.Bin `json:"bins"`
	Opts  GroupRespOpts `json:"parameters"`
}

type GroupRespOpts struct {
	VhMin     float64 `json:"vh_min"`
	VhMax     float64 `json:"vh_max"`
	VhBox     float64 `json:"vh_box"`
	MinPoints int     `json:"min_points"`
	MaxBins   int     `json:"max_bins"`
}

// resolveOptions merges the request's parameter overrides onto the server
// defaults.
func (s *Server) resolveOptions(req *GroupRequest) vheight.Options {
	opts := s.defaults
	if req.VhMin != nil {
		opts.VhMin = *req.VhMin
	}
	if req.VhMax != nil {
		opts.VhMax = *req.VhMax
	}
	if req.VhBox != nil {
		opts.VhBox = *req.VhBox
	}
	if req.MinPoints != nil {
		opts.MinPoints = *req.MinPoints
	}
	if req.MaxBins != nil {
		opts.MaxBins = *req.MaxBins
	}
	return opts
}

// groupingStatus maps grouping errors onto HTTP status codes. Parameter and
// capacity problems are unprocessable rather than malformed requests.
func groupingStatus(err error) int {
	switch {
	case errors.Is(err, vheight.ErrNoSamples),
		errors.Is(err, vheight.ErrRangeTooSmall),
		errors.Is(err, vheight.ErrTooManyBins):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) computeGroups(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	opts := s.resolveOptions(&req)
	bins, err := vheight.SelectAltGroups(req.Heights, opts)
	if err != nil {
		s.writeJSONError(w, groupingStatus(err), fmt.Sprintf("Grouping failed: %v", err))
		return
	}

	resp := GroupResponse{
		Bins: bins,
		Opts: GroupRespOpts{
			VhMin:     opts.VhMin,
			VhMax:     opts.VhMax,
			VhBox:     opts.VhBox,
			MinPoints: opts.MinPoints,
			MaxBins:   opts.MaxBins,
		},
	}

	if req.Persist {
		if s.db == nil {
			s.writeJSONError(w, http.StatusServiceUnavailable, "Persistence not configured")
			return
		}
		run := &db.Run{
			VhMin:     opts.VhMin,
			VhMax:     opts.VhMax,
			VhBox:     opts.VhBox,
			MinPoints: opts.MinPoints,
			MaxBins:   opts.MaxBins,
		}
		if err := s.db.RecordRun(run, req.Heights, bins); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to record run: %v", err))
			return
		}
		resp.RunID = run.ID
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write bins")
		return
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Persistence not configured")
		return
	}

	limit := 100 // default value
	if l := r.URL.Query().Get("limit"); l != "" {
		parsedLimit, err := strconv.Atoi(l)
		if err != nil || parsedLimit < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsedLimit
	}

	runs, err := s.db.Runs(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}

	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

// showRunBins serves GET /api/runs/{id}/bins.
func (s *Server) showRunBins(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Persistence not configured")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID, tail, found := strings.Cut(rest, "/")
	if runID == "" || !found || tail != "bins" {
		s.writeJSONError(w, http.StatusNotFound, "Not found")
		return
	}

	bins, err := s.db.RunBins(runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Unknown run %q", runID))
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve bins: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(bins); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write bins")
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	config := map[string]interface{}{
		"vh_min":     s.defaults.VhMin,
		"vh_max":     s.defaults.VhMax,
		"vh_box":     s.defaults.VhBox,
		"min_points": s.defaults.MinPoints,
		"max_bins":   s.defaults.MaxBins,
	}

	if err := json.NewEncoder(w).Encode(config); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
