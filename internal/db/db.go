// Package db stores grouping runs and their results in sqlite. Each run
// records the sample heights it was computed from, the parameters used, and
// the resulting altitude bins, so earlier runs can be re-inspected or
// re-plotted later.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/halcyon-data/altitude.report/internal/vheight"
)

type DB struct {
	*sql.DB
}

// OpenDB opens the database at path without touching the schema. Use this
// for migration tooling; normal callers want NewDB.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

// NewDB opens the database at path and brings the schema up to date.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Run is one recorded grouping computation.
type Run struct {
	ID          string    `json:"id"`
	VhMin       float64   `json:"vh_min"`
	VhMax       float64   `json:"vh_max"`
	VhBox       float64   `json:"vh_box"`
	MinPoints   int       `json:"min_points"`
	MaxBins     int       `json:"max_bins"`
	SampleCount int       `json:"sample_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *Run) String() string {
	return fmt.Sprintf(
		"ID: %s, VhMin: %f, VhMax: %f, VhBox: %f, MinPoints: %d, MaxBins: %d, SampleCount: %d",
		r.ID, r.VhMin, r.VhMax, r.VhBox, r.MinPoints, r.MaxBins, r.SampleCount,
	)
}

// RecordRun stores a run together with its input heights and output bins in
// a single transaction. If run.ID is empty a new UUID is assigned.
func (db *DB) RecordRun(run *Run, heights []float64, bins []vheight.Bin) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.SampleCount = len(heights)

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, vh_min, vh_max, vh_box, min_points, max_bins, sample_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.VhMin, run.VhMax, run.VhBox, run.MinPoints, run.MaxBins, run.SampleCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	sampleStmt, err := tx.Prepare("INSERT INTO samples (run_id, height_km) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer sampleStmt.Close()
	for _, h := range heights {
		if _, err := sampleStmt.Exec(run.ID, h); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	binStmt, err := tx.Prepare(
		"INSERT INTO bins (run_id, bin_index, vh_min, vh_max, vh_peak) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer binStmt.Close()
	for i, b := range bins {
		if _, err := binStmt.Exec(run.ID, i, b.Min, b.Max, b.Peak); err != nil {
			return fmt.Errorf("failed to insert bin %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Run returns one run by ID, or sql.ErrNoRows if it does not exist.
func (db *DB) Run(runID string) (*Run, error) {
	var r Run
	err := db.QueryRow(
		`SELECT id, vh_min, vh_max, vh_box, min_points, max_bins, sample_count, created_at
		 FROM runs WHERE id = ?`, runID).Scan(
		&r.ID, &r.VhMin, &r.VhMax, &r.VhBox,
		&r.MinPoints, &r.MaxBins, &r.SampleCount, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Runs returns the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT id, vh_min, vh_max, vh_box, min_points, max_bins, sample_count, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.VhMin, &r.VhMax, &r.VhBox,
			&r.MinPoints, &r.MaxBins, &r.SampleCount, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// RunBins returns the bins of one run in bin order. A run that exists but
// produced no bins returns an empty slice; an unknown run returns
// sql.ErrNoRows.
func (db *DB) RunBins(runID string) ([]vheight.Bin, error) {
	var exists int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, sql.ErrNoRows
	}

	rows, err := db.Query(
		"SELECT vh_min, vh_max, vh_peak FROM bins WHERE run_id = ? ORDER BY bin_index", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bins := []vheight.Bin{}
	for rows.Next() {
		var b vheight.Bin
		if err := rows.Scan(&b.Min, &b.Max, &b.Peak); err != nil {
			return nil, err
		}
		bins = append(bins, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bins, nil
}

// RunHeights returns the sample heights recorded for one run.
func (db *DB) RunHeights(runID string) ([]float64, error) {
	rows, err := db.Query("SELECT height_km FROM samples WHERE run_id = ? ORDER BY rowid", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var heights []float64
	for rows.Next() {
		var h float64
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		heights = append(heights, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return heights, nil
}
