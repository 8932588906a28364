// Package config loads the grouping parameter defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/halcyon-data/altitude.report/internal/vheight"
)

// DefaultConfigPath is the path to the canonical grouping defaults file.
const DefaultConfigPath = "config/grouping.defaults.json"

// GroupingConfig holds the default parameters applied to grouping requests
// that don't specify their own. The schema matches the parameter overrides of
// the /api/groups endpoint, so the same JSON shape serves both startup
// configuration and per-request tuning. Fields are pointers so a partial
// config file only overrides what it names.
type GroupingConfig struct {
	VhMin     *float64 `json:"vh_min,omitempty"`     // Minimum plausible virtual height (km)
	VhMax     *float64 `json:"vh_max,omitempty"`     // Maximum plausible virtual height (km)
	VhBox     *float64 `json:"vh_box,omitempty"`     // Suggested bin width (km)
	MinPoints *int     `json:"min_points,omitempty"` // Threshold for a forced absolute-maximum peak
	MaxBins   *int     `json:"max_bins,omitempty"`   // Output bin capacity
}

// EmptyGroupingConfig returns a GroupingConfig with all fields set to nil.
// Use LoadGroupingConfig to load actual values from a defaults file.
func EmptyGroupingConfig() *GroupingConfig {
	return &GroupingConfig{}
}

// LoadGroupingConfig loads a GroupingConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file
// size. Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadGroupingConfig(path string) (*GroupingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyGroupingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are internally consistent.
func (c *GroupingConfig) Validate() error {
	if c.VhMin != nil && c.VhMax != nil && *c.VhMax <= *c.VhMin {
		return fmt.Errorf("vh_max (%g) must be greater than vh_min (%g)", *c.VhMax, *c.VhMin)
	}
	if c.VhBox != nil && *c.VhBox <= 0 {
		return fmt.Errorf("vh_box must be positive, got %g", *c.VhBox)
	}
	if c.MinPoints != nil && *c.MinPoints < 0 {
		return fmt.Errorf("min_points must be non-negative, got %d", *c.MinPoints)
	}
	if c.MaxBins != nil && *c.MaxBins <= 0 {
		return fmt.Errorf("max_bins must be positive, got %d", *c.MaxBins)
	}
	return nil
}

// GetVhMin returns the vh_min value or the default.
func (c *GroupingConfig) GetVhMin() float64 {
	if c.VhMin == nil {
		return 0 // default
	}
	return *c.VhMin
}

// GetVhMax returns the vh_max value or the default.
func (c *GroupingConfig) GetVhMax() float64 {
	if c.VhMax == nil {
		return 1000 // default
	}
	return *c.VhMax
}

// GetVhBox returns the vh_box value or the default.
func (c *GroupingConfig) GetVhBox() float64 {
	if c.VhBox == nil {
		return 50 // default
	}
	return *c.VhBox
}

// GetMinPoints returns the min_points value or the default.
func (c *GroupingConfig) GetMinPoints() int {
	if c.MinPoints == nil {
		return 20 // default
	}
	return *c.MinPoints
}

// GetMaxBins returns the max_bins value or the default.
func (c *GroupingConfig) GetMaxBins() int {
	if c.MaxBins == nil {
		return 30 // default
	}
	return *c.MaxBins
}

// Options materializes the configuration into grouping options.
func (c *GroupingConfig) Options() vheight.Options {
	return vheight.Options{
		VhMin:     c.GetVhMin(),
		VhMax:     c.GetVhMax(),
		VhBox:     c.GetVhBox(),
		MinPoints: c.GetMinPoints(),
		MaxBins:   c.GetMaxBins(),
	}
}
