package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights defines the calibrated parameters of the engagement score and the
// blend stage.
type Weights struct {
	Like                 float64 `json:"like"`                   // Weight per like (default: 1.0)
	Popularity           float64 `json:"popularity"`             // Weight for log-scaled author follower count (default: 0.5)
	Freshness            float64 `json:"freshness"`              // Weight for the linear recency decay (default: 3.0)
	Randomness           float64 `json:"randomness"`             // Weight for the uniform random term (default: 1.0)
	FreshnessWindowHours float64 `json:"freshness_window_hours"` // Decay window; older posts contribute 0 (default: 48)
	TopSliceFraction     float64 `json:"top_slice_fraction"`     // Fraction of the pool kept verbatim before shuffling (default: 0.3)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configuration
}

// DefaultWeights returns the default scoring weight configuration.
//
// Score formula per candidate:
//
//	score = likes*1.0 + ln(followers+1)*0.5 + freshness*3.0 + uniform(0,1)*1.0
//
// The popularity term is logarithmic so high-follower authors don't dominate
// purely on reach. The random term is bounded so it perturbs ordering among
// close-scoring candidates without overriding a large engagement gap.
func DefaultWeights() *Weights {
	return &Weights{
		Like:                 1.0,
		Popularity:           0.5,
		Freshness:            3.0,
		Randomness:           1.0,
		FreshnessWindowHours: 48,
		TopSliceFraction:     0.3,
	}
}

// LoadCalibration loads scoring weights from a JSON calibration file.
// If the file doesn't exist or can't be read, returns default weights with an
// error. Partial configurations are merged with defaults for graceful
// degradation.
func LoadCalibration(filePath string) (*Weights, error) {
	// Return defaults if no file path provided
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with base weights.
// Only non-zero values from the override are applied, which allows partial
// overrides in the calibration file.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	// Guard against nil base to avoid panics; fall back to defaults.
	if base == nil {
		return DefaultWeights()
	}

	if override == nil {
		result := *base
		return &result
	}

	result := *base // Copy base

	if override.Like != 0 {
		result.Like = override.Like
	}
	if override.Popularity != 0 {
		result.Popularity = override.Popularity
	}
	if override.Freshness != 0 {
		result.Freshness = override.Freshness
	}
	if override.Randomness != 0 {
		result.Randomness = override.Randomness
	}
	if override.FreshnessWindowHours != 0 {
		result.FreshnessWindowHours = override.FreshnessWindowHours
	}
	if override.TopSliceFraction != 0 {
		result.TopSliceFraction = override.TopSliceFraction
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.Like != defaults.Like {
		overrides = append(overrides, fmt.Sprintf("like: %.2f -> %.2f", defaults.Like, loaded.Like))
	}
	if loaded.Popularity != defaults.Popularity {
		overrides = append(overrides, fmt.Sprintf("popularity: %.2f -> %.2f", defaults.Popularity, loaded.Popularity))
	}
	if loaded.Freshness != defaults.Freshness {
		overrides = append(overrides, fmt.Sprintf("freshness: %.2f -> %.2f", defaults.Freshness, loaded.Freshness))
	}
	if loaded.Randomness != defaults.Randomness {
		overrides = append(overrides, fmt.Sprintf("randomness: %.2f -> %.2f", defaults.Randomness, loaded.Randomness))
	}
	if loaded.FreshnessWindowHours != defaults.FreshnessWindowHours {
		overrides = append(overrides, fmt.Sprintf("freshness_window_hours: %.0f -> %.0f",
			defaults.FreshnessWindowHours, loaded.FreshnessWindowHours))
	}
	if loaded.TopSliceFraction != defaults.TopSliceFraction {
		overrides = append(overrides, fmt.Sprintf("top_slice_fraction: %.2f -> %.2f",
			defaults.TopSliceFraction, loaded.TopSliceFraction))
	}

	if len(overrides) > 0 {
		slog.Info("loaded feed calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded feed calibration (using all defaults)")
	}
}
