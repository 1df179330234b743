// Package config provides JSON-based tracker configuration with defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds all tunable parameters for the tracking pipeline.
type Config struct {
	Matching  MatchingConfig  `json:"matching"`
	Quality   QualityConfig   `json:"quality"`
	Estimator EstimatorConfig `json:"estimator"`
	Smoother  SmootherConfig  `json:"smoother"`
	Adaptive  AdaptiveConfig  `json:"adaptive"`
	Pipeline  PipelineConfig  `json:"pipeline"`
}

// MatchingConfig holds parameters for correspondence filtering.
type MatchingConfig struct {
	RatioThreshold  float64 `json:"ratio_threshold"`  // Lowe's ratio: accept if d1 <= d2 * ratio
	StrongThreshold float64 `json:"strong_threshold"` // Stricter ratio counted toward the quality score
}

// QualityConfig holds parameters for the rolling match-quality tracker.
type QualityConfig struct {
	HistorySize  int     `json:"history_size"`  // Number of recent frames averaged
	LowThreshold float64 `json:"low_threshold"` // Average quality at or below this shows the indicator fully
	FadeRange    float64 `json:"fade_range"`    // Quality span over which the indicator fades out
}

// EstimatorConfig holds parameters for robust homography estimation.
type EstimatorConfig struct {
	MinMatches       int     `json:"min_matches"`        // Minimum correspondences before solving
	MinAcceptQuality float64 `json:"min_accept_quality"` // Minimum rolling average quality before solving
	MinDeterminant   float64 `json:"min_determinant"`    // Reject solutions with |det| below this
	MaxCondition     float64 `json:"max_condition"`      // Reject solutions with condition number above this

	// RANSAC parameters passed to the solver.
	ReprojThreshold float64 `json:"reproj_threshold"` // Max reprojection error for an inlier (px)
	MaxIterations   int     `json:"max_iterations"`
	Confidence      float64 `json:"confidence"`
}

// SmootherConfig holds parameters for the temporal transform filter.
type SmootherConfig struct {
	OutlierThreshold float64 `json:"outlier_threshold"` // Max sum of elementwise |diff| vs last accepted
	WindowSize       int     `json:"window_size"`       // Sliding-window length
	Alpha            float64 `json:"alpha"`             // EMA coefficient; smaller = heavier smoothing
}

// AdaptiveConfig holds parameters for the adaptive resolution controller.
type AdaptiveConfig struct {
	TargetFPS float64 `json:"target_fps"` // Frame rate the controller steers toward
	WidthStep int     `json:"width_step"` // Pixels added or removed per adjustment
	MinWidth  int     `json:"min_width"`  // Floor for the processing width
	MaxWidth  int     `json:"max_width"`  // Ceiling; 0 = clamp to the capture width
}

// PipelineConfig holds orchestrator-level parameters.
type PipelineConfig struct {
	TickRateHz    float64 `json:"tick_rate_hz"`   // Display tick rate driving the frame loop
	StatsInterval int     `json:"stats_interval"` // Log frame stats every N frames; 0 disables
}

// Default returns the configuration the tracker ships with.
func Default() Config {
	return Config{
		Matching: MatchingConfig{
			RatioThreshold:  0.75,
			StrongThreshold: 0.75,
		},
		Quality: QualityConfig{
			HistorySize:  6,
			LowThreshold: 0.06,
			FadeRange:    0.015,
		},
		Estimator: EstimatorConfig{
			MinMatches:       5,
			MinAcceptQuality: 0.02,
			MinDeterminant:   1e-6,
			MaxCondition:     1e7,
			ReprojThreshold:  3.0,
			MaxIterations:    2000,
			Confidence:       0.995,
		},
		Smoother: SmootherConfig{
			OutlierThreshold: 10.0,
			WindowSize:       5,
			Alpha:            0.1,
		},
		Adaptive: AdaptiveConfig{
			TargetFPS: 10,
			WidthStep: 20,
			MinWidth:  250,
			MaxWidth:  0,
		},
		Pipeline: PipelineConfig{
			TickRateHz:    30,
			StatsInterval: 120,
		},
	}
}

// Load reads a JSON config file, overlaying it on the defaults.
// A missing file is not an error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks that all parameters are in usable ranges.
func (c Config) Validate() error {
	if c.Matching.RatioThreshold <= 0 || c.Matching.RatioThreshold > 1 {
		return fmt.Errorf("matching.ratio_threshold must be in (0,1], got %v", c.Matching.RatioThreshold)
	}
	if c.Matching.StrongThreshold <= 0 || c.Matching.StrongThreshold > 1 {
		return fmt.Errorf("matching.strong_threshold must be in (0,1], got %v", c.Matching.StrongThreshold)
	}
	if c.Quality.HistorySize < 1 {
		return fmt.Errorf("quality.history_size must be >= 1, got %d", c.Quality.HistorySize)
	}
	if c.Quality.FadeRange <= 0 {
		return fmt.Errorf("quality.fade_range must be > 0, got %v", c.Quality.FadeRange)
	}
	if c.Estimator.MinMatches < 4 {
		return fmt.Errorf("estimator.min_matches must be >= 4, got %d", c.Estimator.MinMatches)
	}
	if c.Smoother.WindowSize < 1 {
		return fmt.Errorf("smoother.window_size must be >= 1, got %d", c.Smoother.WindowSize)
	}
	if c.Smoother.Alpha <= 0 || c.Smoother.Alpha > 1 {
		return fmt.Errorf("smoother.alpha must be in (0,1], got %v", c.Smoother.Alpha)
	}
	if c.Smoother.OutlierThreshold <= 0 {
		return fmt.Errorf("smoother.outlier_threshold must be > 0, got %v", c.Smoother.OutlierThreshold)
	}
	if c.Adaptive.TargetFPS <= 0 {
		return fmt.Errorf("adaptive.target_fps must be > 0, got %v", c.Adaptive.TargetFPS)
	}
	if c.Adaptive.WidthStep < 1 {
		return fmt.Errorf("adaptive.width_step must be >= 1, got %d", c.Adaptive.WidthStep)
	}
	if c.Adaptive.MinWidth < 1 {
		return fmt.Errorf("adaptive.min_width must be >= 1, got %d", c.Adaptive.MinWidth)
	}
	if c.Adaptive.MaxWidth != 0 && c.Adaptive.MaxWidth < c.Adaptive.MinWidth {
		return fmt.Errorf("adaptive.max_width %d below min_width %d", c.Adaptive.MaxWidth, c.Adaptive.MinWidth)
	}
	if c.Pipeline.TickRateHz <= 0 {
		return fmt.Errorf("pipeline.tick_rate_hz must be > 0, got %v", c.Pipeline.TickRateHz)
	}
	return nil
}
