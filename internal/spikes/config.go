package spikes

import (
	"errors"
	"fmt"

	"github.com/mozilla/spikes/internal/spikes/differ"
	"github.com/mozilla/spikes/internal/spikes/robust"
	"github.com/mozilla/spikes/internal/spikes/signature"
)

// ErrInvalidConfig is wrapped by every Config.Validate failure.
var ErrInvalidConfig = errors.New("invalid spikes config")

// Config holds configuration for the spike analyzer.
type Config struct {
	Workers int `mapstructure:"workers"` // Keys evaluated concurrently

	Channels    ChannelConfig       `mapstructure:"channels"`
	Signatures  SignatureConfig     `mapstructure:"signatures"`
	Outliers    OutlierConfig       `mapstructure:"outliers"`
	Calibration CalibrationConfig   `mapstructure:"calibration"`
	Skiplist    map[string][]string `mapstructure:"skiplist"` // channel (or "common") -> regexes
}

// ChannelConfig tunes the whole-channel classifier.
type ChannelConfig struct {
	Coeff  float64 `mapstructure:"coeff"`
	Window int     `mapstructure:"window"`
}

// SignatureConfig tunes the per-signature detector.
type SignatureConfig struct {
	Coeff  float64 `mapstructure:"coeff"`
	WinMin int     `mapstructure:"win_min"`
	WinMax int     `mapstructure:"win_max"`
	Top    int     `mapstructure:"top"`    // Signatures kept per channel, by today's count (0 = all)
	Gather bool    `mapstructure:"gather"` // Merge signatures differing only by addresses
}

// OutlierConfig tunes the day-over-day outlier screen.
type OutlierConfig struct {
	Max    int     `mapstructure:"max"`
	Alpha  float64 `mapstructure:"alpha"`
	Method string  `mapstructure:"method"` // mean or median
	Differ string  `mapstructure:"differ"` // diff, diff_p, diff_same_day, ...
	NDays  int     `mapstructure:"ndays"`  // Window of the diff_mean differs
}

// CalibrationConfig tunes the outlier removal of the cohort calibration.
type CalibrationConfig struct {
	MaxOutliers int     `mapstructure:"max_outliers"`
	Alpha       float64 `mapstructure:"alpha"`
	Method      string  `mapstructure:"method"`
}

// DefaultConfig returns the settings the crash-stats reports run with.
func DefaultConfig() Config {
	return Config{
		Workers: 4,
		Channels: ChannelConfig{
			Coeff:  4.0,
			Window: 5,
		},
		Signatures: SignatureConfig{
			Coeff:  3.0,
			WinMin: 7,
			WinMax: 11,
			Top:    50,
			Gather: true,
		},
		Outliers: OutlierConfig{
			Max:    5,
			Alpha:  0.01,
			Method: "mean",
			Differ: "diff",
			NDays:  7,
		},
		Calibration: CalibrationConfig{
			MaxOutliers: 10,
			Alpha:       0.05,
			Method:      "mean",
		},
	}
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfig, c.Workers)
	case c.Channels.Window < 1:
		return fmt.Errorf("%w: channels.window must be >= 1, got %d", ErrInvalidConfig, c.Channels.Window)
	case c.Signatures.WinMin < 1 || c.Signatures.WinMax < c.Signatures.WinMin:
		return fmt.Errorf("%w: signature windows must satisfy 1 <= win_min <= win_max, got %d..%d",
			ErrInvalidConfig, c.Signatures.WinMin, c.Signatures.WinMax)
	case c.Outliers.Alpha <= 0 || c.Outliers.Alpha >= 1:
		return fmt.Errorf("%w: outliers.alpha must be in (0, 1), got %v", ErrInvalidConfig, c.Outliers.Alpha)
	case c.Calibration.Alpha <= 0 || c.Calibration.Alpha >= 1:
		return fmt.Errorf("%w: calibration.alpha must be in (0, 1), got %v", ErrInvalidConfig, c.Calibration.Alpha)
	}

	if _, err := robust.ParseMethod(c.Outliers.Method); err != nil {
		return fmt.Errorf("%w: outliers.method: %w", ErrInvalidConfig, err)
	}
	if _, err := robust.ParseMethod(c.Calibration.Method); err != nil {
		return fmt.Errorf("%w: calibration.method: %w", ErrInvalidConfig, err)
	}
	if _, err := differ.ByName(c.Outliers.Differ, c.Outliers.NDays); err != nil {
		return fmt.Errorf("%w: outliers.differ: %w", ErrInvalidConfig, err)
	}
	if _, err := signature.CompileSkiplist(c.Skiplist); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
