// Package config loads the spikes configuration from file, environment and
// defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mozilla/spikes/internal/spikes"
)

// EnvPrefix prefixes every environment override, e.g. SPIKES_LOGGING_LEVEL.
const EnvPrefix = "SPIKES"

// Load reads configuration from configPath, or from spikes.yaml in the
// usual locations when configPath is empty. A missing default file is not
// an error.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("spikes")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/spikes")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("metrics.textfile", "")

	d := spikes.DefaultConfig()
	v.SetDefault("analysis.workers", d.Workers)
	v.SetDefault("analysis.channels.coeff", d.Channels.Coeff)
	v.SetDefault("analysis.channels.window", d.Channels.Window)
	v.SetDefault("analysis.signatures.coeff", d.Signatures.Coeff)
	v.SetDefault("analysis.signatures.win_min", d.Signatures.WinMin)
	v.SetDefault("analysis.signatures.win_max", d.Signatures.WinMax)
	v.SetDefault("analysis.signatures.top", d.Signatures.Top)
	v.SetDefault("analysis.signatures.gather", d.Signatures.Gather)
	v.SetDefault("analysis.outliers.max", d.Outliers.Max)
	v.SetDefault("analysis.outliers.alpha", d.Outliers.Alpha)
	v.SetDefault("analysis.outliers.method", d.Outliers.Method)
	v.SetDefault("analysis.outliers.differ", d.Outliers.Differ)
	v.SetDefault("analysis.outliers.ndays", d.Outliers.NDays)
	v.SetDefault("analysis.calibration.max_outliers", d.Calibration.MaxOutliers)
	v.SetDefault("analysis.calibration.alpha", d.Calibration.Alpha)
	v.SetDefault("analysis.calibration.method", d.Calibration.Method)
}

// Analysis decodes the "analysis" section over spikes.DefaultConfig and
// validates the result. The whole tree is decoded, not the sub-key, so
// that environment overrides of nested keys apply.
func Analysis(v *viper.Viper) (spikes.Config, error) {
	root := struct {
		Analysis spikes.Config `mapstructure:"analysis"`
	}{Analysis: spikes.DefaultConfig()}
	if err := v.Unmarshal(&root); err != nil {
		return spikes.Config{}, fmt.Errorf("decoding analysis config: %w", err)
	}
	if err := root.Analysis.Validate(); err != nil {
		return spikes.Config{}, err
	}
	return root.Analysis, nil
}
