// Package config provides configuration loading and management for bbscatter.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"bbscatter/internal/models"
	"bbscatter/pkg/interpolation"
	"bbscatter/pkg/scatter"
)

// Detection methods.
const (
	MethodThreshold = "threshold"
	MethodTemplate  = "template"
)

// Scatter surface methods.
const (
	SurfacePolynomial = "polynomial"
	SurfaceKriging    = "kriging"
)

// DefaultAreaBand is the threshold detection area band used when the
// configuration sets none.
var DefaultAreaBand = models.AreaBand{Min: 20, Max: 2000}

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Dot detection parameters.
	Detection struct {
		// Method is "threshold" or "template".
		Method string `yaml:"method"`

		// Threshold is the grey level below which pixels belong to a dot.
		Threshold float64 `yaml:"threshold"`

		// AutoThreshold replaces Threshold with the Otsu threshold of the image.
		AutoThreshold bool `yaml:"autoThreshold"`

		// ScoreThreshold is the correlation score above which pixels belong to a dot.
		ScoreThreshold float64 `yaml:"scoreThreshold"`

		// AreaBand is the accepted region area. When unset, threshold
		// detection uses DefaultAreaBand and template detection derives the
		// band from the template.
		AreaBand *models.AreaBand `yaml:"areaBand,omitempty"`

		// DiskRadius is the radius of the disk summarised around each centroid.
		DiskRadius float64 `yaml:"diskRadius"`

		// TemplateROI selects one dot of the black-body image as template.
		TemplateROI *models.ROI `yaml:"templateROI,omitempty"`

		// TemplateFilterRadius is the disk radius of the template median filter.
		TemplateFilterRadius int `yaml:"templateFilterRadius"`
	} `yaml:"detection"`

	// Scatter surface parameters.
	Scatter struct {
		// Method is "polynomial" or "kriging".
		Method string `yaml:"method"`

		// ValueColumn is the dot statistic used as sample value, "median" or "mean".
		ValueColumn string `yaml:"valueColumn"`

		// Kriging parameters, used when Method is "kriging".
		Kriging struct {
			// Variogram is "spherical", "exponential" or "gaussian".
			Variogram string `yaml:"variogram"`

			// Neighbors is the number of samples per estimate.
			Neighbors int `yaml:"neighbors"`

			// Step is the grid spacing of exact estimates.
			Step int `yaml:"step"`

			// Optimize selects the variogram by cross-validation.
			Optimize bool `yaml:"optimize"`
		} `yaml:"kriging"`
	} `yaml:"scatter"`

	// Verification parameters.
	Verification struct {
		// AreaBand is the accepted mask region area.
		AreaBand models.AreaBand `yaml:"areaBand"`

		// SymmetricColors centers the residual colormap on zero.
		SymmetricColors bool `yaml:"symmetricColors"`

		// ClimMin and ClimMax window the grey levels of the overlay; both
		// zero means the image range.
		ClimMin float64 `yaml:"climMin"`
		ClimMax float64 `yaml:"climMax"`

		// OverlayScale is the upscaling factor of the overlay.
		OverlayScale int `yaml:"overlayScale"`
	} `yaml:"verification"`

	// Normalization parameters.
	Normalization struct {
		// DoseROI is the open area used for dose correction.
		DoseROI *models.ROI `yaml:"doseROI,omitempty"`

		// ApplyLog converts transmission to attenuation.
		ApplyLog bool `yaml:"applyLog"`

		// Tau is the primary-beam transmission through a black body.
		Tau float64 `yaml:"tau"`
	} `yaml:"normalization"`

	// Output parameters.
	Output struct {
		// SaveIntermediaryResults determines whether to save intermediary processing results.
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// WriteFITS also stores float results as FITS files.
		WriteFITS bool `yaml:"writeFITS"`

		// LogLevel is one of debug, info, warn, error.
		LogLevel string `yaml:"logLevel"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default detection parameters
	cfg.Detection.Method = MethodThreshold
	cfg.Detection.AutoThreshold = true
	cfg.Detection.ScoreThreshold = 0.5
	cfg.Detection.DiskRadius = 2
	cfg.Detection.TemplateFilterRadius = 5

	// Set default scatter parameters
	cfg.Scatter.Method = SurfacePolynomial
	cfg.Scatter.ValueColumn = string(scatter.ColumnMedian)
	cfg.Scatter.Kriging.Variogram = interpolation.Spherical.String()
	cfg.Scatter.Kriging.Neighbors = interpolation.DefaultNeighbors
	cfg.Scatter.Kriging.Step = 8

	// Set default verification parameters
	cfg.Verification.AreaBand = models.AreaBand{Min: 1, Max: 10000}
	cfg.Verification.SymmetricColors = true
	cfg.Verification.OverlayScale = 1

	// Set default normalization parameters
	cfg.Normalization.ApplyLog = true
	cfg.Normalization.Tau = 1

	// Set default output parameters
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.LogLevel = "info"

	return cfg
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Detection.Method {
	case MethodThreshold:
	case MethodTemplate:
		if c.Detection.TemplateROI == nil {
			errs = append(errs, fmt.Errorf("detection.templateROI is required for template detection"))
		}
		if c.Detection.TemplateFilterRadius < 0 {
			errs = append(errs, fmt.Errorf("detection.templateFilterRadius must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown detection.method %q", c.Detection.Method))
	}
	if c.Detection.AreaBand != nil {
		if err := c.Detection.AreaBand.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("detection.areaBand: %w", err))
		}
	}
	if c.Detection.DiskRadius <= 0 {
		errs = append(errs, fmt.Errorf("detection.diskRadius must be positive, got %g", c.Detection.DiskRadius))
	}

	switch c.Scatter.Method {
	case SurfacePolynomial:
	case SurfaceKriging:
		if _, err := interpolation.ParseVariogramModel(c.Scatter.Kriging.Variogram); err != nil {
			errs = append(errs, fmt.Errorf("scatter.kriging.variogram: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown scatter.method %q", c.Scatter.Method))
	}
	if _, err := scatter.ParseColumn(c.Scatter.ValueColumn); err != nil {
		errs = append(errs, fmt.Errorf("scatter.valueColumn: %w", err))
	}

	if err := c.Verification.AreaBand.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("verification.areaBand: %w", err))
	}
	if c.Normalization.Tau <= 0 {
		errs = append(errs, fmt.Errorf("normalization.tau must be positive, got %g", c.Normalization.Tau))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ThresholdAreaBand returns the area band for threshold detection:
// Detection.AreaBand when set, DefaultAreaBand otherwise.
func (c *Config) ThresholdAreaBand() models.AreaBand {
	if c.Detection.AreaBand != nil {
		return *c.Detection.AreaBand
	}
	return DefaultAreaBand
}

// LogLevel parses Output.LogLevel.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Output.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Output.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("output.logLevel: %w", err)
	}
	return level, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path.
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
