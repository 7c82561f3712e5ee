// Package config provides configuration loading and management for corscan.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"corscan/internal/models"
)

// Config represents the session configuration loaded from YAML.
// All values are set once per session and reused unchanged for every
// reconstruction in that session.
type Config struct {
	// Input locates the radiograph, flat and dark HDF5 files
	Input struct {
		// Dir is the directory holding the three input files
		Dir string `yaml:"dir"`

		// Radiograph, Flat and Dark are file names inside Dir
		Radiograph string `yaml:"radiograph"`
		Flat       string `yaml:"flat"`
		Dark       string `yaml:"dark"`

		// Dataset is the dataset path shared by all three files
		Dataset string `yaml:"dataset"`

		// Rows is the half-open detector row window [start, stop)
		Rows [2]int `yaml:"rows"`

		// Segment selects one contiguous angle segment of SegmentLength frames.
		// A SegmentLength of 0 loads every angle.
		Segment       int `yaml:"segment"`
		SegmentLength int `yaml:"segmentLength"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Dir is the root directory for all written files
		Dir string `yaml:"dir"`

		// Format is the image format for candidate reconstructions (tiff or png)
		Format string `yaml:"format"`

		// SaveIntermediaryResults writes a preview image after every stage
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`
	} `yaml:"output"`

	// Processing parameters
	Processing struct {
		// NumCores is the CPU budget for the parallel stages
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Outlier filter parameters
	Outlier struct {
		Threshold float64 `yaml:"threshold"`
		Size      int     `yaml:"size"`

		// DeviceMemoryMB bounds the filter batch size; 0 means unlimited
		DeviceMemoryMB int `yaml:"deviceMemoryMB"`
	} `yaml:"outlier"`

	// Normalize holds the background (air) rescaling parameters
	Normalize struct {
		AirWidth int     `yaml:"airWidth"`
		AirLevel float64 `yaml:"airLevel"`
	} `yaml:"normalize"`

	// Stripe holds the Fourier-wavelet stripe filter parameters
	Stripe struct {
		Level   int     `yaml:"level"`
		Wavelet string  `yaml:"wavelet"`
		Sigma   float64 `yaml:"sigma"`
		Pad     bool    `yaml:"pad"`
	} `yaml:"stripe"`

	// Phase holds the acquisition physics for phase retrieval
	Phase struct {
		// PixelSize is the detector pixel size in cm
		PixelSize float64 `yaml:"pixelSize"`

		// Energy is the beam energy in keV
		Energy float64 `yaml:"energy"`

		// Distance is the sample-to-detector propagation distance in cm
		Distance float64 `yaml:"distance"`

		// Alpha is the regularization ratio
		Alpha float64 `yaml:"alpha"`

		Pad bool `yaml:"pad"`
	} `yaml:"phase"`

	// Center holds the candidate range for the rotation-center scan
	Center struct {
		Start float64 `yaml:"start"`
		Stop  float64 `yaml:"stop"`
		Step  float64 `yaml:"step"`

		// Row is the index (within the loaded window) of the slice to reconstruct
		Row int `yaml:"row"`
	} `yaml:"center"`

	// Reconstruction holds filtered back-projection parameters
	Reconstruction struct {
		Filter    string  `yaml:"filter"`
		MinusLog  bool    `yaml:"minusLog"`
		MaskRatio float64 `yaml:"maskRatio"`
	} `yaml:"reconstruction"`

	// Checkpoint controls persisting the outlier-filtered volumes
	Checkpoint struct {
		Enabled bool `yaml:"enabled"`

		// Reuse restores an existing checkpoint instead of re-filtering
		Reuse bool `yaml:"reuse"`
	} `yaml:"checkpoint"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.Dataset = "/exchange/data"
	cfg.Input.Rows = [2]int{0, 2}
	cfg.Input.Segment = 0
	cfg.Input.SegmentLength = 600

	cfg.Output.Dir = "rec"
	cfg.Output.Format = "tiff"
	cfg.Output.SaveIntermediaryResults = false

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Outlier.Threshold = 200
	cfg.Outlier.Size = 15
	cfg.Outlier.DeviceMemoryMB = 0

	cfg.Normalize.AirWidth = 10
	cfg.Normalize.AirLevel = 10.0

	cfg.Stripe.Level = 4
	cfg.Stripe.Wavelet = "db4"
	cfg.Stripe.Sigma = 2
	cfg.Stripe.Pad = true

	cfg.Phase.PixelSize = 0.65e-4
	cfg.Phase.Energy = 25
	cfg.Phase.Distance = 5
	cfg.Phase.Alpha = 1e-3
	cfg.Phase.Pad = false

	cfg.Center.Start = 2000
	cfg.Center.Stop = 2500
	cfg.Center.Step = 10
	cfg.Center.Row = 0

	cfg.Reconstruction.Filter = "parzen"
	cfg.Reconstruction.MinusLog = true
	cfg.Reconstruction.MaskRatio = 0.95

	cfg.Checkpoint.Enabled = true
	cfg.Checkpoint.Reuse = true

	return cfg
}

// Validate checks the values that must be present before any file is read
func (c *Config) Validate() error {
	switch {
	case c.Input.Dir == "":
		return fmt.Errorf("%w: input.dir is required", models.ErrConfiguration)
	case c.Input.Radiograph == "", c.Input.Flat == "", c.Input.Dark == "":
		return fmt.Errorf("%w: input.radiograph, input.flat and input.dark are required", models.ErrConfiguration)
	case c.Input.Dataset == "":
		return fmt.Errorf("%w: input.dataset is required", models.ErrConfiguration)
	case c.Output.Dir == "":
		return fmt.Errorf("%w: output.dir is required", models.ErrConfiguration)
	case c.Input.Rows[0] < 0 || c.Input.Rows[1] <= c.Input.Rows[0]:
		return fmt.Errorf("%w: input.rows %v is not a non-empty window", models.ErrConfiguration, c.Input.Rows)
	case c.Input.Segment < 0 || c.Input.SegmentLength < 0:
		return fmt.Errorf("%w: input.segment and input.segmentLength must be non-negative", models.ErrConfiguration)
	case c.Processing.NumCores < 1:
		return fmt.Errorf("%w: processing.numCores must be at least 1", models.ErrConfiguration)
	case c.Output.Format != "tiff" && c.Output.Format != "png":
		return fmt.Errorf("%w: output.format %q must be tiff or png", models.ErrConfiguration, c.Output.Format)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Write encodes cfg as YAML to w
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return enc.Close()
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
