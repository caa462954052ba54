// Package config provides configuration loading and management for hsicube.
// It handles loading configuration from YAML files, provides default values
// and resolves the configuration into the explicit option structs the
// processing packages accept.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"hsicube/internal/logging"
	"hsicube/pkg/codec/envi"
	"hsicube/pkg/codec/raster"
	"hsicube/pkg/codec/tiff"
	"hsicube/pkg/colorsynth"
	"hsicube/pkg/convert"
	"hsicube/pkg/cube"
	"hsicube/pkg/hsio"
	"hsicube/pkg/stats"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores bounds how many files the batch command converts at once
		NumCores int `yaml:"numCores"`

		// StatsSampleLimit bounds the elements visited by a statistics pass.
		// Zero uses the built-in default, a negative value scans everything.
		StatsSampleLimit int `yaml:"statsSampleLimit"`
	} `yaml:"processing"`

	// Load parameters
	Load struct {
		// DefaultLayout is used whenever a command does not name a layout
		DefaultLayout string `yaml:"defaultLayout"`

		// MATVariable preselects a variable in MAT files with several cubes
		MATVariable string `yaml:"matVariable"`

		// IgnoreSidecar skips <name>_wavelengths.txt lookups
		IgnoreSidecar bool `yaml:"ignoreSidecar"`
	} `yaml:"load"`

	// Export parameters
	Export struct {
		// Format overrides the output extension (npy, mat, envi, tiff, png)
		Format string `yaml:"format"`

		// DType converts before writing; empty keeps the cube's type
		DType string `yaml:"dtype"`

		// ConvertMode is autoScale or clamp
		ConvertMode string `yaml:"convertMode"`

		Interleave        string `yaml:"interleave"`
		WavelengthSidecar bool   `yaml:"wavelengthSidecar"`
		MATVariable       string `yaml:"matVariable"`
		MATCompress       bool   `yaml:"matCompress"`
		// MATWavelengths stores wavelengths as <variable>_wavelengths
		MATWavelengths    bool   `yaml:"matWavelengths"`
		TIFFMode          string `yaml:"tiffMode"`
		PNGBitDepth       int    `yaml:"pngBitDepth"`
		ENVIDataExtension string `yaml:"enviDataExtension"`
	} `yaml:"export"`

	// Color synthesis parameters for previews
	Color struct {
		// Mode is direct, range or pca
		Mode string `yaml:"mode"`

		// Mapping and Ranges left at zero are derived from the cube
		Mapping colorsynth.RGBChannelMapping      `yaml:"mapping"`
		Ranges  colorsynth.RGBChannelRangeMapping `yaml:"ranges"`

		PCASampleLimit int `yaml:"pcaSampleLimit"`
	} `yaml:"color"`

	// Mask export parameters
	Mask struct {
		Format       string `yaml:"format"`
		ColorMapped  bool   `yaml:"colorMapped"`
		Metadata     bool   `yaml:"metadata"`
		KeyPrefix    string `yaml:"keyPrefix"`
		VariableName string `yaml:"variableName"`
	} `yaml:"mask"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output; false keeps
		// warnings only
		Verbose bool `yaml:"verbose"`

		// LogLevel is quiet, warn, info or debug; it applies when Verbose
		// is set
		LogLevel string `yaml:"logLevel"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.StatsSampleLimit = stats.DefaultMaxSamples

	cfg.Load.DefaultLayout = "auto"

	cfg.Export.ConvertMode = "autoScale"
	cfg.Export.Interleave = "bsq"
	cfg.Export.WavelengthSidecar = false
	cfg.Export.MATCompress = false
	cfg.Export.MATWavelengths = true
	cfg.Export.TIFFMode = "multipage"
	cfg.Export.PNGBitDepth = 8
	cfg.Export.ENVIDataExtension = ".dat"

	cfg.Color.Mode = "direct"
	cfg.Color.PCASampleLimit = colorsynth.DefaultPCASamples

	cfg.Mask.Format = "png"
	cfg.Mask.Metadata = true
	cfg.Mask.VariableName = "mask"

	cfg.Output.Verbose = true
	cfg.Output.LogLevel = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate resolves every section once and reports the first bad value.
func (c *Config) Validate() error {
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("processing.numCores must be non-negative, got %d", c.Processing.NumCores)
	}
	if _, err := c.LoadOptions(); err != nil {
		return err
	}
	if _, err := c.SaveOptions(); err != nil {
		return err
	}
	if _, err := c.MaskOptions(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel is output.logLevel when output.verbose is set and warnings
// only otherwise.
func (c *Config) LogLevel() (logging.Level, error) {
	l, err := logging.ParseLevel(c.Output.LogLevel)
	if err != nil {
		return logging.Info, fmt.Errorf("output.logLevel: %w", err)
	}
	if !c.Output.Verbose {
		return min(l, logging.Warn), nil
	}
	return l, nil
}

// Workers is the batch concurrency, at least one.
func (c *Config) Workers() int {
	if c.Processing.NumCores < 1 {
		return 1
	}
	return c.Processing.NumCores
}

// Layout parses load.defaultLayout.
func (c *Config) Layout() (cube.Layout, error) {
	l, err := cube.ParseLayout(c.Load.DefaultLayout)
	if err != nil {
		return cube.Auto, fmt.Errorf("load.defaultLayout: %w", err)
	}
	return l, nil
}

// StatsOptions returns the statistics sampling options.
func (c *Config) StatsOptions() stats.Options {
	return stats.Options{MaxSamples: c.Processing.StatsSampleLimit}
}

// LoadOptions returns the options for hsio.Load.
func (c *Config) LoadOptions() (hsio.LoadOptions, error) {
	layout, err := c.Layout()
	if err != nil {
		return hsio.LoadOptions{}, err
	}
	return hsio.LoadOptions{
		Variable:  c.Load.MATVariable,
		Layout:    layout,
		NoSidecar: c.Load.IgnoreSidecar,
	}, nil
}

// ColorParams returns the synthesis parameters for previews.
func (c *Config) ColorParams() (colorsynth.Params, error) {
	mode, err := colorsynth.ParseMode(c.Color.Mode)
	if err != nil {
		return colorsynth.Params{}, fmt.Errorf("color.mode: %w", err)
	}
	return colorsynth.Params{
		Mode:    mode,
		Mapping: c.Color.Mapping,
		Ranges:  c.Color.Ranges,
		PCA:     colorsynth.PCAOptions{MaxSamples: c.Color.PCASampleLimit},
	}, nil
}

// SaveOptions returns the fully resolved export options.
func (c *Config) SaveOptions() (hsio.SaveOptions, error) {
	opts := hsio.DefaultSaveOptions()
	var err error

	if opts.Layout, err = c.Layout(); err != nil {
		return opts, err
	}
	if s := strings.TrimSpace(c.Export.Format); s != "" {
		if opts.Format, err = hsio.ParseFormat(s); err != nil {
			return opts, fmt.Errorf("export.format: %w", err)
		}
	}
	if s := strings.TrimSpace(c.Export.DType); s != "" {
		dt, err := cube.ParseDType(s)
		if err != nil {
			return opts, fmt.Errorf("export.dtype: %w", err)
		}
		opts.DType = &dt
	}
	if opts.ConvertMode, err = convert.ParseMode(c.Export.ConvertMode); err != nil {
		return opts, fmt.Errorf("export.convertMode: %w", err)
	}
	if opts.Interleave, err = envi.ParseInterleave(c.Export.Interleave); err != nil {
		return opts, fmt.Errorf("export.interleave: %w", err)
	}
	if opts.TIFFMode, err = tiff.ParseMode(c.Export.TIFFMode); err != nil {
		return opts, fmt.Errorf("export.tiffMode: %w", err)
	}
	if opts.PNGDepth, err = raster.ParseDepth(c.Export.PNGBitDepth); err != nil {
		return opts, fmt.Errorf("export.pngBitDepth: %w", err)
	}
	if opts.Color, err = c.ColorParams(); err != nil {
		return opts, err
	}
	opts.WavelengthSidecar = c.Export.WavelengthSidecar
	opts.MATVariable = c.Export.MATVariable
	opts.MATCompress = c.Export.MATCompress
	opts.MATWavelengths = c.Export.MATWavelengths
	opts.ENVIDataExtension = c.Export.ENVIDataExtension
	return opts, nil
}

// MaskOptions returns the mask export options.
func (c *Config) MaskOptions() (hsio.MaskOptions, error) {
	opts := hsio.MaskOptions{
		ColorMapped:  c.Mask.ColorMapped,
		Metadata:     c.Mask.Metadata,
		KeyPrefix:    c.Mask.KeyPrefix,
		VariableName: c.Mask.VariableName,
	}
	if s := strings.TrimSpace(c.Mask.Format); s != "" {
		f, err := hsio.ParseFormat(s)
		if err != nil {
			return opts, fmt.Errorf("mask.format: %w", err)
		}
		switch f {
		case hsio.PNG, hsio.NPY, hsio.MAT:
		default:
			return opts, fmt.Errorf("mask.format: %w: %s", hsio.ErrUnsupportedFormat, f)
		}
		opts.Format = f
	}
	return opts, nil
}
