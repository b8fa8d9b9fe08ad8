package config

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/menta2k/image-resizer/internal/utils"
	"github.com/menta2k/image-resizer/pkg/batch"
	"github.com/menta2k/image-resizer/pkg/cropper"
	"github.com/menta2k/image-resizer/pkg/metadata"
	"github.com/menta2k/image-resizer/pkg/processing"
)

// Custom selects the width/height pair instead of a preset token.
const Custom = "custom"

// Config holds the application configuration
type Config struct {
	Ratio    RatioConfig    `json:"ratio"`
	Output   OutputConfig   `json:"output"`
	Metadata MetadataConfig `json:"metadata"`
	Batch    BatchConfig    `json:"batch"`
	Log      LogConfig      `json:"log"`
}

// RatioConfig selects the target aspect ratio
type RatioConfig struct {
	// Preset is "1:1", "4:3", "16:9", any "W:H", or "custom".
	Preset string `json:"preset"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// OutputConfig holds configuration for derived files
type OutputConfig struct {
	Suffix         string  `json:"suffix"`
	JPEGQuality    int     `json:"jpeg_quality"`
	PNGCompression int     `json:"png_compression"`
	WebPLossless   bool    `json:"webp_lossless"`
	WebPQuality    float32 `json:"webp_quality"`
}

// MetadataConfig controls metadata carry-over
type MetadataConfig struct {
	Preserve     bool   `json:"preserve"`
	ExifToolPath string `json:"exiftool_path"`
}

// BatchConfig tunes the batch runner
type BatchConfig struct {
	Workers int `json:"workers"`
}

// LogConfig controls log output
type LogConfig struct {
	File    string `json:"file,omitempty"`
	Verbose bool   `json:"verbose"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Ratio: RatioConfig{
			Preset: cropper.DefaultRatio.Name,
		},
		Output: OutputConfig{
			Suffix:         utils.DefaultSuffix,
			JPEGQuality:    95,
			PNGCompression: 0,
			WebPQuality:    90,
		},
		Metadata: MetadataConfig{
			Preserve:     false,
			ExifToolPath: metadata.DefaultExifTool,
		},
		Batch: BatchConfig{
			Workers: 1,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveRatio turns the ratio section into a validated ratio.
func (c *Config) ResolveRatio() (cropper.Ratio, error) {
	if c.Ratio.Preset == Custom {
		return cropper.ResolveCustom(c.Ratio.Width, c.Ratio.Height)
	}
	return cropper.ResolvePreset(c.Ratio.Preset)
}

// ProcessingOptions maps the output section onto processor options.
func (c *Config) ProcessingOptions() processing.Options {
	return processing.Options{
		Suffix:         c.Output.Suffix,
		JPEGQuality:    c.Output.JPEGQuality,
		PNGCompression: png.CompressionLevel(c.Output.PNGCompression),
		WebPLossless:   c.Output.WebPLossless,
		WebPQuality:    c.Output.WebPQuality,
	}
}

// BatchOptions maps the batch section onto runner options.
func (c *Config) BatchOptions() batch.Options {
	return batch.Options{Workers: c.Batch.Workers}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := c.ResolveRatio(); err != nil {
		return fmt.Errorf("ratio: %w", err)
	}

	if c.Output.Suffix == "" {
		return fmt.Errorf("output.suffix cannot be empty")
	}

	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 1 and 100")
	}

	// png.CompressionLevel: 0 default, -1 none, -2 best speed, -3 best compression
	if c.Output.PNGCompression < -3 || c.Output.PNGCompression > 0 {
		return fmt.Errorf("output.png_compression must be between -3 and 0")
	}

	if c.Output.WebPQuality < 0 || c.Output.WebPQuality > 100 {
		return fmt.Errorf("output.webp_quality must be between 0 and 100")
	}

	if c.Metadata.Preserve && c.Metadata.ExifToolPath == "" {
		return fmt.Errorf("metadata.exiftool_path cannot be empty when metadata.preserve is set")
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-resizer", "config.json")
}
