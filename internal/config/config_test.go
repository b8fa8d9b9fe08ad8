package config

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-resizer/pkg/cropper"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	r, err := cfg.ResolveRatio()
	require.NoError(t, err)
	assert.Equal(t, cropper.Widescreen, r)
	assert.Equal(t, "_resized", cfg.Output.Suffix)
	assert.Equal(t, 1, cfg.Batch.Workers)
}

func TestResolveRatioCustom(t *testing.T) {
	cfg := Default()
	cfg.Ratio = RatioConfig{Preset: Custom, Width: "3", Height: "2"}
	r, err := cfg.ResolveRatio()
	require.NoError(t, err)
	assert.Equal(t, 3, r.Width)
	assert.Equal(t, 2, r.Height)

	cfg.Ratio.Width = "0"
	_, err = cfg.ResolveRatio()
	assert.ErrorIs(t, err, cropper.ErrInvalidRatio)
	assert.ErrorIs(t, cfg.Validate(), cropper.ErrInvalidRatio)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad preset", func(c *Config) { c.Ratio.Preset = "wide" }},
		{"empty suffix", func(c *Config) { c.Output.Suffix = "" }},
		{"quality too high", func(c *Config) { c.Output.JPEGQuality = 101 }},
		{"quality zero", func(c *Config) { c.Output.JPEGQuality = 0 }},
		{"png level", func(c *Config) { c.Output.PNGCompression = 5 }},
		{"webp quality", func(c *Config) { c.Output.WebPQuality = 120 }},
		{"exiftool missing", func(c *Config) { c.Metadata.Preserve = true; c.Metadata.ExifToolPath = "" }},
		{"no workers", func(c *Config) { c.Batch.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Ratio.Preset = "4:3"
	cfg.Metadata.Preserve = true
	cfg.Batch.Workers = 3
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ratio":{"preset":"1:1"}}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1:1", cfg.Ratio.Preset)
	assert.Equal(t, 95, cfg.Output.JPEGQuality)
	assert.Equal(t, "exiftool", cfg.Metadata.ExifToolPath)
	require.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFromFile(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, "parse")
}

func TestOptionMapping(t *testing.T) {
	cfg := Default()
	cfg.Output.Suffix = "_crop"
	cfg.Output.PNGCompression = -3
	cfg.Batch.Workers = 4

	opts := cfg.ProcessingOptions()
	assert.Equal(t, "_crop", opts.Suffix)
	assert.Equal(t, 95, opts.JPEGQuality)
	assert.Equal(t, png.BestCompression, opts.PNGCompression)
	assert.Equal(t, 4, cfg.BatchOptions().Workers)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.json", filepath.Base(GetConfigPath()))
}
