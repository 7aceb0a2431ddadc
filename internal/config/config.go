// Package config loads the application configuration, merging a YAML file
// (if present) with environment variables (prefix `VOLAUG__`, delimiter
// `__`).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

type AugmentCfg struct {
	ProbMissing         float64 `koanf:"prob_missing" yaml:"prob_missing"`
	ProbLowContrast     float64 `koanf:"prob_low_contrast" yaml:"prob_low_contrast"`
	ProbArtifact        float64 `koanf:"prob_artifact" yaml:"prob_artifact"`
	ProbDeform          float64 `koanf:"prob_deform" yaml:"prob_deform"`
	ContrastScale       float64 `koanf:"contrast_scale" yaml:"contrast_scale"`
	DeformationStrength int     `koanf:"deformation_strength" yaml:"deformation_strength"`
	Axis                int     `koanf:"axis" yaml:"axis"`
	Seed                uint64  `koanf:"seed" yaml:"seed"`
}

// VolumeCfg describes the synthetic source volume the CLI generates when
// no real data source is wired in.
type VolumeCfg struct {
	Shape     []int64 `koanf:"shape" yaml:"shape"`
	VoxelSize []int64 `koanf:"voxel_size" yaml:"voxel_size"`
}

type OutputCfg struct {
	Dir          string `koanf:"dir" yaml:"dir"`
	SaveSections bool   `koanf:"save_sections" yaml:"save_sections"`
}

type MetricsCfg struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
	Port    int  `koanf:"port" yaml:"port"`
}

type Config struct {
	Augment AugmentCfg `koanf:"augment" yaml:"augment"`
	Volume  VolumeCfg  `koanf:"volume" yaml:"volume"`
	Output  OutputCfg  `koanf:"output" yaml:"output"`
	Metrics MetricsCfg `koanf:"metrics" yaml:"metrics"`
}

// Default returns the configuration used when neither file nor
// environment override a value.
func Default() *Config {
	return &Config{
		Augment: AugmentCfg{
			ProbMissing:         0.05,
			ProbLowContrast:     0.05,
			ContrastScale:       0.1,
			DeformationStrength: 20,
			Axis:                0,
		},
		Volume: VolumeCfg{
			Shape:     []int64{16, 128, 128},
			VoxelSize: []int64{1, 1, 1},
		},
		Output: OutputCfg{
			Dir:          "out",
			SaveSections: true,
		},
		Metrics: MetricsCfg{
			Port: 9102,
		},
	}
}

// Load merges YAML (if present) with env-vars and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	_ = k.Load(env.Provider("VOLAUG__", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "VOLAUG__")), "__", ".")
	}), nil)

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(c *Config) {
	if len(c.Volume.Shape) == 0 {
		c.Volume.Shape = []int64{16, 128, 128}
	}
	if len(c.Volume.VoxelSize) == 0 {
		c.Volume.VoxelSize = []int64{1, 1, 1}
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9102
	}
}

func validate(c *Config) error {
	sum := c.Augment.ProbMissing + c.Augment.ProbLowContrast +
		c.Augment.ProbArtifact + c.Augment.ProbDeform
	if sum > 1+1e-9 {
		return fmt.Errorf("config: augmentation probabilities sum to %v, must not exceed 1", sum)
	}
	if c.Augment.ContrastScale <= 0 || c.Augment.ContrastScale >= 1 {
		return fmt.Errorf("config: contrast scale %v outside (0, 1)", c.Augment.ContrastScale)
	}
	if len(c.Volume.Shape) != 3 {
		return fmt.Errorf("config: volume shape has %d dimensions, want 3", len(c.Volume.Shape))
	}
	if len(c.Volume.VoxelSize) != 3 {
		return fmt.Errorf("config: voxel size has %d dimensions, want 3", len(c.Volume.VoxelSize))
	}
	for i, s := range c.Volume.Shape {
		if s <= 0 {
			return fmt.Errorf("config: volume shape[%d] = %d, must be positive", i, s)
		}
	}
	for i, vs := range c.Volume.VoxelSize {
		if vs <= 0 {
			return fmt.Errorf("config: voxel size[%d] = %d, must be positive", i, vs)
		}
	}
	return nil
}

// Save writes the configuration to a YAML file, creating the directory
// if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
