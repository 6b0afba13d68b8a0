// Package config handles meshtool configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/meshforge/pkg/cooked"
	"github.com/Faultbox/meshforge/pkg/mesh"
)

// Config holds all pipeline and tool settings.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cook     CookConfig     `yaml:"cook"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PipelineConfig holds mesh build settings.
type PipelineConfig struct {
	Interleaved      bool   `yaml:"interleaved"`
	Parallel         bool   `yaml:"parallel"`
	Workers          int    `yaml:"workers"` // 0 uses GOMAXPROCS
	Deduplicate      bool   `yaml:"deduplicate"`
	MaxInfluences    int    `yaml:"max_influences"`
	SkinningMode     string `yaml:"skinning_mode"` // "fixed" or "indirect"
	NormalizeWeights bool   `yaml:"normalize_weights"`
	DedupDeltas      bool   `yaml:"dedup_deltas"`
}

// CookConfig holds cooked file encoding settings.
type CookConfig struct {
	CompressionThreshold int    `yaml:"compression_threshold"` // bytes, 0 disables compression
	Compressor           string `yaml:"compressor"`            // "zstd" or "zlib"
	UnitVectors          bool   `yaml:"unit_vectors"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Interleaved:      false,
			Parallel:         true,
			Workers:          0,
			Deduplicate:      true,
			MaxInfluences:    mesh.DefaultMaxInfluences,
			SkinningMode:     "fixed",
			NormalizeWeights: true,
			DedupDeltas:      false,
		},
		Cook: CookConfig{
			CompressionThreshold: cooked.DefaultCompressionThreshold,
			Compressor:           "zstd",
			UnitVectors:          true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// MeshOptions converts the pipeline section into build options.
func (c *Config) MeshOptions() (mesh.Options, error) {
	p := c.Pipeline
	opts := mesh.DefaultOptions()
	opts.Interleaved = p.Interleaved
	opts.Workers = p.Workers
	opts.Deduplicate = p.Deduplicate
	if !p.Parallel {
		opts.Schedule = mesh.ScheduleSequential
	}

	switch p.SkinningMode {
	case "", "fixed":
		opts.Skinning.Mode = mesh.SkinningFixed
	case "indirect":
		opts.Skinning.Mode = mesh.SkinningIndirect
	default:
		return mesh.Options{}, fmt.Errorf("unknown skinning mode %q", p.SkinningMode)
	}
	opts.Skinning.MaxInfluences = p.MaxInfluences
	opts.Skinning.Normalize = p.NormalizeWeights
	opts.Blendshapes.DeduplicateDeltas = p.DedupDeltas
	return opts, nil
}

// CookOptions converts the cook section into codec options.
func (c *Config) CookOptions() (cooked.Options, error) {
	comp, err := cooked.CompressorByName(c.Cook.Compressor)
	if err != nil {
		return cooked.Options{}, err
	}
	return cooked.Options{
		CompressionThreshold: c.Cook.CompressionThreshold,
		Compressor:           comp,
		UnitVectors:          c.Cook.UnitVectors,
		Workers:              c.Pipeline.Workers,
	}, nil
}
