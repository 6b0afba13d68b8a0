package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/meshforge/pkg/cooked"
	"github.com/Faultbox/meshforge/pkg/mesh"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test pipeline defaults
	if cfg.Pipeline.Interleaved {
		t.Error("expected planar layout by default")
	}
	if !cfg.Pipeline.Parallel {
		t.Error("expected parallel schedule by default")
	}
	if !cfg.Pipeline.Deduplicate {
		t.Error("expected deduplication by default")
	}
	if cfg.Pipeline.MaxInfluences != 4 {
		t.Errorf("expected 4 influences, got %d", cfg.Pipeline.MaxInfluences)
	}
	if cfg.Pipeline.SkinningMode != "fixed" {
		t.Errorf("expected fixed skinning, got %s", cfg.Pipeline.SkinningMode)
	}

	// Test cook defaults
	if cfg.Cook.CompressionThreshold != cooked.DefaultCompressionThreshold {
		t.Errorf("expected threshold %d, got %d", cooked.DefaultCompressionThreshold, cfg.Cook.CompressionThreshold)
	}
	if cfg.Cook.Compressor != "zstd" {
		t.Errorf("expected zstd, got %s", cfg.Cook.Compressor)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "meshforge.yaml")

	yamlContent := `
pipeline:
  interleaved: true
  parallel: false
  workers: 3
  skinning_mode: indirect
  max_influences: 8

cook:
  compression_threshold: 0
  compressor: zlib
  unit_vectors: false

logging:
  level: "debug"
  log_file: "meshtool.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !cfg.Pipeline.Interleaved {
		t.Error("expected interleaved to be true")
	}
	if cfg.Pipeline.Parallel {
		t.Error("expected parallel to be false")
	}
	if cfg.Pipeline.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Pipeline.Workers)
	}
	// Keys absent from the file keep their defaults.
	if !cfg.Pipeline.Deduplicate {
		t.Error("expected deduplicate to keep its default")
	}
	if cfg.Cook.Compressor != "zlib" {
		t.Errorf("expected zlib, got %s", cfg.Cook.Compressor)
	}
	if cfg.Logging.LogFile != "meshtool.log" {
		t.Errorf("expected log file 'meshtool.log', got %s", cfg.Logging.LogFile)
	}

	opts, err := cfg.MeshOptions()
	if err != nil {
		t.Fatalf("MeshOptions: %v", err)
	}
	if opts.Schedule != mesh.ScheduleSequential {
		t.Errorf("expected sequential schedule, got %v", opts.Schedule)
	}
	if opts.Skinning.Mode != mesh.SkinningIndirect {
		t.Errorf("expected indirect skinning, got %v", opts.Skinning.Mode)
	}
	if opts.Skinning.MaxInfluences != 8 {
		t.Errorf("expected 8 influences, got %d", opts.Skinning.MaxInfluences)
	}

	cookOpts, err := cfg.CookOptions()
	if err != nil {
		t.Fatalf("CookOptions: %v", err)
	}
	if cookOpts.Compressor.Name() != "zlib" {
		t.Errorf("expected zlib compressor, got %s", cookOpts.Compressor.Name())
	}
	if cookOpts.UnitVectors {
		t.Error("expected unit vector quantization to be off")
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
pipeline:
  workers: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/meshforge.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad skinning mode", func(c *Config) { c.Pipeline.SkinningMode = "dual" }, true},
		{"bad compressor", func(c *Config) { c.Cook.Compressor = "lz4" }, true},
		{"negative workers", func(c *Config) { c.Pipeline.Workers = -1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	os.Chdir(tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "meshforge.yaml")
	if err := os.WriteFile(configPath, []byte("pipeline:\n  workers: 2\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find meshforge.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name: "pipeline flags",
			setup: func() {
				*flagInterleaved = true
				*flagSequential = true
				*flagWorkers = 6
				*flagNoDedup = true
				*flagSkinning = "indirect"
			},
			verify: func(cfg *Config) {
				if !cfg.Pipeline.Interleaved || cfg.Pipeline.Parallel || cfg.Pipeline.Deduplicate {
					t.Errorf("unexpected pipeline flags: %+v", cfg.Pipeline)
				}
				if cfg.Pipeline.Workers != 6 {
					t.Errorf("expected 6 workers, got %d", cfg.Pipeline.Workers)
				}
				if cfg.Pipeline.SkinningMode != "indirect" {
					t.Errorf("expected indirect skinning, got %s", cfg.Pipeline.SkinningMode)
				}
			},
			teardown: func() {
				*flagInterleaved = false
				*flagSequential = false
				*flagWorkers = 0
				*flagNoDedup = false
				*flagSkinning = ""
			},
		},
		{
			name: "cook flags",
			setup: func() {
				*flagCompressor = "zlib"
				*flagThreshold = 0
			},
			verify: func(cfg *Config) {
				if cfg.Cook.Compressor != "zlib" {
					t.Errorf("expected zlib, got %s", cfg.Cook.Compressor)
				}
				if cfg.Cook.CompressionThreshold != 0 {
					t.Errorf("expected threshold 0, got %d", cfg.Cook.CompressionThreshold)
				}
			},
			teardown: func() {
				*flagCompressor = ""
				*flagThreshold = -1
			},
		},
		{
			name:  "unset threshold keeps default",
			setup: func() {},
			verify: func(cfg *Config) {
				if cfg.Cook.CompressionThreshold != cooked.DefaultCompressionThreshold {
					t.Errorf("expected default threshold, got %d", cfg.Cook.CompressionThreshold)
				}
			},
			teardown: func() {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(cfg)
		})
	}
}

func TestSaveTo(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "meshforge.yaml")

	cfg := Default()
	cfg.Pipeline.Workers = 5
	cfg.Cook.Compressor = "zlib"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if loaded.Pipeline.Workers != 5 || loaded.Cook.Compressor != "zlib" {
		t.Errorf("saved config not reloaded: %+v", loaded)
	}
}

func TestLoadFromFileUnknownKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(configPath, []byte("pipeline:\n  max_influence: 8\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected misspelt key to be rejected")
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if cfg.Pipeline.MaxInfluences != 4 {
		t.Errorf("expected defaults to survive, got %+v", cfg.Pipeline)
	}
}

func TestResolvePathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvConfig, path)

	if got := resolvePath(); got != path {
		t.Errorf("expected %s, got %s", path, got)
	}

	*flagConfig = "explicit.yaml"
	defer func() { *flagConfig = "" }()
	if got := resolvePath(); got != "explicit.yaml" {
		t.Errorf("expected --config to win, got %s", got)
	}
}

func TestSaveWritesToConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg := Default()
	cfg.Pipeline.SkinningMode = "indirect"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// A second save replaces the first.
	cfg.Pipeline.Workers = 2
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(ConfigDir(), FileName)
	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if loaded.Pipeline.SkinningMode != "indirect" || loaded.Pipeline.Workers != 2 {
		t.Errorf("saved config not reloaded: %+v", loaded.Pipeline)
	}

	entries, err := os.ReadDir(ConfigDir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only %s in config dir, found %d entries", FileName, len(entries))
	}
}

func TestValidateNegativeInfluences(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MaxInfluences = -2
	if err := cfg.Validate(); err == nil {
		t.Error("expected negative max_influences to be rejected")
	}
}
