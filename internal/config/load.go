package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// FileName is the config file meshtool looks for in the working directory and in ConfigDir.
const FileName = "meshforge.yaml"

// EnvConfig names a config file path. The --config flag takes precedence over it.
const EnvConfig = "MESHFORGE_CONFIG"

// Load resolves the effective config: defaults, then one config file, then flags.
// The result is validated, so MeshOptions and CookOptions cannot fail on it.
func Load() (*Config, error) {
	cfg := Default()
	if path := resolvePath(); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolvePath picks the config file: --config, then $MESHFORGE_CONFIG, then a search.
func resolvePath() string {
	if path := ConfigPath(); path != "" {
		return path
	}
	if path := os.Getenv(EnvConfig); path != "" {
		return path
	}
	return findConfigFile()
}

func findConfigFile() string {
	for _, dir := range []string{".", ConfigDir()} {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user meshforge directory ($XDG_CONFIG_HOME/meshforge on Linux).
func ConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base, _ = os.Getwd()
	}
	return filepath.Join(base, "meshforge")
}

// loadFromFile overlays the file onto cfg; keys it leaves out keep their current values.
// Unknown keys are rejected.
func loadFromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks values that cannot be converted into library options.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxInfluences < 0 {
		return fmt.Errorf("max_influences must be >= 0, got %d", c.Pipeline.MaxInfluences)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	if _, err := c.MeshOptions(); err != nil {
		return err
	}
	_, err := c.CookOptions()
	return err
}
