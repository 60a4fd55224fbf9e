// Package config loads run configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/talgya/yee-ohm/internal/grid"
	"github.com/talgya/yee-ohm/internal/initial"
	"github.com/talgya/yee-ohm/internal/ohm"
)

// Config holds everything a run needs.
type Config struct {
	Layout      LayoutConfig      `yaml:"layout"`
	Ohm         ohm.Config        `yaml:"ohm"`
	Initial     initial.Config    `yaml:"initial"`
	Refinement  RefinementConfig  `yaml:"refinement"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LayoutConfig describes the patch. Cells and MeshSize need one entry per
// active axis.
type LayoutConfig struct {
	Dimension int       `yaml:"dimension" env:"LAYOUT_DIMENSION"`
	Cells     []int     `yaml:"cells" env:"LAYOUT_CELLS" envSeparator:","`
	MeshSize  []float64 `yaml:"mesh_size" env:"LAYOUT_MESH_SIZE" envSeparator:","`
	Ghosts    int       `yaml:"ghosts" env:"LAYOUT_GHOSTS"`
}

// RefinementConfig sets the ratio of the fine level built from each run.
type RefinementConfig struct {
	Ratio int `yaml:"ratio" env:"REFINEMENT_RATIO"`
}

// DiagnosticsConfig selects the output database. An empty path disables output.
type DiagnosticsConfig struct {
	Path string `yaml:"path" env:"DIAGNOSTICS_PATH"`
}

// LoggingConfig sets the slog level: debug, info, warn or error.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Default returns a 1D run with two-fold refinement.
func Default() Config {
	return Config{
		Layout: LayoutConfig{
			Dimension: 1,
			Cells:     []int{64},
			MeshSize:  []float64{0.1},
			Ghosts:    2,
		},
		Ohm:         ohm.DefaultConfig(),
		Initial:     initial.DefaultConfig(),
		Refinement:  RefinementConfig{Ratio: 2},
		Diagnostics: DiagnosticsConfig{Path: "data/diagnostics.db"},
		Logging:     LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Grid converts the layout section into a grid configuration.
func (lc LayoutConfig) Grid() (grid.Config, error) {
	gc := grid.Config{Dimension: lc.Dimension, Ghosts: lc.Ghosts, Cells: [3]int{1, 1, 1}, MeshSize: [3]float64{1, 1, 1}}
	if lc.Dimension < 1 || lc.Dimension > 3 {
		return gc, fmt.Errorf("%w: dimension %d not in [1,3]", grid.ErrInvalidLayout, lc.Dimension)
	}
	if len(lc.Cells) < lc.Dimension || len(lc.MeshSize) < lc.Dimension {
		return gc, fmt.Errorf("%w: need %d cells and mesh sizes, got %d and %d",
			grid.ErrInvalidLayout, lc.Dimension, len(lc.Cells), len(lc.MeshSize))
	}
	for ax := 0; ax < lc.Dimension; ax++ {
		gc.Cells[ax] = lc.Cells[ax]
		gc.MeshSize[ax] = lc.MeshSize[ax]
	}
	return gc, nil
}

// SlogLevel maps the configured level name, defaulting to info.
func (lc LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(lc.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
