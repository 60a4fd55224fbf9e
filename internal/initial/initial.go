// Package initial builds the input fields of an Ohm evaluation: uniform
// vector fields and density/pressure moments optionally perturbed with
// layered simplex noise.
package initial

import (
	"errors"
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/yee-ohm/internal/grid"
)

// ErrInvalidConfig is returned for configurations that would produce a
// non-positive density.
var ErrInvalidConfig = errors.New("initial: invalid configuration")

// Config holds initial-condition parameters.
type Config struct {
	Density      float64    `yaml:"density" env:"INIT_DENSITY"`
	Pressure     float64    `yaml:"pressure" env:"INIT_PRESSURE"`
	Perturbation float64    `yaml:"perturbation" env:"INIT_PERTURBATION"` // Relative noise amplitude in [0,1)
	Seed         int64      `yaml:"seed" env:"INIT_SEED"`
	Frequency    float64    `yaml:"frequency"` // Noise frequency per unit length
	Octaves      int        `yaml:"octaves"`
	Velocity     [3]float64 `yaml:"velocity"`
	Magnetic     [3]float64 `yaml:"magnetic"`
	Current      [3]float64 `yaml:"current"`
}

// DefaultConfig returns a quiet plasma with a guide field along x and a
// small density ripple.
func DefaultConfig() Config {
	return Config{
		Density:      1.0,
		Pressure:     0.1,
		Perturbation: 0.05,
		Seed:         42,
		Frequency:    0.5,
		Octaves:      3,
		Velocity:     [3]float64{0, 0.1, 0},
		Magnetic:     [3]float64{1, 0, 0.5},
		Current:      [3]float64{0, 0, 0},
	}
}

// State holds the fields of one evaluation. E is allocated and zeroed.
type State struct {
	N, Pe    *grid.Field
	Ve, B, J *grid.VecField
	E        *grid.VecField
}

// Generate allocates every field on l and fills ghosts and physical samples
// alike.
func Generate(l *grid.Layout, cfg Config) (*State, error) {
	if !(cfg.Density > 0) {
		return nil, fmt.Errorf("%w: density %g", ErrInvalidConfig, cfg.Density)
	}
	if cfg.Perturbation < 0 || cfg.Perturbation >= 1 {
		return nil, fmt.Errorf("%w: perturbation %g not in [0,1)", ErrInvalidConfig, cfg.Perturbation)
	}

	s := &State{
		N:  l.NewField("rho", grid.Rho),
		Pe: l.NewField("Pe", grid.P),
		Ve: l.NewVecField("Ve", grid.Velocity),
		B:  l.NewVecField("B", grid.Magnetic),
		J:  l.NewVecField("J", grid.Current),
		E:  l.NewVecField("E", grid.Electric),
	}
	s.Ve.Fill(cfg.Velocity)
	s.B.Fill(cfg.Magnetic)
	s.J.Fill(cfg.Current)

	if cfg.Perturbation == 0 {
		s.N.Fill(cfg.Density)
		s.Pe.Fill(cfg.Pressure)
		return s, nil
	}

	// Two independent layers so density and pressure gradients do not cancel.
	densNoise := opensimplex.NewNormalized(cfg.Seed)
	presNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	fillNoisy(l, s.N, densNoise, cfg, cfg.Density)
	fillNoisy(l, s.Pe, presNoise, cfg, cfg.Pressure)
	return s, nil
}

func fillNoisy(l *grid.Layout, f *grid.Field, noise opensimplex.Noise, cfg Config, base float64) {
	l.GhostBox(f.Qty).Each(func(idx grid.MeshIndex) {
		x := l.Coordinate(f.Qty, idx)
		n := octaveNoise(noise, l.Dimension(), x, cfg.Octaves, cfg.Frequency, 0.5)
		f.Set(idx, base*(1+cfg.Perturbation*(2*n-1)))
	})
}

// octaveNoise layers octaves of normalized noise, returning a value in [0,1].
func octaveNoise(noise opensimplex.Noise, dim int, x [3]float64, octaves int, frequency, persistence float64) float64 {
	if octaves < 1 {
		octaves = 1
	}
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		var v float64
		switch dim {
		case 3:
			v = noise.Eval3(x[0]*frequency, x[1]*frequency, x[2]*frequency)
		default:
			v = noise.Eval2(x[0]*frequency, x[1]*frequency)
		}
		total += v * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return math.Min(1, math.Max(0, total/maxVal))
}
