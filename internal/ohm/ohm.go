// Package ohm evaluates the generalized Ohm's law for the electric field on a
// Yee staggered mesh:
//
//	E = -Ve × B - ∇Pe/n + η J - ν ∇²J
//
// Every term is sampled at the staggered position of the E component being
// written. The kernel is generic over the layout dimension and the target
// component; per-component stencils are resolved once when a layout is bound.
package ohm

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/yee-ohm/internal/grid"
)

var (
	// ErrLayoutNotSet is returned when evaluating without a bound layout.
	ErrLayoutNotSet = errors.New("ohm: grid layout not set, cannot compute E")

	// ErrInvalidConfig is returned for non-finite or negative coefficients.
	ErrInvalidConfig = errors.New("ohm: invalid configuration")

	// ErrMissingField is returned when an input or output field is nil.
	ErrMissingField = errors.New("ohm: missing field")

	// ErrFieldShape is returned when a field's extent does not match the
	// bound layout's allocation for its quantity.
	ErrFieldShape = errors.New("ohm: field shape does not match layout")
)

// Config holds the transport coefficients.
type Config struct {
	Resistivity      float64 `yaml:"resistivity" env:"OHM_RESISTIVITY"`
	HyperResistivity float64 `yaml:"hyper_resistivity" env:"OHM_HYPER_RESISTIVITY"`
	Workers          int     `yaml:"workers" env:"OHM_WORKERS"` // 0 = GOMAXPROCS
}

// DefaultConfig returns the coefficients used by the bundled runs.
func DefaultConfig() Config {
	return Config{
		Resistivity:      0.001,
		HyperResistivity: 0.001,
	}
}

// Ohm carries the immutable coefficients. It cannot evaluate until bound to a
// layout with Bind.
type Ohm struct {
	eta     float64
	nu      float64
	workers int
}

// New validates cfg and returns an unbound kernel.
func New(cfg Config) (*Ohm, error) {
	if !finiteNonNegative(cfg.Resistivity) {
		return nil, fmt.Errorf("%w: resistivity %g", ErrInvalidConfig, cfg.Resistivity)
	}
	if !finiteNonNegative(cfg.HyperResistivity) {
		return nil, fmt.Errorf("%w: hyper_resistivity %g", ErrInvalidConfig, cfg.HyperResistivity)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: workers %d", ErrInvalidConfig, cfg.Workers)
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ohm{eta: cfg.Resistivity, nu: cfg.HyperResistivity, workers: workers}, nil
}

func finiteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Resistivity returns η.
func (o *Ohm) Resistivity() float64 { return o.eta }

// HyperResistivity returns ν.
func (o *Ohm) HyperResistivity() float64 { return o.nu }

// Bind attaches layout and precomputes every stencil the three E components
// need. The returned Bound is safe for concurrent use.
func (o *Ohm) Bind(layout *grid.Layout) (*Bound, error) {
	if layout == nil {
		return nil, ErrLayoutNotSet
	}
	b := &Bound{ohm: o, layout: layout}
	for _, c := range grid.Components {
		b.stencils[c] = newComponentStencils(layout, c)
	}
	slog.Debug("ohm kernel bound",
		"dimension", layout.Dimension(),
		"eta", o.eta,
		"nu", o.nu,
		"workers", o.workers,
	)
	return b, nil
}

// cyclicPair gives the two other components (a, b) of each target c, ordered
// so that (c, a, b) is an even permutation of (x, y, z).
var cyclicPair = [3][2]grid.Component{
	grid.X: {grid.Y, grid.Z},
	grid.Y: {grid.Z, grid.X},
	grid.Z: {grid.X, grid.Y},
}

// componentStencils holds everything one E component evaluates with.
type componentStencils struct {
	comp grid.Component
	eQty grid.Quantity
	a, b grid.Component

	momentsToE grid.Rule
	baToE      grid.Rule
	bbToE      grid.Rule
	jToE       grid.Rule

	// pressure is false when the component's axis is beyond the dimension.
	pressure bool
}

func newComponentStencils(l *grid.Layout, c grid.Component) componentStencils {
	e := grid.Electric.Component(c)
	pair := cyclicPair[c]
	return componentStencils{
		comp:       c,
		eQty:       e,
		a:          pair[0],
		b:          pair[1],
		momentsToE: l.Rule(grid.Rho, e),
		baToE:      l.Rule(grid.Magnetic.Component(pair[0]), e),
		bbToE:      l.Rule(grid.Magnetic.Component(pair[1]), e),
		jToE:       l.Rule(grid.Current.Component(c), e),
		pressure:   l.Active(int(c)),
	}
}

// Bound is a kernel with its layout attached.
type Bound struct {
	ohm      *Ohm
	layout   *grid.Layout
	stencils [3]componentStencils
}

// Layout returns the bound layout.
func (k *Bound) Layout() *grid.Layout { return k.layout }

// Resistivity returns η.
func (k *Bound) Resistivity() float64 { return k.ohm.eta }

// HyperResistivity returns ν.
func (k *Bound) HyperResistivity() float64 { return k.ohm.nu }

// inputs bundles the read-only fields of one evaluation.
type inputs struct {
	n, pe    *grid.Field
	ve, b, j *grid.VecField
}

// Evaluate overwrites every physical sample of E with the sum of the ideal,
// pressure, resistive and hyper-resistive terms. It fails before writing
// anything when no layout is bound or a field is missing or does not match
// the layout's allocation. Inputs are only
// read; the physical boxes of E's three components are written in parallel
// slabs.
//
// A non-positive projected density is not guarded against and shows up as
// Inf or NaN in E.
func (k *Bound) Evaluate(n *grid.Field, ve *grid.VecField, pe *grid.Field, b, j, e *grid.VecField) error {
	if k == nil || k.ohm == nil || k.layout == nil {
		return ErrLayoutNotSet
	}
	if err := k.checkFields(n, ve, pe, b, j, e); err != nil {
		return err
	}

	in := inputs{n: n, pe: pe, ve: ve, b: b, j: j}

	var g errgroup.Group
	g.SetLimit(k.ohm.workers)
	for c := range k.stencils {
		st := &k.stencils[c]
		out := e.Component(st.comp)
		for _, slab := range k.layout.PhysicalBox(st.eQty).Split(k.ohm.workers) {
			g.Go(func() error {
				slab.Each(func(idx grid.MeshIndex) {
					out.Set(idx, k.eAt(st, &in, idx))
				})
				return nil
			})
		}
	}
	return g.Wait()
}

func (k *Bound) checkFields(n *grid.Field, ve *grid.VecField, pe *grid.Field, b, j, e *grid.VecField) error {
	if n == nil || pe == nil {
		return fmt.Errorf("%w: density or pressure", ErrMissingField)
	}
	if err := k.checkShape(n, grid.Rho); err != nil {
		return err
	}
	if err := k.checkShape(pe, grid.P); err != nil {
		return err
	}
	vecs := []struct {
		v   *grid.VecField
		qty grid.VecQuantity
	}{{ve, grid.Velocity}, {b, grid.Magnetic}, {j, grid.Current}, {e, grid.Electric}}
	for _, vq := range vecs {
		if vq.v == nil {
			return fmt.Errorf("%w: vector field", ErrMissingField)
		}
		for c, f := range vq.v.Comps {
			if f == nil {
				return fmt.Errorf("%w: component of %s", ErrMissingField, vq.v.Name)
			}
			if err := k.checkShape(f, vq.qty.Component(grid.Component(c))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (k *Bound) checkShape(f *grid.Field, q grid.Quantity) error {
	if want := k.layout.AllocShape(q); f.Shape() != want {
		return fmt.Errorf("%w: %s has shape %v, want %v for %s", ErrFieldShape, f.Name, f.Shape(), want, q)
	}
	return nil
}

func (k *Bound) eAt(st *componentStencils, in *inputs, idx grid.MeshIndex) float64 {
	return k.ideal(st, in.ve, in.b, idx) +
		k.pressure(st, in.n, in.pe, idx) +
		k.resistive(st, in.j, idx) +
		k.hyperResistive(st, in.j, idx)
}

// ideal is the convective term -(Ve × B)_c = -Va·Bb + Vb·Ba.
func (k *Bound) ideal(st *componentStencils, ve, b *grid.VecField, idx grid.MeshIndex) float64 {
	va := grid.Project(ve.Component(st.a), idx, st.momentsToE)
	vb := grid.Project(ve.Component(st.b), idx, st.momentsToE)
	ba := grid.Project(b.Component(st.a), idx, st.baToE)
	bb := grid.Project(b.Component(st.b), idx, st.bbToE)
	return -va*bb + vb*ba
}

// pressure is -∂cPe/n, zero when axis c is inactive.
func (k *Bound) pressure(st *componentStencils, n, pe *grid.Field, idx grid.MeshIndex) float64 {
	if !st.pressure {
		return 0
	}
	nOnE := grid.Project(n, idx, st.momentsToE)
	grad := k.layout.Deriv(pe, idx, int(st.comp))
	return -grad / nOnE
}

func (k *Bound) resistive(st *componentStencils, j *grid.VecField, idx grid.MeshIndex) float64 {
	return k.ohm.eta * grid.Project(j.Component(st.comp), idx, st.jToE)
}

func (k *Bound) hyperResistive(st *componentStencils, j *grid.VecField, idx grid.MeshIndex) float64 {
	return -k.ohm.nu * k.layout.Laplacian(j.Component(st.comp), idx)
}
