package ohm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/talgya/yee-ohm/internal/grid"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fields struct {
	n, pe    *grid.Field
	ve, b, j *grid.VecField
	e        *grid.VecField
}

func newLayout(t *testing.T, dim int) *grid.Layout {
	t.Helper()
	l, err := grid.NewLayout(grid.Config{
		Dimension: dim,
		Cells:     [3]int{10, 7, 5},
		MeshSize:  [3]float64{0.2, 0.5, 0.25},
		Ghosts:    2,
	})
	require.NoError(t, err)
	return l
}

// newFields allocates unit density and zero everything else.
func newFields(l *grid.Layout) *fields {
	f := &fields{
		n:  l.NewField("rho", grid.Rho),
		pe: l.NewField("Pe", grid.P),
		ve: l.NewVecField("Ve", grid.Velocity),
		b:  l.NewVecField("B", grid.Magnetic),
		j:  l.NewVecField("J", grid.Current),
		e:  l.NewVecField("E", grid.Electric),
	}
	f.n.Fill(1)
	return f
}

func bind(t *testing.T, l *grid.Layout, cfg Config) *Bound {
	t.Helper()
	o, err := New(cfg)
	require.NoError(t, err)
	k, err := o.Bind(l)
	require.NoError(t, err)
	return k
}

func evaluate(t *testing.T, k *Bound, f *fields) {
	t.Helper()
	require.NoError(t, k.Evaluate(f.n, f.ve, f.pe, f.b, f.j, f.e))
}

// eachE visits every physical sample of every E component.
func eachE(l *grid.Layout, f *fields, fn func(c grid.Component, idx grid.MeshIndex, v float64)) {
	for _, c := range grid.Components {
		out := f.e.Component(c)
		l.EvalOnBox(out, func(idx grid.MeshIndex) {
			fn(c, idx, out.At(idx))
		})
	}
}

func TestNew_RejectsBadCoefficients(t *testing.T) {
	for _, cfg := range []Config{
		{Resistivity: -1},
		{HyperResistivity: math.NaN()},
		{Resistivity: math.Inf(1)},
		{Workers: -2},
	} {
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, "%+v", cfg)
	}
}

func TestOhm_ExposesCoefficients(t *testing.T) {
	o, err := New(Config{Resistivity: 0.1, HyperResistivity: 0.02})
	require.NoError(t, err)
	assert.Equal(t, 0.1, o.Resistivity())
	assert.Equal(t, 0.02, o.HyperResistivity())

	k, err := o.Bind(newLayout(t, 2))
	require.NoError(t, err)
	assert.Equal(t, 0.1, k.Resistivity())
	assert.Equal(t, 0.02, k.HyperResistivity())
	assert.Equal(t, 2, k.Layout().Dimension())
}

func TestEvaluate_WithoutLayoutLeavesOutputUntouched(t *testing.T) {
	l := newLayout(t, 2)
	f := newFields(l)
	f.e.Fill([3]float64{7, 8, 9})

	o, err := New(DefaultConfig())
	require.NoError(t, err)
	_, err = o.Bind(nil)
	assert.ErrorIs(t, err, ErrLayoutNotSet)

	var nilKernel *Bound
	assert.ErrorIs(t, nilKernel.Evaluate(f.n, f.ve, f.pe, f.b, f.j, f.e), ErrLayoutNotSet)
	assert.ErrorIs(t, (&Bound{}).Evaluate(f.n, f.ve, f.pe, f.b, f.j, f.e), ErrLayoutNotSet)

	for c, want := range [3]float64{7, 8, 9} {
		for _, v := range f.e.Comps[c].Data() {
			require.Equal(t, want, v)
		}
	}
}

func TestEvaluate_MissingField(t *testing.T) {
	l := newLayout(t, 1)
	f := newFields(l)
	k := bind(t, l, DefaultConfig())

	assert.ErrorIs(t, k.Evaluate(nil, f.ve, f.pe, f.b, f.j, f.e), ErrMissingField)
	assert.ErrorIs(t, k.Evaluate(f.n, f.ve, f.pe, f.b, f.j, nil), ErrMissingField)

	f.b.Comps[grid.Y] = nil
	assert.ErrorIs(t, k.Evaluate(f.n, f.ve, f.pe, f.b, f.j, f.e), ErrMissingField)
}

func TestEvaluate_WrongShapeLeavesOutputUntouched(t *testing.T) {
	l := newLayout(t, 2)
	f := newFields(l)
	f.e.Fill([3]float64{7, 8, 9})
	k := bind(t, l, DefaultConfig())

	other := newLayout(t, 3)
	j := f.j
	f.j = other.NewVecField("J", grid.Current)
	assert.ErrorIs(t, k.Evaluate(f.n, f.ve, f.pe, f.b, f.j, f.e), ErrFieldShape)

	// Bx is dual along y, Vx is not.
	f.j = j
	assert.ErrorIs(t, k.Evaluate(f.n, f.b, f.pe, f.b, f.j, f.e), ErrFieldShape)

	f.pe = other.NewField("Pe", grid.P)
	assert.ErrorIs(t, k.Evaluate(f.n, f.ve, f.pe, f.b, f.j, f.e), ErrFieldShape)

	for c, want := range [3]float64{7, 8, 9} {
		for _, v := range f.e.Comps[c].Data() {
			require.Equal(t, want, v)
		}
	}
}

func TestEvaluate_QuietPlasmaGivesZeroField(t *testing.T) {
	for dim := 1; dim <= 3; dim++ {
		l := newLayout(t, dim)
		f := newFields(l)
		f.n.Fill(2.5)
		f.pe.Fill(0.8)
		f.b.Fill([3]float64{1, -2, 3})
		f.e.Fill([3]float64{5, 5, 5})

		evaluate(t, bind(t, l, Config{Resistivity: 0.3, HyperResistivity: 0.1}), f)

		eachE(l, f, func(c grid.Component, idx grid.MeshIndex, v float64) {
			require.Equal(t, 0.0, v, "dim %d E%s at %v", dim, c, idx)
		})
	}
}

func TestEvaluate_ResistiveTermAlone(t *testing.T) {
	eta, jx0 := 0.1, 2.3
	for dim := 1; dim <= 3; dim++ {
		l := newLayout(t, dim)
		f := newFields(l)
		f.j.Fill([3]float64{jx0, 0, 0})

		evaluate(t, bind(t, l, Config{Resistivity: eta}), f)

		eachE(l, f, func(c grid.Component, idx grid.MeshIndex, v float64) {
			want := 0.0
			if c == grid.X {
				want = eta * jx0
			}
			require.Equal(t, want, v, "dim %d E%s at %v", dim, c, idx)
		})
	}
}

func TestEvaluate_IdealTermSign(t *testing.T) {
	vy0, bz0 := 0.7, 1.9
	for dim := 1; dim <= 3; dim++ {
		l := newLayout(t, dim)
		f := newFields(l)
		f.ve.Fill([3]float64{0, vy0, 0})
		f.b.Fill([3]float64{0, 0, bz0})

		evaluate(t, bind(t, l, Config{}), f)

		eachE(l, f, func(c grid.Component, idx grid.MeshIndex, v float64) {
			want := 0.0
			if c == grid.X {
				want = -vy0 * bz0
			}
			require.Equal(t, want, v, "dim %d E%s at %v", dim, c, idx)
		})
	}
}

func TestEvaluate_IdealTermIsMinusVCrossB(t *testing.T) {
	v := [3]float64{1, 2, 3}
	b := [3]float64{4, 5, 6}
	cross := [3]float64{
		v[1]*b[2] - v[2]*b[1],
		v[2]*b[0] - v[0]*b[2],
		v[0]*b[1] - v[1]*b[0],
	}

	for dim := 1; dim <= 3; dim++ {
		l := newLayout(t, dim)
		f := newFields(l)
		f.ve.Fill(v)
		f.b.Fill(b)

		evaluate(t, bind(t, l, Config{}), f)

		eachE(l, f, func(c grid.Component, idx grid.MeshIndex, got float64) {
			require.InDelta(t, -cross[c], got, 1e-14, "dim %d E%s", dim, c)
		})
	}
}

// linearOnLayout fills f with a0 + Σ grad[ax]·x[ax] at its own staggered
// coordinates, ghosts included.
func linearOnLayout(l *grid.Layout, f *grid.Field, a0 float64, grad [3]float64) {
	l.GhostBox(f.Qty).Each(func(idx grid.MeshIndex) {
		f.Set(idx, linearAt(l.Coordinate(f.Qty, idx), a0, grad))
	})
}

func linearAt(x [3]float64, a0 float64, grad [3]float64) float64 {
	return a0 + grad[0]*x[0] + grad[1]*x[1] + grad[2]*x[2]
}

func TestEvaluate_IdealTermAtStaggeredPosition(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for dim := 1; dim <= 3; dim++ {
		l := newLayout(t, dim)
		f := newFields(l)

		var v0, b0 [3]float64
		var vGrad, bGrad [3][3]float64
		for c := range 3 {
			v0[c] = rng.Float64()*2 - 1
			b0[c] = rng.Float64()*2 - 1
			for _, ax := range l.ActiveAxes() {
				vGrad[c][ax] = rng.Float64()*2 - 1
				bGrad[c][ax] = rng.Float64()*2 - 1
			}
			linearOnLayout(l, f.ve.Comps[c], v0[c], vGrad[c])
			linearOnLayout(l, f.b.Comps[c], b0[c], bGrad[c])
		}

		evaluate(t, bind(t, l, Config{}), f)

		eachE(l, f, func(c grid.Component, idx grid.MeshIndex, got float64) {
			x := l.Coordinate(grid.Electric.Component(c), idx)
			a, b := (c+1)%3, (c+2)%3
			va, vb := linearAt(x, v0[a], vGrad[a]), linearAt(x, v0[b], vGrad[b])
			ba, bb := linearAt(x, b0[a], bGrad[a]), linearAt(x, b0[b], bGrad[b])
			require.InDelta(t, -va*bb+vb*ba, got, 1e-13, "dim %d E%s at %v", dim, c, idx)
		})
	}
}

func TestEvaluate_PressureTermInactiveAxesAreZero(t *testing.T) {
	l := newLayout(t, 1)
	f := newFields(l)
	l.GhostBox(grid.P).Each(func(idx grid.MeshIndex) {
		x := l.Coordinate(grid.P, idx)
		f.pe.Set(idx, 1+3*x[0])
	})

	evaluate(t, bind(t, l, Config{}), f)

	eachE(l, f, func(c grid.Component, idx grid.MeshIndex, v float64) {
		if c == grid.X {
			require.InDelta(t, -3.0, v, 1e-12)
			return
		}
		require.Equal(t, 0.0, v, "E%s at %v", c, idx)
	})
}

func TestEvaluate_PressureGradientOverProjectedDensity(t *testing.T) {
	grad := [3]float64{3, -1.5, 0.5}
	for dim := 1; dim <= 3; dim++ {
		l := newLayout(t, dim)
		f := newFields(l)
		l.GhostBox(grid.P).Each(func(idx grid.MeshIndex) {
			x := l.Coordinate(grid.P, idx)
			f.pe.Set(idx, 2+grad[0]*x[0]+grad[1]*x[1]+grad[2]*x[2])
			f.n.Set(idx, 1+0.5*x[0]+0.25*x[1])
		})

		evaluate(t, bind(t, l, Config{}), f)

		eachE(l, f, func(c grid.Component, idx grid.MeshIndex, v float64) {
			if !l.Active(int(c)) {
				require.Equal(t, 0.0, v)
				return
			}
			x := l.Coordinate(grid.Electric.Component(c), idx)
			n := 1 + 0.5*x[0] + 0.25*x[1]
			require.InDelta(t, -grad[c]/n, v, 1e-10, "dim %d E%s at %v", dim, c, idx)
		})
	}
}

func TestEvaluate_HyperResistiveTerm(t *testing.T) {
	const nu = 0.5
	for dim := 1; dim <= 3; dim++ {
		l := newLayout(t, dim)
		f := newFields(l)
		jz := f.j.Component(grid.Z)
		l.GhostBox(grid.Jz).Each(func(idx grid.MeshIndex) {
			x := l.Coordinate(grid.Jz, idx)
			jz.Set(idx, x[0]*x[0]+x[1]*x[1]+x[2]*x[2])
		})

		evaluate(t, bind(t, l, Config{HyperResistivity: nu}), f)

		eachE(l, f, func(c grid.Component, idx grid.MeshIndex, v float64) {
			want := 0.0
			if c == grid.Z {
				want = -nu * 2 * float64(dim)
			}
			require.InDelta(t, want, v, 1e-9, "dim %d E%s at %v", dim, c, idx)
		})
	}
}

func TestEvaluate_NonPositiveDensityPropagates(t *testing.T) {
	l := newLayout(t, 1)
	f := newFields(l)
	f.n.Fill(0)
	l.GhostBox(grid.P).Each(func(idx grid.MeshIndex) {
		f.pe.Set(idx, float64(idx[0]))
	})

	evaluate(t, bind(t, l, Config{}), f)

	l.EvalOnBox(f.e.Component(grid.X), func(idx grid.MeshIndex) {
		assert.True(t, math.IsInf(f.e.Component(grid.X).At(idx), -1))
	})
}

func TestEvaluate_WritesOnlyPhysicalBox(t *testing.T) {
	l := newLayout(t, 2)
	f := newFields(l)
	f.e.Fill([3]float64{-1, -1, -1})

	evaluate(t, bind(t, l, Config{}), f)

	for _, c := range grid.Components {
		out := f.e.Component(c)
		phys := l.PhysicalBox(out.Qty)
		l.GhostBox(out.Qty).Each(func(idx grid.MeshIndex) {
			inside := true
			for ax := 0; ax < 3; ax++ {
				inside = inside && idx[ax] >= phys.Lower[ax] && idx[ax] <= phys.Upper[ax]
			}
			if inside {
				assert.Equal(t, 0.0, out.At(idx))
			} else {
				assert.Equal(t, -1.0, out.At(idx))
			}
		})
	}
}

func TestEvaluate_ParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := newLayout(t, 3)
	f := newFields(l)
	for i := range f.pe.Data() {
		f.pe.Data()[i] = rng.Float64()
	}
	for i := range f.n.Data() {
		f.n.Data()[i] = 1 + rng.Float64()
	}
	for _, v := range []*grid.VecField{f.ve, f.b, f.j} {
		for _, comp := range v.Comps {
			for i := range comp.Data() {
				comp.Data()[i] = rng.NormFloat64()
			}
		}
	}

	cfg := Config{Resistivity: 0.01, HyperResistivity: 0.002, Workers: 1}
	evaluate(t, bind(t, l, cfg), f)
	serial := [3][]float64{}
	for c, comp := range f.e.Comps {
		serial[c] = append([]float64(nil), comp.Data()...)
	}

	for _, workers := range []int{2, 3, 8} {
		cfg.Workers = workers
		f.e.Fill([3]float64{})
		evaluate(t, bind(t, l, cfg), f)
		for c, comp := range f.e.Comps {
			require.Equal(t, serial[c], comp.Data(), "workers %d E%s", workers, grid.Component(c))
		}
	}
}
