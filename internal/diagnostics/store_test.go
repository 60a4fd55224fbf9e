package diagnostics

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/yee-ohm/internal/grid"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "diag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testLayout(t *testing.T) *grid.Layout {
	t.Helper()
	l, err := grid.NewLayout(grid.Config{
		Dimension: 2,
		Cells:     [3]int{4, 3},
		MeshSize:  [3]float64{1, 1},
		Ghosts:    1,
	})
	require.NoError(t, err)
	return l
}

func TestStore_RunAndAttributes(t *testing.T) {
	s := openStore(t)
	l := testLayout(t)

	id, err := s.CreateRun(l)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	run, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Dimension)
	assert.Equal(t, "[4,3,1]", run.CellsJSON)

	require.NoError(t, s.WriteAttributes(id, map[string]float64{
		"resistivity":       0.1,
		"hyper_resistivity": 0.01,
	}))
	require.NoError(t, s.WriteAttribute(id, "resistivity", 0.2))

	eta, err := s.ReadAttribute(id, "resistivity")
	require.NoError(t, err)
	assert.Equal(t, 0.2, eta)

	nu, err := s.ReadAttribute(id, "hyper_resistivity")
	require.NoError(t, err)
	assert.Equal(t, 0.01, nu)

	_, err = s.ReadAttribute(id, "missing")
	assert.Error(t, err)
}

func TestStore_FieldRoundTrip(t *testing.T) {
	s := openStore(t)
	l := testLayout(t)
	id, err := s.CreateRun(l)
	require.NoError(t, err)

	e := l.NewVecField("E", grid.Electric)
	for c, f := range e.Comps {
		for i := range f.Data() {
			f.Data()[i] = float64(c) + 0.1*float64(i)
		}
	}
	require.NoError(t, s.WriteVecField(id, "coarse/E", l, e))

	paths, err := s.Paths(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"coarse/E/x", "coarse/E/y", "coarse/E/z"}, paths)

	ds, err := s.ReadField(id, "coarse/E/y")
	require.NoError(t, err)
	ey := e.Component(grid.Y)
	assert.Equal(t, "Ey", ds.Quantity)
	assert.Equal(t, ey.Shape(), ds.Shape)
	assert.Equal(t, ey.Data(), ds.Data)
	assert.Equal(t, Summarize(physicalSamples(l, ey)), ds.Summary)
}

func physicalSamples(l *grid.Layout, f *grid.Field) []float64 {
	var out []float64
	l.EvalOnBox(f, func(idx grid.MeshIndex) {
		out = append(out, f.At(idx))
	})
	return out
}

func TestStore_NonFiniteSamplesRoundTrip(t *testing.T) {
	s := openStore(t)
	l := testLayout(t)
	id, err := s.CreateRun(l)
	require.NoError(t, err)

	ex := l.NewField("Ex", grid.Ex)
	ex.Fill(1.5)
	start := grid.MeshIndex{l.PhysicalStart(grid.Ex, 0), l.PhysicalStart(grid.Ex, 1)}
	ex.Set(start, math.Inf(-1))
	require.NoError(t, s.WriteField(id, "E/x", l, ex))

	ds, err := s.ReadField(id, "E/x")
	require.NoError(t, err)
	assert.Equal(t, ex.Data(), ds.Data)
	assert.True(t, math.IsInf(ds.Summary.Min, -1))
	assert.Equal(t, 1.5, ds.Summary.Max)

	ex.Set(start, math.NaN())
	ex.Set(grid.MeshIndex{0, 0}, math.Inf(1))
	require.NoError(t, s.WriteField(id, "E/x", l, ex))

	ds, err = s.ReadField(id, "E/x")
	require.NoError(t, err)
	require.Len(t, ds.Data, ex.Len())
	for i, want := range ex.Data() {
		got := ds.Data[i]
		if math.IsNaN(want) {
			assert.True(t, math.IsNaN(got), "sample %d", i)
			continue
		}
		assert.Equal(t, want, got, "sample %d", i)
	}
	assert.True(t, math.IsNaN(ds.Summary.L2))
}

func TestStore_SummaryExcludesGhosts(t *testing.T) {
	s := openStore(t)
	l := testLayout(t)
	id, err := s.CreateRun(l)
	require.NoError(t, err)

	rho := l.NewField("rho", grid.Rho)
	l.EvalOnBox(rho, func(idx grid.MeshIndex) {
		rho.Set(idx, 2)
	})
	require.NoError(t, s.WriteField(id, "rho", l, rho))

	ds, err := s.ReadField(id, "rho")
	require.NoError(t, err)
	assert.Equal(t, 2.0, ds.Summary.Min)
	assert.Equal(t, 2.0, ds.Summary.Max)
	n := float64(l.PhysicalBox(grid.Rho).Size())
	assert.InDelta(t, 2*math.Sqrt(n), ds.Summary.L2, 1e-12)
	assert.Contains(t, ds.Data, 0.0)
}

func TestStore_RunsAreIsolated(t *testing.T) {
	s := openStore(t)
	l := testLayout(t)
	a, err := s.CreateRun(l)
	require.NoError(t, err)
	b, err := s.CreateRun(l)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	require.NoError(t, s.WriteField(a, "rho", l, l.NewField("rho", grid.Rho)))
	paths, err := s.Paths(b)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestSummarize(t *testing.T) {
	sum := Summarize([]float64{3, -4, 0})
	assert.Equal(t, -4.0, sum.Min)
	assert.Equal(t, 3.0, sum.Max)
	assert.InDelta(t, 5.0, sum.L2, 1e-15)

	assert.Equal(t, Summary{}, Summarize(nil))
}
