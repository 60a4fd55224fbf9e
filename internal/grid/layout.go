package grid

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidLayout is returned when a layout configuration cannot describe a mesh.
var ErrInvalidLayout = errors.New("invalid grid layout")

// Config describes a uniform patch. Entries past Dimension are ignored.
type Config struct {
	Dimension int        // 1, 2 or 3
	Cells     [3]int     // Physical cells per axis
	MeshSize  [3]float64 // Cell width per axis
	Ghosts    int        // Ghost width on each side, at least 1
}

// DefaultConfig returns a small 1D patch.
func DefaultConfig() Config {
	return Config{
		Dimension: 1,
		Cells:     [3]int{64, 1, 1},
		MeshSize:  [3]float64{0.1, 1, 1},
		Ghosts:    2,
	}
}

// Layout is a Yee layout bound to one patch. It is immutable once built and
// safe for concurrent readers.
type Layout struct {
	dim    int
	cells  [3]int
	dl     [3]float64
	invDl  [3]float64
	ghosts int
	axes   []int
}

// NewLayout validates cfg and builds a layout.
func NewLayout(cfg Config) (*Layout, error) {
	if cfg.Dimension < 1 || cfg.Dimension > 3 {
		return nil, fmt.Errorf("%w: dimension %d not in [1,3]", ErrInvalidLayout, cfg.Dimension)
	}
	if cfg.Ghosts < 1 {
		return nil, fmt.Errorf("%w: ghost width %d, need at least 1", ErrInvalidLayout, cfg.Ghosts)
	}

	l := &Layout{dim: cfg.Dimension, ghosts: cfg.Ghosts}
	for ax := 0; ax < 3; ax++ {
		if ax >= cfg.Dimension {
			l.cells[ax] = 1
			l.dl[ax] = 1
			l.invDl[ax] = 1
			continue
		}
		if cfg.Cells[ax] < 1 {
			return nil, fmt.Errorf("%w: %d cells on axis %d", ErrInvalidLayout, cfg.Cells[ax], ax)
		}
		if !(cfg.MeshSize[ax] > 0) {
			return nil, fmt.Errorf("%w: mesh size %g on axis %d", ErrInvalidLayout, cfg.MeshSize[ax], ax)
		}
		l.cells[ax] = cfg.Cells[ax]
		l.dl[ax] = cfg.MeshSize[ax]
		l.invDl[ax] = 1 / cfg.MeshSize[ax]
		l.axes = append(l.axes, ax)
	}
	return l, nil
}

// Refined returns the layout covering the same patch with ratio times more
// cells per active axis.
func (l *Layout) Refined(ratio int) (*Layout, error) {
	if ratio < 1 {
		return nil, fmt.Errorf("%w: refinement ratio %d", ErrInvalidLayout, ratio)
	}
	cfg := l.Config()
	for _, ax := range l.axes {
		cfg.Cells[ax] *= ratio
		cfg.MeshSize[ax] /= float64(ratio)
	}
	return NewLayout(cfg)
}

// Config returns the configuration the layout was built from.
func (l *Layout) Config() Config {
	return Config{Dimension: l.dim, Cells: l.cells, MeshSize: l.dl, Ghosts: l.ghosts}
}

// Dimension returns the number of active axes.
func (l *Layout) Dimension() int { return l.dim }

// Ghosts returns the ghost width.
func (l *Layout) Ghosts() int { return l.ghosts }

// Cells returns the physical cell count per axis.
func (l *Layout) Cells() [3]int { return l.cells }

// MeshSize returns the cell width per axis.
func (l *Layout) MeshSize() [3]float64 { return l.dl }

// ActiveAxes lists the axes below the dimension, in order.
func (l *Layout) ActiveAxes() []int {
	return slices.Clone(l.axes)
}

// Active reports whether axis takes part in the layout.
func (l *Layout) Active(axis int) bool {
	return axis < l.dim
}

// AllocShape returns the storage extent of q, ghosts included.
func (l *Layout) AllocShape(q Quantity) [3]int {
	shape := [3]int{1, 1, 1}
	cent := q.Centering()
	for _, ax := range l.axes {
		shape[ax] = l.cells[ax] + 2*l.ghosts
		if cent[ax] == Primal {
			shape[ax]++
		}
	}
	return shape
}

// NewField allocates a zeroed field for q on this layout.
func (l *Layout) NewField(name string, q Quantity) *Field {
	return NewField(name, q, l.AllocShape(q))
}

// NewVecField allocates the three components of v.
func (l *Layout) NewVecField(name string, v VecQuantity) *VecField {
	vf := &VecField{Name: name, Qty: v}
	for _, c := range Components {
		q := v.Component(c)
		vf.Comps[c] = l.NewField(name+"_"+c.String(), q)
	}
	return vf
}

// PhysicalStart returns the first non-ghost storage index of q along axis.
func (l *Layout) PhysicalStart(q Quantity, axis int) int {
	if !l.Active(axis) {
		return 0
	}
	return l.ghosts
}

// PhysicalEnd returns the last non-ghost storage index of q along axis.
func (l *Layout) PhysicalEnd(q Quantity, axis int) int {
	if !l.Active(axis) {
		return 0
	}
	end := l.ghosts + l.cells[axis] - 1
	if q.Centering()[axis] == Primal {
		end++
	}
	return end
}

// PhysicalBox returns the non-ghost index box of q.
func (l *Layout) PhysicalBox(q Quantity) Box {
	var b Box
	for ax := 0; ax < 3; ax++ {
		b.Lower[ax] = l.PhysicalStart(q, ax)
		b.Upper[ax] = l.PhysicalEnd(q, ax)
	}
	return b
}

// GhostBox returns the full allocation box of q.
func (l *Layout) GhostBox(q Quantity) Box {
	shape := l.AllocShape(q)
	return Box{Upper: MeshIndex{shape[0] - 1, shape[1] - 1, shape[2] - 1}}
}

// EvalOnBox calls fn for every physical index of f.
func (l *Layout) EvalOnBox(f *Field, fn func(MeshIndex)) {
	l.PhysicalBox(f.Qty).Each(fn)
}

// Coordinate returns the physical position of q's sample at idx, with the
// first physical primal node at the origin.
func (l *Layout) Coordinate(q Quantity, idx MeshIndex) [3]float64 {
	var x [3]float64
	cent := q.Centering()
	for _, ax := range l.axes {
		pos := float64(idx[ax] - l.ghosts)
		if cent[ax] == Dual {
			pos += 0.5
		}
		x[ax] = pos * l.dl[ax]
	}
	return x
}

// Box is an inclusive index range.
type Box struct {
	Lower, Upper MeshIndex
}

// Empty reports whether the box holds no index.
func (b Box) Empty() bool {
	for ax := 0; ax < 3; ax++ {
		if b.Upper[ax] < b.Lower[ax] {
			return true
		}
	}
	return false
}

// Size returns the number of indices in the box.
func (b Box) Size() int {
	if b.Empty() {
		return 0
	}
	n := 1
	for ax := 0; ax < 3; ax++ {
		n *= b.Upper[ax] - b.Lower[ax] + 1
	}
	return n
}

// Each visits the box in storage order.
func (b Box) Each(fn func(MeshIndex)) {
	if b.Empty() {
		return
	}
	var idx MeshIndex
	for idx[0] = b.Lower[0]; idx[0] <= b.Upper[0]; idx[0]++ {
		for idx[1] = b.Lower[1]; idx[1] <= b.Upper[1]; idx[1]++ {
			for idx[2] = b.Lower[2]; idx[2] <= b.Upper[2]; idx[2]++ {
				fn(idx)
			}
		}
	}
}

// Split cuts the box along its first axis into at most n contiguous slabs.
func (b Box) Split(n int) []Box {
	if b.Empty() {
		return nil
	}
	extent := b.Upper[0] - b.Lower[0] + 1
	if n < 1 {
		n = 1
	}
	if n > extent {
		n = extent
	}
	slabs := make([]Box, 0, n)
	lo := b.Lower[0]
	for i := 0; i < n; i++ {
		width := extent / n
		if i < extent%n {
			width++
		}
		s := b
		s.Lower[0] = lo
		s.Upper[0] = lo + width - 1
		slabs = append(slabs, s)
		lo += width
	}
	return slabs
}
