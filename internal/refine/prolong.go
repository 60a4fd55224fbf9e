package refine

import (
	"errors"
	"fmt"

	"github.com/talgya/yee-ohm/internal/grid"
)

var (
	// ErrIncompleteTable is returned when a table is missing a slot the
	// interpolator would read.
	ErrIncompleteTable = errors.New("refine: offset table has unwritten slots")

	// ErrLevelMismatch is returned when the coarse and fine fields do not
	// describe the same patch at the given ratio.
	ErrLevelMismatch = errors.New("refine: coarse and fine levels do not match")
)

// Interpolator maps fine indices onto the two coarse samples bracketing them.
// Indices are level-relative: fine index 0 and coarse index 0 start the same
// patch.
type Interpolator struct {
	w     *Weights
	shift int
}

// NewInterpolator wraps a table built with points equal to its ratio.
func NewInterpolator(w *Weights) (*Interpolator, error) {
	for slot := 0; slot < w.Len(); slot++ {
		if !w.Written(slot) && !w.coincident(slot) {
			return nil, fmt.Errorf("%w: slot %d", ErrIncompleteTable, slot)
		}
	}
	ip := &Interpolator{w: w}
	if w.centering == grid.Dual {
		ip.shift = w.ratio / 2
	}
	return ip, nil
}

// coincident reports whether slot is the fine sample sitting on a coarse one,
// which only happens for dual quantities at odd ratios.
func (w *Weights) coincident(slot int) bool {
	return w.centering == grid.Dual && w.ratio%2 == 1 && slot == w.ratio/2
}

// Stencil returns the coarse index left of fine and the weights of coarse
// and coarse+1. The coincident odd-dual slot copies the coarse sample and
// never reads the table.
func (ip *Interpolator) Stencil(fine int) (coarse int, left, right float64) {
	r := ip.w.ratio
	slot := mod(fine, r)
	coarse = floorDiv(fine-ip.shift, r)
	d, ok := ip.w.Distance(slot)
	if !ok {
		return coarse, 1, 0
	}
	return coarse, 1 - d, d
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Prolong fills the physical samples of fine by linear interpolation of
// coarse along every active axis. coarse must have ghosts filled wherever
// the fine boundary samples reach past its physical box.
func Prolong(coarse *grid.Field, cl *grid.Layout, fine *grid.Field, fl *grid.Layout, ratio int) error {
	if coarse.Qty != fine.Qty {
		return fmt.Errorf("%w: quantities %s and %s", ErrLevelMismatch, coarse.Qty, fine.Qty)
	}
	if cl.Dimension() != fl.Dimension() {
		return fmt.Errorf("%w: dimensions %d and %d", ErrLevelMismatch, cl.Dimension(), fl.Dimension())
	}
	axes := cl.ActiveAxes()
	cc, fc := cl.Cells(), fl.Cells()
	for _, ax := range axes {
		if fc[ax] != cc[ax]*ratio {
			return fmt.Errorf("%w: axis %d has %d fine cells for %d coarse at ratio %d",
				ErrLevelMismatch, ax, fc[ax], cc[ax], ratio)
		}
	}

	cent := coarse.Qty.Centering()
	var ips [3]*Interpolator
	for _, ax := range axes {
		w, err := NewPartitionWeights(cent[ax], ratio, ratio)
		if err != nil {
			return err
		}
		if ips[ax], err = NewInterpolator(w); err != nil {
			return err
		}
	}

	corners := 1 << len(axes)
	fl.EvalOnBox(fine, func(idx grid.MeshIndex) {
		var base grid.MeshIndex
		var wts [3][2]float64
		for _, ax := range axes {
			c, left, right := ips[ax].Stencil(idx[ax] - fl.Ghosts())
			base[ax] = c + cl.Ghosts()
			wts[ax] = [2]float64{left, right}
		}

		var v float64
		for corner := 0; corner < corners; corner++ {
			at := base
			wt := 1.0
			for bit, ax := range axes {
				side := (corner >> bit) & 1
				at[ax] += side
				wt *= wts[ax][side]
			}
			if wt == 0 {
				continue
			}
			v += wt * coarse.At(at)
		}
		fine.Set(idx, v)
	})
	return nil
}
