// Package refine computes the linear-interpolation offsets used to transfer
// coarse-level data onto a finer level of the adaptive mesh, and applies them.
package refine

import (
	"errors"
	"fmt"

	"github.com/talgya/yee-ohm/internal/grid"
)

var (
	// ErrTooFewPoints is returned when fewer than two points are requested.
	ErrTooFewPoints = errors.New("refine: point count must be greater than 1")

	// ErrTooManyPoints is returned when more points than fine sub-positions are requested.
	ErrTooManyPoints = errors.New("refine: point count exceeds refinement ratio")

	// ErrBadRatio is returned for a refinement ratio below 2.
	ErrBadRatio = errors.New("refine: refinement ratio must be at least 2")
)

// Weights is the offset table of one (centering, ratio) pair: for each fine
// sub-position inside a coarse interval, the fractional distance from the
// left coarse sample. The table is immutable and safe to share.
type Weights struct {
	centering grid.Centering
	ratio     int
	distances []float64
	written   []bool
}

// NewPartitionWeights builds the table for ratio fine sub-positions, filling
// points of them.
//
// Primal: slot i holds i/ratio, so every ratio-th fine node lands on a coarse node.
//
// Dual, even ratio: slot (ratio/2+i) mod ratio holds (i+1/2)/ratio, so the
// fine samples straddle the coarse centre.
//
// Dual, odd ratio: slot (ratio/2+i) mod ratio holds i/ratio for i >= 1. Slot
// ratio/2 is left unwritten: that fine sample coincides with the coarse one.
func NewPartitionWeights(centering grid.Centering, ratio, points int) (*Weights, error) {
	if points <= 1 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, points)
	}
	if ratio < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrBadRatio, ratio)
	}
	if points > ratio {
		return nil, fmt.Errorf("%w: %d points for ratio %d", ErrTooManyPoints, points, ratio)
	}

	w := &Weights{
		centering: centering,
		ratio:     ratio,
		distances: make([]float64, ratio),
		written:   make([]bool, ratio),
	}

	half := ratio / 2
	cell := 1 / float64(ratio)

	switch {
	case centering == grid.Primal:
		for i := 0; i < points; i++ {
			w.set(i, float64(i)/float64(ratio))
		}
	case ratio%2 == 0:
		for i := 0; i < points; i++ {
			w.set((half+i)%ratio, (0.5+float64(i))*cell)
		}
	default:
		for i := 1; i < points; i++ {
			w.set((half+i)%ratio, float64(i)/float64(ratio))
		}
	}
	return w, nil
}

func (w *Weights) set(slot int, d float64) {
	w.distances[slot] = d
	w.written[slot] = true
}

// Centering returns the centering the table was built for.
func (w *Weights) Centering() grid.Centering { return w.centering }

// Ratio returns the refinement ratio.
func (w *Weights) Ratio() int { return w.ratio }

// Len returns the number of slots, always the ratio.
func (w *Weights) Len() int { return len(w.distances) }

// Distance returns the offset of slot i and whether it was written. An
// unwritten slot must not be used as an offset.
func (w *Weights) Distance(i int) (float64, bool) {
	if i < 0 || i >= len(w.distances) {
		return 0, false
	}
	return w.distances[i], w.written[i]
}

// Written reports whether slot i holds an offset.
func (w *Weights) Written(i int) bool {
	_, ok := w.Distance(i)
	return ok
}

// Distances returns a copy of the table. Unwritten slots read as zero.
func (w *Weights) Distances() []float64 {
	out := make([]float64, len(w.distances))
	copy(out, w.distances)
	return out
}
