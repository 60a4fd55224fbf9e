package grid

// WeightPoint is one term of a projection stencil.
type WeightPoint struct {
	Offset MeshIndex
	Weight float64
}

// Rule resamples a quantity from its own staggered position onto another.
// Weights sum to one.
type Rule []WeightPoint

// Rule builds the stencil projecting from onto the position of to. Along
// each active axis where the centerings differ, the two neighbours are
// averaged: dual index i sits between primal i and i+1, so primal to dual
// uses offsets {0,+1} and dual to primal uses {-1,0}. Multi-axis rules are
// the tensor product of the per-axis averages.
func (l *Layout) Rule(from, to Quantity) Rule {
	rule := Rule{{Weight: 1}}
	src, dst := from.Centering(), to.Centering()
	for _, ax := range l.axes {
		if src[ax] == dst[ax] {
			continue
		}
		lo, hi := 0, 1
		if src[ax] == Dual {
			lo, hi = -1, 0
		}
		next := make(Rule, 0, 2*len(rule))
		for _, p := range rule {
			for _, shift := range [2]int{lo, hi} {
				q := p
				q.Offset[ax] += shift
				q.Weight *= 0.5
				next = append(next, q)
			}
		}
		rule = next
	}
	return rule
}

// Project evaluates f at idx through rule.
func Project(f *Field, idx MeshIndex, rule Rule) float64 {
	var v float64
	for _, p := range rule {
		v += p.Weight * f.At(idx.Add(p.Offset))
	}
	return v
}

// Deriv returns the first derivative of f along axis, centred on the
// position opposite to f's own centering on that axis.
func (l *Layout) Deriv(f *Field, idx MeshIndex, axis int) float64 {
	lo, hi := idx, idx
	if f.Qty.Centering()[axis] == Primal {
		hi[axis]++
	} else {
		lo[axis]--
	}
	return (f.At(hi) - f.At(lo)) * l.invDl[axis]
}

// Laplacian returns the 3-point second difference of f summed over active axes.
func (l *Layout) Laplacian(f *Field, idx MeshIndex) float64 {
	var lap float64
	centre := f.At(idx)
	for _, ax := range l.axes {
		lo, hi := idx, idx
		lo[ax]--
		hi[ax]++
		lap += (f.At(hi) - 2*centre + f.At(lo)) * l.invDl[ax] * l.invDl[ax]
	}
	return lap
}
