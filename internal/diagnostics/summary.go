package diagnostics

import "gonum.org/v1/gonum/floats"

// Summary holds reductions over a dataset.
type Summary struct {
	Min float64
	Max float64
	L2  float64
}

// Summarize reduces data. An empty slice yields a zero Summary.
func Summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	return Summary{
		Min: floats.Min(data),
		Max: floats.Max(data),
		L2:  floats.Norm(data, 2),
	}
}
