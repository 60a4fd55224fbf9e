package grid

import "fmt"

// MeshIndex is a storage index into a field. Entries past the layout
// dimension are always zero.
type MeshIndex [3]int

// Add returns the index shifted by offset.
func (m MeshIndex) Add(offset MeshIndex) MeshIndex {
	return MeshIndex{m[0] + offset[0], m[1] + offset[1], m[2] + offset[2]}
}

// Field is a scalar quantity stored row-major over its allocation shape,
// ghost cells included.
type Field struct {
	Name string
	Qty  Quantity

	shape [3]int
	data  []float64
}

// NewField allocates a zeroed field. Unused trailing axes must have size 1.
func NewField(name string, qty Quantity, shape [3]int) *Field {
	return &Field{
		Name:  name,
		Qty:   qty,
		shape: shape,
		data:  make([]float64, shape[0]*shape[1]*shape[2]),
	}
}

func (f *Field) offset(idx MeshIndex) int {
	return (idx[0]*f.shape[1]+idx[1])*f.shape[2] + idx[2]
}

// At returns the sample at idx. Out-of-allocation indices panic.
func (f *Field) At(idx MeshIndex) float64 {
	return f.data[f.offset(idx)]
}

// Set writes the sample at idx.
func (f *Field) Set(idx MeshIndex, v float64) {
	f.data[f.offset(idx)] = v
}

// Fill sets every sample, ghosts included.
func (f *Field) Fill(v float64) {
	for i := range f.data {
		f.data[i] = v
	}
}

// Shape returns the allocation extent per axis.
func (f *Field) Shape() [3]int {
	return f.shape
}

// Data exposes the backing storage. Callers must not resize it.
func (f *Field) Data() []float64 {
	return f.data
}

// Len returns the number of stored samples.
func (f *Field) Len() int {
	return len(f.data)
}

func (f *Field) String() string {
	return fmt.Sprintf("Field(%s, %s, shape=%v)", f.Name, f.Qty, f.shape)
}

// VecField groups the three component fields of a vector quantity.
type VecField struct {
	Name  string
	Qty   VecQuantity
	Comps [3]*Field
}

// Component returns the field holding component c.
func (v *VecField) Component(c Component) *Field {
	return v.Comps[c]
}

// Fill sets every component to the matching entry of vals.
func (v *VecField) Fill(vals [3]float64) {
	for c, f := range v.Comps {
		f.Fill(vals[c])
	}
}
