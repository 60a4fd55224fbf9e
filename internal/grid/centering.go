// Package grid provides the Yee staggered mesh: per-quantity centering,
// field storage, and the projection and finite-difference primitives the
// numerical kernels evaluate against.
package grid

// Centering places a quantity's samples along one axis.
type Centering uint8

const (
	Primal Centering = iota // On mesh nodes
	Dual                    // Half a cell off the nodes
)

func (c Centering) String() string {
	if c == Dual {
		return "dual"
	}
	return "primal"
}

// Component selects one Cartesian component of a vector field.
type Component uint8

const (
	X Component = iota
	Y
	Z
)

// Components lists X, Y, Z in order.
var Components = [3]Component{X, Y, Z}

func (c Component) String() string {
	return [3]string{"x", "y", "z"}[c]
}

// Quantity names a physical scalar sampled on the mesh.
type Quantity uint8

const (
	Rho Quantity = iota // Ion density
	P                   // Electron pressure
	Vx
	Vy
	Vz
	Bx
	By
	Bz
	Ex
	Ey
	Ez
	Jx
	Jy
	Jz
	numQuantities
)

var quantityNames = [numQuantities]string{
	"rho", "P", "Vx", "Vy", "Vz", "Bx", "By", "Bz", "Ex", "Ey", "Ez", "Jx", "Jy", "Jz",
}

func (q Quantity) String() string {
	if q >= numQuantities {
		return "unknown"
	}
	return quantityNames[q]
}

// Yee centering per quantity, indexed by axis. Moments live on nodes, B on
// faces, E and J on edges.
var yeeCentering = [numQuantities][3]Centering{
	Rho: {Primal, Primal, Primal},
	P:   {Primal, Primal, Primal},
	Vx:  {Primal, Primal, Primal},
	Vy:  {Primal, Primal, Primal},
	Vz:  {Primal, Primal, Primal},
	Bx:  {Primal, Dual, Dual},
	By:  {Dual, Primal, Dual},
	Bz:  {Dual, Dual, Primal},
	Ex:  {Dual, Primal, Primal},
	Ey:  {Primal, Dual, Primal},
	Ez:  {Primal, Primal, Dual},
	Jx:  {Dual, Primal, Primal},
	Jy:  {Primal, Dual, Primal},
	Jz:  {Primal, Primal, Dual},
}

// Centering returns the quantity's centering along each axis. Axes beyond the
// layout dimension are ignored by the layout.
func (q Quantity) Centering() [3]Centering {
	return yeeCentering[q]
}

// VecQuantity names a vector field whose components are Quantities.
type VecQuantity uint8

const (
	Velocity VecQuantity = iota
	Magnetic
	Electric
	Current
)

var vecComponents = [...][3]Quantity{
	Velocity: {Vx, Vy, Vz},
	Magnetic: {Bx, By, Bz},
	Electric: {Ex, Ey, Ez},
	Current:  {Jx, Jy, Jz},
}

// Component returns the scalar quantity holding component c.
func (v VecQuantity) Component(c Component) Quantity {
	return vecComponents[v][c]
}

func (v VecQuantity) String() string {
	return [...]string{"V", "B", "E", "J"}[v]
}
