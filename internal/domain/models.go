package domain

// Vec3 is a Cartesian 3-vector (field samples, dipole amplitudes).
type Vec3 [3]float64

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Property identifies a quantity a potential evaluator can compute.
type Property string

const (
	PropertyEnergy Property = "energy"
	PropertyForces Property = "forces"
)

// PropertySet is an ordered list of requested properties.
type PropertySet []Property

// Has reports whether p is in the set.
func (s PropertySet) Has(p Property) bool {
	for _, q := range s {
		if q == p {
			return true
		}
	}
	return false
}

// Geometry describes an atomic configuration in the evaluator's native
// length unit (Å). Positions are flattened as x0,y0,z0,x1,...
type Geometry struct {
	Positions []float64
	Cell      [9]float64
	Numbers   []int
}

// NumSites returns the number of atomic sites.
func (g Geometry) NumSites() int {
	return len(g.Positions) / 3
}

// Clone returns a deep copy with no shared backing storage.
func (g Geometry) Clone() Geometry {
	c := Geometry{
		Positions: make([]float64, len(g.Positions)),
		Cell:      g.Cell,
		Numbers:   make([]int, len(g.Numbers)),
	}
	copy(c.Positions, g.Positions)
	copy(c.Numbers, g.Numbers)
	return c
}

// Result carries evaluator output. Energy is nil when it was not computed.
type Result struct {
	Energy *float64
	Forces []float64 // flattened 3N, eV/Å
}

// Diagnostics is the per-step scalar record a driver reports on commit.
type Diagnostics map[string]float64
