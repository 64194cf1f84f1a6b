package ehrenfest

import (
	"math"

	"github.com/taoeli/maxlink/pkg/formulas"
)

// DoubleWellHooks returns the reference two-state system: two displaced
// harmonic diabats with a Gaussian diabatic coupling and a Gaussian
// transition dipole. All quantities in atomic units.
func DoubleWellHooks() Hooks {
	const (
		k     = 0.02
		r0    = 0.0
		r1    = -2.0
		delta = 0.04
		vc    = 0.02
		alpha = 0.5
		mu0   = 5.0
		beta  = 0.2
	)

	return Hooks{
		H0: func(r float64) formulas.Matrix2 {
			v00 := 0.5 * k * (r + r0) * (r + r0)
			v11 := 0.5*k*(r+r1)*(r+r1) + delta
			v01 := vc * math.Exp(-alpha*r*r)
			return formulas.Matrix2{
				{complex(v00, 0), complex(v01, 0)},
				{complex(v01, 0), complex(v11, 0)},
			}
		},
		DH0dR: func(r float64) formulas.Matrix2 {
			d00 := k * (r + r0)
			d11 := k * (r + r1)
			d01 := vc * math.Exp(-alpha*r*r) * (-2.0 * alpha * r)
			return formulas.Matrix2{
				{complex(d00, 0), complex(d01, 0)},
				{complex(d01, 0), complex(d11, 0)},
			}
		},
		Mu: func(r float64) formulas.Matrix2 {
			m01 := mu0 * math.Exp(-beta*r*r)
			return formulas.Matrix2{
				{0, complex(m01, 0)},
				{complex(m01, 0), 0},
			}
		},
		DMudR: func(r float64) formulas.Matrix2 {
			d01 := mu0 * math.Exp(-beta*r*r) * (-2.0 * beta * r)
			return formulas.Matrix2{
				{0, complex(d01, 0)},
				{complex(d01, 0), 0},
			}
		},
	}
}
