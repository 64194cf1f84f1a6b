package ehrenfest

import (
	"github.com/taoeli/maxlink/internal/domain"
	"github.com/taoeli/maxlink/pkg/formulas"
)

// Hooks supplies the pluggable physics of a two-level, one-coordinate system
// as functions of the classical coordinate R (atomic units). All four are
// required; a missing hook is a fatal configuration error at initialization.
type Hooks struct {
	// H0 is the field-free diabatic Hamiltonian.
	H0 func(r float64) formulas.Matrix2
	// DH0dR is the gradient of H0.
	DH0dR func(r float64) formulas.Matrix2
	// Mu is the dipole operator along the coupling axis.
	Mu func(r float64) formulas.Matrix2
	// DMudR is the gradient of Mu.
	DMudR func(r float64) formulas.Matrix2
}

func (h Hooks) validate() error {
	if h.H0 == nil {
		return domain.Configf("ehrenfest model requires an H0(R) hook")
	}
	if h.DH0dR == nil {
		return domain.Configf("ehrenfest model requires a dH0/dR hook")
	}
	if h.Mu == nil {
		return domain.Configf("ehrenfest model requires a mu(R) hook")
	}
	if h.DMudR == nil {
		return domain.Configf("ehrenfest model requires a dmu/dR hook")
	}
	return nil
}
