package units

// Physical conversion constants used at the boundary between the field
// solver (atomic units) and potential evaluators that work in eV / Å / fs.

const (
	// FsToAU converts femtoseconds to atomic units of time.
	// 1 fs = 41.341373335 a.u.
	FsToAU = 41.341373335

	// BohrPerAng converts Ångström to Bohr radii.
	BohrPerAng = 1.889726124565062

	// ForcePerFieldAU is the force in eV/Å on a unit charge (+1 e) placed
	// in a uniform electric field of 1 a.u.
	// E(a.u.) = 5.142206747e11 V/m and F(eV/Å) = q * E(V/m) * 1e-10.
	ForcePerFieldAU = 51.422067476

	// AccelPerForce converts (eV/Å)/amu to Å/fs².
	// 1 eV/Å / 1 amu = 9.648533212e17 m/s² = 9.648533212e-3 Å/fs².
	AccelPerForce = 9.648533212331e-3
)

// VelAngPerFsToAU converts a velocity in Å/fs to atomic units (Bohr per
// a.u. of time).
func VelAngPerFsToAU(v float64) float64 {
	return v * (BohrPerAng / FsToAU)
}
