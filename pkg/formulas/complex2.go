package formulas

import (
	"math"
	"math/cmplx"
)

// Matrix2 is a dense 2x2 complex matrix with value semantics. Assigning a
// Matrix2 copies it, which keeps snapshot/restore of quantum states free of
// aliased storage.
type Matrix2 [2][2]complex128

// Identity2 returns the 2x2 identity matrix.
func Identity2() Matrix2 {
	return Matrix2{{1, 0}, {0, 1}}
}

// Mul returns the matrix product m * n.
func (m Matrix2) Mul(n Matrix2) Matrix2 {
	return Matrix2{
		{m[0][0]*n[0][0] + m[0][1]*n[1][0], m[0][0]*n[0][1] + m[0][1]*n[1][1]},
		{m[1][0]*n[0][0] + m[1][1]*n[1][0], m[1][0]*n[0][1] + m[1][1]*n[1][1]},
	}
}

// Dagger returns the conjugate transpose of m.
func (m Matrix2) Dagger() Matrix2 {
	return Matrix2{
		{cmplx.Conj(m[0][0]), cmplx.Conj(m[1][0])},
		{cmplx.Conj(m[0][1]), cmplx.Conj(m[1][1])},
	}
}

// Add returns m + n.
func (m Matrix2) Add(n Matrix2) Matrix2 {
	return Matrix2{
		{m[0][0] + n[0][0], m[0][1] + n[0][1]},
		{m[1][0] + n[1][0], m[1][1] + n[1][1]},
	}
}

// Sub returns m - n.
func (m Matrix2) Sub(n Matrix2) Matrix2 {
	return Matrix2{
		{m[0][0] - n[0][0], m[0][1] - n[0][1]},
		{m[1][0] - n[1][0], m[1][1] - n[1][1]},
	}
}

// Scale returns s * m.
func (m Matrix2) Scale(s complex128) Matrix2 {
	return Matrix2{
		{s * m[0][0], s * m[0][1]},
		{s * m[1][0], s * m[1][1]},
	}
}

// Trace returns the trace of m.
func (m Matrix2) Trace() complex128 {
	return m[0][0] + m[1][1]
}

// Commutator returns [m, n] = m*n - n*m.
func (m Matrix2) Commutator(n Matrix2) Matrix2 {
	return m.Mul(n).Sub(n.Mul(m))
}

// Conjugate returns u * m * u†.
func (m Matrix2) Conjugate(u Matrix2) Matrix2 {
	return u.Mul(m).Mul(u.Dagger())
}

// Hermitize projects m onto its Hermitian part (m + m†)/2 and reports the
// largest entrywise deviation |m - m†| that was removed.
func Hermitize(m Matrix2) (Matrix2, float64) {
	d := m.Dagger()
	h := m.Add(d).Scale(0.5)
	dev := 0.0
	anti := m.Sub(d)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if a := cmplx.Abs(anti[i][j]); a > dev {
				dev = a
			}
		}
	}
	return h, dev
}

// NormalizeTrace rescales m to unit real trace and reports |Tr(m) - 1|
// before the rescale. A vanishing trace leaves m unchanged.
func NormalizeTrace(m Matrix2) (Matrix2, float64) {
	tr := real(m.Trace())
	dev := cmplx.Abs(m.Trace() - 1)
	if tr == 0 {
		return m, dev
	}
	return m.Scale(complex(1.0/tr, 0)), dev
}

// ExpHermitian returns U = exp(-i * h * tau) for a Hermitian h, computed
// exactly through the Pauli decomposition h = a*I + b·σ:
//
//	U = e^{-i a tau} ( cos(|b| tau) I - i sin(|b| tau)/|b| (b·σ) )
//
// The |b| -> 0 limit is handled with the sinc expansion, so the result is
// unitary to machine precision for any Hermitian input.
func ExpHermitian(h Matrix2, tau float64) Matrix2 {
	a := real(h[0][0]+h[1][1]) / 2
	bz := real(h[0][0]-h[1][1]) / 2
	bx := real(h[0][1])
	by := -imag(h[0][1])

	b := math.Sqrt(bx*bx + by*by + bz*bz)
	theta := b * tau

	phase := cmplx.Exp(complex(0, -a*tau))
	c := complex(math.Cos(theta), 0)
	// sin(|b| tau)/|b| = tau * sinc(|b| tau)
	f := complex(0, -tau*sinc(theta))

	u := Matrix2{
		{c + f*complex(bz, 0), f * complex(bx, -by)},
		{f * complex(bx, by), c - f*complex(bz, 0)},
	}
	return u.Scale(phase)
}

// sinc returns sin(x)/x with the small-argument series expansion.
func sinc(x float64) float64 {
	if math.Abs(x) < 1e-8 {
		return 1 - x*x/6
	}
	return math.Sin(x) / x
}
