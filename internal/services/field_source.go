package services

import (
	"math"

	"github.com/taoeli/maxlink/internal/domain"
)

// FieldSource hands out the effective local field per molecule per tick, in
// atomic units. In production this is the electromagnetic solver; the
// implementations here are drop-in stand-ins for demonstration runs.
type FieldSource interface {
	Sample(t float64, moleculeID int) domain.Vec3
}

// GaussianPulse is a carrier wave under a Gaussian envelope, polarized
// along one lab axis. All parameters in atomic units.
type GaussianPulse struct {
	Amplitude float64
	Center    float64
	Width     float64
	Omega     float64
	Axis      int
}

// Sample returns E(t); the pulse is identical for every molecule.
func (g GaussianPulse) Sample(t float64, moleculeID int) domain.Vec3 {
	arg := (t - g.Center) / g.Width
	e := g.Amplitude * math.Exp(-0.5*arg*arg) * math.Cos(g.Omega*(t-g.Center))

	var field domain.Vec3
	field[g.Axis] = e
	return field
}

// ZeroField drives every molecule with a vanishing field (free evolution).
type ZeroField struct{}

// Sample returns the zero vector.
func (ZeroField) Sample(t float64, moleculeID int) domain.Vec3 {
	return domain.Vec3{}
}
