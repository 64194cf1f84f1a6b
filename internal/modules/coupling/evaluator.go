package coupling

import "github.com/taoeli/maxlink/internal/domain"

// PotentialEvaluator is the opaque external potential/force program. Calls
// are synchronous and may be arbitrarily expensive; there is no timeout or
// cancellation.
type PotentialEvaluator interface {
	// Supports reports whether the evaluator can compute the property.
	Supports(p domain.Property) bool

	// Evaluate computes the requested properties for a geometry.
	Evaluate(g domain.Geometry, requested domain.PropertySet) (domain.Result, error)
}

// ChargeReporter is an optional capability: evaluators that can report
// per-site charges (e.g. Mulliken populations) implement it.
type ChargeReporter interface {
	Charges(g domain.Geometry) ([]float64, error)
}

// StalenessChecker is an optional capability: evaluators with their own
// result caching can report whether a recomputation is needed.
type StalenessChecker interface {
	CalculationRequired(g domain.Geometry, requested domain.PropertySet) bool
}
