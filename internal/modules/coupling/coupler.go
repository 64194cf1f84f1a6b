package coupling

import (
	"github.com/rs/zerolog"

	"github.com/taoeli/maxlink/internal/domain"
	"github.com/taoeli/maxlink/pkg/units"
)

// Coupler wraps a PotentialEvaluator and adds the force a uniform electric
// field exerts on per-site charges. Base results are cached for a single
// geometry so that repeated property requests on the same configuration do
// not re-run the expensive evaluator. The field term is re-added on every
// call because it depends on the current field, not the cached one.
type Coupler struct {
	base             PotentialEvaluator
	fixedCharges     []float64
	recomputeCharges bool
	log              zerolog.Logger

	field   domain.Vec3 // a.u.
	charges []float64   // charges used for the last field-force evaluation

	// Single-slot cache of base evaluator output. A geometry change
	// replaces the whole entry; there is no eviction policy beyond that.
	cacheKey    *Fingerprint
	cacheEnergy *float64
	cacheForces []float64

	baseCalls int
}

// CouplerConfig configures a Coupler.
type CouplerConfig struct {
	// Charges are fixed per-site charges in e. Leave nil to refresh
	// charges from the base evaluator each step (RecomputeCharges).
	Charges          []float64
	RecomputeCharges bool
	Log              zerolog.Logger
}

// NewCoupler creates a field-coupling wrapper around base.
func NewCoupler(base PotentialEvaluator, cfg CouplerConfig) *Coupler {
	var fixed []float64
	if cfg.Charges != nil {
		fixed = make([]float64, len(cfg.Charges))
		copy(fixed, cfg.Charges)
	}
	return &Coupler{
		base:             base,
		fixedCharges:     fixed,
		recomputeCharges: cfg.RecomputeCharges,
		log:              cfg.Log.With().Str("component", "coupler").Logger(),
	}
}

// SetField stores the current uniform field sample in atomic units. The
// cache is untouched: a field change does not imply a geometry change.
func (c *Coupler) SetField(field domain.Vec3) {
	c.field = field
}

// Field returns the current field sample.
func (c *Coupler) Field() domain.Vec3 {
	return c.field
}

// Charges returns a copy of the charges used for the most recent field-force
// evaluation, or the fixed charges when none were resolved yet.
func (c *Coupler) Charges() []float64 {
	src := c.charges
	if src == nil {
		src = c.fixedCharges
	}
	if src == nil {
		return nil
	}
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// BaseCalls reports how often the wrapped evaluator has been invoked.
func (c *Coupler) BaseCalls() int {
	return c.baseCalls
}

// CalculationRequired reports whether serving the requested properties needs
// a base evaluator run. False iff the cache entry matches the geometry and
// covers every requested property; otherwise the base evaluator's own
// staleness check decides, conservatively defaulting to true.
func (c *Coupler) CalculationRequired(g domain.Geometry, requested domain.PropertySet) bool {
	if c.cacheCovers(FingerprintOf(g), requested) {
		return false
	}
	if sc, ok := c.base.(StalenessChecker); ok {
		return sc.CalculationRequired(g, requested)
	}
	return true
}

// Calculate returns the requested properties with the field-induced force
// contribution added to the base forces.
func (c *Coupler) Calculate(g domain.Geometry, requested domain.PropertySet) (domain.Result, error) {
	key := FingerprintOf(g)

	if c.cacheCovers(key, requested) {
		return c.serveFromCache(g, requested)
	}

	// Ask the base only for the properties it advertises; never trigger
	// extra, possibly more expensive work.
	forBase := make(domain.PropertySet, 0, len(requested))
	for _, p := range requested {
		if c.base.Supports(p) {
			forBase = append(forBase, p)
		}
	}
	if len(forBase) == 0 {
		if requested.Has(domain.PropertyEnergy) {
			forBase = domain.PropertySet{domain.PropertyEnergy}
		} else {
			forBase = requested
		}
	}

	c.baseCalls++
	baseRes, err := c.base.Evaluate(g, forBase)
	if err != nil {
		return domain.Result{}, &domain.EvalError{Reason: "base evaluator failed", Err: err}
	}

	// Replace the cache entry for this geometry with the fresh base output.
	c.cacheKey = &key
	c.cacheEnergy = nil
	c.cacheForces = nil
	if baseRes.Energy != nil {
		e := *baseRes.Energy
		c.cacheEnergy = &e
	}
	if baseRes.Forces != nil {
		c.cacheForces = make([]float64, len(baseRes.Forces))
		copy(c.cacheForces, baseRes.Forces)
	}

	var res domain.Result
	if requested.Has(domain.PropertyEnergy) {
		res.Energy = c.cacheEnergy
	}
	if requested.Has(domain.PropertyForces) {
		if c.cacheForces == nil {
			return domain.Result{}, domain.Evalf("base evaluator did not provide forces when requested")
		}
		forces := make([]float64, len(c.cacheForces))
		copy(forces, c.cacheForces)
		ext, err := c.externalForce(g)
		if err != nil {
			return domain.Result{}, err
		}
		for i := range forces {
			forces[i] += ext[i]
		}
		res.Forces = forces
	}
	return res, nil
}

// cacheCovers reports whether the cache entry matches key and holds every
// requested property.
func (c *Coupler) cacheCovers(key Fingerprint, requested domain.PropertySet) bool {
	if c.cacheKey == nil || *c.cacheKey != key {
		return false
	}
	if requested.Has(domain.PropertyEnergy) && c.cacheEnergy == nil {
		return false
	}
	if requested.Has(domain.PropertyForces) && c.cacheForces == nil {
		return false
	}
	return true
}

func (c *Coupler) serveFromCache(g domain.Geometry, requested domain.PropertySet) (domain.Result, error) {
	var res domain.Result
	if requested.Has(domain.PropertyEnergy) {
		e := *c.cacheEnergy
		res.Energy = &e
	}
	if requested.Has(domain.PropertyForces) {
		forces := make([]float64, len(c.cacheForces))
		copy(forces, c.cacheForces)
		ext, err := c.externalForce(g)
		if err != nil {
			return domain.Result{}, err
		}
		for i := range forces {
			forces[i] += ext[i]
		}
		res.Forces = forces
	}
	return res, nil
}

// externalForce resolves per-site charges and returns the uniform-field
// force q·E in eV/Å, flattened like the geometry positions.
func (c *Coupler) externalForce(g domain.Geometry) ([]float64, error) {
	var q []float64
	if c.recomputeCharges {
		if cr, ok := c.base.(ChargeReporter); ok {
			fresh, err := cr.Charges(g)
			if err != nil {
				c.log.Warn().Err(err).Msg("charge refresh failed, keeping previous charges")
			} else {
				c.charges = make([]float64, len(fresh))
				copy(c.charges, fresh)
			}
		}
		q = c.charges
		if q == nil {
			if c.fixedCharges == nil {
				return nil, domain.Configf("recompute_charges is set but the evaluator reports no charges and no fixed charges were supplied")
			}
			q = c.fixedCharges
		}
	} else {
		if c.fixedCharges == nil {
			return nil, domain.Configf("per-site charges required: supply fixed charges or enable recompute_charges with a charge-reporting evaluator")
		}
		q = c.fixedCharges
		c.charges = q
	}

	if len(q) != g.NumSites() {
		return nil, domain.Configf("charges length %d does not match %d sites", len(q), g.NumSites())
	}

	ext := make([]float64, 3*len(q))
	for i, qi := range q {
		for k := 0; k < 3; k++ {
			ext[3*i+k] = qi * c.field[k] * units.ForcePerFieldAU
		}
	}
	return ext, nil
}
