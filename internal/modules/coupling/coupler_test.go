package coupling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoeli/maxlink/internal/domain"
	"github.com/taoeli/maxlink/pkg/logger"
	"github.com/taoeli/maxlink/pkg/units"
)

// stubEvaluator is a counting in-memory potential program.
type stubEvaluator struct {
	calls      int
	energy     float64
	forceVal   float64
	omitForces bool
	charges    []float64
}

func (s *stubEvaluator) Supports(p domain.Property) bool {
	return p == domain.PropertyEnergy || p == domain.PropertyForces
}

func (s *stubEvaluator) Evaluate(g domain.Geometry, requested domain.PropertySet) (domain.Result, error) {
	s.calls++
	var res domain.Result
	if requested.Has(domain.PropertyEnergy) {
		e := s.energy
		res.Energy = &e
	}
	if requested.Has(domain.PropertyForces) && !s.omitForces {
		forces := make([]float64, len(g.Positions))
		for i := range forces {
			forces[i] = s.forceVal
		}
		res.Forces = forces
	}
	return res, nil
}

func (s *stubEvaluator) Charges(g domain.Geometry) ([]float64, error) {
	return s.charges, nil
}

func testGeometry() domain.Geometry {
	return domain.Geometry{
		Positions: []float64{0, 0, 0, 0, 0, 1.1},
		Numbers:   []int{1, 1},
	}
}

func newTestCoupler(base PotentialEvaluator, charges []float64, recompute bool) *Coupler {
	return NewCoupler(base, CouplerConfig{
		Charges:          charges,
		RecomputeCharges: recompute,
		Log:              logger.New(logger.Config{Level: "error"}),
	})
}

func TestCalculateServesForcesFromCache(t *testing.T) {
	base := &stubEvaluator{energy: -1.5, forceVal: 0.25}
	c := newTestCoupler(base, []float64{0.3, -0.3}, false)
	g := testGeometry()

	_, err := c.Calculate(g, domain.PropertySet{domain.PropertyEnergy, domain.PropertyForces})
	require.NoError(t, err)
	_, err = c.Calculate(g, domain.PropertySet{domain.PropertyForces})
	require.NoError(t, err)

	assert.Equal(t, 1, base.calls, "second request on the same geometry must not hit the base evaluator")
}

func TestCoordinateChangeInvalidatesCache(t *testing.T) {
	base := &stubEvaluator{forceVal: 0.25}
	c := newTestCoupler(base, []float64{0.3, -0.3}, false)
	g := testGeometry()

	_, err := c.Calculate(g, domain.PropertySet{domain.PropertyForces})
	require.NoError(t, err)

	moved := g.Clone()
	moved.Positions[5] += 1e-9
	_, err = c.Calculate(moved, domain.PropertySet{domain.PropertyForces})
	require.NoError(t, err)
	_, err = c.Calculate(moved, domain.PropertySet{domain.PropertyForces})
	require.NoError(t, err)

	assert.Equal(t, 2, base.calls, "geometry change must force exactly one recomputation")
}

func TestFieldChangeKeepsCacheButUpdatesForce(t *testing.T) {
	base := &stubEvaluator{forceVal: 0.0}
	q := []float64{1.0, -1.0}
	c := newTestCoupler(base, q, false)
	g := testGeometry()

	c.SetField(domain.Vec3{0, 0, 1e-3})
	res1, err := c.Calculate(g, domain.PropertySet{domain.PropertyForces})
	require.NoError(t, err)

	c.SetField(domain.Vec3{0, 0, 2e-3})
	res2, err := c.Calculate(g, domain.PropertySet{domain.PropertyForces})
	require.NoError(t, err)

	assert.Equal(t, 1, base.calls, "field change alone must not invalidate the geometry cache")

	wantFirst := 1.0 * 1e-3 * units.ForcePerFieldAU
	assert.InDelta(t, wantFirst, res1.Forces[2], 1e-12)
	assert.InDelta(t, 2*wantFirst, res2.Forces[2], 1e-12)
	// opposite charge on the second site
	assert.InDelta(t, -2*wantFirst, res2.Forces[5], 1e-12)
}

func TestEnergyOnlyCacheDoesNotCoverForces(t *testing.T) {
	base := &stubEvaluator{energy: 2.0, forceVal: 0.1}
	c := newTestCoupler(base, []float64{0, 0}, false)
	g := testGeometry()

	_, err := c.Calculate(g, domain.PropertySet{domain.PropertyEnergy})
	require.NoError(t, err)
	assert.False(t, c.CalculationRequired(g, domain.PropertySet{domain.PropertyEnergy}))
	assert.True(t, c.CalculationRequired(g, domain.PropertySet{domain.PropertyForces}))

	_, err = c.Calculate(g, domain.PropertySet{domain.PropertyForces})
	require.NoError(t, err)
	assert.Equal(t, 2, base.calls)
}

func TestMissingForcesIsEvalError(t *testing.T) {
	base := &stubEvaluator{omitForces: true}
	c := newTestCoupler(base, []float64{0.1, 0.1}, false)

	_, err := c.Calculate(testGeometry(), domain.PropertySet{domain.PropertyForces})
	require.Error(t, err)
	assert.True(t, domain.IsEval(err), "missing forces must surface as an evaluation error, got %v", err)
}

func TestNoChargeSourceIsConfigError(t *testing.T) {
	base := &stubEvaluator{forceVal: 0.1}
	c := newTestCoupler(base, nil, false)

	_, err := c.Calculate(testGeometry(), domain.PropertySet{domain.PropertyForces})
	require.Error(t, err)
	assert.True(t, domain.IsConfig(err), "missing charges must surface as a configuration error, got %v", err)
}

func TestRecomputeChargesRefreshesFromBase(t *testing.T) {
	base := &stubEvaluator{forceVal: 0.0, charges: []float64{0.5, -0.5}}
	c := newTestCoupler(base, nil, true)
	g := testGeometry()

	c.SetField(domain.Vec3{0, 0, 1e-2})
	res, err := c.Calculate(g, domain.PropertySet{domain.PropertyForces})
	require.NoError(t, err)

	want := 0.5 * 1e-2 * units.ForcePerFieldAU
	assert.InDelta(t, want, res.Forces[2], 1e-12)
	assert.Equal(t, []float64{0.5, -0.5}, c.Charges())
}

func TestFingerprintSensitivity(t *testing.T) {
	g := testGeometry()
	base := FingerprintOf(g)

	moved := g.Clone()
	moved.Positions[0] = math.Nextafter(moved.Positions[0], 1)
	if FingerprintOf(moved) == base {
		t.Fatal("single-ULP coordinate change must change the fingerprint")
	}

	species := g.Clone()
	species.Numbers[0] = 2
	if FingerprintOf(species) == base {
		t.Fatal("species change must change the fingerprint")
	}

	cell := g.Clone()
	cell.Cell[0] = 10
	if FingerprintOf(cell) == base {
		t.Fatal("cell change must change the fingerprint")
	}

	if FingerprintOf(g.Clone()) != base {
		t.Fatal("identical geometry must reproduce the fingerprint")
	}
}
