package ehrenfest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoeli/maxlink/internal/domain"
	"github.com/taoeli/maxlink/pkg/formulas"
	"github.com/taoeli/maxlink/pkg/logger"
)

func newDoubleWellModel(t *testing.T, rInitial, pInitial float64) *Model {
	t.Helper()
	m, err := NewModel(Config{
		Mass:        2000,
		RInitial:    rInitial,
		PInitial:    pInitial,
		Orientation: 2,
		Hooks:       DoubleWellHooks(),
		Log:         logger.New(logger.Config{Level: "error"}),
	})
	require.NoError(t, err)
	require.NoError(t, m.Initialize(1.0, 0))
	return m
}

// uncoupledHarmonicHooks has identical harmonic diabats and no dipole, so
// the classical coordinate decouples from the electronic state.
func uncoupledHarmonicHooks(k float64) Hooks {
	zero := func(r float64) formulas.Matrix2 { return formulas.Matrix2{} }
	return Hooks{
		H0: func(r float64) formulas.Matrix2 {
			v := complex(0.5*k*r*r, 0)
			return formulas.Matrix2{{v, 0}, {0, v}}
		},
		DH0dR: func(r float64) formulas.Matrix2 {
			d := complex(k*r, 0)
			return formulas.Matrix2{{d, 0}, {0, d}}
		},
		Mu:    zero,
		DMudR: zero,
	}
}

func TestMissingHookIsConfigError(t *testing.T) {
	hooks := DoubleWellHooks()
	hooks.DMudR = nil
	m, err := NewModel(Config{Hooks: hooks, Log: logger.New(logger.Config{Level: "error"})})
	require.NoError(t, err)

	err = m.Initialize(1.0, 0)
	require.Error(t, err)
	assert.True(t, domain.IsConfig(err))
}

func TestNewModelValidation(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "bad orientation", cfg: Config{Orientation: 3, Hooks: DoubleWellHooks(), Log: log}},
		{name: "population above one", cfg: Config{PeInitial: 1.5, Hooks: DoubleWellHooks(), Log: log}},
		{name: "negative mass", cfg: Config{Mass: -5, Hooks: DoubleWellHooks(), Log: log}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(tt.cfg)
			require.Error(t, err)
			assert.True(t, domain.IsConfig(err))
		})
	}
}

func TestDensityMatrixStaysPhysical(t *testing.T) {
	m := newDoubleWellModel(t, 2.0, 0.0)

	const steps = 10000
	for i := 0; i < steps; i++ {
		field := domain.Vec3{0, 0, 5e-4 * math.Sin(0.01*float64(i))}
		require.NoError(t, m.Propagate(field))

		rho := m.st.Rho
		if tr := real(rho.Trace()); math.Abs(tr-1) > 1e-12 {
			t.Fatalf("step %d: trace drifted to %v", i, tr)
		}
		_, hermDev := formulas.Hermitize(rho)
		if hermDev > 1e-12 {
			t.Fatalf("step %d: Hermiticity deviation %v", i, hermDev)
		}

		diag := m.Diagnostics()
		if diag["trace_dev"] > 1e-8 || diag["herm_dev"] > 1e-8 {
			t.Fatalf("step %d: pre-correction residuals too large: trace %v herm %v",
				i, diag["trace_dev"], diag["herm_dev"])
		}
	}

	diag := m.Diagnostics()
	assert.InDelta(t, 1.0, diag["Pg"]+diag["Pe"], 1e-12, "populations must stay normalized")
	assert.Equal(t, float64(steps), diag["time_au"], "time advances by dt per step")
}

func TestTrajectoryTimeReversible(t *testing.T) {
	m, err := NewModel(Config{
		Mass:     2000,
		RInitial: 1.5,
		Hooks:    uncoupledHarmonicHooks(0.02),
		Log:      logger.New(logger.Config{Level: "error"}),
	})
	require.NoError(t, err)
	require.NoError(t, m.Initialize(0.5, 0))

	const steps = 400
	for i := 0; i < steps; i++ {
		require.NoError(t, m.Propagate(domain.Vec3{}))
	}

	// Negate the momentum and propagate the same number of steps back.
	m.st.P = -m.st.P
	for i := 0; i < steps; i++ {
		require.NoError(t, m.Propagate(domain.Vec3{}))
	}

	assert.InDelta(t, 1.5, m.st.R, 1e-9, "coordinate must return to the start under momentum reversal")
	assert.InDelta(t, 0.0, m.st.P, 1e-9, "momentum must return to the start under momentum reversal")
}

func TestAmplitudeMatchesDipoleDerivative(t *testing.T) {
	// With a heavy (effectively frozen) nucleus and zero field the dipole
	// evolves under pure electronic dynamics; the reported amplitude must
	// match a central difference of <mu> along the committed trajectory.
	m, err := NewModel(Config{
		Mass:        1e12,
		RInitial:    0.5,
		Orientation: 2,
		PeInitial:   0.3,
		Hooks:       DoubleWellHooks(),
		Log:         logger.New(logger.Config{Level: "error"}),
	})
	require.NoError(t, err)

	dt := 0.05
	require.NoError(t, m.Initialize(dt, 0))

	const steps = 200
	mus := make([]float64, 0, steps)
	amps := make([]float64, 0, steps)
	for i := 0; i < steps; i++ {
		require.NoError(t, m.Propagate(domain.Vec3{}))
		mus = append(mus, m.Diagnostics()["muz_au"])
		amps = append(amps, m.Amplitude()[2])
	}

	maxAmp := 0.0
	for _, a := range amps {
		if v := math.Abs(a); v > maxAmp {
			maxAmp = v
		}
	}
	require.Greater(t, maxAmp, 0.0, "coherent initial state must produce a nonzero dipole derivative")

	for i := 1; i < steps-1; i++ {
		numeric := (mus[i+1] - mus[i-1]) / (2 * dt)
		if math.Abs(numeric-amps[i]) > 1e-3*maxAmp+1e-8 {
			t.Fatalf("step %d: amplitude %v vs central difference %v", i, amps[i], numeric)
		}
	}
}

func TestOrientationSelectsLabAxis(t *testing.T) {
	// The dipole, amplitude, and field sample must all live on the
	// configured axis; the other components stay exactly zero. The zero
	// value of Orientation couples along x, not z.
	for axis := 0; axis < 3; axis++ {
		m, err := NewModel(Config{
			Mass:        1e12,
			RInitial:    0.5,
			Orientation: axis,
			PeInitial:   0.3,
			Hooks:       DoubleWellHooks(),
			Log:         logger.New(logger.Config{Level: "error"}),
		})
		require.NoError(t, err)
		require.NoError(t, m.Initialize(0.1, 0))

		var field domain.Vec3
		field[axis] = 1e-3
		require.NoError(t, m.Propagate(field))

		amp := m.Amplitude()
		assert.NotZero(t, amp[axis], "axis %d must carry the amplitude", axis)
		diag := m.Diagnostics()
		muNames := []string{"mux_au", "muy_au", "muz_au"}
		assert.NotZero(t, diag[muNames[axis]], "axis %d must carry the dipole", axis)
		for k := 0; k < 3; k++ {
			if k == axis {
				continue
			}
			assert.Zero(t, amp[k], "axis %d must stay empty", k)
			assert.Zero(t, diag[muNames[k]], "axis %d must stay empty", k)
		}
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	m := newDoubleWellModel(t, 2.0, 0.0)
	require.NoError(t, m.Propagate(domain.Vec3{0, 0, 1e-3}))

	snap := m.Snapshot()
	before := snap.(state)

	// Keep propagating the live model; the snapshot must not move.
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Propagate(domain.Vec3{0, 0, 1e-3}))
	}
	assert.Equal(t, before, snap.(state))

	require.NoError(t, m.Restore(snap))
	assert.Equal(t, before, m.st)
}

func TestRestoreRejectsForeignSnapshot(t *testing.T) {
	m := newDoubleWellModel(t, 0.0, 0.0)
	err := m.Restore(struct{}{})
	require.Error(t, err)
	assert.True(t, domain.IsConfig(err))
}

func TestCheckpointRoundTripContinuation(t *testing.T) {
	reference := newDoubleWellModel(t, 2.0, 0.0)
	field := domain.Vec3{0, 0, 2e-4}

	const head, tail = 50, 50
	for i := 0; i < head; i++ {
		require.NoError(t, reference.Propagate(field))
	}

	blob, err := reference.MarshalCheckpoint()
	require.NoError(t, err)

	resumed := newDoubleWellModel(t, 0.0, 0.0)
	require.NoError(t, resumed.UnmarshalCheckpoint(blob))

	for i := 0; i < tail; i++ {
		require.NoError(t, reference.Propagate(field))
		require.NoError(t, resumed.Propagate(field))
	}

	assert.Equal(t, reference.st, resumed.st,
		"resumed trajectory must match the uninterrupted run")
}
