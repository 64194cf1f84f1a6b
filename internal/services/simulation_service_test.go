package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoeli/maxlink/internal/domain"
	"github.com/taoeli/maxlink/internal/modules/driver"
	"github.com/taoeli/maxlink/internal/modules/trajectory"
	"github.com/taoeli/maxlink/pkg/logger"
)

// tickModel integrates the staged field over time so tests can check which
// samples reached it and in what order.
type tickModel struct {
	dt          float64
	t           float64
	accumulated domain.Vec3
	propagated  int
}

type tickState struct {
	T           float64
	Accumulated domain.Vec3
}

func (m *tickModel) Initialize(dt float64, moleculeID int) error {
	m.dt = dt
	return nil
}

func (m *tickModel) Propagate(field domain.Vec3) error {
	m.accumulated = m.accumulated.Add(field.Scale(m.dt))
	m.t += m.dt
	m.propagated++
	return nil
}

func (m *tickModel) Amplitude() domain.Vec3 {
	return m.accumulated
}

func (m *tickModel) Diagnostics() domain.Diagnostics {
	return domain.Diagnostics{"time_au": m.t}
}

func (m *tickModel) Snapshot() driver.Snapshot {
	return tickState{T: m.t, Accumulated: m.accumulated}
}

func (m *tickModel) Restore(s driver.Snapshot) error {
	st := s.(tickState)
	m.t = st.T
	m.accumulated = st.Accumulated
	return nil
}

func (m *tickModel) MarshalCheckpoint() ([]byte, error) { return nil, nil }
func (m *tickModel) UnmarshalCheckpoint([]byte) error   { return nil }

// rampField returns t on the z axis so each tick's sample is distinct.
type rampField struct{}

func (rampField) Sample(t float64, moleculeID int) domain.Vec3 {
	return domain.Vec3{0, 0, t}
}

func newTestService(t *testing.T, cfg SimulationConfig) *SimulationService {
	t.Helper()
	if cfg.Dt == 0 {
		cfg.Dt = 0.5
	}
	if cfg.Source == nil {
		cfg.Source = rampField{}
	}
	cfg.Log = logger.New(logger.Config{Level: "disabled"})
	svc, err := NewSimulationService(cfg)
	require.NoError(t, err)
	return svc
}

func TestNewSimulationServiceValidation(t *testing.T) {
	log := logger.New(logger.Config{Level: "disabled"})

	_, err := NewSimulationService(SimulationConfig{Dt: 0, Source: rampField{}, Log: log})
	assert.True(t, domain.IsConfig(err))

	_, err = NewSimulationService(SimulationConfig{Dt: 0.1, Log: log})
	assert.True(t, domain.IsConfig(err))
}

func TestRunWithoutMolecules(t *testing.T) {
	svc := newTestService(t, SimulationConfig{})

	err := svc.Run(context.Background(), 10)
	assert.True(t, domain.IsConfig(err))
}

func TestAddMoleculeRejectsDuplicate(t *testing.T) {
	svc := newTestService(t, SimulationConfig{})

	require.NoError(t, svc.AddMolecule(3, &tickModel{}, driver.Options{}))
	err := svc.AddMolecule(3, &tickModel{}, driver.Options{})
	assert.True(t, domain.IsConfig(err))

	assert.Equal(t, []int{3}, svc.MoleculeIDs())
}

func TestRunDrivesEveryTickOnce(t *testing.T) {
	svc := newTestService(t, SimulationConfig{Dt: 0.5})

	model := &tickModel{}
	require.NoError(t, svc.AddMolecule(0, model, driver.Options{}))

	const steps = 8
	require.NoError(t, svc.Run(context.Background(), steps))

	// One propagation per committed tick; commits restore the staged
	// snapshot rather than advancing again.
	assert.Equal(t, steps, model.propagated)
	assert.InDelta(t, steps*0.5, model.t, 1e-12)

	// Field samples are 0, 0.5, 1.0, ... so the accumulated z component
	// is dt * sum(t_k).
	wantZ := 0.0
	for k := 0; k < steps; k++ {
		wantZ += float64(k) * 0.5 * 0.5
	}
	assert.InDelta(t, wantZ, model.accumulated[2], 1e-12)

	status := svc.Status()
	assert.False(t, status.Active)
	assert.Equal(t, int64(steps), status.Step)

	diag := svc.LatestDiagnostics(0)
	require.NotNil(t, diag)
	assert.InDelta(t, model.accumulated[2], diag["amp_z"], 1e-12)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	svc := newTestService(t, SimulationConfig{})

	model := &tickModel{}
	require.NoError(t, svc.AddMolecule(0, model, driver.Options{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, svc.Run(ctx, 100))
	assert.Zero(t, model.propagated)
}

func TestLatestDiagnosticsReturnsCopy(t *testing.T) {
	svc := newTestService(t, SimulationConfig{})
	require.NoError(t, svc.AddMolecule(0, &tickModel{}, driver.Options{}))
	require.NoError(t, svc.Run(context.Background(), 2))

	diag := svc.LatestDiagnostics(0)
	require.NotNil(t, diag)
	diag["amp_z"] = -1

	assert.NotEqual(t, -1.0, svc.LatestDiagnostics(0)["amp_z"])
}

func TestRunRecordsTrajectory(t *testing.T) {
	log := logger.New(logger.Config{Level: "disabled"})
	history := trajectory.NewHistoryDB(t.TempDir(), log)

	svc := newTestService(t, SimulationConfig{Dt: 0.5, History: history})
	require.NoError(t, svc.AddMolecule(0, &tickModel{}, driver.Options{}))

	const steps = 5
	require.NoError(t, svc.Run(context.Background(), steps))

	// finishRun flushes pending samples before returning.
	assert.Zero(t, history.Pending())

	samples, err := history.GetSamples(0, 100)
	require.NoError(t, err)
	require.Len(t, samples, steps)
	assert.Equal(t, int64(1), samples[0].Step)
	assert.Equal(t, int64(steps), samples[steps-1].Step)
	assert.InDelta(t, float64(steps-1)*0.5, samples[steps-1].Field[2], 1e-12)
}
