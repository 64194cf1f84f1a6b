package classical

import (
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/floats"

	"github.com/taoeli/maxlink/internal/domain"
	"github.com/taoeli/maxlink/internal/modules/coupling"
	"github.com/taoeli/maxlink/internal/modules/driver"
	"github.com/taoeli/maxlink/pkg/units"
)

// kB is the Boltzmann constant in eV/K.
const kB = 8.617333262e-5

// Config sets up a classical molecular-dynamics model. The evaluator works
// in its native eV / Å units; the driving field and the reported amplitude
// are in atomic units.
type Config struct {
	Geometry   domain.Geometry
	Masses     []float64 // amu, per site
	Velocities []float64 // Å/fs, flattened; nil means at rest

	// Charges are fixed per-site charges in e. Leave nil and set
	// RecomputeCharges to refresh them from the evaluator each step.
	Charges          []float64
	RecomputeCharges bool

	// Substeps divides the field solver's tick into finer MD steps.
	// Zero means 1.
	Substeps int

	Evaluator coupling.PotentialEvaluator
	Log       zerolog.Logger
}

// state is the dynamical state; slices are owned, never shared.
type state struct {
	T          float64   // a.u.
	Positions  []float64 // Å
	Velocities []float64 // Å/fs
	Charges    []float64 // e, charges active for the last step
}

func (s state) clone() state {
	c := state{T: s.T}
	c.Positions = append([]float64(nil), s.Positions...)
	c.Velocities = append([]float64(nil), s.Velocities...)
	if s.Charges != nil {
		c.Charges = append([]float64(nil), s.Charges...)
	}
	return c
}

// Model advances atomic positions with velocity Verlet under forces from a
// field-coupled potential evaluator.
type Model struct {
	cell     [9]float64
	numbers  []int
	masses   []float64
	substeps int
	coupler  *coupling.Coupler
	log      zerolog.Logger

	dt         float64 // a.u. per macro-step
	dtFs       float64 // fs per substep
	moleculeID int

	st state
}

// NewModel validates the configuration and builds the field coupler.
func NewModel(cfg Config) (*Model, error) {
	n := cfg.Geometry.NumSites()
	if n == 0 {
		return nil, domain.Configf("geometry has no sites")
	}
	if cfg.Evaluator == nil {
		return nil, domain.Configf("classical model requires a potential evaluator")
	}
	if len(cfg.Masses) != n {
		return nil, domain.Configf("masses length %d does not match %d sites", len(cfg.Masses), n)
	}
	for i, m := range cfg.Masses {
		if m <= 0 {
			return nil, domain.Configf("site %d has non-positive mass %g", i, m)
		}
	}
	if cfg.Charges == nil && !cfg.RecomputeCharges {
		return nil, domain.Configf("classical model needs charges: supply fixed charges or enable recompute_charges")
	}
	if cfg.Velocities != nil && len(cfg.Velocities) != 3*n {
		return nil, domain.Configf("velocities length %d does not match %d sites", len(cfg.Velocities), n)
	}

	substeps := cfg.Substeps
	if substeps <= 0 {
		substeps = 1
	}

	g := cfg.Geometry.Clone()
	vel := make([]float64, 3*n)
	if cfg.Velocities != nil {
		copy(vel, cfg.Velocities)
	}

	log := cfg.Log.With().Str("model", "classical").Logger()
	coupler := coupling.NewCoupler(cfg.Evaluator, coupling.CouplerConfig{
		Charges:          cfg.Charges,
		RecomputeCharges: cfg.RecomputeCharges,
		Log:              log,
	})

	return &Model{
		cell:     g.Cell,
		numbers:  g.Numbers,
		masses:   append([]float64(nil), cfg.Masses...),
		substeps: substeps,
		coupler:  coupler,
		log:      log,
		st: state{
			Positions:  g.Positions,
			Velocities: vel,
		},
	}, nil
}

// Coupler exposes the field coupler, mainly for tests and diagnostics.
func (m *Model) Coupler() *coupling.Coupler {
	return m.coupler
}

// Initialize fixes the timestep and molecule identity.
func (m *Model) Initialize(dt float64, moleculeID int) error {
	m.dt = dt
	m.dtFs = (dt / units.FsToAU) / float64(m.substeps)
	if m.dtFs <= 0 {
		return domain.Configf("non-positive substep %g fs computed from dt %g a.u.", m.dtFs, dt)
	}
	m.moleculeID = moleculeID
	m.log = m.log.With().Int("molecule_id", moleculeID).Logger()
	m.log.Info().
		Float64("dt_au", dt).
		Float64("dt_fs", m.dtFs).
		Int("substeps", m.substeps).
		Msg("Classical MD model initialized")
	return nil
}

func (m *Model) geometry() domain.Geometry {
	return domain.Geometry{Positions: m.st.Positions, Cell: m.cell, Numbers: m.numbers}
}

// forces evaluates the field-augmented forces at the current positions.
func (m *Model) forces() ([]float64, error) {
	res, err := m.coupler.Calculate(m.geometry(), domain.PropertySet{domain.PropertyForces})
	if err != nil {
		return nil, err
	}
	return res.Forces, nil
}

// accelerations converts forces (eV/Å) into Å/fs² site by site.
func (m *Model) accelerations(forces []float64) []float64 {
	acc := make([]float64, len(forces))
	for i := range forces {
		acc[i] = forces[i] / m.masses[i/3] * units.AccelPerForce
	}
	return acc
}

// Propagate runs the configured substeps of velocity Verlet under a field
// held constant for the whole macro-step.
func (m *Model) Propagate(field domain.Vec3) error {
	m.coupler.SetField(field)

	f, err := m.forces()
	if err != nil {
		return err
	}
	for s := 0; s < m.substeps; s++ {
		floats.AddScaled(m.st.Velocities, 0.5*m.dtFs, m.accelerations(f))
		floats.AddScaled(m.st.Positions, m.dtFs, m.st.Velocities)

		if f, err = m.forces(); err != nil {
			return err
		}
		floats.AddScaled(m.st.Velocities, 0.5*m.dtFs, m.accelerations(f))
	}

	m.st.T += m.dt
	m.st.Charges = m.coupler.Charges()
	return nil
}

// Amplitude returns dP/dt = sum_i q_i v_i converted to atomic units.
func (m *Model) Amplitude() domain.Vec3 {
	if m.st.Charges == nil {
		return domain.Vec3{}
	}
	var amp domain.Vec3
	for i, q := range m.st.Charges {
		for k := 0; k < 3; k++ {
			amp[k] += q * units.VelAngPerFsToAU(m.st.Velocities[3*i+k])
		}
	}
	return amp
}

// Diagnostics reports time, kinetic energy, and instantaneous temperature.
func (m *Model) Diagnostics() domain.Diagnostics {
	ke := 0.0
	for i := range m.st.Velocities {
		v := m.st.Velocities[i]
		ke += 0.5 * m.masses[i/3] * v * v
	}
	ke /= units.AccelPerForce // amu·Å²/fs² -> eV

	n := len(m.masses)
	temp := 0.0
	if n > 0 {
		temp = 2 * ke / (3 * float64(n) * kB)
	}

	return domain.Diagnostics{
		"time_au":       m.st.T,
		"kinetic_ev":    ke,
		"temperature_k": temp,
	}
}

// Snapshot returns a deep copy of the dynamical state.
func (m *Model) Snapshot() driver.Snapshot {
	return m.st.clone()
}

// Restore replaces the live state with a snapshot from this model.
func (m *Model) Restore(s driver.Snapshot) error {
	st, ok := s.(state)
	if !ok {
		return domain.Configf("classical model restored with foreign snapshot type %T", s)
	}
	m.st = st.clone()
	return nil
}

// checkpointRecord is the minimal resumable state.
type checkpointRecord struct {
	Time       float64   `msgpack:"time"`
	Positions  []float64 `msgpack:"positions"`
	Velocities []float64 `msgpack:"velocities"`
	Charges    []float64 `msgpack:"charges"`
}

// MarshalCheckpoint serializes {time, positions, velocities, charges}.
func (m *Model) MarshalCheckpoint() ([]byte, error) {
	return msgpack.Marshal(checkpointRecord{
		Time:       m.st.T,
		Positions:  m.st.Positions,
		Velocities: m.st.Velocities,
		Charges:    m.st.Charges,
	})
}

// UnmarshalCheckpoint replaces the live state with checkpoint contents.
func (m *Model) UnmarshalCheckpoint(data []byte) error {
	var rec checkpointRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return err
	}
	if len(rec.Positions) != len(m.st.Positions) {
		return domain.Configf("checkpoint has %d coordinates, model has %d", len(rec.Positions), len(m.st.Positions))
	}
	m.st = state{
		T:          rec.Time,
		Positions:  append([]float64(nil), rec.Positions...),
		Velocities: append([]float64(nil), rec.Velocities...),
	}
	if rec.Charges != nil {
		m.st.Charges = append([]float64(nil), rec.Charges...)
	}
	return nil
}
