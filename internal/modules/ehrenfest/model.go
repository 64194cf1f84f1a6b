package ehrenfest

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/taoeli/maxlink/internal/domain"
	"github.com/taoeli/maxlink/internal/modules/driver"
	"github.com/taoeli/maxlink/pkg/formulas"
)

// Config sets up a two-level, one-coordinate Ehrenfest model. Zero values
// for Mass and Hbar fall back to the conventional 2000 a.u. and 1.
type Config struct {
	Mass     float64
	RInitial float64
	PInitial float64

	// Orientation selects the lab axis (0=x, 1=y, 2=z) the dipole couples
	// to; the field sample is read along the same axis. The zero value
	// couples along x, so z-polarized setups must set this explicitly.
	Orientation int

	// PeInitial builds a pure state with the given excited population.
	// RhoInitial, when non-nil, takes precedence and is trace-normalized.
	PeInitial  float64
	RhoInitial *formulas.Matrix2

	Hbar  float64
	Hooks Hooks
	Log   zerolog.Logger
}

// state is the full dynamical state. Every field has value semantics, so a
// plain copy is a deep copy.
type state struct {
	T         float64
	Rho       formulas.Matrix2
	R         float64
	P         float64
	LastField float64
	Force     float64
	EnergyEl  float64
	EnergyTot float64
	Dipole    domain.Vec3
	TraceDev  float64
	HermDev   float64
}

// Model advances (rho, R, P) with a time-symmetric split-operator scheme:
// exact electronic half-step, velocity-Verlet nuclear step under the
// Ehrenfest mean-field force, second electronic half-step at the new
// coordinate. Hermiticity and unit trace of rho are explicitly re-enforced
// after every electronic half-step; the pre-correction deviations are kept
// as diagnostics.
type Model struct {
	mass        float64
	hbar        float64
	orientation int
	hooks       Hooks
	log         zerolog.Logger

	dt         float64
	moleculeID int

	st state
}

// NewModel validates the configuration and builds the initial state.
func NewModel(cfg Config) (*Model, error) {
	if cfg.Orientation < 0 || cfg.Orientation > 2 {
		return nil, domain.Configf("orientation must be 0 (x), 1 (y) or 2 (z), got %d", cfg.Orientation)
	}
	mass := cfg.Mass
	if mass == 0 {
		mass = 2000.0
	}
	if mass < 0 {
		return nil, domain.Configf("mass must be positive, got %g", mass)
	}
	hbar := cfg.Hbar
	if hbar == 0 {
		hbar = 1.0
	}

	var rho formulas.Matrix2
	if cfg.RhoInitial != nil {
		rho, _ = formulas.NormalizeTrace(*cfg.RhoInitial)
	} else {
		if cfg.PeInitial < 0 || cfg.PeInitial > 1 {
			return nil, domain.Configf("excited population must be in [0, 1], got %g", cfg.PeInitial)
		}
		rho = pureState(cfg.PeInitial)
	}

	return &Model{
		mass:        mass,
		hbar:        hbar,
		orientation: cfg.Orientation,
		hooks:       cfg.Hooks,
		log:         cfg.Log.With().Str("model", "ehrenfest").Logger(),
		st: state{
			Rho: rho,
			R:   cfg.RInitial,
			P:   cfg.PInitial,
		},
	}, nil
}

// pureState returns |psi><psi| for psi = sqrt(1-pe)|g> + sqrt(pe)|e>.
func pureState(pe float64) formulas.Matrix2 {
	c0 := complex(math.Sqrt(1.0-pe), 0)
	c1 := complex(math.Sqrt(pe), 0)
	return formulas.Matrix2{
		{c0 * c0, c0 * c1},
		{c1 * c0, c1 * c1},
	}
}

// Initialize fixes the timestep and identity and checks the physics hooks.
func (m *Model) Initialize(dt float64, moleculeID int) error {
	if err := m.hooks.validate(); err != nil {
		return err
	}
	m.dt = dt
	m.moleculeID = moleculeID
	m.log = m.log.With().Int("molecule_id", moleculeID).Logger()
	m.log.Info().Float64("dt_au", dt).Msg("Ehrenfest model initialized")
	return nil
}

// fullH builds H = H0(R) - mu(R)·E, Hermitian by construction.
func (m *Model) fullH(r, eLoc float64) formulas.Matrix2 {
	return m.hooks.H0(r).Sub(m.hooks.Mu(r).Scale(complex(eLoc, 0)))
}

// meanForce is the Ehrenfest force F = -Re Tr(rho dH/dR) with
// dH/dR = dH0/dR - dmu/dR·E.
func (m *Model) meanForce(r float64, rho formulas.Matrix2, eLoc float64) float64 {
	dh := m.hooks.DH0dR(r).Sub(m.hooks.DMudR(r).Scale(complex(eLoc, 0)))
	return -real(rho.Mul(dh).Trace())
}

// Propagate advances the state by one dt. The field sample is held constant
// across the whole step.
func (m *Model) Propagate(field domain.Vec3) error {
	eLoc := field[m.orientation]

	// Electronic half-step at the current coordinate.
	u := formulas.ExpHermitian(m.fullH(m.st.R, eLoc), 0.5*m.dt/m.hbar)
	rhoHalf := m.st.Rho.Conjugate(u)
	rhoHalf, hermDev := formulas.Hermitize(rhoHalf)
	rhoHalf, traceDev := formulas.NormalizeTrace(rhoHalf)

	// Nuclear velocity-Verlet step under the mean-field force.
	fN := m.meanForce(m.st.R, rhoHalf, eLoc)
	pHalf := m.st.P + 0.5*m.dt*fN
	rNew := m.st.R + m.dt*(pHalf/m.mass)
	fNew := m.meanForce(rNew, rhoHalf, eLoc)
	pNew := pHalf + 0.5*m.dt*fNew

	// Electronic half-step at the new coordinate, same field sample.
	u2 := formulas.ExpHermitian(m.fullH(rNew, eLoc), 0.5*m.dt/m.hbar)
	rhoNew := rhoHalf.Conjugate(u2)
	rhoNew, hd2 := formulas.Hermitize(rhoNew)
	rhoNew, td2 := formulas.NormalizeTrace(rhoNew)

	m.st.Rho = rhoNew
	m.st.R = rNew
	m.st.P = pNew
	m.st.T += m.dt
	m.st.LastField = eLoc
	m.st.Force = fNew
	m.st.HermDev = math.Max(hermDev, hd2)
	m.st.TraceDev = math.Max(traceDev, td2)

	mu := real(m.st.Rho.Mul(m.hooks.Mu(m.st.R)).Trace())
	m.st.Dipole = domain.Vec3{}
	m.st.Dipole[m.orientation] = mu

	m.st.EnergyEl = real(m.hooks.H0(m.st.R).Mul(m.st.Rho).Trace())
	m.st.EnergyTot = 0.5*m.st.P*m.st.P/m.mass + m.st.EnergyEl
	return nil
}

// Amplitude returns d<mu>/dt for the step just propagated, evaluated with
// the field value active during that step:
//
//	d<mu>/dt = (i/hbar) Tr(rho [H, mu]) + Tr(rho dmu/dR) (P/M)
func (m *Model) Amplitude() domain.Vec3 {
	h := m.fullH(m.st.R, m.st.LastField)
	mu := m.hooks.Mu(m.st.R)

	electronic := complex(0, 1/m.hbar) * m.st.Rho.Mul(h.Commutator(mu)).Trace()
	nuclear := m.st.Rho.Mul(m.hooks.DMudR(m.st.R)).Trace() * complex(m.st.P/m.mass, 0)

	var amp domain.Vec3
	amp[m.orientation] = real(electronic + nuclear)
	return amp
}

// Diagnostics reports the observables of the current state, including the
// pre-correction Hermiticity and trace deviations of the last step.
func (m *Model) Diagnostics() domain.Diagnostics {
	return domain.Diagnostics{
		"time_au":       m.st.T,
		"R_au":          m.st.R,
		"P_au":          m.st.P,
		"force_au":      m.st.Force,
		"energy_el_au":  m.st.EnergyEl,
		"energy_tot_au": m.st.EnergyTot,
		"mux_au":        m.st.Dipole[0],
		"muy_au":        m.st.Dipole[1],
		"muz_au":        m.st.Dipole[2],
		"Pg":            real(m.st.Rho[0][0]),
		"Pe":            real(m.st.Rho[1][1]),
		"Pge_real":      real(m.st.Rho[0][1]),
		"Pge_imag":      imag(m.st.Rho[0][1]),
		"trace_dev":     m.st.TraceDev,
		"herm_dev":      m.st.HermDev,
	}
}

// Snapshot returns a deep copy of the dynamical state.
func (m *Model) Snapshot() driver.Snapshot {
	return m.st
}

// Restore replaces the live state with a snapshot from this model.
func (m *Model) Restore(s driver.Snapshot) error {
	st, ok := s.(state)
	if !ok {
		return domain.Configf("ehrenfest model restored with foreign snapshot type %T", s)
	}
	m.st = st
	return nil
}

// checkpointRecord is the minimal resumable state. Complex entries are
// stored as re/im pairs in row-major order; msgpack round-trips float64
// bit-exactly.
type checkpointRecord struct {
	Time float64    `msgpack:"time"`
	Rho  [8]float64 `msgpack:"density_matrix"`
	R    float64    `msgpack:"r"`
	P    float64    `msgpack:"p"`
}

// MarshalCheckpoint serializes {time, rho, R, P}.
func (m *Model) MarshalCheckpoint() ([]byte, error) {
	rec := checkpointRecord{Time: m.st.T, R: m.st.R, P: m.st.P}
	k := 0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			rec.Rho[k] = real(m.st.Rho[i][j])
			rec.Rho[k+1] = imag(m.st.Rho[i][j])
			k += 2
		}
	}
	return msgpack.Marshal(rec)
}

// UnmarshalCheckpoint replaces {time, rho, R, P}; derived observables are
// refreshed on the next propagation.
func (m *Model) UnmarshalCheckpoint(data []byte) error {
	var rec checkpointRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return err
	}
	m.st = state{T: rec.Time, R: rec.R, P: rec.P}
	k := 0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			m.st.Rho[i][j] = complex(rec.Rho[k], rec.Rho[k+1])
			k += 2
		}
	}
	return nil
}
