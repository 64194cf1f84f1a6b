package driver

import "github.com/taoeli/maxlink/internal/domain"

// Snapshot is an opaque, fully-owned deep copy of a model's internal state.
// Models hand snapshots out and accept them back; the driver never inspects
// one. Mutating the live model after taking a snapshot must never alter it.
type Snapshot interface{}

// Model is the advancing engine behind a staged driver: one matter model
// owning its full dynamical state. All methods are synchronous and
// single-threaded; Propagate may block on an expensive external evaluator.
type Model interface {
	// Initialize performs the expensive one-time setup once the timestep
	// and molecule identity are known.
	Initialize(dt float64, moleculeID int) error

	// Propagate advances the live state by exactly one macro-step under a
	// field sample held constant across the step.
	Propagate(field domain.Vec3) error

	// Amplitude returns the source term for the step just propagated: the
	// time-derivative of the induced dipole, in atomic units.
	Amplitude() domain.Vec3

	// Diagnostics returns scalar observables for the current state.
	Diagnostics() domain.Diagnostics

	// Snapshot returns a deep copy of the full dynamical state.
	Snapshot() Snapshot

	// Restore replaces the live state with a snapshot previously returned
	// by Snapshot on the same model.
	Restore(s Snapshot) error

	// MarshalCheckpoint serializes the minimal state needed to resume.
	MarshalCheckpoint() ([]byte, error)

	// UnmarshalCheckpoint replaces the live state with checkpoint contents.
	UnmarshalCheckpoint(data []byte) error
}
