package driver

import (
	"errors"
	"os"

	"github.com/rs/zerolog"

	"github.com/taoeli/maxlink/internal/checkpoint"
	"github.com/taoeli/maxlink/internal/domain"
)

// Driver wraps a Model with the staged stage/commit protocol the field
// solver consumes. A tick is advanced speculatively: Stage runs the model
// one macro-step on a working copy and rolls the live state back, Commit
// adopts the previewed state permanently. At most one staging record exists
// per driver; re-staging discards the previous preview.
type Driver struct {
	model      Model
	log        zerolog.Logger
	ckpt       *checkpoint.Store
	restart    bool
	dt         float64
	moleculeID int

	initialized bool
	staged      *stagingRecord
}

// stagingRecord holds one uncommitted preview. Consumed exactly once by
// Commit or overwritten by the next Stage.
type stagingRecord struct {
	preview     Snapshot
	amplitude   domain.Vec3
	diagnostics domain.Diagnostics
}

// Options configures optional driver behavior.
type Options struct {
	// Checkpoints enables checkpoint-on-commit when non-nil.
	Checkpoints *checkpoint.Store
	// Restart loads the molecule's checkpoint during Initialize. A missing
	// file warns and starts from the configured initial condition.
	Restart bool
	Log     zerolog.Logger
}

// New creates a staged driver around a model.
func New(model Model, opts Options) *Driver {
	return &Driver{
		model:   model,
		ckpt:    opts.Checkpoints,
		restart: opts.Restart,
		log:     opts.Log.With().Str("component", "driver").Logger(),
	}
}

// Initialize fixes the timestep and molecule identity and runs the model's
// expensive setup. Called exactly once before any Stage call.
func (d *Driver) Initialize(dt float64, moleculeID int) error {
	if d.initialized {
		return domain.Configf("driver for molecule %d already initialized", d.moleculeID)
	}
	if dt <= 0 {
		return domain.Configf("timestep must be positive, got %g", dt)
	}
	if moleculeID < 0 {
		return domain.Configf("molecule id must be non-negative, got %d", moleculeID)
	}

	if err := d.model.Initialize(dt, moleculeID); err != nil {
		return err
	}
	d.dt = dt
	d.moleculeID = moleculeID
	d.log = d.log.With().Int("molecule_id", moleculeID).Logger()

	if d.restart && d.ckpt != nil {
		data, err := d.ckpt.Load(moleculeID)
		switch {
		case errors.Is(err, os.ErrNotExist):
			d.log.Warn().Msg("Restart requested but no checkpoint found, starting fresh")
		case err != nil:
			d.log.Warn().Err(err).Msg("Checkpoint load failed, starting fresh")
		default:
			if err := d.model.UnmarshalCheckpoint(data); err != nil {
				return err
			}
			d.log.Info().Msg("State restored from checkpoint")
		}
	}

	d.initialized = true
	return nil
}

// Stage speculatively advances the model one macro-step under the field
// sample and stashes the result. The live, externally observable state is
// unchanged on return, whether or not the propagation succeeded. Any
// previously staged preview is discarded.
func (d *Driver) Stage(field domain.Vec3) error {
	if !d.initialized {
		return domain.Configf("stage called before initialize")
	}
	d.staged = nil

	pre := d.model.Snapshot()
	if err := d.model.Propagate(field); err != nil {
		if rerr := d.model.Restore(pre); rerr != nil {
			d.log.Error().Err(rerr).Msg("Rollback after failed propagation also failed")
		}
		return err
	}
	amp := d.model.Amplitude()
	diag := d.model.Diagnostics()
	preview := d.model.Snapshot()

	if err := d.model.Restore(pre); err != nil {
		return err
	}

	d.staged = &stagingRecord{
		preview:     preview,
		amplitude:   amp,
		diagnostics: diag,
	}
	return nil
}

// HasResult reports whether an uncommitted preview is staged.
func (d *Driver) HasResult() bool {
	return d.staged != nil
}

// Commit atomically adopts the staged preview and returns its amplitude and
// diagnostics. With nothing staged it is a defensive no-op returning a zero
// amplitude: an aborted tick must not crash the surrounding solver.
func (d *Driver) Commit() (domain.Vec3, domain.Diagnostics) {
	if d.staged == nil {
		return domain.Vec3{}, nil
	}

	rec := d.staged
	if err := d.model.Restore(rec.preview); err != nil {
		d.log.Error().Err(err).Msg("Failed to adopt staged state, keeping previous state")
		d.staged = nil
		return domain.Vec3{}, nil
	}

	if d.ckpt != nil {
		data, err := d.model.MarshalCheckpoint()
		if err == nil {
			err = d.ckpt.Save(d.moleculeID, data)
		}
		if err != nil {
			d.log.Error().Err(err).Msg("Checkpoint write failed")
		}
	}

	d.staged = nil
	return rec.amplitude, rec.diagnostics
}

// MoleculeID returns the identity fixed at Initialize.
func (d *Driver) MoleculeID() int {
	return d.moleculeID
}

// Timestep returns the timestep fixed at Initialize, in atomic units.
func (d *Driver) Timestep() float64 {
	return d.dt
}

// Diagnostics returns the live model's current observables.
func (d *Driver) Diagnostics() domain.Diagnostics {
	return d.model.Diagnostics()
}
