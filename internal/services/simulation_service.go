package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taoeli/maxlink/internal/database/repositories"
	"github.com/taoeli/maxlink/internal/domain"
	"github.com/taoeli/maxlink/internal/modules/driver"
	"github.com/taoeli/maxlink/internal/modules/trajectory"
)

// SimulationService iterates the registered molecules tick by tick,
// staging each driver under the sampled field and committing accepted
// ticks. Drivers own their state exclusively, so the per-tick loop is
// plain sequential call/response.
type SimulationService struct {
	dt      float64
	source  FieldSource
	runs    *repositories.RunRepository
	diags   *repositories.DiagnosticsRepository
	history *trajectory.HistoryDB
	log     zerolog.Logger

	// RecordEvery thins diagnostics persistence; trajectory samples are
	// kept for every committed tick.
	recordEvery int64

	drivers map[int]*driver.Driver

	mu     sync.Mutex
	runID  string
	step   int64
	total  int64
	active bool
	latest map[int]domain.Diagnostics
}

// SimulationConfig wires a simulation service.
type SimulationConfig struct {
	Dt          float64 // a.u. per tick
	Source      FieldSource
	Runs        *repositories.RunRepository
	Diagnostics *repositories.DiagnosticsRepository
	History     *trajectory.HistoryDB
	RecordEvery int64 // 0 means every committed tick
	Log         zerolog.Logger
}

// NewSimulationService creates a new simulation service
func NewSimulationService(cfg SimulationConfig) (*SimulationService, error) {
	if cfg.Dt <= 0 {
		return nil, domain.Configf("simulation timestep must be positive, got %g", cfg.Dt)
	}
	if cfg.Source == nil {
		return nil, domain.Configf("simulation requires a field source")
	}
	recordEvery := cfg.RecordEvery
	if recordEvery <= 0 {
		recordEvery = 1
	}
	return &SimulationService{
		dt:          cfg.Dt,
		source:      cfg.Source,
		runs:        cfg.Runs,
		diags:       cfg.Diagnostics,
		history:     cfg.History,
		recordEvery: recordEvery,
		log:         cfg.Log.With().Str("service", "simulation").Logger(),
		drivers:     make(map[int]*driver.Driver),
		latest:      make(map[int]domain.Diagnostics),
	}, nil
}

// AddMolecule wraps a model in a staged driver and initializes it.
func (s *SimulationService) AddMolecule(moleculeID int, model driver.Model, opts driver.Options) error {
	if _, exists := s.drivers[moleculeID]; exists {
		return domain.Configf("molecule %d already registered", moleculeID)
	}
	d := driver.New(model, opts)
	if err := d.Initialize(s.dt, moleculeID); err != nil {
		return err
	}
	s.drivers[moleculeID] = d
	return nil
}

// MoleculeIDs returns the registered molecules in ascending order.
func (s *SimulationService) MoleculeIDs() []int {
	ids := make([]int, 0, len(s.drivers))
	for id := range s.drivers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Run executes the tick loop for the given number of steps. Cancelling the
// context stops cleanly after the current tick.
func (s *SimulationService) Run(ctx context.Context, steps int64) error {
	if len(s.drivers) == 0 {
		return domain.Configf("no molecules registered")
	}

	runID := ""
	if s.runs != nil {
		id, err := s.runs.Create(s.dt, len(s.drivers))
		if err != nil {
			return err
		}
		runID = id
	}

	s.mu.Lock()
	s.runID = runID
	s.step = 0
	s.total = steps
	s.active = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	ids := s.MoleculeIDs()
	s.log.Info().
		Str("run_id", runID).
		Int64("steps", steps).
		Int("molecules", len(ids)).
		Float64("dt_au", s.dt).
		Msg("Simulation started")

	for step := int64(1); step <= steps; step++ {
		select {
		case <-ctx.Done():
			s.log.Warn().Int64("step", step).Msg("Simulation cancelled")
			return s.finishRun(runID, step-1)
		default:
		}

		t := float64(step-1) * s.dt
		for _, id := range ids {
			d := s.drivers[id]
			field := s.source.Sample(t, id)

			if err := d.Stage(field); err != nil {
				return fmt.Errorf("stage failed for molecule %d at step %d: %w", id, step, err)
			}
			amp, diag := d.Commit()
			s.record(runID, id, step, field, amp, diag)
		}

		s.mu.Lock()
		s.step = step
		s.mu.Unlock()
	}

	s.log.Info().Str("run_id", runID).Int64("steps", steps).Msg("Simulation finished")
	return s.finishRun(runID, steps)
}

func (s *SimulationService) finishRun(runID string, steps int64) error {
	if s.history != nil {
		if err := s.history.Flush(); err != nil {
			s.log.Error().Err(err).Msg("Final trajectory flush failed")
		}
	}
	if s.runs == nil {
		return nil
	}
	return s.runs.UpdateSteps(runID, steps)
}

func (s *SimulationService) record(runID string, moleculeID int, step int64, field, amp domain.Vec3, diag domain.Diagnostics) {
	if s.history != nil {
		s.history.Append(moleculeID, trajectory.Sample{
			Step:   step,
			TimeAU: diag["time_au"],
			Field:  field,
			Amp:    amp,
		})
	}

	if diag == nil {
		diag = domain.Diagnostics{}
	}
	diag["amp_x"] = amp[0]
	diag["amp_y"] = amp[1]
	diag["amp_z"] = amp[2]

	s.mu.Lock()
	s.latest[moleculeID] = diag
	s.mu.Unlock()

	if s.diags != nil && step%s.recordEvery == 0 {
		if err := s.diags.Insert(runID, moleculeID, step, diag); err != nil {
			s.log.Error().Err(err).Int("molecule_id", moleculeID).Msg("Diagnostics insert failed")
		}
	}
}

// Status is a point-in-time view of the tick loop.
type Status struct {
	RunID     string `json:"run_id"`
	Step      int64  `json:"step"`
	Total     int64  `json:"total_steps"`
	Active    bool   `json:"active"`
	Molecules []int  `json:"molecules"`
}

// Status reports progress for the diagnostics server.
func (s *SimulationService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		RunID:     s.runID,
		Step:      s.step,
		Total:     s.total,
		Active:    s.active,
		Molecules: s.MoleculeIDs(),
	}
}

// LatestDiagnostics returns the most recent committed diagnostics for a
// molecule, or nil when it has not committed yet.
func (s *SimulationService) LatestDiagnostics(moleculeID int) domain.Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	diag, ok := s.latest[moleculeID]
	if !ok {
		return nil
	}
	out := domain.Diagnostics{}
	for k, v := range diag {
		out[k] = v
	}
	return out
}
