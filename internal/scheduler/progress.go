package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/taoeli/maxlink/internal/services"
)

// ProgressJob periodically logs how far the tick loop has advanced.
type ProgressJob struct {
	sim *services.SimulationService
	log zerolog.Logger
}

// NewProgressJob creates a progress reporting job
func NewProgressJob(sim *services.SimulationService, log zerolog.Logger) *ProgressJob {
	return &ProgressJob{
		sim: sim,
		log: log.With().Str("job", "progress").Logger(),
	}
}

// Name returns the job name
func (j *ProgressJob) Name() string {
	return "progress"
}

// Run logs the current simulation status
func (j *ProgressJob) Run() error {
	status := j.sim.Status()
	if !status.Active {
		return nil
	}
	j.log.Info().
		Str("run_id", status.RunID).
		Int64("step", status.Step).
		Int64("total_steps", status.Total).
		Msg("Simulation progress")
	return nil
}
