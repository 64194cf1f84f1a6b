package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/taoeli/maxlink/internal/modules/trajectory"
)

// TrajectoryFlushJob drains the buffered trajectory samples to disk so the
// tick loop never writes SQLite itself.
type TrajectoryFlushJob struct {
	history *trajectory.HistoryDB
	log     zerolog.Logger
}

// NewTrajectoryFlushJob creates a new trajectory flush job
func NewTrajectoryFlushJob(history *trajectory.HistoryDB, log zerolog.Logger) *TrajectoryFlushJob {
	return &TrajectoryFlushJob{
		history: history,
		log:     log.With().Str("job", "trajectory_flush").Logger(),
	}
}

// Name returns the job name
func (j *TrajectoryFlushJob) Name() string {
	return "trajectory_flush"
}

// Run flushes pending samples
func (j *TrajectoryFlushJob) Run() error {
	pending := j.history.Pending()
	if pending == 0 {
		return nil
	}
	if err := j.history.Flush(); err != nil {
		return err
	}
	j.log.Debug().Int("samples", pending).Msg("Flushed trajectory samples")
	return nil
}
