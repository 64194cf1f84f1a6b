package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Run is one simulation run's metadata row.
type Run struct {
	ID        string  `json:"id"`
	StartedAt string  `json:"started_at"`
	DtAU      float64 `json:"dt_au"`
	Molecules int     `json:"molecules"`
	Steps     int64   `json:"steps"`
}

// RunRepository handles run metadata database operations
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

// Create inserts a new run and returns its generated id.
func (r *RunRepository) Create(dtAU float64, molecules int) (string, error) {
	id := uuid.New().String()
	query := `INSERT INTO runs (id, started_at, dt_au, molecules) VALUES (?, ?, ?, ?)`

	_, err := r.db.Exec(query, id, time.Now().UTC().Format(time.RFC3339), dtAU, molecules)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// UpdateSteps records the number of committed ticks.
func (r *RunRepository) UpdateSteps(id string, steps int64) error {
	_, err := r.db.Exec(`UPDATE runs SET steps = ? WHERE id = ?`, steps, id)
	if err != nil {
		return fmt.Errorf("failed to update run steps: %w", err)
	}
	return nil
}

// Get returns a run by id, or nil when it does not exist.
func (r *RunRepository) Get(id string) (*Run, error) {
	query := `SELECT id, started_at, dt_au, molecules, steps FROM runs WHERE id = ?`

	var run Run
	err := r.db.QueryRow(query, id).Scan(&run.ID, &run.StartedAt, &run.DtAU, &run.Molecules, &run.Steps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// Latest returns the most recently started run, or nil when none exist.
func (r *RunRepository) Latest() (*Run, error) {
	query := `SELECT id, started_at, dt_au, molecules, steps FROM runs ORDER BY started_at DESC LIMIT 1`

	var run Run
	err := r.db.QueryRow(query).Scan(&run.ID, &run.StartedAt, &run.DtAU, &run.Molecules, &run.Steps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return &run, nil
}
