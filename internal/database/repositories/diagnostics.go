package repositories

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/taoeli/maxlink/internal/domain"
)

// DiagnosticsRepository stores the per-commit scalar diagnostics drivers
// report, one row per (run, molecule, step, name).
type DiagnosticsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewDiagnosticsRepository creates a new diagnostics repository
func NewDiagnosticsRepository(db *sql.DB, log zerolog.Logger) *DiagnosticsRepository {
	return &DiagnosticsRepository{
		db:  db,
		log: log.With().Str("repo", "diagnostics").Logger(),
	}
}

// Insert writes one committed step's diagnostics in a single transaction.
func (r *DiagnosticsRepository) Insert(runID string, moleculeID int, step int64, diag domain.Diagnostics) error {
	if len(diag) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin diagnostics insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO step_diagnostics (run_id, molecule_id, step, name, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare diagnostics insert: %w", err)
	}
	defer stmt.Close()

	// Deterministic insert order keeps the table stable across runs.
	names := make([]string, 0, len(diag))
	for name := range diag {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := stmt.Exec(runID, moleculeID, step, name, diag[name]); err != nil {
			return fmt.Errorf("failed to insert diagnostic %q: %w", name, err)
		}
	}
	return tx.Commit()
}

// Latest returns the most recent step's diagnostics for a molecule.
func (r *DiagnosticsRepository) Latest(runID string, moleculeID int) (domain.Diagnostics, int64, error) {
	var step sql.NullInt64
	err := r.db.QueryRow(
		`SELECT MAX(step) FROM step_diagnostics WHERE run_id = ? AND molecule_id = ?`,
		runID, moleculeID,
	).Scan(&step)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find latest step: %w", err)
	}
	if !step.Valid {
		return nil, 0, nil
	}

	rows, err := r.db.Query(
		`SELECT name, value FROM step_diagnostics WHERE run_id = ? AND molecule_id = ? AND step = ?`,
		runID, moleculeID, step.Int64,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	diag := domain.Diagnostics{}
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, 0, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		diag[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating diagnostics: %w", err)
	}
	return diag, step.Int64, nil
}

// Series returns one named diagnostic over all steps, in step order.
func (r *DiagnosticsRepository) Series(runID string, moleculeID int, name string) ([]float64, error) {
	rows, err := r.db.Query(
		`SELECT value FROM step_diagnostics WHERE run_id = ? AND molecule_id = ? AND name = ? ORDER BY step ASC`,
		runID, moleculeID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostic series: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diagnostic series: %w", err)
	}
	return values, nil
}
