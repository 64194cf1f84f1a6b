package trajectory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/taoeli/maxlink/internal/domain"
)

// Sample is one committed tick of a molecule's trajectory.
type Sample struct {
	Step   int64       `json:"step"`
	TimeAU float64     `json:"time_au"`
	Field  domain.Vec3 `json:"field_au"`
	Amp    domain.Vec3 `json:"amp_au"`
}

// HistoryDB appends trajectory samples to one SQLite file per molecule.
// Samples are buffered in memory and written in batches by Flush, so the
// tick loop never blocks on the filesystem.
type HistoryDB struct {
	historyDir string
	log        zerolog.Logger

	mu      sync.Mutex
	pending map[int][]Sample
}

// NewHistoryDB creates a new trajectory history accessor
func NewHistoryDB(historyDir string, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		historyDir: historyDir,
		log:        log.With().Str("component", "trajectory_db").Logger(),
		pending:    make(map[int][]Sample),
	}
}

// Append buffers one sample for later flushing.
func (h *HistoryDB) Append(moleculeID int, s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending[moleculeID] = append(h.pending[moleculeID], s)
}

// Pending reports the number of buffered samples across molecules.
func (h *HistoryDB) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, batch := range h.pending {
		n += len(batch)
	}
	return n
}

// Flush writes all buffered samples to their per-molecule files.
func (h *HistoryDB) Flush() error {
	h.mu.Lock()
	batches := h.pending
	h.pending = make(map[int][]Sample)
	h.mu.Unlock()

	for moleculeID, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		if err := h.writeBatch(moleculeID, batch); err != nil {
			// Put the batch back so a later flush can retry.
			h.mu.Lock()
			h.pending[moleculeID] = append(batch, h.pending[moleculeID]...)
			h.mu.Unlock()
			return err
		}
	}
	return nil
}

func (h *HistoryDB) writeBatch(moleculeID int, batch []Sample) error {
	db, err := h.openHistoryDB(moleculeID)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin trajectory batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO samples (step, time_au, field_x, field_y, field_z, amp_x, amp_y, amp_z)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare trajectory insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range batch {
		_, err := stmt.Exec(s.Step, s.TimeAU,
			s.Field[0], s.Field[1], s.Field[2],
			s.Amp[0], s.Amp[1], s.Amp[2])
		if err != nil {
			return fmt.Errorf("failed to insert trajectory sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trajectory batch: %w", err)
	}
	h.log.Debug().Int("molecule_id", moleculeID).Int("samples", len(batch)).Msg("Trajectory batch written")
	return nil
}

// GetSamples fetches the most recent samples for a molecule, oldest first.
func (h *HistoryDB) GetSamples(moleculeID int, limit int) ([]Sample, error) {
	db, err := h.openHistoryDB(moleculeID)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := `
		SELECT step, time_au, field_x, field_y, field_z, amp_x, amp_y, amp_z
		FROM (
			SELECT * FROM samples ORDER BY step DESC LIMIT ?
		)
		ORDER BY step ASC
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trajectory samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		err := rows.Scan(&s.Step, &s.TimeAU,
			&s.Field[0], &s.Field[1], &s.Field[2],
			&s.Amp[0], &s.Amp[1], &s.Amp[2])
		if err != nil {
			return nil, fmt.Errorf("failed to scan trajectory sample: %w", err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trajectory samples: %w", err)
	}
	return samples, nil
}

func (h *HistoryDB) openHistoryDB(moleculeID int) (*sql.DB, error) {
	if err := os.MkdirAll(h.historyDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	path := filepath.Join(h.historyDir, fmt.Sprintf("molecule_%d.db", moleculeID))
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS samples (
			step INTEGER PRIMARY KEY,
			time_au REAL NOT NULL,
			field_x REAL NOT NULL,
			field_y REAL NOT NULL,
			field_z REAL NOT NULL,
			amp_x REAL NOT NULL,
			amp_y REAL NOT NULL,
			amp_z REAL NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure samples table: %w", err)
	}
	return db, nil
}
