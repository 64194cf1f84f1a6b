package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Store persists per-molecule checkpoint blobs as files under a directory.
// The payload encoding belongs to the model that produced it; the store only
// guarantees that what was saved is read back byte-identical.
type Store struct {
	dir    string
	prefix string
	log    zerolog.Logger
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir, prefix string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	if prefix == "" {
		prefix = "checkpoint"
	}
	return &Store{
		dir:    dir,
		prefix: prefix,
		log:    log.With().Str("component", "checkpoint").Logger(),
	}, nil
}

// Path returns the checkpoint file path for a molecule.
func (s *Store) Path(moleculeID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_molecule_%d.ckpt", s.prefix, moleculeID))
}

// Save writes the blob atomically (write to a temp file, then rename).
func (s *Store) Save(moleculeID int, data []byte) error {
	path := s.Path(moleculeID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize checkpoint: %w", err)
	}
	s.log.Debug().Int("molecule_id", moleculeID).Str("path", path).Msg("Checkpoint written")
	return nil
}

// Load reads the blob for a molecule. A missing file is reported as
// os.ErrNotExist so callers can degrade to a fresh start.
func (s *Store) Load(moleculeID int) ([]byte, error) {
	return os.ReadFile(s.Path(moleculeID))
}

// Exists reports whether a checkpoint file is present for the molecule.
func (s *Store) Exists(moleculeID int) bool {
	_, err := os.Stat(s.Path(moleculeID))
	return err == nil
}
