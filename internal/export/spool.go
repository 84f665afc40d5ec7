// SPDX-License-Identifier: MIT

package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/pagetap/pagetap/internal/capture"
	"github.com/pagetap/pagetap/internal/log"
)

// DirSpooler writes sealed artifacts into a local directory. Writes are
// atomic and durable: fsync before rename, so a crash never leaves a
// partial file behind.
type DirSpooler struct {
	dir string
}

// NewDirSpooler creates the spool directory if needed.
func NewDirSpooler(dir string) (*DirSpooler, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &DirSpooler{dir: dir}, nil
}

// Spool persists one artifact under its derived filename.
func (s *DirSpooler) Spool(a *capture.Artifact) error {
	logger := log.WithComponent("export")
	path := filepath.Join(s.dir, Filename(a, ""))

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending artifact file: %w", err)
	}
	defer func() {
		// renameio removes the temp file if not committed.
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending artifact file")
		}
	}()

	if _, err := pendingFile.Write(a.Data); err != nil {
		return fmt.Errorf("write artifact data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace artifact file: %w", err)
	}

	logger.Info().
		Str(log.FieldArtifactID, a.ID).
		Str(log.FieldPath, path).
		Int("bytes", len(a.Data)).
		Msg("artifact spooled")
	return nil
}
