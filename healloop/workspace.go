package healloop

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Workspace writes candidate artifacts to a well-known location so the
// executor always validates the same path. Overwrites back up the
// previous version first.
type Workspace struct {
	dir            string
	filename       string // fixed name; empty uses the artifact's own
	disableBackups bool
}

// NewWorkspace creates a Workspace rooted at dir. An empty dir means the
// current directory.
func NewWorkspace(dir, filename string, disableBackups bool) *Workspace {
	if dir == "" {
		dir = "."
	}
	return &Workspace{dir: dir, filename: filename, disableBackups: disableBackups}
}

// Write persists the artifact and returns the script path the executor
// should run.
func (w *Workspace) Write(artifact *CandidateArtifact) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace dir: %w", err)
	}

	name := w.filename
	if name == "" {
		name = artifact.Filename
	}
	if name == "" {
		name = fallbackFilename
	}
	path := filepath.Join(w.dir, name)

	if !w.disableBackups {
		if err := w.backup(path); err != nil {
			return "", err
		}
	}

	if err := os.WriteFile(path, []byte(artifact.Payload), 0o644); err != nil {
		return "", fmt.Errorf("write candidate: %w", err)
	}
	return path, nil
}

// backup copies an existing file aside with a timestamped .bak suffix.
func (w *Workspace) backup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read for backup: %w", err)
	}
	bakPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(bakPath, data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}
