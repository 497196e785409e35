package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileStore keeps the snapshot in one JSON file, replaced atomically on
// every save.
type FileStore struct {
	path   string
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string, logger *logrus.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes the snapshot through a temp file in the same directory and
// renames it over the previous one, so a crash never leaves half a file.
func (s *FileStore) Save(snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot.Version = SchemaVersion
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".courtcal-snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to chmod snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing, unreadable, corrupt or
// other-version file all mean "no snapshot" and yield fallback.
func (s *FileStore) Load(fallback Snapshot) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.WithError(err).WithField("path", s.path).Warn("Snapshot unreadable, starting fresh")
		}
		return fallback
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.WithError(err).WithField("path", s.path).Debug("Snapshot corrupt, starting fresh")
		return fallback
	}
	if snap.Version != SchemaVersion {
		s.logger.WithFields(logrus.Fields{
			"path":    s.path,
			"version": snap.Version,
			"want":    SchemaVersion,
		}).Debug("Snapshot schema mismatch, starting fresh")
		return fallback
	}
	if snap.MonthCursorISO == "" {
		return fallback
	}
	if snap.Events == nil {
		snap.Events = fallback.Events
	}
	return snap
}
