package mind

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
)

// ErrNoValidBackup is returned when no snapshot passes structural validation.
var ErrNoValidBackup = errors.New("no valid backup found")

// Backup takes a snapshot if the backup interval has elapsed since the last one.
// It returns the snapshot path, or "" when skipped.
func (s *Store) Backup() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backupLocked(false)
}

// BackupNow takes a snapshot regardless of the interval.
func (s *Store) BackupNow() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backupLocked(true)
}

func (s *Store) backupLocked(force bool) (string, error) {
	now := s.now()
	if !force && !s.lastBackup.IsZero() && now.Sub(s.lastBackup) < s.opts.BackupInterval {
		return "", nil
	}
	if !s.file.Exists() {
		if err := s.saveLocked(); err != nil {
			return "", err
		}
	}

	path, err := s.file.Snapshot(now)
	if err != nil {
		s.log.Error("backup creation failed", tint.Err(err))
		if rerr := s.restoreLatestLocked(); rerr != nil {
			s.log.Error("restore after failed backup did not succeed", tint.Err(rerr))
		}
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	s.lastBackup = now

	s.root.Backups = append(s.root.Backups, &BackupRecord{Timestamp: now, Filename: filepath.Base(path)})
	if over := len(s.root.Backups) - s.opts.BackupKeep; over > 0 {
		s.root.Backups = s.root.Backups[over:]
	}
	s.log.Debug("backup created", "path", path)
	return path, s.saveLocked()
}

// Backups lists snapshot paths, newest first.
func (s *Store) Backups() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Snapshots()
}

// RestoreLatest replaces the document with the newest structurally valid snapshot.
func (s *Store) RestoreLatest() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths, err := s.file.Snapshots()
	if err != nil {
		return "", fmt.Errorf("failed to list backups: %w", err)
	}
	for _, p := range paths {
		if err := s.restoreFileLocked(p); err == nil {
			return p, nil
		}
	}
	return "", ErrNoValidBackup
}

// RestoreFrom replaces the document with the snapshot at path.
func (s *Store) RestoreFrom(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreFileLocked(path)
}

func (s *Store) restoreLatestLocked() error {
	paths, err := s.file.Snapshots()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	for _, p := range paths {
		if err := s.restoreFileLocked(p); err != nil {
			s.log.Debug("skipping backup", "path", p, tint.Err(err))
			continue
		}
		return nil
	}
	return ErrNoValidBackup
}

func (s *Store) restoreFileLocked(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, ok := validDocument(data)
	if !ok {
		return fmt.Errorf("backup %s failed structural validation", filepath.Base(path))
	}
	root, extras, _ := decode(doc, s.now())
	s.root, s.extras = root, extras
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.log.Info("restored memory from backup", "path", path)
	return nil
}
