// Package datastore persists a single JSON document on disk. Every write keeps the
// previous version in a ".bak" sibling and is verified by checksum; point-in-time
// snapshots go to a separate directory with bounded rotation.
package datastore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"
)

// SnapshotLayout is the timestamp layout embedded in snapshot file names.
const SnapshotLayout = "20060102_150405"

var (
	// ErrChecksumMismatch is returned when a written file does not read back identically.
	ErrChecksumMismatch = errors.New("file checksum mismatch")
	// ErrSnapshotMismatch is returned when a snapshot does not parse to the source value.
	ErrSnapshotMismatch = errors.New("snapshot validation failed")
)

// Config holds configuration options for a File.
type Config struct {
	FilePath       string
	SnapshotDir    string
	SnapshotPrefix string
	SnapshotKeep   int // number of snapshots to keep, 0 keeps all
	Logger         *slog.Logger
}

// DefaultConfig returns the configuration used by the bot's memory file.
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:       filePath,
		SnapshotDir:    "memory_backups",
		SnapshotPrefix: "bella_memory_backup_",
		SnapshotKeep:   10,
		Logger:         slog.Default(),
	}
}

// File is a JSON document on disk with .bak protection and snapshots.
// It does no locking; the owner serializes calls.
type File struct {
	path   string
	config *Config
	log    *slog.Logger
}

// New validates the configuration and creates the directories it needs.
func New(config *Config) (*File, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.FilePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if config.SnapshotDir != "" {
		if err := os.MkdirAll(config.SnapshotDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &File{
		path:   config.FilePath,
		config: config,
		log:    logger.With("logger", "datastore"),
	}, nil
}

// Path returns the document path.
func (f *File) Path() string { return f.path }

// BackupPath returns the path of the previous successful write.
func (f *File) BackupPath() string { return f.path + ".bak" }

// Exists reports whether the document is present on disk.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Read returns the raw document bytes.
func (f *File) Read() ([]byte, error) {
	return os.ReadFile(f.path)
}

// Write replaces the document. The current file is first copied to the .bak
// sibling; if the new write fails, the .bak copy is put back.
func (f *File) Write(data []byte) error {
	if f.Exists() {
		if err := copyFile(f.path, f.BackupPath()); err != nil {
			f.log.Warn("failed to copy previous version", "path", f.BackupPath(), "err", err)
		}
	}

	err := f.writeFileAtomic(data)
	if err == nil {
		err = f.verifyFile(data)
	}
	if err == nil {
		return nil
	}

	if _, statErr := os.Stat(f.BackupPath()); statErr == nil {
		if rerr := os.Rename(f.BackupPath(), f.path); rerr != nil {
			f.log.Error("failed to restore previous version", "err", rerr)
		} else {
			f.log.Warn("write failed, previous version restored", "err", err)
		}
	}
	return err
}

// writeFileAtomic performs atomic file write using temporary file and rename
func (f *File) writeFileAtomic(data []byte) error {
	tmpFile := f.path + ".tmp"

	file, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	file.Close()

	if err := os.Rename(tmpFile, f.path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// verifyFile verifies that the written file matches expected data
func (f *File) verifyFile(expected []byte) error {
	actual, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read file for verification: %w", err)
	}
	if checksum(actual) != checksum(expected) {
		return ErrChecksumMismatch
	}
	return nil
}

// Snapshot copies the current document into the snapshot directory under a
// name derived from at, checks that it parses to the same value, and rotates
// old snapshots. It returns the snapshot path.
func (f *File) Snapshot(at time.Time) (string, error) {
	if f.config.SnapshotDir == "" {
		return "", fmt.Errorf("snapshot directory not configured")
	}
	src, err := f.Read()
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	name := f.config.SnapshotPrefix + at.Format(SnapshotLayout) + ".json"
	path := filepath.Join(f.config.SnapshotDir, name)
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	written, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot: %w", err)
	}
	same, err := SameJSON(src, written)
	if err != nil {
		return "", fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if !same {
		return "", ErrSnapshotMismatch
	}

	f.rotate()
	return path, nil
}

// Snapshots lists snapshot paths, newest first.
func (f *File) Snapshots() ([]string, error) {
	if f.config.SnapshotDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(f.config.SnapshotDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, f.config.SnapshotPrefix) || !strings.HasSuffix(n, ".json") {
			continue
		}
		names = append(names, n)
	}
	// names embed a fixed-width timestamp, so lexical order is chronological
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(f.config.SnapshotDir, n)
	}
	return paths, nil
}

// rotate removes snapshots beyond the configured limit, oldest first.
func (f *File) rotate() {
	if f.config.SnapshotKeep <= 0 {
		return
	}
	paths, err := f.Snapshots()
	if err != nil || len(paths) <= f.config.SnapshotKeep {
		return
	}
	for _, p := range paths[f.config.SnapshotKeep:] {
		if err := os.Remove(p); err != nil {
			f.log.Warn("failed to remove old snapshot", "path", p, "err", err)
		}
	}
}

// SameJSON reports whether two documents parse to equal values.
func SameJSON(a, b []byte) (bool, error) {
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return false, err
	}
	return reflect.DeepEqual(va, vb), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, in); err != nil {
		return err
	}
	return os.WriteFile(dst, buf.Bytes(), 0o644)
}

// checksum computes SHA-256 checksum of data
func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
