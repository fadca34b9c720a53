// Package mind owns Bella's memory: the persisted document, the conversation
// recorder that feeds it, and the rule registries built on top of it.
package mind

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"

	"bella/datastore"
)

// Options configures a Store.
type Options struct {
	Path             string
	BackupDir        string
	BackupPrefix     string
	BackupInterval   time.Duration
	BackupKeep       int
	Retention        time.Duration
	CompactThreshold int
	Now              func() time.Time
}

// DefaultOptions returns the defaults used by the bot.
func DefaultOptions() Options {
	return Options{
		Path:             "bella_memory.json",
		BackupDir:        "memory_backups",
		BackupPrefix:     "bella_memory_backup_",
		BackupInterval:   time.Hour,
		BackupKeep:       10,
		Retention:        30 * 24 * time.Hour,
		CompactThreshold: 100,
		Now:              time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BackupDir == "" {
		o.BackupDir = d.BackupDir
	}
	if o.BackupPrefix == "" {
		o.BackupPrefix = d.BackupPrefix
	}
	if o.BackupInterval < 0 {
		o.BackupInterval = 0
	}
	if o.BackupKeep <= 0 {
		o.BackupKeep = d.BackupKeep
	}
	if o.Retention <= 0 {
		o.Retention = d.Retention
	}
	if o.CompactThreshold <= 0 {
		o.CompactThreshold = d.CompactThreshold
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// LoadReport describes what happened while loading the document.
type LoadReport struct {
	Fresh      bool     // no usable file, a default document was created
	Backfilled []string // top-level keys that were added
	Repaired   []string // keys replaced or merged by repair
}

// Changed reports whether the loaded document differs from the file.
func (r LoadReport) Changed() bool {
	return r.Fresh || len(r.Backfilled) > 0 || len(r.Repaired) > 0
}

// Store is the single owner of the memory document. All methods are safe for
// concurrent use; each one runs a full load-mutate-save cycle under one lock.
type Store struct {
	mu         sync.Mutex
	opts       Options
	file       *datastore.File
	root       *Root
	extras     rawDocument
	lastBackup time.Time
	report     LoadReport
	log        *slog.Logger
}

// Open loads the document at opts.Path, repairing it if needed, and takes the
// startup backup. Only an unusable configuration is an error.
func Open(opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("memory path cannot be empty")
	}
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	file, err := datastore.New(&datastore.Config{
		FilePath:       opts.Path,
		SnapshotDir:    opts.BackupDir,
		SnapshotPrefix: opts.BackupPrefix,
		SnapshotKeep:   opts.BackupKeep,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open memory file: %w", err)
	}

	s := &Store{
		opts: opts,
		file: file,
		log:  logger.With("logger", "mind"),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.report = s.loadLocked()
	if n := len(s.root.Backups); n > 0 && s.root.Backups[n-1] != nil {
		s.lastBackup = s.root.Backups[n-1].Timestamp
	}
	if s.report.Changed() {
		_ = s.saveLocked()
	}
	if len(s.report.Repaired) > 0 {
		_, _ = s.backupLocked(true)
	} else {
		_, _ = s.backupLocked(false)
	}
	return s, nil
}

// Report returns the result of the initial load.
func (s *Store) Report() LoadReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Path returns the document path.
func (s *Store) Path() string { return s.file.Path() }

func (s *Store) now() time.Time { return s.opts.Now() }

func (s *Store) loadLocked() LoadReport {
	now := s.now()
	data, err := s.file.Read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("failed to read memory, starting fresh", tint.Err(err))
		}
		s.root, s.extras = defaultRoot(now), rawDocument{}
		return LoadReport{Fresh: true}
	}

	doc, err := parseDocument(data)
	if err != nil {
		s.log.Warn("memory file is not valid JSON, starting fresh", tint.Err(err))
		s.root, s.extras = defaultRoot(now), rawDocument{}
		return LoadReport{Fresh: true}
	}

	var report LoadReport
	defaults := defaultDocument(now)
	report.Backfilled = backfill(doc, defaults)

	if problems := integrityProblems(doc); len(problems) > 0 {
		s.log.Warn("memory integrity check failed, repairing", "problems", problems)
		report.Repaired = repair(doc, defaults)
	}

	root, extras, reset := decode(doc, now)
	if len(reset) > 0 {
		s.log.Warn("undecodable or null memory entries were dropped", "paths", reset)
		report.Repaired = append(report.Repaired, reset...)
	}
	s.root, s.extras = root, extras
	return report
}

// saveLocked rewrites the whole document. Failures are logged; the datastore
// puts the previous version back.
func (s *Store) saveLocked() error {
	data, err := encode(s.root, s.extras)
	if err != nil {
		s.log.Error("failed to encode memory", tint.Err(err))
		return fmt.Errorf("failed to encode memory: %w", err)
	}
	if err := s.file.Write(data); err != nil {
		s.log.Error("memory save failed", tint.Err(err))
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

// Save writes the document as it is.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Document returns a deep copy of the whole document.
func (s *Store) Document() *Root {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := cloneRoot(s.root)
	if err != nil {
		s.log.Error("failed to copy memory", tint.Err(err))
		return defaultRoot(s.now())
	}
	return out
}

// Clear resets the document to its empty default.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = defaultRoot(s.now())
	s.extras = rawDocument{}
	s.log.Info("memory cleared")
	return s.saveLocked()
}

// VerifyFile checks a document on disk without loading it into a store. It
// returns the integrity problems found; a parse failure is an error.
func VerifyFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("invalid memory document: %w", err)
	}
	problems := integrityProblems(doc)
	if _, ok := doc["last_cleaned"]; !ok {
		problems = append(problems, "last_cleaned: missing")
	}
	return problems, nil
}
