package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFile(t *testing.T, keep int) *File {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig(filepath.Join(dir, "memory.json"))
	cfg.SnapshotDir = filepath.Join(dir, "backups")
	cfg.SnapshotKeep = keep
	f, err := New(cfg)
	require.NoError(t, err)
	return f
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestWriteKeepsPreviousVersion(t *testing.T) {
	f := newTestFile(t, 10)

	require.NoError(t, f.Write([]byte(`{"v":1}`)))
	_, err := os.Stat(f.BackupPath())
	assert.True(t, os.IsNotExist(err), "first write has nothing to back up")

	require.NoError(t, f.Write([]byte(`{"v":2}`)))

	cur, err := f.Read()
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(cur))

	prev, err := os.ReadFile(f.BackupPath())
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(prev))

	_, err = os.Stat(f.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFailureRestoresBackup(t *testing.T) {
	f := newTestFile(t, 10)
	require.NoError(t, f.Write([]byte(`{"v":1}`)))

	// a directory in place of the temp file makes the write fail
	require.NoError(t, os.Mkdir(f.Path()+".tmp", 0o755))

	err := f.Write([]byte(`{"v":2}`))
	require.Error(t, err)

	cur, err := f.Read()
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(cur))
}

func TestSnapshotRotation(t *testing.T) {
	f := newTestFile(t, 10)
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	var created []string
	for i := 0; i < 15; i++ {
		require.NoError(t, f.Write([]byte(fmt.Sprintf(`{"n":%d}`, i))))
		p, err := f.Snapshot(base.Add(time.Duration(i) * time.Second))
		require.NoError(t, err)
		created = append(created, p)
	}

	paths, err := f.Snapshots()
	require.NoError(t, err)
	require.Len(t, paths, 10)

	for i, p := range paths {
		assert.Equal(t, created[14-i], p)
	}
	assert.Equal(t, "bella_memory_backup_20250102_030419.json", filepath.Base(paths[0]))

	newest, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":14}`, string(newest))
}

func TestSnapshotsIgnoresForeignFiles(t *testing.T) {
	f := newTestFile(t, 10)
	require.NoError(t, f.Write([]byte(`{}`)))
	_, err := f.Snapshot(time.Now())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(f.config.SnapshotDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.config.SnapshotDir, "other.json"), []byte("{}"), 0o644))

	paths, err := f.Snapshots()
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestSnapshotWithoutDocument(t *testing.T) {
	f := newTestFile(t, 10)
	_, err := f.Snapshot(time.Now())
	assert.Error(t, err)
}

func TestSameJSON(t *testing.T) {
	same, err := SameJSON([]byte(`{"a":1,"b":[1,2]}`), []byte("{\n  \"b\": [1, 2],\n  \"a\": 1\n}"))
	require.NoError(t, err)
	assert.True(t, same)

	same, err = SameJSON([]byte(`{"a":1}`), []byte(`{"a":2}`))
	require.NoError(t, err)
	assert.False(t, same)

	_, err = SameJSON([]byte(`{`), []byte(`{}`))
	assert.Error(t, err)
}
