package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macilentiores/ChurchStreamGuard/config"
)

func TestRollingWriterCreatesDatedFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRollingFileWriter(dir, "guard.log", 10)
	require.NoError(t, err)

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)

	want := filepath.Join(dir, "guard.log_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestRollingWriterSplitsOnSize(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRollingFileWriter(dir, "guard.log", 1)
	require.NoError(t, err)
	w.maxSize = 32 // shrink for the test

	line := []byte("0123456789abcdef\n")
	for i := 0; i < 4; i++ {
		_, err := w.Write(line)
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "guard.log_*.log"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(matches), 2, "oversized day should split into indexed files")
}

func TestPruneOldLogs(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "guard.log")

	for i, name := range []string{
		"guard.log_2026-08-01.log",
		"guard.log_2026-08-02.log",
		"guard.log_2026-08-03.log",
		"guard.log_2026-08-04.log",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		mod := time.Now().Add(time.Duration(i-4) * time.Hour)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}

	cfg := &config.LogConfig{FilePath: base, RetentionCount: 2}
	removed, err := PruneOldLogs(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	matches, _ := filepath.Glob(filepath.Join(dir, "guard.log_*.log"))
	assert.Len(t, matches, 2)
	// The newest files survive.
	assert.Contains(t, matches, filepath.Join(dir, "guard.log_2026-08-03.log"))
	assert.Contains(t, matches, filepath.Join(dir, "guard.log_2026-08-04.log"))
}

func TestPruneOldLogsStdoutNoop(t *testing.T) {
	removed, err := PruneOldLogs(&config.LogConfig{FilePath: "stdout", RetentionCount: 1})
	require.NoError(t, err)
	assert.Zero(t, removed)
}
