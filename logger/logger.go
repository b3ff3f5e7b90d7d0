package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/macilentiores/ChurchStreamGuard/config"
)

var logger *slog.Logger

func init() {
	// Console text output until InitLogger runs.
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// RollingFileWriter writes one file per day and splits files that grow
// past maxSize.
type RollingFileWriter struct {
	dir       string
	baseName  string
	maxSize   int64 // bytes
	curDate   string
	curFile   *os.File
	curSize   int64
	fileIndex int
	mu        sync.Mutex
}

func NewRollingFileWriter(dir string, baseName string, maxSizeMB int64) (*RollingFileWriter, error) {
	w := &RollingFileWriter{
		dir:      dir,
		baseName: baseName,
		maxSize:  maxSizeMB * 1024 * 1024,
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := w.rotate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RollingFileWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if today != w.curDate {
		w.fileIndex = 0
		w.curDate = today
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	if w.curSize+int64(len(p)) > w.maxSize {
		w.fileIndex++
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = w.curFile.Write(p)
	w.curSize += int64(n)
	return
}

func (w *RollingFileWriter) rotate() error {
	if w.curFile != nil {
		_ = w.curFile.Close()
	}
	if w.curDate == "" {
		w.curDate = time.Now().Format("2006-01-02")
	}
	var fileName string
	if w.fileIndex == 0 {
		fileName = fmt.Sprintf("%s_%s.log", w.baseName, w.curDate)
	} else {
		fileName = fmt.Sprintf("%s_%s.%d.log", w.baseName, w.curDate, w.fileIndex)
	}
	path := filepath.Join(w.dir, fileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.curFile = file
	w.curSize = 0
	if info, _ := file.Stat(); info != nil {
		w.curSize = info.Size()
	}
	return nil
}

// InitLogger reconfigures the process logger from config.
func InitLogger(cfg *config.LogConfig) error {
	var writer io.Writer
	if cfg.FilePath == "stdout" || cfg.FilePath == "" {
		writer = os.Stdout
	} else {
		dir := filepath.Dir(cfg.FilePath)
		baseName := filepath.Base(cfg.FilePath)
		maxSize := int64(cfg.MaxSize)
		if maxSize <= 0 {
			maxSize = 100
		}
		rollingWriter, err := NewRollingFileWriter(dir, baseName, maxSize)
		if err != nil {
			return fmt.Errorf("create rolling log writer failed: %w", err)
		}
		writer = io.MultiWriter(os.Stdout, rollingWriter)
	}

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)

	return nil
}

// PruneOldLogs deletes rotated log files beyond the newest keep files.
// A keep of zero or less keeps everything.
func PruneOldLogs(cfg *config.LogConfig) (int, error) {
	if cfg.FilePath == "stdout" || cfg.FilePath == "" || cfg.RetentionCount <= 0 {
		return 0, nil
	}
	dir := filepath.Dir(cfg.FilePath)
	baseName := filepath.Base(cfg.FilePath)

	matches, err := filepath.Glob(filepath.Join(dir, baseName+"_*.log"))
	if err != nil {
		return 0, err
	}
	if len(matches) <= cfg.RetentionCount {
		return 0, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		fi, errI := os.Stat(matches[i])
		fj, errJ := os.Stat(matches[j])
		if errI != nil || errJ != nil {
			return matches[i] < matches[j]
		}
		return fi.ModTime().After(fj.ModTime())
	})

	removed := 0
	for _, path := range matches[cfg.RetentionCount:] {
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Convenience wrappers over the package logger.
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// WithContext returns a logger carrying extra key/value context.
func WithContext(ctx ...any) *slog.Logger {
	return logger.With(ctx...)
}
