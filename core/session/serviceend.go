package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/logger"
)

// Longest we will wait for OBS to report both outputs stopped before
// archiving anyway.
const serviceEndStopTimeout = 5 * time.Minute

// ServiceEnd archives the day's logs and recording after a confirmed
// service stop. It only copies files; it never shuts anything down.
type ServiceEnd struct {
	cfg     config.ServiceEndConfig
	log     config.LogConfig
	running atomic.Bool
}

func NewServiceEnd(cfg config.ServiceEndConfig, log config.LogConfig) *ServiceEnd {
	return &ServiceEnd{cfg: cfg, log: log}
}

// Run executes the sequence on its own goroutine: wait for the outputs
// to fully stop, wait the configured settle time, then copy logs and
// the newest recording into a dated archive directory.
func (s *ServiceEnd) Run(backend Backend, stoppedAt time.Time) {
	if !s.running.CompareAndSwap(false, true) {
		logger.Warn("service end sequence already running")
		return
	}
	defer s.running.Store(false)

	s.waitFullyStopped(backend)

	settle := time.Duration(s.cfg.PostStopWaitSeconds) * time.Second
	if settle > 0 {
		logger.Info("service end: settling", "seconds", s.cfg.PostStopWaitSeconds)
		time.Sleep(settle)
	}

	dir := filepath.Join(s.cfg.ArchiveRoot, "service_"+stoppedAt.Format(time.DateOnly))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("service end: create archive dir failed", "dir", dir, "error", err)
		return
	}

	if s.cfg.CopyPreviousLogs {
		s.copyLogs(dir)
	}
	if s.cfg.CopyRecordings {
		s.copyNewestRecording(dir, stoppedAt)
	}
	logger.Info("service end sequence complete", "archive", dir)
}

func (s *ServiceEnd) waitFullyStopped(backend Backend) {
	deadline := time.Now().Add(serviceEndStopTimeout)
	for time.Now().Before(deadline) {
		st := backend.GetStatus()
		if st.Err == "" && !st.Streaming && !st.Recording {
			return
		}
		time.Sleep(2 * time.Second)
	}
	logger.Warn("service end: outputs still active after wait, archiving anyway")
}

func (s *ServiceEnd) copyLogs(dir string) {
	if s.log.FilePath == "" || s.log.FilePath == "stdout" {
		return
	}
	logDir := filepath.Dir(s.log.FilePath)
	matches, err := filepath.Glob(filepath.Join(logDir, "*.log"))
	if err != nil || len(matches) == 0 {
		return
	}
	for _, src := range newestFirst(matches, 3) {
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			logger.Error("service end: copy log failed", "file", src, "error", err)
			continue
		}
		logger.Info("service end: log archived", "file", filepath.Base(src))
	}
}

func (s *ServiceEnd) copyNewestRecording(dir string, stoppedAt time.Time) {
	if s.cfg.RecordingPath == "" {
		return
	}
	matches, err := filepath.Glob(filepath.Join(s.cfg.RecordingPath, "*"))
	if err != nil || len(matches) == 0 {
		logger.Warn("service end: no recordings found", "path", s.cfg.RecordingPath)
		return
	}
	var newest string
	var newestMod time.Time
	dayStart := time.Date(stoppedAt.Year(), stoppedAt.Month(), stoppedAt.Day(), 0, 0, 0, 0, stoppedAt.Location())
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() || info.ModTime().Before(dayStart) {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest, newestMod = m, info.ModTime()
		}
	}
	if newest == "" {
		logger.Warn("service end: no recording from today", "path", s.cfg.RecordingPath)
		return
	}
	if err := copyFile(newest, filepath.Join(dir, filepath.Base(newest))); err != nil {
		logger.Error("service end: copy recording failed", "file", newest, "error", err)
		return
	}
	logger.Info("service end: recording archived", "file", filepath.Base(newest))
}

// newestFirst returns up to n paths ordered newest modtime first.
func newestFirst(paths []string, n int) []string {
	sort.Slice(paths, func(i, j int) bool {
		ii, erri := os.Stat(paths[i])
		jj, errj := os.Stat(paths[j])
		if erri != nil || errj != nil {
			return erri == nil
		}
		return ii.ModTime().After(jj.ModTime())
	})
	if len(paths) > n {
		paths = paths[:n]
	}
	return paths
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return out.Sync()
}
