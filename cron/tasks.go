package cron

import (
	"context"
	"time"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/core/session"
	"github.com/macilentiores/ChurchStreamGuard/logger"
)

// LogRetentionTask prunes rotated log files beyond the retention count.
type LogRetentionTask struct {
	Log config.LogConfig
}

func (t *LogRetentionTask) Name() string { return "log_retention" }

func (t *LogRetentionTask) GetInterval() time.Duration { return 6 * time.Hour }

func (t *LogRetentionTask) Enable() bool {
	return t.Log.FilePath != "" && t.Log.FilePath != "stdout" && t.Log.RetentionCount > 0
}

func (t *LogRetentionTask) Execute(ctx context.Context) error {
	removed, err := logger.PruneOldLogs(&t.Log)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Info("pruned old log files", "removed", removed)
	}
	return nil
}

// SnapshotProvider is satisfied by the session service.
type SnapshotProvider interface {
	Controller() *session.Controller
}

// HealthLogTask writes a periodic one-line health summary so the log
// shows the session state even on quiet days.
type HealthLogTask struct {
	Session SnapshotProvider
}

func (t *HealthLogTask) Name() string { return "health_log" }

func (t *HealthLogTask) GetInterval() time.Duration { return 5 * time.Minute }

func (t *HealthLogTask) Enable() bool { return t.Session != nil }

func (t *HealthLogTask) Execute(ctx context.Context) error {
	ctrl := t.Session.Controller()
	if ctrl == nil {
		return nil
	}
	snap := ctrl.Snapshot()
	logger.Info("health",
		"level", snap.Health,
		"streaming", snap.Streaming,
		"recording", snap.Recording,
		"camera", snap.CameraState,
		"obs_connected", snap.BackendConnected)
	return nil
}
