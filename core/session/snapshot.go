package session

import (
	"fmt"
	"time"
)

// Health levels, roughly worst first.
const (
	HealthError      = "ERROR"
	HealthDegraded   = "DEGRADED"
	HealthRecovering = "RECOVERING"
	HealthRecovered  = "RECOVERED"
	HealthLive       = "LIVE"
	HealthStarting   = "STARTING"
	HealthReady      = "READY"
)

// Snapshot is a read-only copy of the session state, built once per
// tick. The HUD renders it verbatim.
type Snapshot struct {
	Health string
	Banner string

	Streaming        bool
	Recording        bool
	BackendConnected bool
	BackendErr       string
	Profile          string

	CameraState string

	StopPending      bool
	StopInSeconds    int
	PendingPreset    int
	PresetInSeconds  int
	CriticalAlert    string
	CriticalAlertAt  string
	RecoveryActive   bool
	RecoveryAttempts int

	TimerEnabled       bool
	TimerStatus        string
	TimerNextTarget    string
	TimerCountdownSecs int

	Events    []string
	UpdatedAt time.Time
}

// classifyHealth orders the levels: an exhausted recovery outranks a
// plain error so the operator sees that automation has given up.
func (c *Controller) classifyHealth(now time.Time) string {
	switch {
	case c.recovery.Exhausted(now):
		return HealthDegraded
	case c.criticalAlert != "" || !c.backend.Connected():
		return HealthError
	case c.recovery.Active():
		return HealthRecovering
	case c.lastStreamOn && now.Before(c.recoveredUntil):
		return HealthRecovered
	case c.lastStreamOn:
		return HealthLive
	case c.pendingStart != nil || c.desiredLive:
		return HealthStarting
	default:
		return HealthReady
	}
}

func (c *Controller) banner(now time.Time, health string) string {
	switch {
	case health == HealthDegraded:
		return "AUTO-RECOVERY EXHAUSTED, manual restart required"
	case c.criticalAlert != "":
		return c.criticalAlert
	case !c.backend.Connected():
		return "backend unreachable"
	case health == HealthRecovering:
		return fmt.Sprintf("recovering stream, attempt %d", c.recovery.Attempts())
	case !c.pendingStopAt.IsZero():
		return fmt.Sprintf("stopping in %ds", secondsUntil(now, c.pendingStopAt))
	case health == HealthRecovered:
		return "stream recovered"
	case c.lastStreamOn:
		return "LIVE"
	case c.pendingStart != nil || c.desiredLive:
		return "starting stream"
	case !c.streamEndedAt.IsZero() && now.Sub(c.streamEndedAt) < streamEndedDisplay:
		return "stream ended"
	default:
		return "ready"
	}
}

func secondsUntil(now, at time.Time) int {
	s := int(at.Sub(now).Round(time.Second).Seconds())
	if s < 0 {
		return 0
	}
	return s
}

// buildSnapshot assembles the snapshot on the tick goroutine and
// publishes it under the lock.
func (c *Controller) buildSnapshot(now time.Time) Snapshot {
	health := c.classifyHealth(now)
	snap := Snapshot{
		Health:           health,
		Banner:           c.banner(now, health),
		Streaming:        c.lastStreamOn,
		Recording:        c.lastRecordOn,
		BackendConnected: c.backend.Connected(),
		BackendErr:       c.backendErr,
		Profile:          c.profileName,
		CameraState:      string(c.power.State()),
		CriticalAlert:    c.criticalAlert,
		CriticalAlertAt:  c.criticalAlertAt,
		RecoveryActive:   c.recovery.Active(),
		RecoveryAttempts: c.recovery.Attempts(),
		Events:           append([]string(nil), c.events...),
		UpdatedAt:        now,
	}
	if !c.pendingStopAt.IsZero() {
		snap.StopPending = true
		snap.StopInSeconds = secondsUntil(now, c.pendingStopAt)
	}
	if p := c.presets.Pending(); p != nil {
		snap.PendingPreset = p.Preset
		snap.PresetInSeconds = secondsUntil(now, p.DueAt)
	}
	if c.timer != nil {
		snap.TimerEnabled = true
		snap.TimerStatus = c.timer.TodayStatus(now)
		if next := c.timer.NextTarget(now); !next.IsZero() {
			snap.TimerNextTarget = next.Format("Mon 15:04")
			snap.TimerCountdownSecs = secondsUntil(now, next)
		}
	}
	return snap
}
