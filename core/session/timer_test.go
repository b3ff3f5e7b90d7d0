package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/repository"
)

func timerCfg() config.TimerConfig {
	cfg := config.Default().Timer
	cfg.Timezone = "UTC"
	return cfg
}

// 2026-08-23 is a Sunday, the configured service day.
func sunday(h, m int) time.Time {
	return time.Date(2026, 8, 23, h, m, 0, 0, time.UTC)
}

func newTimer(t *testing.T, cfg config.TimerConfig, store repository.TimerStateStore) *AutoStartTimer {
	t.Helper()
	tm, err := NewAutoStartTimer(cfg, time.UTC, store)
	require.NoError(t, err)
	return tm
}

func TestTimerFiresOnceInWindow(t *testing.T) {
	tm := newTimer(t, timerCfg(), repository.NewFileTimerStore(filepath.Join(t.TempDir(), "s.json")))

	assert.Equal(t, TimerNone, tm.Tick(sunday(9, 54)))
	assert.Equal(t, TimerFire, tm.Tick(sunday(9, 55)))
	assert.Equal(t, TimerNone, tm.Tick(sunday(9, 56)))
	assert.Equal(t, TimerNone, tm.Tick(sunday(10, 5)))
	assert.Equal(t, repository.TimerStatusFired, tm.TodayStatus(sunday(10, 5)))
}

func TestTimerPersistsAcrossRestart(t *testing.T) {
	store := repository.NewFileTimerStore(filepath.Join(t.TempDir(), "s.json"))

	tm := newTimer(t, timerCfg(), store)
	require.Equal(t, TimerFire, tm.Tick(sunday(9, 56)))

	// A restarted daemon inside the grace window must not fire again.
	tm2 := newTimer(t, timerCfg(), store)
	assert.Equal(t, TimerNone, tm2.Tick(sunday(10, 0)))
	assert.Equal(t, repository.TimerStatusFired, tm2.TodayStatus(sunday(10, 0)))
}

func TestTimerMissedAfterGraceNeverFires(t *testing.T) {
	store := repository.NewFileTimerStore(filepath.Join(t.TempDir(), "s.json"))

	// First look at the schedule is past target+grace (09:55 + 15m).
	tm := newTimer(t, timerCfg(), store)
	assert.Equal(t, TimerNone, tm.Tick(sunday(10, 20)))
	assert.Equal(t, repository.TimerStatusMissed, tm.TodayStatus(sunday(10, 20)))

	assert.Equal(t, TimerNone, tm.Tick(sunday(11, 0)))

	tm2 := newTimer(t, timerCfg(), store)
	assert.Equal(t, TimerNone, tm2.Tick(sunday(11, 30)))
}

func TestTimerFiresAtGraceEdge(t *testing.T) {
	tm := newTimer(t, timerCfg(), nil)
	assert.Equal(t, TimerFire, tm.Tick(sunday(10, 10)))
}

func TestTimerWrongWeekday(t *testing.T) {
	tm := newTimer(t, timerCfg(), nil)
	monday := time.Date(2026, 8, 24, 9, 55, 0, 0, time.UTC)
	assert.Equal(t, TimerNone, tm.Tick(monday))
}

func TestTimerDisabled(t *testing.T) {
	cfg := timerCfg()
	cfg.Enabled = false
	tm := newTimer(t, cfg, nil)
	assert.Equal(t, TimerNone, tm.Tick(sunday(9, 55)))
}

func TestTimerNextTarget(t *testing.T) {
	tm := newTimer(t, timerCfg(), nil)

	saturday := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, sunday(9, 55), tm.NextTarget(saturday))

	// Countdown before the window, next week once today is settled.
	assert.Equal(t, sunday(9, 55), tm.NextTarget(sunday(8, 0)))
	require.Equal(t, TimerFire, tm.Tick(sunday(9, 56)))
	next := tm.NextTarget(sunday(10, 0))
	assert.Equal(t, time.Date(2026, 8, 30, 9, 55, 0, 0, time.UTC), next)
}
