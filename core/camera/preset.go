package camera

import (
	"time"

	"github.com/macilentiores/ChurchStreamGuard/logger"
)

// Delays outside this range are configuration mistakes; clamping keeps
// a bad value from stalling a live preset change.
const (
	minPresetDelay = 0
	maxPresetDelay = 30
)

// PendingPreset is the single outstanding delayed recall.
type PendingPreset struct {
	Preset int
	DueAt  time.Time
	Source string
}

// PresetScheduler holds zero or one pending delayed preset. A request
// for a different preset cancels and replaces the pending one; a
// request for the same preset is absorbed.
type PresetScheduler struct {
	pending *PendingPreset
}

func NewPresetScheduler() *PresetScheduler {
	return &PresetScheduler{}
}

// ClampDelay bounds a configured per-preset delay to 0..30 seconds.
func ClampDelay(seconds int) int {
	if seconds < minPresetDelay {
		return minPresetDelay
	}
	if seconds > maxPresetDelay {
		return maxPresetDelay
	}
	return seconds
}

// Schedule installs a delayed recall. It reports whether the request
// replaced a different pending preset.
func (s *PresetScheduler) Schedule(now time.Time, preset, delaySeconds int, source string) (replaced bool) {
	if s.pending != nil {
		if s.pending.Preset == preset {
			// Same preset already pending: absorb, keep the earlier deadline.
			return false
		}
		logger.Info("cancelled pending preset",
			"preset", s.pending.Preset, "reason", source)
		replaced = true
	}
	delay := ClampDelay(delaySeconds)
	s.pending = &PendingPreset{
		Preset: preset,
		DueAt:  now.Add(time.Duration(delay) * time.Second),
		Source: source,
	}
	logger.Info("preset scheduled", "preset", preset, "delay_seconds", delay, "source", source)
	return replaced
}

// Cancel drops any pending preset, logging the reason.
func (s *PresetScheduler) Cancel(reason string) {
	if s.pending == nil {
		return
	}
	logger.Info("cancelled pending preset", "preset", s.pending.Preset, "reason", reason)
	s.pending = nil
}

// Pending returns the outstanding preset, or nil.
func (s *PresetScheduler) Pending() *PendingPreset {
	return s.pending
}

// TakeDue pops the pending preset if its deadline has passed. Callers
// gate on camera readiness before firing the returned preset.
func (s *PresetScheduler) TakeDue(now time.Time) *PendingPreset {
	if s.pending == nil || now.Before(s.pending.DueAt) {
		return nil
	}
	p := s.pending
	s.pending = nil
	return p
}
