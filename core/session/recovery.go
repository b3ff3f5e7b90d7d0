package session

import (
	"math"
	"time"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/logger"
)

const (
	// A restart fired faster than this gives the backend no time to settle.
	minRecoveryDelay = 3 * time.Second
	// Wait between checks while the backend is unreachable. Unreachable
	// waits never consume an attempt.
	disconnectedWait = 3 * time.Second
)

// RecoveryPolicy decides when the controller may retry a stream start
// after an unexpected stop. It holds no goroutine; the controller's tick
// loop drives it.
type RecoveryPolicy struct {
	cfg config.RecoveryConfig

	active    bool
	attempts  int
	nextAt    time.Time
	holdUntil time.Time
}

func NewRecoveryPolicy(cfg config.RecoveryConfig) *RecoveryPolicy {
	return &RecoveryPolicy{cfg: cfg}
}

// delay returns the backoff before the given attempt (1-based).
func (r *RecoveryPolicy) delay(attempt int) time.Duration {
	d := float64(r.cfg.BaseDelaySeconds) * math.Pow(r.cfg.BackoffMultiplier, float64(attempt-1))
	dur := time.Duration(d * float64(time.Second))
	if dur < minRecoveryDelay {
		dur = minRecoveryDelay
	}
	return dur
}

// Arm schedules restart attempts, the first due at once; the caller
// decides when a drop is worth arming for. It refuses while disabled,
// already active, or inside the post-exhaustion cooldown.
func (r *RecoveryPolicy) Arm(now time.Time) bool {
	if !r.cfg.Enabled || r.active {
		return false
	}
	if now.Before(r.holdUntil) {
		logger.Warn("recovery suppressed, in cooldown", "until", r.holdUntil.Format(time.TimeOnly))
		return false
	}
	r.active = true
	r.attempts = 0
	r.nextAt = now
	logger.Warn("recovery armed")
	return true
}

// Tick reports whether a restart attempt should fire now. A due check
// while the backend is unreachable pushes the wait forward without
// consuming an attempt. Once all attempts are spent the policy goes
// inactive and holds for the cooldown.
func (r *RecoveryPolicy) Tick(now time.Time, connected bool) bool {
	if !r.active || now.Before(r.nextAt) {
		return false
	}
	if !connected {
		r.nextAt = now.Add(disconnectedWait)
		logger.Debug("recovery waiting for backend connection")
		return false
	}
	if r.attempts >= r.cfg.MaxAttempts {
		r.active = false
		r.holdUntil = now.Add(time.Duration(r.cfg.CooldownSeconds) * time.Second)
		logger.Error("recovery exhausted", "attempts", r.attempts,
			"cooldown_seconds", r.cfg.CooldownSeconds)
		return false
	}
	r.attempts++
	r.nextAt = now.Add(r.delay(r.attempts))
	logger.Warn("recovery attempt", "attempt", r.attempts, "max", r.cfg.MaxAttempts)
	return true
}

// Success clears the policy after the stream came back.
func (r *RecoveryPolicy) Success() {
	if !r.active {
		return
	}
	logger.Info("recovery succeeded", "attempts_used", r.attempts)
	r.active = false
	r.attempts = 0
}

// Cancel stands the policy down without touching the cooldown, used
// when an operator takes over.
func (r *RecoveryPolicy) Cancel(reason string) {
	if !r.active {
		return
	}
	logger.Info("recovery cancelled", "reason", reason)
	r.active = false
	r.attempts = 0
}

// ClearHold lifts the post-exhaustion cooldown, an operator action.
func (r *RecoveryPolicy) ClearHold() {
	r.holdUntil = time.Time{}
}

func (r *RecoveryPolicy) Active() bool  { return r.active }
func (r *RecoveryPolicy) Attempts() int { return r.attempts }

// Exhausted reports whether the policy is sitting out the cooldown
// after spending all attempts.
func (r *RecoveryPolicy) Exhausted(now time.Time) bool {
	return !r.active && now.Before(r.holdUntil)
}
