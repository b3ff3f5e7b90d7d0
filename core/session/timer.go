package session

import (
	"time"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/repository"
)

// TimerAction is what the auto-start timer wants done this tick.
type TimerAction int

const (
	TimerNone TimerAction = iota
	TimerFire
)

// AutoStartTimer fires one scheduled stream start per service day. The
// day's outcome is persisted so a daemon restart after the start cannot
// fire a second one, and a start missed by more than the grace window
// is recorded and never fired late.
type AutoStartTimer struct {
	cfg   config.TimerConfig
	loc   *time.Location
	store repository.TimerStateStore

	hh, mm int
	rec    *repository.TimerRecord
	loaded string // date the record was last loaded for
}

func NewAutoStartTimer(cfg config.TimerConfig, loc *time.Location, store repository.TimerStateStore) (*AutoStartTimer, error) {
	hh, mm, err := config.ParseHHMM(cfg.StartHHMM)
	if err != nil {
		return nil, err
	}
	return &AutoStartTimer{cfg: cfg, loc: loc, store: store, hh: hh, mm: mm}, nil
}

// goWeekday maps the configured Monday=0 convention onto time.Weekday.
func (t *AutoStartTimer) goWeekday() time.Weekday {
	return time.Weekday((t.cfg.Weekday + 1) % 7)
}

func (t *AutoStartTimer) load(date string) {
	if t.loaded == date {
		return
	}
	t.loaded = date
	t.rec = nil
	if !t.cfg.PersistState || t.store == nil {
		return
	}
	rec, err := t.store.Load()
	if err != nil {
		logger.Error("load timer state failed", "error", err)
		return
	}
	if rec != nil && rec.Date == date {
		t.rec = rec
	}
}

func (t *AutoStartTimer) save(rec *repository.TimerRecord) {
	t.rec = rec
	if !t.cfg.PersistState || t.store == nil {
		return
	}
	if err := t.store.Save(rec); err != nil {
		logger.Error("save timer state failed", "error", err)
	}
}

// Tick evaluates the schedule. On the service day it fires exactly once
// inside [target, target+grace]; past the grace it marks the day missed
// and stays quiet until the next service day.
func (t *AutoStartTimer) Tick(now time.Time) TimerAction {
	if !t.cfg.Enabled {
		return TimerNone
	}
	local := now.In(t.loc)
	if local.Weekday() != t.goWeekday() {
		return TimerNone
	}

	date := local.Format(time.DateOnly)
	t.load(date)
	if t.rec != nil && t.rec.Date == date {
		return TimerNone // fired or missed already
	}

	target := time.Date(local.Year(), local.Month(), local.Day(), t.hh, t.mm, 0, 0, t.loc)
	if local.Before(target) {
		return TimerNone
	}

	grace := time.Duration(t.cfg.GraceMinutes) * time.Minute
	if local.Sub(target) <= grace {
		t.save(&repository.TimerRecord{Date: date, Status: repository.TimerStatusFired, HHMM: t.cfg.StartHHMM})
		logger.Info("scheduled start firing", "date", date, "hhmm", t.cfg.StartHHMM)
		return TimerFire
	}

	t.save(&repository.TimerRecord{Date: date, Status: repository.TimerStatusMissed, HHMM: t.cfg.StartHHMM})
	logger.Warn("scheduled start missed, not firing late",
		"date", date, "hhmm", t.cfg.StartHHMM, "late_by", local.Sub(target).Round(time.Minute).String())
	return TimerNone
}

// NextTarget returns the next start the timer is still willing to fire.
func (t *AutoStartTimer) NextTarget(now time.Time) time.Time {
	local := now.In(t.loc)
	for day := 0; day <= 7; day++ {
		d := local.AddDate(0, 0, day)
		if d.Weekday() != t.goWeekday() {
			continue
		}
		target := time.Date(d.Year(), d.Month(), d.Day(), t.hh, t.mm, 0, 0, t.loc)
		grace := time.Duration(t.cfg.GraceMinutes) * time.Minute
		if day == 0 {
			if t.rec != nil && t.rec.Date == d.Format(time.DateOnly) {
				continue // today is already settled
			}
			if local.After(target.Add(grace)) {
				continue
			}
		}
		return target
	}
	return time.Time{}
}

// TodayStatus returns the persisted status for the given day, or
// "armed" when nothing has happened yet.
func (t *AutoStartTimer) TodayStatus(now time.Time) string {
	date := now.In(t.loc).Format(time.DateOnly)
	if t.rec != nil && t.rec.Date == date {
		return t.rec.Status
	}
	return repository.TimerStatusArmed
}
