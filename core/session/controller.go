// Package session holds the stream session controller: one goroutine
// that owns every piece of session state and advances it on a fixed
// tick. Everything else (HUD handlers, the trigger listener, the timer)
// talks to it through commands or reads immutable snapshots.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/core/camera"
	"github.com/macilentiores/ChurchStreamGuard/core/clock"
	"github.com/macilentiores/ChurchStreamGuard/core/obs"
	"github.com/macilentiores/ChurchStreamGuard/event"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/repository"
)

// Request sources, used in logs and gating decisions.
const (
	SourceHUD      = "HUD"
	SourceTrigger  = "TRIGGER"
	SourceTimer    = "TIMER"
	SourceRecovery = "RECOVERY"
)

const (
	tickInterval       = 200 * time.Millisecond
	statusPollInterval = time.Second
	connectRetry       = 3 * time.Second
	streamEndedDisplay = 60 * time.Second
	recoveredWindow    = 15 * time.Second
)

// Backend is the broadcast program as the controller sees it. The obs
// client satisfies it; tests substitute a fake.
type Backend interface {
	Connect() bool
	Connected() bool
	Close()
	GetStatus() obs.Status
	StartStream() (bool, string)
	StopStream() (bool, string)
	ToggleRecord() (bool, string)
	CurrentProfile() (string, error)
	SetProfile(name string) error
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdStop
	cmdRecordToggle
	cmdPreset
	cmdClearAlert
)

type command struct {
	kind   cmdKind
	preset int
	source string
}

// pendingStart is a stream start waiting for its gates: camera ready,
// backend reachable, profile preflight passed, notBefore elapsed.
type pendingStart struct {
	source         string
	notBefore      time.Time
	profileChecked bool
}

// Controller owns the session state machine. All fields below the
// mutex line are touched only by the run goroutine.
type Controller struct {
	cfg     *config.Config
	clk     clock.Clock
	backend Backend
	bus     *event.EventBus

	power    *camera.Power
	presets  *camera.PresetScheduler
	recovery *RecoveryPolicy
	timer    *AutoStartTimer

	cmds   chan command
	stopCh chan struct{}
	done   chan struct{}

	mu   sync.RWMutex
	snap Snapshot

	// run-goroutine state
	desiredLive      bool
	lastStartRequest time.Time
	pendingStart     *pendingStart
	lastStartAt      time.Time
	stopIntentAt     time.Time
	stopSource       string
	pendingStopAt    time.Time
	streamEndedAt    time.Time
	recoveredUntil   time.Time
	criticalAlert    string
	criticalAlertAt  string
	lastStreamOn     bool
	lastRecordOn     bool
	backendErr       string
	profileName      string
	lastStatusPoll   time.Time
	lastConnectTry   time.Time
	events           []string
	serviceEnd       *ServiceEnd
}

// NewController wires the state machine. store may be nil when timer
// persistence is off; cam is the fire-and-forget camera commander.
func NewController(cfg *config.Config, clk clock.Clock, backend Backend, cam camera.Commander,
	bus *event.EventBus, store repository.TimerStateStore, loc *time.Location) (*Controller, error) {

	c := &Controller{
		cfg:     cfg,
		clk:     clk,
		backend: backend,
		bus:     bus,
		power:   camera.NewPower(cam, cfg.Camera.BootSeconds, cfg.Common.HomeTest),
		presets: camera.NewPresetScheduler(),
		cmds:    make(chan command, 16),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.recovery = NewRecoveryPolicy(cfg.Recovery)
	if cfg.Timer.Enabled {
		t, err := NewAutoStartTimer(cfg.Timer, loc, store)
		if err != nil {
			return nil, fmt.Errorf("auto-start timer: %w", err)
		}
		c.timer = t
	}
	if cfg.ServiceEnd.Enabled {
		c.serviceEnd = NewServiceEnd(cfg.ServiceEnd, cfg.Common.Log)
	}
	return c, nil
}

// Run drives the controller until ctx is cancelled or Shutdown is
// called. It is the only goroutine that mutates session state.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)

	triggers := c.bus.SubscribeMultiple([]event.EventType{
		event.TriggerStart, event.TriggerStop,
		event.TriggerRecordToggle, event.TriggerPreset,
	})
	defer c.bus.Unsubscribe(triggers)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	c.tick(c.clk.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case cmd := <-c.cmds:
			c.handleCommand(c.clk.Now(), cmd)
		case ev := <-triggers:
			c.handleTrigger(c.clk.Now(), ev)
		case <-ticker.C:
			c.tick(c.clk.Now())
		}
	}
}

// Shutdown stops the run loop and waits for it to exit.
func (c *Controller) Shutdown() {
	close(c.stopCh)
	<-c.done
}

// Snapshot returns the last published state copy.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Controller) enqueue(cmd command) {
	select {
	case c.cmds <- cmd:
	default:
		logger.Warn("command queue full, dropping", "kind", cmd.kind, "source", cmd.source)
	}
}

func (c *Controller) RequestStart(source string) {
	c.enqueue(command{kind: cmdStart, source: source})
}

func (c *Controller) RequestStop(source string) {
	c.enqueue(command{kind: cmdStop, source: source})
}

func (c *Controller) RequestRecordToggle(source string) {
	c.enqueue(command{kind: cmdRecordToggle, source: source})
}

func (c *Controller) RequestPreset(n int, source string) {
	c.enqueue(command{kind: cmdPreset, preset: n, source: source})
}

// RequestClearAlert is the operator acknowledging a sticky alert; it
// also lifts a recovery cooldown hold.
func (c *Controller) RequestClearAlert() { c.enqueue(command{kind: cmdClearAlert, source: SourceHUD}) }

func (c *Controller) handleTrigger(now time.Time, ev event.Event) {
	switch ev.Type {
	case event.TriggerStart:
		c.handleStart(now, SourceTrigger)
	case event.TriggerStop:
		c.handleStop(now, SourceTrigger)
	case event.TriggerRecordToggle:
		c.handleRecordToggle(SourceTrigger)
	case event.TriggerPreset:
		if n, ok := ev.Payload.(int); ok {
			c.handlePreset(now, n, SourceTrigger)
		}
	}
	c.publishSnapshot(now)
}

func (c *Controller) handleCommand(now time.Time, cmd command) {
	switch cmd.kind {
	case cmdStart:
		c.handleStart(now, cmd.source)
	case cmdStop:
		c.handleStop(now, cmd.source)
	case cmdRecordToggle:
		c.handleRecordToggle(cmd.source)
	case cmdPreset:
		c.handlePreset(now, cmd.preset, cmd.source)
	case cmdClearAlert:
		c.criticalAlert = ""
		c.criticalAlertAt = ""
		c.recovery.ClearHold()
		c.noteEvent(now, "alert cleared by operator")
	}
	c.publishSnapshot(now)
}

// handleStart debounces repeated presses, cancels a pending stop, and
// queues a gated start. The actual StartStream call happens in tick
// once the camera and backend are ready.
func (c *Controller) handleStart(now time.Time, source string) {
	debounce := time.Duration(c.cfg.Safety.StartDebounceSeconds * float64(time.Second))
	if !c.lastStartRequest.IsZero() && now.Sub(c.lastStartRequest) < debounce {
		logger.Info("start debounced", "source", source)
		return
	}

	// An operator start supersedes automation: it clears the sticky
	// alert and stands recovery down, including the exhaustion hold.
	// The scheduled timer is automation and may not lift the hold.
	if source != SourceTimer {
		c.recovery.Cancel("superseded by " + source)
		c.recovery.ClearHold()
		c.criticalAlert = ""
		c.criticalAlertAt = ""
	}

	if !c.pendingStopAt.IsZero() {
		logger.Info("pending stop cancelled by start", "source", source)
		c.pendingStopAt = time.Time{}
		c.stopIntentAt = time.Time{}
		c.desiredLive = true
		c.noteEvent(now, "stop cancelled by "+source)
		return
	}
	if c.lastStreamOn {
		c.desiredLive = true
		logger.Info("start ignored, already live", "source", source)
		return
	}
	if c.pendingStart != nil {
		logger.Info("start already queued", "source", source)
		return
	}

	// The debounce window anchors on the last accepted start; an
	// ignored press must not push it forward.
	c.lastStartRequest = now
	c.desiredLive = true
	c.power.Wake(now, source)
	c.pendingStart = &pendingStart{source: source, notBefore: now}
	c.noteEvent(now, "start requested by "+source)
	logger.Info("start queued", "source", source)
}

// handleStop arms the delayed stop. The stream keeps running for the
// configured delay so an accidental press can be cancelled by a start.
func (c *Controller) handleStop(now time.Time, source string) {
	// Any stop request means the stream is no longer wanted live, so
	// recovery stands down and may not re-arm.
	c.desiredLive = false
	c.recovery.Cancel("stop requested by " + source)

	if c.pendingStart != nil {
		logger.Info("queued start cancelled by stop", "source", source)
		c.pendingStart = nil
		c.noteEvent(now, "queued start cancelled by "+source)
		return
	}
	if !c.lastStreamOn {
		logger.Info("stop ignored, not live", "source", source)
		return
	}
	if !c.pendingStopAt.IsZero() {
		logger.Info("stop already pending", "source", source)
		return
	}

	delay := time.Duration(c.cfg.Safety.StopDelaySeconds) * time.Second
	c.stopIntentAt = now
	c.stopSource = source
	c.pendingStopAt = now.Add(delay)
	c.noteEvent(now, fmt.Sprintf("stop requested by %s, stopping in %ds", source, c.cfg.Safety.StopDelaySeconds))
	logger.Info("stop armed", "source", source, "delay_seconds", c.cfg.Safety.StopDelaySeconds)
}

func (c *Controller) handleRecordToggle(source string) {
	ok, msg := c.backend.ToggleRecord()
	if !ok {
		logger.Error("record toggle failed", "source", source, "error", msg)
		return
	}
	c.noteEvent(c.clk.Now(), msg+" by "+source)
	logger.Info("record toggled", "source", source, "result", msg)
}

// handlePreset recalls a camera preset. Operator presses fire
// immediately and cancel any pending delayed recall; automation presses
// honor the configured per-preset delay. A sleeping camera is woken
// first and the recall waits for AWAKE.
func (c *Controller) handlePreset(now time.Time, n int, source string) {
	if _, ok := c.cfg.Presets.Labels[n]; !ok {
		logger.Warn("unknown preset", "preset", n, "source", source)
		return
	}

	delay := 0
	if source != SourceHUD && c.cfg.Presets.DelaysEnabled {
		delay = camera.ClampDelay(c.cfg.Presets.DelaySeconds[n])
	}
	if source == SourceHUD {
		c.presets.Cancel("operator preset " + c.cfg.Presets.Labels[n])
	}

	if !c.power.Awake() {
		if !c.cfg.Camera.AutoWakeOnPreset {
			logger.Warn("preset ignored, camera asleep", "preset", n, "source", source)
			return
		}
		c.power.Wake(now, source)
		c.presets.Schedule(now, n, delay, source)
		c.noteEvent(now, fmt.Sprintf("preset %s queued until camera ready", c.cfg.Presets.Labels[n]))
		return
	}

	if delay > 0 {
		c.presets.Schedule(now, n, delay, source)
		c.noteEvent(now, fmt.Sprintf("preset %s in %ds", c.cfg.Presets.Labels[n], delay))
		return
	}
	if err := c.power.Recall(n, source); err == nil {
		c.noteEvent(now, fmt.Sprintf("preset %s by %s", c.cfg.Presets.Labels[n], source))
	}
}

// tick advances every time-based piece of the session in a fixed order:
// delayed stop, camera boot, due preset, backend status, queued start,
// recovery, scheduled start, snapshot.
func (c *Controller) tick(now time.Time) {
	c.firePendingStop(now)
	c.expireStopIntent(now)
	c.power.Tick(now)
	c.fireDuePreset(now)
	c.maintainConnection(now)
	c.pollStatus(now)
	c.firePendingStart(now)
	c.maintainRecovery(now)
	if c.timer != nil && c.timer.Tick(now) == TimerFire {
		if c.lastStreamOn {
			logger.Info("scheduled start skipped, already live")
		} else {
			c.handleStart(now, SourceTimer)
		}
	}
	c.publishSnapshot(now)
}

func (c *Controller) firePendingStop(now time.Time) {
	if c.pendingStopAt.IsZero() || now.Before(c.pendingStopAt) {
		return
	}
	c.pendingStopAt = time.Time{}
	ok, msg := c.backend.StopStream()
	if !ok {
		logger.Error("stop stream failed", "error", msg)
		c.noteEvent(now, "stop failed: "+msg)
		return
	}
	logger.Info("stop stream sent", "source", c.stopSource)
}

// expireStopIntent forgets a stop intent the stream never honored, so
// a much later unexpected drop is not mistaken for our own stop.
func (c *Controller) expireStopIntent(now time.Time) {
	if c.stopIntentAt.IsZero() || !c.pendingStopAt.IsZero() {
		return
	}
	expiry := time.Duration(c.cfg.Safety.StopIntentExpirySeconds) * time.Second
	if now.Sub(c.stopIntentAt) > expiry {
		logger.Warn("stop intent expired without observed stop")
		c.stopIntentAt = time.Time{}
		if c.lastStreamOn {
			// The stop never took; the stream stays live, and a much
			// later drop counts as unexpected again.
			c.desiredLive = true
		}
	}
}

func (c *Controller) fireDuePreset(now time.Time) {
	if p := c.presets.Pending(); p == nil || now.Before(p.DueAt) {
		return
	}
	if !c.power.Awake() {
		// camera still booting; the recall fires on a later tick
		return
	}
	p := c.presets.TakeDue(now)
	if err := c.power.Recall(p.Preset, p.Source); err == nil {
		c.noteEvent(now, fmt.Sprintf("preset %s by %s", c.cfg.Presets.Labels[p.Preset], p.Source))
	}
}

func (c *Controller) maintainConnection(now time.Time) {
	if c.backend.Connected() || !c.cfg.OBS.AutoReconnect {
		return
	}
	if now.Sub(c.lastConnectTry) < connectRetry {
		return
	}
	c.lastConnectTry = now
	if c.backend.Connect() {
		c.noteEvent(now, "backend connected")
		c.profileName = ""
	}
}

// pollStatus reads the backend and reacts to stream edges. An OFF edge
// with no live stop intent is the unexpected-stop case: a sticky alert
// plus an armed recovery.
func (c *Controller) pollStatus(now time.Time) {
	if !c.backend.Connected() {
		return
	}
	if now.Sub(c.lastStatusPoll) < statusPollInterval {
		return
	}
	c.lastStatusPoll = now

	st := c.backend.GetStatus()
	if st.Err != "" {
		c.backendErr = st.Err
		return
	}
	c.backendErr = ""
	c.lastRecordOn = st.Recording

	switch {
	case st.Streaming && !c.lastStreamOn:
		c.onStreamUp(now)
	case !st.Streaming && c.lastStreamOn:
		c.onStreamDown(now)
	}
	c.lastStreamOn = st.Streaming
}

func (c *Controller) onStreamUp(now time.Time) {
	logger.Info("stream is live")
	c.noteEvent(now, "stream live")
	c.streamEndedAt = time.Time{}
	if c.recovery.Active() {
		c.recovery.Success()
		c.recoveredUntil = now.Add(recoveredWindow)
		c.criticalAlert = ""
		c.criticalAlertAt = ""
		c.noteEvent(now, "stream recovered")
	}
	c.bus.Publish(event.Event{Type: event.StreamStarted, Source: "session"})
}

func (c *Controller) onStreamDown(now time.Time) {
	c.streamEndedAt = now
	if !c.stopIntentAt.IsZero() {
		logger.Info("stream stopped", "source", c.stopSource)
		c.noteEvent(now, "stream stopped by "+c.stopSource)
		c.stopIntentAt = time.Time{}
		c.power.Sleep(c.stopSource)
		c.presets.Cancel("stream stopped")
		c.bus.Publish(event.Event{Type: event.StreamStopped, Source: c.stopSource})
		c.maybeRunServiceEnd(now)
		return
	}

	if !c.desiredLive {
		// Nobody asked this daemon for the stream; somebody started it
		// in the broadcast program directly. Not ours to restart.
		logger.Warn("externally started stream stopped")
		c.noteEvent(now, "stream stopped (not started here)")
		c.bus.Publish(event.Event{Type: event.StreamStopped, Source: "external"})
		return
	}

	c.criticalAlert = "STREAM STOPPED UNEXPECTEDLY"
	c.criticalAlertAt = now.Format("15:04:05")
	logger.Error("stream stopped unexpectedly")
	c.noteEvent(now, "stream stopped unexpectedly")
	c.bus.Publish(event.Event{Type: event.StreamStopped, Source: "unexpected"})
	// recovery arms from maintainRecovery once the start grace passes
}

// maybeRunServiceEnd launches the archive sequence, double-gated: the
// feature and its trigger gate must be on, and the stop must have come
// from the trigger source.
func (c *Controller) maybeRunServiceEnd(now time.Time) {
	if c.serviceEnd == nil || !c.cfg.ServiceEnd.TriggerStopGate || c.stopSource != SourceTrigger {
		return
	}
	c.noteEvent(now, "service end sequence started")
	go c.serviceEnd.Run(c.backend, now)
}

// firePendingStart releases a queued start once its gates pass. The
// profile preflight runs once per queued start.
func (c *Controller) firePendingStart(now time.Time) {
	p := c.pendingStart
	if p == nil || now.Before(p.notBefore) {
		return
	}
	if c.lastStreamOn {
		// stream came up on its own; the queued start is stale
		c.pendingStart = nil
		return
	}
	if !c.backend.Connected() {
		return
	}
	if !c.power.Awake() && !c.cfg.Common.HomeTest {
		return
	}
	if !p.profileChecked {
		p.profileChecked = true
		if !c.preflightProfile(now, p) {
			return
		}
	}
	c.pendingStart = nil
	if !c.startAttempt(now, p.source) {
		// A refused call is retried, not dropped; the debounce window
		// does not apply to the retry.
		p.notBefore = now.Add(connectRetry)
		c.pendingStart = p
	}
}

// maintainRecovery keeps the stream's actual state converging on the
// desired one: it fires due restart attempts, and re-arms the policy
// whenever the stream should be live but is not, whether the drop was
// observed as an edge, a start that never came up, or an expired
// cooldown with the stream still down.
func (c *Controller) maintainRecovery(now time.Time) {
	if c.recovery.Tick(now, c.backend.Connected()) {
		c.startAttempt(now, SourceRecovery)
		return
	}
	if !c.desiredLive || c.lastStreamOn || c.pendingStart != nil || c.recovery.Active() {
		return
	}
	if c.recovery.Exhausted(now) {
		return
	}
	grace := time.Duration(c.cfg.Recovery.StartGraceSeconds) * time.Second
	if !c.lastStartAt.IsZero() && now.Sub(c.lastStartAt) < grace {
		// still settling after the last start call
		return
	}
	if c.recovery.Arm(now) && c.recovery.Tick(now, c.backend.Connected()) {
		c.startAttempt(now, SourceRecovery)
	}
}

// preflightProfile enforces the expected OBS profile before a start.
// It reports whether the start may proceed this tick.
func (c *Controller) preflightProfile(now time.Time, p *pendingStart) bool {
	if !c.cfg.OBS.ProfileCheckEnabled || c.cfg.OBS.ExpectedProfile == "" {
		return true
	}
	name, err := c.backend.CurrentProfile()
	if err != nil {
		logger.Warn("profile check failed, proceeding", "error", err)
		return true
	}
	c.profileName = name
	if name == c.cfg.OBS.ExpectedProfile {
		return true
	}

	switch c.cfg.OBS.ProfileMismatchAction {
	case "warn":
		logger.Warn("profile mismatch, starting anyway",
			"current", name, "expected", c.cfg.OBS.ExpectedProfile)
		c.noteEvent(now, "profile mismatch (warn): "+name)
		return true
	case "switch":
		if c.lastStreamOn || c.lastRecordOn {
			logger.Error("profile switch refused while outputs active", "current", name)
			c.noteEvent(now, "start blocked: profile switch refused while active")
			c.abortStart()
			return false
		}
		if err := c.backend.SetProfile(c.cfg.OBS.ExpectedProfile); err != nil {
			logger.Error("profile switch failed", "error", err)
			c.noteEvent(now, "start blocked: profile switch failed")
			c.abortStart()
			return false
		}
		grace := time.Duration(c.cfg.OBS.SwitchGraceSeconds * float64(time.Second))
		p.notBefore = now.Add(grace)
		c.lastStartRequest = now // fresh debounce window after the switch
		c.profileName = c.cfg.OBS.ExpectedProfile
		logger.Info("profile switched", "to", c.cfg.OBS.ExpectedProfile,
			"start_in", grace.String())
		c.noteEvent(now, "profile switched to "+c.cfg.OBS.ExpectedProfile)
		return false
	default: // block
		logger.Error("start blocked by profile mismatch",
			"current", name, "expected", c.cfg.OBS.ExpectedProfile)
		c.noteEvent(now, "start BLOCKED: wrong profile "+name)
		c.abortStart()
		return false
	}
}

// abortStart drops a queued start that failed its preconditions. The
// desire flag drops with it so recovery does not chase a start the
// controller itself refused.
func (c *Controller) abortStart() {
	c.pendingStart = nil
	c.desiredLive = false
}

// startAttempt sends the actual start request and reports whether the
// backend accepted it.
func (c *Controller) startAttempt(now time.Time, source string) bool {
	if source == SourceRecovery {
		c.power.Wake(now, source)
	}
	ok, msg := c.backend.StartStream()
	if !ok {
		logger.Error("start stream failed", "source", source, "error", msg)
		c.noteEvent(now, "start failed: "+msg)
		return false
	}
	c.lastStartAt = now
	logger.Info("start stream sent", "source", source)
	return true
}

// noteEvent appends to the HUD event ring.
func (c *Controller) noteEvent(now time.Time, text string) {
	line := now.Format("15:04:05") + "  " + text
	limit := c.cfg.HUD.LogLines
	if limit <= 0 {
		limit = 30
	}
	c.events = append(c.events, line)
	if len(c.events) > limit {
		c.events = c.events[len(c.events)-limit:]
	}
}

func (c *Controller) publishSnapshot(now time.Time) {
	snap := c.buildSnapshot(now)
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	c.bus.Publish(event.Event{Type: event.SnapshotUpdated, Source: "session", Payload: snap})
}
