package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/core/obs"
	"github.com/macilentiores/ChurchStreamGuard/event"
)

// fakeClock hands out a manually advanced time.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

// fakeBackend is an in-memory broadcast program. startSticks=false
// models OBS accepting the start but the output failing to come up.
type fakeBackend struct {
	connected   bool
	streaming   bool
	recording   bool
	profile     string
	startSticks bool
	stopSticks  bool

	startCalls  []time.Time
	stopCalls   int
	toggleCalls int
	setProfiles []string
	clk         *fakeClock
}

func newFakeBackend(clk *fakeClock) *fakeBackend {
	return &fakeBackend{connected: true, profile: "NHLC live", startSticks: true, stopSticks: true, clk: clk}
}

func (f *fakeBackend) Connect() bool { f.connected = true; return true }

func (f *fakeBackend) Connected() bool { return f.connected }

func (f *fakeBackend) Close() { f.connected = false }

func (f *fakeBackend) GetStatus() obs.Status {
	if !f.connected {
		return obs.Status{Err: "not connected"}
	}
	return obs.Status{Streaming: f.streaming, Recording: f.recording}
}

func (f *fakeBackend) StartStream() (bool, string) {
	f.startCalls = append(f.startCalls, f.clk.now)
	if f.startSticks {
		f.streaming = true
	}
	return true, "stream start requested"
}

func (f *fakeBackend) StopStream() (bool, string) {
	f.stopCalls++
	if f.stopSticks {
		f.streaming = false
	}
	return true, "stream stop requested"
}

func (f *fakeBackend) ToggleRecord() (bool, string) {
	f.toggleCalls++
	f.recording = !f.recording
	if f.recording {
		return true, "REC start"
	}
	return true, "REC stop"
}

func (f *fakeBackend) CurrentProfile() (string, error) { return f.profile, nil }

func (f *fakeBackend) SetProfile(name string) error {
	f.setProfiles = append(f.setProfiles, name)
	f.profile = name
	return nil
}

// fakeCam records fire-and-forget camera commands.
type fakeCam struct {
	powerOn  int
	powerOff int
	recalls  []int
}

func (f *fakeCam) PowerOn() error { f.powerOn++; return nil }

func (f *fakeCam) PowerOff() error { f.powerOff++; return nil }

func (f *fakeCam) RecallPreset(n int) error { f.recalls = append(f.recalls, n); return nil }

type harness struct {
	c   *Controller
	clk *fakeClock
	be  *fakeBackend
	cam *fakeCam
}

// newHarness builds a controller with defaults, timer off, driven
// directly through tick and the handlers (no run goroutine).
func newHarness(t *testing.T, mut func(cfg *config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Timer.Enabled = false
	cfg.ServiceEnd.Enabled = false
	if mut != nil {
		mut(cfg)
	}

	clk := &fakeClock{now: time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)}
	be := newFakeBackend(clk)
	cam := &fakeCam{}

	c, err := NewController(cfg, clk, be, cam, event.NewEventBus(), nil, time.UTC)
	require.NoError(t, err)
	return &harness{c: c, clk: clk, be: be, cam: cam}
}

// stepTo advances the clock to the target in one-second ticks so the
// status poll and every deadline fire in order.
func (h *harness) stepTo(target time.Time) {
	for h.clk.now.Before(target) {
		h.clk.now = h.clk.now.Add(time.Second)
		h.c.tick(h.clk.now)
	}
}

func (h *harness) step(d time.Duration) {
	h.stepTo(h.clk.now.Add(d))
}

// goLive requests a start and runs it through camera boot and the
// first live status poll.
func (h *harness) goLive(t *testing.T) {
	t.Helper()
	h.c.handleStart(h.clk.now, SourceHUD)
	h.step(time.Duration(h.c.cfg.Camera.BootSeconds+2) * time.Second)
	require.True(t, h.c.lastStreamOn, "stream should be live")
}
