// Package camera tracks the remote PTZ camera's power lifecycle and the
// single delayed preset slot. All mutation happens on the controller's
// tick goroutine.
package camera

import (
	"time"

	"github.com/macilentiores/ChurchStreamGuard/logger"
)

// State is the camera power state.
type State string

const (
	StateSleep  State = "SLEEP"
	StateWaking State = "WAKING"
	StateAwake  State = "AWAKE"
)

// Commander sends fire-and-forget commands to the physical camera.
type Commander interface {
	PowerOn() error
	PowerOff() error
	RecallPreset(n int) error
}

// Power is the SLEEP -> WAKING -> AWAKE state machine. There is no
// SLEEP -> AWAKE shortcut: boot time is always honored. Only WAKING
// carries a ready deadline.
type Power struct {
	cmd      Commander
	bootDur  time.Duration
	simulate bool // home-test mode: state transitions without camera I/O

	state   State
	readyAt time.Time
}

func NewPower(cmd Commander, bootSeconds int, simulate bool) *Power {
	return &Power{
		cmd:      cmd,
		bootDur:  time.Duration(bootSeconds) * time.Second,
		simulate: simulate,
		state:    StateSleep,
	}
}

func (p *Power) State() State {
	return p.state
}

// Awake reports whether the camera is ready for presets and stream
// starts.
func (p *Power) Awake() bool {
	return p.state == StateAwake
}

// Wake powers the camera on. Repeated calls while WAKING or AWAKE are
// absorbed; power-on is sent exactly once per wake cycle.
func (p *Power) Wake(now time.Time, source string) {
	if p.state == StateWaking || p.state == StateAwake {
		return
	}
	p.state = StateWaking
	p.readyAt = now.Add(p.bootDur)

	if p.simulate {
		logger.Info("camera wake simulated", "source", source)
		return
	}
	if err := p.cmd.PowerOn(); err != nil {
		logger.Error("camera power on failed", "source", source, "error", err)
		return
	}
	logger.Info("camera power ON sent", "source", source, "boot_seconds", int(p.bootDur.Seconds()))
}

// Sleep powers the camera off from any state.
func (p *Power) Sleep(source string) {
	p.state = StateSleep
	p.readyAt = time.Time{}

	if p.simulate {
		logger.Info("camera sleep simulated", "source", source)
		return
	}
	if err := p.cmd.PowerOff(); err != nil {
		logger.Error("camera power off failed", "source", source, "error", err)
		return
	}
	logger.Info("camera power OFF sent", "source", source)
}

// Tick advances WAKING to AWAKE once the boot duration has elapsed and
// reports true on that transition so the caller can flush queued work.
func (p *Power) Tick(now time.Time) bool {
	if p.state == StateWaking && !now.Before(p.readyAt) {
		p.state = StateAwake
		p.readyAt = time.Time{}
		logger.Info("camera awake/ready")
		return true
	}
	return false
}

// Recall sends a preset recall, simulated in home-test mode.
func (p *Power) Recall(n int, source string) error {
	if p.simulate {
		logger.Info("preset recall simulated", "preset", n, "source", source)
		return nil
	}
	if err := p.cmd.RecallPreset(n); err != nil {
		logger.Error("preset recall failed", "preset", n, "source", source, "error", err)
		return err
	}
	logger.Info("preset recall sent", "preset", n, "source", source)
	return nil
}
