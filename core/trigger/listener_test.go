package trigger

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/event"
)

func triggerCfg() config.TriggerConfig {
	return config.Default().Trigger
}

func TestDecodeNamedEvent(t *testing.T) {
	msg, err := Decode([]byte(`{"event":"start","extra":"ignored"}`))
	require.NoError(t, err)
	assert.Equal(t, "start", msg.Event)
}

func TestDecodeNamedPreset(t *testing.T) {
	msg, err := Decode([]byte(`{"event":"preset","preset":3}`))
	require.NoError(t, err)
	assert.Equal(t, "preset", msg.Event)
	assert.Equal(t, 3, msg.Preset)
}

func TestDecodeNoteMessage(t *testing.T) {
	msg, err := Decode([]byte(`{"note":60,"channel":1,"velocity":127}`))
	require.NoError(t, err)
	assert.Equal(t, 60, msg.Note)
	assert.Equal(t, 1, msg.Channel)
	assert.Equal(t, 127, msg.Velocity)
}

func TestDecodeWeakTypes(t *testing.T) {
	// Some bridges send numbers as strings.
	msg, err := Decode([]byte(`{"note":"61","velocity":"100"}`))
	require.NoError(t, err)
	assert.Equal(t, 61, msg.Note)
	assert.Equal(t, 100, msg.Velocity)
}

func TestDecodeBadPayload(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestMapMessage(t *testing.T) {
	cfg := triggerCfg()

	tests := []struct {
		name string
		msg  Message
		want event.EventType
		ok   bool
	}{
		{"named start", Message{Event: "start"}, event.TriggerStart, true},
		{"named stop", Message{Event: "stop"}, event.TriggerStop, true},
		{"named record", Message{Event: "record"}, event.TriggerRecordToggle, true},
		{"named preset", Message{Event: "preset", Preset: 3}, event.TriggerPreset, true},
		{"named preset out of range", Message{Event: "preset", Preset: 11}, "", false},
		{"named preset missing number", Message{Event: "preset"}, "", false},
		{"unknown named", Message{Event: "reboot"}, "", false},
		{"note start", Message{Note: 60, Channel: 1, Velocity: 127}, event.TriggerStart, true},
		{"note stop", Message{Note: 61, Channel: 1, Velocity: 1}, event.TriggerStop, true},
		{"note record", Message{Note: 62, Velocity: 64}, event.TriggerRecordToggle, true},
		{"note release dropped", Message{Note: 60, Channel: 1, Velocity: 0}, "", false},
		{"foreign channel dropped", Message{Note: 60, Channel: 5, Velocity: 127}, "", false},
		{"unmapped note", Message{Note: 40, Channel: 1, Velocity: 127}, "", false},
		{"empty message", Message{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := MapMessage(cfg, tt.msg)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, ev.Type)
			}
		})
	}
}

func TestMapPresetRange(t *testing.T) {
	cfg := triggerCfg() // presets on notes 70..79

	ev, ok := MapMessage(cfg, Message{Note: 70, Channel: 1, Velocity: 127})
	require.True(t, ok)
	assert.Equal(t, event.TriggerPreset, ev.Type)
	assert.Equal(t, 1, ev.Payload)

	ev, ok = MapMessage(cfg, Message{Note: 79, Channel: 1, Velocity: 127})
	require.True(t, ok)
	assert.Equal(t, 10, ev.Payload)

	_, ok = MapMessage(cfg, Message{Note: 80, Channel: 1, Velocity: 127})
	assert.False(t, ok)

	// The named form carries the preset number directly.
	ev, ok = MapMessage(cfg, Message{Event: "preset", Preset: 7})
	require.True(t, ok)
	assert.Equal(t, 7, ev.Payload)
}

func TestListenerEndToEnd(t *testing.T) {
	cfg := triggerCfg()
	cfg.ListenAddr = "127.0.0.1:0"

	bus := event.NewEventBus()
	ch := bus.Subscribe(event.TriggerStart)
	l := NewListener(cfg, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var addr string
	require.Eventually(t, func() bool {
		if a := l.Addr(); a != nil {
			addr = a.String()
			return true
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(`{"event":"start"}`))
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, event.TriggerStart, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger event received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not shut down")
	}
}
