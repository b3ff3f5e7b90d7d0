// Package trigger receives small JSON datagrams from the console
// bridge and turns them into session events. The bridge forwards note
// presses from the sound desk; the mapping from note numbers to
// actions lives in configuration.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/event"
	"github.com/macilentiores/ChurchStreamGuard/logger"
)

const maxDatagram = 1024

// Message is one decoded bridge datagram. Either Event names the
// action directly, or Note carries a raw note press to map.
type Message struct {
	Event    string `mapstructure:"event"`
	Note     int    `mapstructure:"note"`
	Channel  int    `mapstructure:"channel"`
	Preset   int    `mapstructure:"preset"`
	Velocity int    `mapstructure:"velocity"`
}

// Listener reads datagrams and publishes trigger events on the bus.
type Listener struct {
	cfg config.TriggerConfig
	bus *event.EventBus

	mu   sync.Mutex
	conn *net.UDPConn
}

func NewListener(cfg config.TriggerConfig, bus *event.EventBus) *Listener {
	return &Listener{cfg: cfg, bus: bus}
}

// Run listens until ctx is cancelled or Close is called. A bad
// datagram is logged and skipped; the listener never dies on input.
func (l *Listener) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.ListenAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	logger.Info("trigger listener up", "addr", l.cfg.ListenAddr)

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("trigger read failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		msg, err := Decode(buf[:n])
		if err != nil {
			logger.Warn("bad trigger datagram", "error", err)
			continue
		}
		if ev, ok := MapMessage(l.cfg, msg); ok {
			logger.Info("trigger event", "type", ev.Type, "note", msg.Note)
			l.bus.Publish(ev)
		}
	}
}

// Addr reports the bound address once Run is listening, else nil.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Close stops the listener; Run returns nil.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

// Decode parses a bridge datagram. Unknown fields are tolerated so
// bridge upgrades do not break older daemons.
func Decode(data []byte) (Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, err
	}
	var msg Message
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &msg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Message{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// MapMessage resolves a datagram to a bus event. Named events win over
// note numbers; note releases (velocity 0) and foreign channels are
// dropped.
func MapMessage(cfg config.TriggerConfig, msg Message) (event.Event, bool) {
	switch msg.Event {
	case "start":
		return event.Event{Type: event.TriggerStart, Source: "TRIGGER"}, true
	case "stop":
		return event.Event{Type: event.TriggerStop, Source: "TRIGGER"}, true
	case "record":
		return event.Event{Type: event.TriggerRecordToggle, Source: "TRIGGER"}, true
	case "preset":
		if msg.Preset < 1 || msg.Preset > 10 {
			return event.Event{}, false
		}
		return event.Event{Type: event.TriggerPreset, Source: "TRIGGER", Payload: msg.Preset}, true
	case "":
	default:
		return event.Event{}, false
	}

	if msg.Note == 0 {
		return event.Event{}, false
	}
	if cfg.Channel != 0 && msg.Channel != 0 && msg.Channel != cfg.Channel {
		return event.Event{}, false
	}
	if msg.Velocity == 0 {
		return event.Event{}, false
	}

	switch {
	case msg.Note == cfg.NoteStart:
		return event.Event{Type: event.TriggerStart, Source: "TRIGGER"}, true
	case msg.Note == cfg.NoteStop:
		return event.Event{Type: event.TriggerStop, Source: "TRIGGER"}, true
	case msg.Note == cfg.NoteRecordToggle:
		return event.Event{Type: event.TriggerRecordToggle, Source: "TRIGGER"}, true
	case msg.Note >= cfg.NotePresetFirst && msg.Note <= cfg.NotePresetLast:
		preset := msg.Note - cfg.NotePresetFirst + 1
		return event.Event{Type: event.TriggerPreset, Source: "TRIGGER", Payload: preset}, true
	}
	return event.Event{}, false
}
