// Package visca sends VISCA commands to a PTZ camera over UDP.
//
// Delivery is fire-and-forget: the contract is "command sent", never
// "command executed". The caller must not assume delivery and this
// package never retries — a duplicate preset recall on a stateful
// camera is worse than a dropped one.
package visca

import (
	"fmt"
	"net"
	"sync"

	"github.com/macilentiores/ChurchStreamGuard/config"
)

// Sender is a UDP VISCA command sender.
type Sender struct {
	addr       byte
	useHeader  bool
	presetBase int

	mu   sync.Mutex
	seq  uint32
	conn net.Conn
}

func NewSender(cfg config.CameraConfig) (*Sender, error) {
	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d", cfg.IP, cfg.ViscaPort))
	if err != nil {
		return nil, fmt.Errorf("dial camera: %w", err)
	}
	return &Sender{
		addr:       cfg.Address,
		useHeader:  cfg.UseOverIPHeader,
		presetBase: cfg.PresetNumberBase,
		seq:        1,
		conn:       conn,
	}, nil
}

func (s *Sender) Close() error {
	return s.conn.Close()
}

// PowerOn sends 8x 01 04 00 02 FF.
func (s *Sender) PowerOn() error {
	return s.send(powerOnPacket(s.addr))
}

// PowerOff sends 8x 01 04 00 03 FF.
func (s *Sender) PowerOff() error {
	return s.send(powerOffPacket(s.addr))
}

// RecallPreset sends 8x 01 04 3F 02 pp FF for preset n in 1..10, where
// pp = (n-1) + the configured number base.
func (s *Sender) RecallPreset(n int) error {
	pkt, err := recallPresetPacket(s.addr, n, s.presetBase)
	if err != nil {
		return err
	}
	return s.send(pkt)
}

func (s *Sender) send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkt := payload
	if s.useHeader {
		pkt = wrapOverIP(s.seq, payload)
		s.seq++
	}
	if _, err := s.conn.Write(pkt); err != nil {
		return fmt.Errorf("send visca command: %w", err)
	}
	return nil
}

func powerOnPacket(addr byte) []byte {
	return []byte{addr, 0x01, 0x04, 0x00, 0x02, 0xFF}
}

func powerOffPacket(addr byte) []byte {
	return []byte{addr, 0x01, 0x04, 0x00, 0x03, 0xFF}
}

func recallPresetPacket(addr byte, n, base int) ([]byte, error) {
	if n < 1 || n > 10 {
		return nil, fmt.Errorf("preset must be 1..10, got %d", n)
	}
	pp := (n - 1) + base
	if pp < 0 || pp > 127 {
		return nil, fmt.Errorf("computed memory number %d out of range 0..127", pp)
	}
	return []byte{addr, 0x01, 0x04, 0x3F, 0x02, byte(pp) & 0x7F, 0xFF}, nil
}

// wrapOverIP prefixes the common VISCA-over-IP header:
// 01 00 <len16> <seq32> + payload.
func wrapOverIP(seq uint32, payload []byte) []byte {
	ln := len(payload)
	hdr := []byte{
		0x01, 0x00,
		byte(ln >> 8), byte(ln),
		byte(seq >> 24), byte(seq >> 16), byte(seq >> 8), byte(seq),
	}
	return append(hdr, payload...)
}
