package visca

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerPackets(t *testing.T) {
	assert.Equal(t, []byte{0x81, 0x01, 0x04, 0x00, 0x02, 0xFF}, powerOnPacket(0x81))
	assert.Equal(t, []byte{0x81, 0x01, 0x04, 0x00, 0x03, 0xFF}, powerOffPacket(0x81))
}

func TestRecallPresetPacket(t *testing.T) {
	// base 0: preset 1 -> pp=0
	pkt, err := recallPresetPacket(0x81, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x01, 0x04, 0x3F, 0x02, 0x00, 0xFF}, pkt)

	// base 1: preset 1 -> pp=1, preset 10 -> pp=10
	pkt, err = recallPresetPacket(0x81, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x0A), pkt[5])
}

func TestRecallPresetRange(t *testing.T) {
	_, err := recallPresetPacket(0x81, 0, 0)
	assert.Error(t, err)
	_, err = recallPresetPacket(0x81, 11, 0)
	assert.Error(t, err)
	_, err = recallPresetPacket(0x81, 10, 127)
	assert.Error(t, err)
}

func TestWrapOverIP(t *testing.T) {
	payload := powerOnPacket(0x81)
	pkt := wrapOverIP(0x0102, payload)

	require.Len(t, pkt, 8+len(payload))
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x06}, pkt[:4])
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x02}, pkt[4:8])
	assert.Equal(t, payload, pkt[8:])
}

func TestSenderAgainstLocalListener(t *testing.T) {
	// A local UDP listener stands in for the camera; delivery is still
	// fire-and-forget from the sender's point of view.
	srv := newUDPCapture(t)
	defer srv.close()

	s, err := NewSender(senderConfig(srv.port(), false, 0))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PowerOn())
	assert.Equal(t, powerOnPacket(0x81), srv.next(t))

	require.NoError(t, s.RecallPreset(3))
	assert.Equal(t, []byte{0x81, 0x01, 0x04, 0x3F, 0x02, 0x02, 0xFF}, srv.next(t))
}

func TestSenderOverIPHeaderSequence(t *testing.T) {
	srv := newUDPCapture(t)
	defer srv.close()

	s, err := NewSender(senderConfig(srv.port(), true, 0))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PowerOn())
	require.NoError(t, s.PowerOff())

	first := srv.next(t)
	second := srv.next(t)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x01}, first[4:8])
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, second[4:8])
}
