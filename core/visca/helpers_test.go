package visca

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/macilentiores/ChurchStreamGuard/config"
)

func senderConfig(port int, overIP bool, presetBase int) config.CameraConfig {
	return config.CameraConfig{
		IP:               "127.0.0.1",
		ViscaPort:        port,
		UseOverIPHeader:  overIP,
		Address:          0x81,
		PresetNumberBase: presetBase,
	}
}

// udpCapture collects datagrams sent to a loopback port.
type udpCapture struct {
	conn *net.UDPConn
	ch   chan []byte
}

func newUDPCapture(t *testing.T) *udpCapture {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)

	c := &udpCapture{conn: conn, ch: make(chan []byte, 16)}
	go func() {
		buf := make([]byte, 64)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			pkt := make([]byte, n)
			copy(pkt, buf[:n])
			c.ch <- pkt
		}
	}()
	return c
}

func (c *udpCapture) port() int {
	return c.conn.LocalAddr().(*net.UDPAddr).Port
}

func (c *udpCapture) next(t *testing.T) []byte {
	t.Helper()
	select {
	case pkt := <-c.ch:
		return pkt
	case <-time.After(2 * time.Second):
		t.Fatal("no datagram received")
		return nil
	}
}

func (c *udpCapture) close() {
	_ = c.conn.Close()
}
