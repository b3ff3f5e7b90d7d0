package obs

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macilentiores/ChurchStreamGuard/config"
)

// fakeOBS speaks just enough obs-websocket v5 for the client: Hello,
// Identified, then canned responses per request type.
type fakeOBS struct {
	srv       *httptest.Server
	streaming bool
	recording bool
	profile   string
	calls     []string
}

func newFakeOBS(t *testing.T) *fakeOBS {
	t.Helper()
	f := &fakeOBS{profile: "Default"}
	upgrader := websocket.Upgrader{}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, _ := json.Marshal(map[string]any{"rpcVersion": 1})
		_ = conn.WriteJSON(message{Op: 0, D: hello})

		var identify message
		if err := conn.ReadJSON(&identify); err != nil || identify.Op != 1 {
			return
		}
		identified, _ := json.Marshal(map[string]any{"negotiatedRpcVersion": 1})
		_ = conn.WriteJSON(message{Op: 2, D: identified})

		for {
			var msg message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Op != 6 {
				continue
			}
			var req requestData
			_ = json.Unmarshal(msg.D, &req)
			f.calls = append(f.calls, req.RequestType)
			_ = conn.WriteJSON(f.respond(req))
		}
	}))
	return f
}

func (f *fakeOBS) respond(req requestData) message {
	data := map[string]any{}
	result := true
	comment := ""

	switch req.RequestType {
	case "GetStreamStatus":
		data["outputActive"] = f.streaming
	case "GetRecordStatus":
		data["outputActive"] = f.recording
	case "StartStream":
		f.streaming = true
	case "StopStream":
		f.streaming = false
	case "ToggleRecord":
		f.recording = !f.recording
		data["outputActive"] = f.recording
	case "GetProfileList":
		data["currentProfileName"] = f.profile
	case "SetCurrentProfile":
		result = false
		comment = "profile not found"
	}

	body := map[string]any{
		"requestType":   req.RequestType,
		"requestId":     req.RequestID,
		"requestStatus": map[string]any{"result": result, "code": 100, "comment": comment},
		"responseData":  data,
	}
	raw, _ := json.Marshal(body)
	return message{Op: 7, D: raw}
}

func (f *fakeOBS) clientConfig(t *testing.T) config.OBSConfig {
	t.Helper()
	_, portStr, err := net.SplitHostPort(f.srv.Listener.Addr().String())
	require.NoError(t, err)
	port, _ := strconv.Atoi(portStr)
	return config.OBSConfig{Host: "127.0.0.1", Port: port, CallTimeoutMS: 2000}
}

func TestClientConnectAndStatus(t *testing.T) {
	f := newFakeOBS(t)
	defer f.srv.Close()

	c := NewClient(f.clientConfig(t))
	require.True(t, c.Connect())
	require.True(t, c.Connected())
	defer c.Close()

	st := c.GetStatus()
	assert.Empty(t, st.Err)
	assert.False(t, st.Streaming)

	ok, _ := c.StartStream()
	require.True(t, ok)
	st = c.GetStatus()
	assert.True(t, st.Streaming)
}

func TestClientToggleRecord(t *testing.T) {
	f := newFakeOBS(t)
	defer f.srv.Close()

	c := NewClient(f.clientConfig(t))
	require.True(t, c.Connect())
	defer c.Close()

	ok, msg := c.ToggleRecord()
	require.True(t, ok)
	assert.Equal(t, "REC start", msg)

	ok, msg = c.ToggleRecord()
	require.True(t, ok)
	assert.Equal(t, "REC stop", msg)
}

func TestClientProfile(t *testing.T) {
	f := newFakeOBS(t)
	defer f.srv.Close()

	c := NewClient(f.clientConfig(t))
	require.True(t, c.Connect())
	defer c.Close()

	name, err := c.CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "Default", name)

	// The fake refuses the switch; the error must carry the comment.
	err = c.SetProfile("NHLC live")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile not found")
}

func TestClientNotConnected(t *testing.T) {
	c := NewClient(config.OBSConfig{Host: "127.0.0.1", Port: 1, CallTimeoutMS: 200})

	assert.False(t, c.Connect())
	st := c.GetStatus()
	assert.NotEmpty(t, st.Err)

	ok, _ := c.StartStream()
	assert.False(t, ok)
}
