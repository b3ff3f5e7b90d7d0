// Package obs is a minimal obs-websocket v5 control client covering the
// operations the session controller needs: status polling, stream
// start/stop, record toggle and profile preflight.
//
// Responses are decoded once at this boundary into typed values; the
// controller never inspects raw websocket payloads.
package obs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/logger"
)

const rpcVersion = 1

// Status is the point-in-time backend status. Err is non-empty when the
// backend could not be queried; the boolean fields are then stale.
type Status struct {
	Streaming bool
	Recording bool
	Err       string
}

// Client talks to one OBS instance. All methods are safe for concurrent
// use; each request holds the connection for at most the call timeout,
// so a hung OBS cannot stall a caller longer than that.
type Client struct {
	cfg     config.OBSConfig
	timeout time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	nextID    int
}

func NewClient(cfg config.OBSConfig) *Client {
	timeout := time.Duration(cfg.CallTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{cfg: cfg, timeout: timeout}
}

// message is the obs-websocket envelope.
type message struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	RPCVersion     int `json:"rpcVersion"`
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type identifyData struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type requestData struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type responseData struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData"`
}

// Connect dials OBS and performs the Hello/Identify handshake. It
// returns true when the client ends up connected; failures only log,
// matching the reconnect-forever posture of the tick loop.
func (c *Client) Connect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return true
	}

	url := fmt.Sprintf("ws://%s:%d", c.cfg.Host, c.cfg.Port)
	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		logger.Debug("obs dial failed", "url", url, "error", err)
		return false
	}

	if err := c.handshake(conn); err != nil {
		logger.Warn("obs handshake failed", "error", err)
		_ = conn.Close()
		return false
	}

	c.conn = conn
	c.connected = true
	logger.Info("obs connected", "url", url)
	return true
}

func (c *Client) handshake(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(c.timeout))

	var hello message
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != 0 {
		return fmt.Errorf("expected hello (op 0), got op %d", hello.Op)
	}
	var hd helloData
	if err := json.Unmarshal(hello.D, &hd); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}

	identify := identifyData{RPCVersion: rpcVersion}
	if hd.Authentication != nil {
		identify.Authentication = authToken(c.cfg.Password, hd.Authentication.Salt, hd.Authentication.Challenge)
	}
	payload, _ := json.Marshal(identify)
	if err := conn.WriteJSON(message{Op: 1, D: payload}); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.timeout))
	var identified message
	if err := conn.ReadJSON(&identified); err != nil {
		return fmt.Errorf("read identified: %w", err)
	}
	if identified.Op != 2 {
		return fmt.Errorf("identify rejected (op %d)", identified.Op)
	}
	return nil
}

// Connected reports whether the last call left a usable connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close drops the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop()
}

// drop must be called with the mutex held.
func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

// request performs one request/response round trip with a bounded
// deadline, skipping any event messages that arrive in between.
func (c *Client) request(reqType string, reqData any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return fmt.Errorf("obs not connected")
	}

	c.nextID++
	id := strconv.Itoa(c.nextID)

	payload, err := json.Marshal(requestData{RequestType: reqType, RequestID: id, RequestData: reqData})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", reqType, err)
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.conn.WriteJSON(message{Op: 6, D: payload}); err != nil {
		c.drop()
		return fmt.Errorf("send %s: %w", reqType, err)
	}

	deadline := time.Now().Add(c.timeout)
	for {
		_ = c.conn.SetReadDeadline(deadline)
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.drop()
			return fmt.Errorf("read %s response: %w", reqType, err)
		}
		if msg.Op != 7 {
			continue // events and other chatter
		}
		var resp responseData
		if err := json.Unmarshal(msg.D, &resp); err != nil {
			c.drop()
			return fmt.Errorf("decode %s response: %w", reqType, err)
		}
		if resp.RequestID != id {
			continue
		}
		if !resp.RequestStatus.Result {
			comment := resp.RequestStatus.Comment
			if comment == "" {
				comment = fmt.Sprintf("code %d", resp.RequestStatus.Code)
			}
			return fmt.Errorf("%s refused: %s", reqType, comment)
		}
		if out != nil && len(resp.ResponseData) > 0 {
			if err := json.Unmarshal(resp.ResponseData, out); err != nil {
				return fmt.Errorf("decode %s data: %w", reqType, err)
			}
		}
		return nil
	}
}

type outputActive struct {
	OutputActive bool `json:"outputActive"`
}

// GetStatus polls stream and record state in one call.
func (c *Client) GetStatus() Status {
	var stream, record outputActive
	if err := c.request("GetStreamStatus", nil, &stream); err != nil {
		return Status{Err: err.Error()}
	}
	if err := c.request("GetRecordStatus", nil, &record); err != nil {
		return Status{Err: err.Error()}
	}
	return Status{Streaming: stream.OutputActive, Recording: record.OutputActive}
}

// StartStream asks OBS to start the stream output.
func (c *Client) StartStream() (bool, string) {
	if err := c.request("StartStream", nil, nil); err != nil {
		return false, err.Error()
	}
	return true, "stream start requested"
}

// StopStream asks OBS to stop the stream output.
func (c *Client) StopStream() (bool, string) {
	if err := c.request("StopStream", nil, nil); err != nil {
		return false, err.Error()
	}
	return true, "stream stop requested"
}

// ToggleRecord flips the record output and reports its new state.
func (c *Client) ToggleRecord() (bool, string) {
	var out outputActive
	if err := c.request("ToggleRecord", nil, &out); err != nil {
		return false, err.Error()
	}
	if out.OutputActive {
		return true, "REC start"
	}
	return true, "REC stop"
}

// CurrentProfile returns the active OBS profile name.
func (c *Client) CurrentProfile() (string, error) {
	var out struct {
		CurrentProfileName string `json:"currentProfileName"`
	}
	if err := c.request("GetProfileList", nil, &out); err != nil {
		return "", err
	}
	return out.CurrentProfileName, nil
}

// SetProfile switches the active OBS profile. Callers must refuse to
// switch while streaming or recording; OBS would drop the outputs.
func (c *Client) SetProfile(name string) error {
	return c.request("SetCurrentProfile", map[string]string{"profileName": name}, nil)
}
