package api

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jinzhu/copier"

	"github.com/macilentiores/ChurchStreamGuard/api/base"
	"github.com/macilentiores/ChurchStreamGuard/core/session"
	"github.com/macilentiores/ChurchStreamGuard/entity/request"
	"github.com/macilentiores/ChurchStreamGuard/entity/response"
	"github.com/macilentiores/ChurchStreamGuard/event"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/service"
)

//go:embed hud.html
var hudPage []byte

// HudApi serves the operator HUD: the page itself, the action
// endpoints, and the websocket push of session snapshots.
type HudApi struct {
	base     *base.BaseController
	session  *service.SessionService
	upgrader websocket.Upgrader
}

func NewHudApi(baseController *base.BaseController, sessionSvc *service.SessionService) *HudApi {
	return &HudApi{
		base:    baseController,
		session: sessionSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // LAN-only deployment
		},
	}
}

func (h *HudApi) controller(c *gin.Context) *session.Controller {
	ctrl := h.session.Controller()
	if ctrl == nil {
		c.JSON(http.StatusServiceUnavailable, response.JsonResultError("session controller not running"))
		return nil
	}
	return ctrl
}

// Page serves the embedded HUD page.
func (h *HudApi) Page(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", hudPage)
}

// Snapshot returns the current session snapshot.
func (h *HudApi) Snapshot(c *gin.Context) {
	ctrl := h.controller(c)
	if ctrl == nil {
		return
	}
	c.JSON(http.StatusOK, response.JsonResultSuccess(snapshotVo(ctrl.Snapshot())))
}

// Start requests a stream start.
func (h *HudApi) Start(c *gin.Context) {
	ctrl := h.controller(c)
	if ctrl == nil {
		return
	}
	ctrl.RequestStart(session.SourceHUD)
	c.JSON(http.StatusOK, response.JsonResultSuccess(nil))
}

// Stop arms the delayed stream stop.
func (h *HudApi) Stop(c *gin.Context) {
	ctrl := h.controller(c)
	if ctrl == nil {
		return
	}
	ctrl.RequestStop(session.SourceHUD)
	c.JSON(http.StatusOK, response.JsonResultSuccess(nil))
}

// Record toggles the record output.
func (h *HudApi) Record(c *gin.Context) {
	ctrl := h.controller(c)
	if ctrl == nil {
		return
	}
	ctrl.RequestRecordToggle(session.SourceHUD)
	c.JSON(http.StatusOK, response.JsonResultSuccess(nil))
}

// Preset recalls a camera preset immediately.
func (h *HudApi) Preset(c *gin.Context) {
	ctrl := h.controller(c)
	if ctrl == nil {
		return
	}
	var req request.PresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.JsonResultError("bad preset request: "+err.Error()))
		return
	}
	ctrl.RequestPreset(req.Preset, session.SourceHUD)
	c.JSON(http.StatusOK, response.JsonResultSuccess(nil))
}

// ClearAlert acknowledges a sticky alert.
func (h *HudApi) ClearAlert(c *gin.Context) {
	ctrl := h.controller(c)
	if ctrl == nil {
		return
	}
	ctrl.RequestClearAlert()
	c.JSON(http.StatusOK, response.JsonResultSuccess(nil))
}

// Ws upgrades to a websocket and pushes a snapshot on every update
// until the client leaves or the system shuts down.
func (h *HudApi) Ws(c *gin.Context) {
	ctrl := h.controller(c)
	if ctrl == nil {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("hud websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	bus := h.base.EventBus()
	updates := bus.SubscribeMultiple([]event.EventType{event.SnapshotUpdated, event.SystemShutdown})
	defer bus.Unsubscribe(updates)

	// Reader goroutine: only to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(snap session.Snapshot) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteJSON(snapshotVo(snap)) == nil
	}
	if !send(ctrl.Snapshot()) {
		return
	}

	// Snapshots arrive every tick; coalesce to roughly 2 per second.
	throttle := time.NewTicker(500 * time.Millisecond)
	defer throttle.Stop()
	var pending *session.Snapshot

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-updates:
			if !ok || ev.Type == event.SystemShutdown {
				return
			}
			if snap, isSnap := ev.Payload.(session.Snapshot); isSnap {
				pending = &snap
			}
		case <-throttle.C:
			if pending == nil {
				continue
			}
			if !send(*pending) {
				return
			}
			pending = nil
		}
	}
}

func snapshotVo(snap session.Snapshot) response.SnapshotVo {
	var vo response.SnapshotVo
	if err := copier.Copy(&vo, &snap); err != nil {
		logger.Error("snapshot copy failed", "error", err)
	}
	return vo
}
