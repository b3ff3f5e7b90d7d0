package router

import (
	"github.com/gin-gonic/gin"

	"github.com/macilentiores/ChurchStreamGuard/api"
)

// HudRouter wires the operator HUD routes.
type HudRouter struct {
	hudApi *api.HudApi
}

func NewHudRouter(hudApi *api.HudApi) *HudRouter {
	return &HudRouter{hudApi: hudApi}
}

// InitHudRouter registers the page, the websocket, and the action api.
func (r *HudRouter) InitHudRouter(engine *gin.Engine) {
	engine.GET("/", r.hudApi.Page)
	engine.GET("/ws", r.hudApi.Ws)

	hudRouter := engine.Group("/api/hud")
	{
		hudRouter.GET("/snapshot", r.hudApi.Snapshot)
		hudRouter.POST("/start", r.hudApi.Start)
		hudRouter.POST("/stop", r.hudApi.Stop)
		hudRouter.POST("/record", r.hudApi.Record)
		hudRouter.POST("/preset", r.hudApi.Preset)
		hudRouter.POST("/clear-alert", r.hudApi.ClearAlert)
	}
}
