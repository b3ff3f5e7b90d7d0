package application

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/macilentiores/ChurchStreamGuard/api"
	"github.com/macilentiores/ChurchStreamGuard/api/base"
	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/event"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/middleware"
	"github.com/macilentiores/ChurchStreamGuard/resource"
	"github.com/macilentiores/ChurchStreamGuard/router"
	"github.com/macilentiores/ChurchStreamGuard/service"
)

// HTTPService serves the operator HUD over gin.
type HTTPService struct {
	server         *http.Server
	engine         *gin.Engine
	config         *config.Config
	resources      *resource.Resource
	eventBus       *event.EventBus
	baseController *base.BaseController
	sessionSvc     *service.SessionService
	shutdownCh     chan struct{}
	eventHandlers  []chan event.Event
	mu             sync.Mutex
}

// NewHTTPService builds the gin engine. The session service is needed
// so HUD actions can reach the controller.
func NewHTTPService(sessionSvc *service.SessionService) *HTTPService {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	return &HTTPService{
		engine:     engine,
		sessionSvc: sessionSvc,
		shutdownCh: make(chan struct{}),
	}
}

func (s *HTTPService) Name() string {
	return "http_service"
}

func (s *HTTPService) SetEventBus(bus *event.EventBus) {
	s.eventBus = bus
}

func (s *HTTPService) SetResources(res *resource.Resource) {
	s.resources = res
	s.config = res.Config
}

func (s *HTTPService) registerEventHandler(ch chan event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandlers = append(s.eventHandlers, ch)
}

func (s *HTTPService) setupRoutes() {
	if s.resources.Config.Common.Debug {
		s.engine.Use(gin.Logger())
	}
	s.engine.Use(middleware.GlobalPanicRecovery())

	s.engine.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, "pong") })

	s.baseController = base.NewBaseController(s.resources)
	s.baseController.SetEventBus(s.eventBus)

	hudApi := api.NewHudApi(s.baseController, s.sessionSvc)
	router.NewHudRouter(hudApi).InitHudRouter(s.engine)
}

func (s *HTTPService) Start(ctx context.Context) error {
	if !s.config.HUD.Enabled {
		logger.Info("HUD disabled, http service idle")
		return nil
	}

	s.setupRoutes()
	s.server = &http.Server{
		Addr:    net.JoinHostPort(s.config.HUD.Host, s.config.HUD.Port),
		Handler: s.engine,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	s.subscribeToEvents()
	logger.Info("HUD server up", "addr", s.server.Addr)
	return nil
}

func (s *HTTPService) subscribeToEvents() {
	shutdownCh := s.eventBus.Subscribe(event.SystemShutdown)
	s.registerEventHandler(shutdownCh)
	go func() {
		for {
			select {
			case <-shutdownCh:
				logger.Info("HTTP service received system shutdown event")
				if s.server != nil {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = s.server.Shutdown(ctx)
				}
			case <-s.shutdownCh:
				return
			}
		}
	}()
}

func (s *HTTPService) Stop() error {
	close(s.shutdownCh)

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down HTTP server", "error", err)
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.eventHandlers {
		s.eventBus.Unsubscribe(ch)
	}
	s.eventHandlers = nil
	logger.Info("HTTP service stopped successfully")
	return nil
}
