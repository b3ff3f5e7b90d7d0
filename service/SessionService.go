// Package service holds the application.Service implementations that
// bridge the domain core to the daemon's lifecycle.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/macilentiores/ChurchStreamGuard/core/obs"
	"github.com/macilentiores/ChurchStreamGuard/core/session"
	"github.com/macilentiores/ChurchStreamGuard/core/visca"
	"github.com/macilentiores/ChurchStreamGuard/event"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/resource"
)

// SessionService owns the session controller and its I/O: the OBS
// client and the VISCA camera sender.
type SessionService struct {
	resources *resource.Resource
	eventBus  *event.EventBus

	mu         sync.RWMutex
	controller *session.Controller
	backend    *obs.Client
	sender     *visca.Sender
}

func NewSessionService() *SessionService {
	return &SessionService{}
}

func (s *SessionService) Name() string { return "session_service" }

func (s *SessionService) SetEventBus(bus *event.EventBus) { s.eventBus = bus }

func (s *SessionService) SetResources(res *resource.Resource) { s.resources = res }

// Controller returns the running controller, or nil before Start.
func (s *SessionService) Controller() *session.Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controller
}

func (s *SessionService) Start(ctx context.Context) error {
	cfg := s.resources.Config

	sender, err := visca.NewSender(cfg.Camera)
	if err != nil {
		return fmt.Errorf("visca sender: %w", err)
	}
	backend := obs.NewClient(cfg.OBS)
	if !backend.Connect() {
		// Not fatal: the controller reconnects on its tick loop.
		logger.Warn("obs not reachable at startup", "host", cfg.OBS.Host, "port", cfg.OBS.Port)
	}

	ctrl, err := session.NewController(cfg, s.resources.Clock, backend, sender,
		s.eventBus, s.resources.TimerStore, s.resources.Clock.Location())
	if err != nil {
		_ = sender.Close()
		backend.Close()
		return err
	}

	s.mu.Lock()
	s.controller = ctrl
	s.backend = backend
	s.sender = sender
	s.mu.Unlock()

	go ctrl.Run(ctx)
	logger.Info("session controller running")
	return nil
}

func (s *SessionService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.controller != nil {
		s.controller.Shutdown()
		s.controller = nil
	}
	if s.backend != nil {
		s.backend.Close()
		s.backend = nil
	}
	if s.sender != nil {
		_ = s.sender.Close()
		s.sender = nil
	}
	return nil
}
