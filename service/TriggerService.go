package service

import (
	"context"

	"github.com/macilentiores/ChurchStreamGuard/core/trigger"
	"github.com/macilentiores/ChurchStreamGuard/event"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/resource"
)

// TriggerService runs the console bridge listener.
type TriggerService struct {
	resources *resource.Resource
	eventBus  *event.EventBus
	listener  *trigger.Listener
	cancel    context.CancelFunc
}

func NewTriggerService() *TriggerService {
	return &TriggerService{}
}

func (s *TriggerService) Name() string { return "trigger_service" }

func (s *TriggerService) SetEventBus(bus *event.EventBus) { s.eventBus = bus }

func (s *TriggerService) SetResources(res *resource.Resource) { s.resources = res }

func (s *TriggerService) Start(ctx context.Context) error {
	if !s.resources.Config.Trigger.Enabled {
		logger.Info("trigger listener disabled")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.listener = trigger.NewListener(s.resources.Config.Trigger, s.eventBus)

	go func() {
		if err := s.listener.Run(runCtx); err != nil {
			logger.Error("trigger listener exited", "error", err)
		}
	}()
	return nil
}

func (s *TriggerService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	return nil
}
