package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/event"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/resource"
)

type Service interface {
	Start(ctx context.Context) error
	Stop() error

	SetEventBus(bus *event.EventBus)
	SetResources(res *resource.Resource)

	Name() string
}

// ServiceManager owns the lifecycle of every service in the daemon.
type ServiceManager struct {
	services   map[string]Service
	eventBus   *event.EventBus
	resource   *resource.Resource
	mu         sync.Mutex
	startOrder []string
}

func NewServiceManager(cfg *config.Config) (*ServiceManager, error) {
	if err := logger.InitLogger(&cfg.Common.Log); err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	r, err := resource.NewResource(cfg)
	if err != nil {
		return nil, err
	}

	return &ServiceManager{
		services:   make(map[string]Service),
		eventBus:   event.NewEventBus(),
		resource:   r,
		startOrder: make([]string, 0),
	}, nil
}

func (m *ServiceManager) GetResource() *resource.Resource {
	return m.resource
}

func (m *ServiceManager) GetEventBus() *event.EventBus {
	return m.eventBus
}

// AddService registers a service and injects the bus and resources.
// Services start in registration order.
func (m *ServiceManager) AddService(s Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := s.Name()
	if _, exists := m.services[name]; exists {
		return fmt.Errorf("service with name %s already exists", name)
	}

	s.SetEventBus(m.eventBus)
	s.SetResources(m.resource)

	m.services[name] = s
	m.startOrder = append(m.startOrder, name)
	logger.Info("Service added", "name", name)
	return nil
}

func (m *ServiceManager) GetService(name string) (Service, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	service, ok := m.services[name]
	return service, ok
}

// StartAll starts services in the order they were added.
func (m *ServiceManager) StartAll(ctx context.Context) error {
	for _, name := range m.startOrder {
		service := m.services[name]
		logger.Info("Starting service", "name", name)
		if err := service.Start(ctx); err != nil {
			return fmt.Errorf("failed to start service %s: %w", name, err)
		}
		logger.Info("Service started successfully", "name", name)
	}

	m.eventBus.Publish(event.Event{Type: event.SystemSetUp})
	return nil
}

// StopAll stops services in reverse start order and closes resources.
func (m *ServiceManager) StopAll() {
	m.eventBus.Publish(event.Event{
		Type: event.SystemShutdown,
	})
	logger.Info("System shutdown event published")

	for i := len(m.startOrder) - 1; i >= 0; i-- {
		service := m.services[m.startOrder[i]]
		logger.Info("Stopping service", "name", service.Name())
		if err := service.Stop(); err != nil {
			logger.Error("Error stopping service", "name", service.Name(), "error", err)
		} else {
			logger.Info("Service stopped successfully", "name", service.Name())
		}
	}

	if err := m.resource.Close(); err != nil {
		logger.Error("Error closing resources", "error", err)
	}
	logger.Info("All services stopped and resources cleaned up")
}
