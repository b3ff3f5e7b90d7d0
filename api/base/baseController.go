package base

import (
	"github.com/macilentiores/ChurchStreamGuard/event"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/resource"
	"sync"
)

// BaseController carries the dependencies every controller shares.
type BaseController struct {
	Resource      *resource.Resource
	eventBus      *event.EventBus
	mu            sync.Mutex
	eventHandlers []chan event.Event
	shutdownCh    chan struct{}
}

func NewBaseController(res *resource.Resource) *BaseController {
	if res == nil {
		panic("res cannot be nil")
	}

	return &BaseController{
		Resource:      res,
		eventHandlers: make([]chan event.Event, 0),
		shutdownCh:    make(chan struct{}),
	}
}

func (c *BaseController) SetEventBus(bus *event.EventBus) {
	c.eventBus = bus

	shutdownCh := c.eventBus.Subscribe(event.SystemShutdown)
	c.eventHandlers = append(c.eventHandlers, shutdownCh)
	go func() {
		for {
			select {
			case <-shutdownCh:
				logger.Info("BaseController received system shutdown event")
				c.Cleanup()
				return
			case <-c.shutdownCh:
				return
			}
		}
	}()
}

func (c *BaseController) EventBus() *event.EventBus {
	return c.eventBus
}

// RegisterEventHandler tracks a subscription so Cleanup can drop it.
func (c *BaseController) RegisterEventHandler(ch chan event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandlers = append(c.eventHandlers, ch)
}

// Cleanup drops every subscription this controller holds.
func (c *BaseController) Cleanup() {
	logger.Info("BaseController cleaning up resources")

	close(c.shutdownCh)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eventBus != nil {
		for _, ch := range c.eventHandlers {
			c.eventBus.Unsubscribe(ch)
		}
	}
	c.eventHandlers = nil

	logger.Info("BaseController cleanup completed")
}
