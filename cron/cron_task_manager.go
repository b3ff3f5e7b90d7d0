package cron

import (
	"context"
	"sync"
	"time"

	"github.com/macilentiores/ChurchStreamGuard/event"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/resource"
)

// CronTask is one periodic housekeeping job.
type CronTask interface {

	// Name returns the task name.
	Name() string

	// Execute runs the task once.
	Execute(ctx context.Context) error

	// GetInterval returns how often the task runs.
	GetInterval() time.Duration

	// Enable reports whether the task should run at all.
	Enable() bool
}

// CronTaskManager runs every registered task on its own ticker.
type CronTaskManager struct {
	resources     *resource.Resource
	eventBus      *event.EventBus
	stopCh        chan struct{}
	isRunning     bool
	tasks         []CronTask
	mu            sync.Mutex
	eventHandlers []chan event.Event
}

func NewCronTaskManager() *CronTaskManager {
	return &CronTaskManager{
		stopCh:        make(chan struct{}),
		tasks:         make([]CronTask, 0),
		eventHandlers: make([]chan event.Event, 0),
	}
}

func (tm *CronTaskManager) Name() string {
	return "cron_task_manager"
}

// AddTask registers a task; disabled tasks are dropped here.
func (tm *CronTaskManager) AddTask(task CronTask) {
	if !task.Enable() {
		logger.Info("CronTask is disabled", "task", task.Name())
		return
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.tasks = append(tm.tasks, task)
	logger.Info("Added task to manager", "task", task.Name(), "interval", task.GetInterval())
}

func (tm *CronTaskManager) registerEventHandler(ch chan event.Event) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.eventHandlers = append(tm.eventHandlers, ch)
}

func (tm *CronTaskManager) SetEventBus(bus *event.EventBus) {
	tm.eventBus = bus
}

func (tm *CronTaskManager) SetResources(res *resource.Resource) {
	tm.resources = res
}

func (tm *CronTaskManager) Start(ctx context.Context) error {
	if tm.isRunning {
		return nil
	}
	tm.isRunning = true

	tm.subscribeToEvents()
	tm.startAllTasks(ctx)

	logger.Info("TaskManager started")
	return nil
}

func (tm *CronTaskManager) subscribeToEvents() {
	shutdownCh := tm.eventBus.Subscribe(event.SystemShutdown)
	tm.registerEventHandler(shutdownCh)
	go func() {
		for {
			select {
			case <-shutdownCh:
				logger.Info("TaskManager received system shutdown event")
				_ = tm.Stop()
			case <-tm.stopCh:
				return
			}
		}
	}()
}

func (tm *CronTaskManager) Stop() error {
	if !tm.isRunning {
		return nil
	}

	close(tm.stopCh)
	tm.isRunning = false

	tm.mu.Lock()
	defer tm.mu.Unlock()
	for _, ch := range tm.eventHandlers {
		tm.eventBus.Unsubscribe(ch)
	}
	tm.eventHandlers = nil

	logger.Info("TaskManager stopped")
	return nil
}

func (tm *CronTaskManager) startAllTasks(ctx context.Context) {
	tm.mu.Lock()
	tasks := make([]CronTask, len(tm.tasks))
	copy(tasks, tm.tasks)
	tm.mu.Unlock()

	for _, task := range tasks {
		go tm.runTask(ctx, task)
	}
}

func (tm *CronTaskManager) runTask(ctx context.Context, task CronTask) {
	ticker := time.NewTicker(task.GetInterval())
	defer ticker.Stop()

	taskName := task.Name()
	logger.Info("Starting task", "task", taskName, "interval", task.GetInterval())

	tm.executeTask(ctx, task)

	for {
		select {
		case <-ticker.C:
			tm.executeTask(ctx, task)
		case <-tm.stopCh:
			logger.Info("CronTask stopped", "task", taskName)
			return
		case <-ctx.Done():
			logger.Info("Context canceled, stopping task", "task", taskName)
			return
		}
	}
}

// executeTask runs one iteration with a bounded timeout.
func (tm *CronTaskManager) executeTask(ctx context.Context, task CronTask) {
	taskName := task.Name()

	taskCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := task.Execute(taskCtx)
	if err != nil {
		logger.Error("CronTask execution failed", "task", taskName, "error", err)
	} else {
		logger.Debug("CronTask executed", "task", taskName)
	}
}
