package task

import (
	"context"
	"sync"

	"transcription-service/pkg/logger"
)

// BackgroundTask represents a long-running background process such as the
// worker poll loop or the heartbeat publisher.
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

type manager struct {
	tasks  []BackgroundTask
	mu     sync.Mutex
	cancel context.CancelFunc
}

var defaultManager = &manager{tasks: make([]BackgroundTask, 0)}

// Register adds a background task; call during assembly before StartAll.
func Register(task BackgroundTask) {
	if task == nil {
		return
	}
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	defaultManager.tasks = append(defaultManager.tasks, task)
}

// StartAll starts all registered tasks once, in registration order.
func StartAll(ctx context.Context) error {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.cancel != nil {
		return nil
	}
	taskCtx, cancel := context.WithCancel(ctx)
	defaultManager.cancel = cancel
	for _, t := range defaultManager.tasks {
		if err := t.Start(taskCtx); err != nil {
			return err
		}
		logger.Infof("Background task started name=%s", t.Name())
	}
	return nil
}

// StopAll stops all running tasks in reverse registration order.
func StopAll() {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.cancel != nil {
		defaultManager.cancel()
	}
	for i := len(defaultManager.tasks) - 1; i >= 0; i-- {
		t := defaultManager.tasks[i]
		if err := t.Stop(); err != nil {
			logger.Warnf("Background task stop failed name=%s error=%v", t.Name(), err)
		}
	}
	defaultManager.cancel = nil
}
