package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task одна периодическая фоновая задача
type Task struct {
	Name     string
	Interval time.Duration
	// RunOnStart первый прогон сразу при старте, не дожидаясь тика
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	tasks    []Task
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(logger *zap.Logger, tasks ...Task) *Scheduler {
	return &Scheduler{
		tasks:    tasks,
		logger:   logger.With(zap.String("component", "scheduler")),
		stopChan: make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Int("tasks", len(s.tasks)))

	for _, task := range s.tasks {
		if task.Interval <= 0 {
			s.logger.Warn("Task disabled: non-positive interval", zap.String("task", task.Name))
			continue
		}
		s.wg.Add(1)
		go s.runTask(ctx, task)
	}
}

// Stop останавливает фоновые задачи и ждёт завершения текущих прогонов
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	defer s.wg.Done()

	if task.RunOnStart {
		s.runOnce(ctx, task)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, task)
		case <-s.stopChan:
			s.logger.Info("Task stopped", zap.String("task", task.Name))
			return
		case <-ctx.Done():
			s.logger.Info("Task cancelled", zap.String("task", task.Name))
			return
		}
	}
}

// runOnce ошибка или паника одного прогона не останавливает задачу
func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Task panicked", zap.String("task", task.Name), zap.Any("panic", r))
		}
	}()

	started := time.Now()
	if err := task.Run(ctx); err != nil {
		s.logger.Error("Task failed",
			zap.Error(err),
			zap.String("task", task.Name),
			zap.Duration("duration", time.Since(started)),
		)
		return
	}

	s.logger.Debug("Task completed",
		zap.String("task", task.Name),
		zap.Duration("duration", time.Since(started)),
	)
}
