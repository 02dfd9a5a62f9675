package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Task is run on every tick. The context is cancelled when the scheduler stops.
type Task func(ctx context.Context)

// Scheduler runs a background task at a fixed interval. It backs the cache
// sweeper and the podcast queue processor.
type Scheduler struct {
	name     string
	interval time.Duration
	task     Task
	clock    clock.Clock
	logger   *zap.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a new Scheduler using the wall clock
func New(name string, interval time.Duration, task Task, logger *zap.Logger) *Scheduler {
	return NewWithClock(name, interval, task, clock.New(), logger)
}

// NewWithClock creates a new Scheduler driven by the given clock
func NewWithClock(name string, interval time.Duration, task Task, clk clock.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		task:     task,
		clock:    clk,
		logger:   logger,
	}
}

// Start begins executing the task at the configured interval
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	ticker := s.clock.Ticker(s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Debug("Scheduler started", zap.String("name", s.name), zap.Duration("interval", s.interval))
}

// runOnce runs the task and keeps the loop alive if it panics
func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled task panicked", zap.String("name", s.name), zap.Any("panic", r))
		}
	}()
	s.task(ctx)
}

// Stop terminates the task loop and waits for a running task to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.logger.Debug("Scheduler stopped", zap.String("name", s.name))
}

// IsRunning returns true if the task loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
