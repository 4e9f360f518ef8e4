package bridge

import (
	"context"
	"log/slog"
	"sync"
)

// Scheduler runs posted tasks sequentially on the goroutine that called Run.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger.With("component", "scheduler"),
		wake:   make(chan struct{}, 1),
	}
}

// Post queues task to run after everything already posted. It never blocks
// and reports false once the scheduler has stopped.
func (s *Scheduler) Post(task func()) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes tasks until ctx is done. Tasks still queued at that point
// are dropped and later Posts are refused.
func (s *Scheduler) Run(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.stopped = true
		s.queue = nil
		s.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, task := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.runTask(task)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
	}
}

func (s *Scheduler) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "panic", r)
		}
	}()
	task()
}

// Await posts cont onto s once f resolves. cont runs on the scheduler
// goroutine, so it may touch scheduler-owned state without locks.
func Await[T any](s *Scheduler, f *Future[T], cont func(T, error)) {
	go func() {
		<-f.Done()
		v, err := f.val, f.err
		if !s.Post(func() { cont(v, err) }) {
			s.logger.Debug("scheduler stopped, continuation dropped")
		}
	}()
}
