package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownTask is returned by RunNow for unregistered names.
var ErrUnknownTask = errors.New("scheduler: unknown task")

// TaskFn is one run of a periodic task. ctx is cancelled when the scheduler stops.
type TaskFn func(ctx context.Context) error

// TaskInfo describes a registered task.
type TaskInfo struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Runs     int64         `json:"runs"`
	LastRun  time.Time     `json:"last_run,omitzero"`
	LastErr  string        `json:"last_error,omitempty"`
}

type task struct {
	name     string
	interval time.Duration
	fn       TaskFn
	stopCh   chan struct{}
	runMu    sync.Mutex

	mu      sync.Mutex
	runs    int64
	lastRun time.Time
	lastErr error
}

// Scheduler runs named tasks on fixed intervals.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a Scheduler.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// AddTicker registers fn to run every interval, replacing any task of the same name.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	if old, ok := s.tasks[name]; ok {
		close(old.stopCh)
	}
	t := &task{name: name, interval: interval, fn: fn, stopCh: make(chan struct{})}
	s.tasks[name] = t

	s.wg.Add(1)
	go s.loop(t)
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

func (s *Scheduler) loop(t *task) {
	defer s.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.run(t)
		case <-t.stopCh:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

// run executes one pass of t; passes of the same task never overlap.
func (s *Scheduler) run(t *task) (err error) {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.logger.Error("scheduler task panicked", zap.String("task", t.name), zap.Any("recover", r))
		}
		t.mu.Lock()
		t.runs++
		t.lastRun = time.Now()
		t.lastErr = err
		t.mu.Unlock()
	}()
	err = t.fn(s.ctx)
	if err != nil {
		s.logger.Warn("scheduler task failed", zap.String("task", t.name), zap.Error(err))
	}
	return err
}

// RunNow runs the named task synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.run(t)
}

// Remove stops and forgets the named task.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		close(t.stopCh)
		delete(s.tasks, name)
	}
}

// Stop cancels every task and waits for running passes to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Tasks lists registered tasks by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	list := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		list = append(list, t)
	}
	s.mu.Unlock()

	out := make([]TaskInfo, 0, len(list))
	for _, t := range list {
		t.mu.Lock()
		info := TaskInfo{Name: t.name, Interval: t.interval, Runs: t.runs, LastRun: t.lastRun}
		if t.lastErr != nil {
			info.LastErr = t.lastErr.Error()
		}
		t.mu.Unlock()
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
