package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task runs fn on a fixed interval until stopped. Each Task owns its own
// ticker, so a slow or failing cadence never delays another one.
//
// fn is called from the task goroutine and should return promptly; callers
// that do network work hand it off to their own goroutine.
type Task struct {
	name      string
	interval  time.Duration
	fn        func(ctx context.Context)
	immediate bool
	logger    *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

type Option func(*Task)

// Immediately makes the task fire once on Start before the first tick.
func Immediately() Option {
	return func(t *Task) { t.immediate = true }
}

func Every(name string, interval time.Duration, fn func(ctx context.Context), logger *slog.Logger, opts ...Option) *Task {
	t := &Task{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Task) Name() string { return t.name }

// Start launches the task. Calling Start on a running task is a no-op.
func (t *Task) Start(parent context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	t.running = true

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if t.immediate {
			t.fire(ctx)
		}
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.fire(ctx)
			}
		}
	}()
}

// Stop cancels the task and waits for its goroutine to exit.
func (t *Task) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.cancel()
	t.running = false
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Task) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("scheduler: task panicked", "task", t.name, "panic", r)
		}
	}()
	t.fn(ctx)
}

// Group starts and stops a set of tasks together.
type Group struct {
	tasks []*Task
}

func NewGroup(tasks ...*Task) *Group {
	return &Group{tasks: tasks}
}

func (g *Group) Add(t *Task) {
	g.tasks = append(g.tasks, t)
}

func (g *Group) Start(ctx context.Context) {
	for _, t := range g.tasks {
		t.Start(ctx)
	}
}

func (g *Group) Stop() {
	for _, t := range g.tasks {
		t.Stop()
	}
}
