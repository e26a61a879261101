// Package scheduler runs named background tasks on cron schedules, such as
// refreshing the stage registry snapshot used by a long-lived server.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Func is a scheduled task body.
type Func func(ctx context.Context) error

type task struct {
	name     string
	spec     string
	schedule cron.Schedule
	fn       Func

	nextRun    time.Time
	lastRun    time.Time
	lastStatus string
}

// Status describes a registered task.
type Status struct {
	Name       string    `json:"name"`
	Spec       string    `json:"spec"`
	NextRun    time.Time `json:"next_run"`
	LastRun    time.Time `json:"last_run,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
}

// Scheduler checks its tasks on every tick and runs those that are due.
// Each task runs at most once at a time.
type Scheduler struct {
	parser   cron.Parser
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	tasksMu sync.Mutex
	tasks   map[string]*task

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// NewScheduler creates a Scheduler that ticks every interval; zero means
// every 30 seconds. logger may be nil.
func NewScheduler(interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:   logger,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		tasks:    make(map[string]*task),
		inflight: make(map[string]struct{}),
	}
}

// Add registers fn under name with a five-field cron spec or a descriptor
// such as "@hourly" or "@every 5m". Re-adding a name replaces the task.
func (s *Scheduler) Add(spec, name string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("task %q has no function", name)
	}
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("parse cron expression %q: %w", spec, err)
	}

	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	s.tasks[name] = &task{
		name:     name,
		spec:     spec,
		schedule: schedule,
		fn:       fn,
		nextRun:  schedule.Next(s.now()),
	}
	return nil
}

// Remove unregisters a task. It reports whether the task existed.
func (s *Scheduler) Remove(name string) bool {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	_, ok := s.tasks[name]
	delete(s.tasks, name)
	return ok
}

// Tasks returns the status of every task, ordered by name.
func (s *Scheduler) Tasks() []Status {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()

	out := make([]Status, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, Status{
			Name: t.name, Spec: t.spec, NextRun: t.nextRun,
			LastRun: t.lastRun, LastStatus: t.lastStatus,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start launches the background loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every task whose next run is not after now.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	s.tasksMu.Lock()
	var due []*task
	for _, t := range s.tasks {
		if !t.nextRun.After(now) {
			due = append(due, t)
		}
	}
	s.tasksMu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].name < due[j].name })
	for _, t := range due {
		if !s.tryAcquire(t.name) {
			continue
		}
		s.runTask(ctx, t, now)
		s.releaseTask(t.name)
	}
}

// RunNow runs the named task immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.tasksMu.Lock()
	t, ok := s.tasks[name]
	s.tasksMu.Unlock()
	if !ok {
		return fmt.Errorf("task %q not registered", name)
	}
	if !s.tryAcquire(name) {
		return fmt.Errorf("task %q is already running", name)
	}
	defer s.releaseTask(name)
	return s.runTask(ctx, t, s.now())
}

func (s *Scheduler) runTask(ctx context.Context, t *task, now time.Time) error {
	s.logger.DebugContext(ctx, "running scheduled task", slog.String("task", t.name))

	err := t.fn(ctx)
	status := "success"
	if err != nil {
		status = "error"
		s.logger.ErrorContext(ctx, "scheduled task failed",
			slog.String("task", t.name),
			slog.String("error", err.Error()),
		)
	}

	s.tasksMu.Lock()
	t.lastRun = now
	t.lastStatus = status
	t.nextRun = t.schedule.Next(now)
	s.tasksMu.Unlock()
	return err
}

// tryAcquire marks the task in flight unless it already is.
func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *Scheduler) releaseTask(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop cancels the loop and waits for an in-progress tick to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
