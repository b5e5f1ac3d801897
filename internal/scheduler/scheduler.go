// Package scheduler runs one periodic check loop per active job.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"webmonitor-engine/internal/domain"
	"webmonitor-engine/internal/events"
	"webmonitor-engine/internal/monitor"
)

// Checker runs one check of a job. The scheduler never calls it
// concurrently for the same job.
type Checker interface {
	Check(ctx context.Context, job domain.Job) error
}

type Config struct {
	// IntervalUnit is the length of one job interval step. Default: 1s.
	IntervalUnit time.Duration
	// RunImmediately checks a job as soon as it is scheduled instead of
	// after its first interval.
	RunImmediately bool
}

type entry struct {
	job  domain.Job
	stop chan struct{}
}

// Scheduler owns the set of active jobs. A job's loop keeps running while
// its entry is the one registered under its id.
type Scheduler struct {
	cfg     Config
	checker Checker
	events  events.Publisher
	logger  *slog.Logger

	mu     sync.RWMutex
	active map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, c Checker, pub events.Publisher, logger *slog.Logger) *Scheduler {
	if cfg.IntervalUnit <= 0 {
		cfg.IntervalUnit = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:     cfg,
		checker: c,
		events:  pub,
		logger:  logger,
		active:  make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule starts the check loop of job. It returns false when the job is
// already active, has no usable interval, or the scheduler is stopped.
func (s *Scheduler) Schedule(job domain.Job) bool {
	if job.Every(s.cfg.IntervalUnit) <= 0 {
		s.logger.Warn("scheduler: refusing job without interval", "job_id", job.ID)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	if _, ok := s.active[job.ID]; ok {
		s.logger.Warn("scheduler: job already scheduled", "job_id", job.ID, "job", job.Name)
		return false
	}

	e := &entry{job: job, stop: make(chan struct{})}
	s.active[job.ID] = e
	s.wg.Add(1)
	go s.loop(e)

	s.logger.Info("scheduler: scheduled", "job_id", job.ID, "job", job.Name, "every", job.Every(s.cfg.IntervalUnit))
	return true
}

// Unschedule removes the job from the active set. A check already in flight
// completes; no further check starts. It reports whether the job was active.
func (s *Scheduler) Unschedule(id string) bool {
	s.mu.Lock()
	e, ok := s.active[id]
	if ok {
		delete(s.active, id)
		close(e.stop)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Info("scheduler: unscheduled", "job_id", id)
	}
	return ok
}

func (s *Scheduler) IsActive(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[id]
	return ok
}

// Active returns the ids of all active jobs, sorted.
func (s *Scheduler) Active() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// Stop cancels every loop and in-flight check and empties the active set.
// Schedule fails afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	for id, e := range s.active {
		delete(s.active, id)
		close(e.stop)
	}
	s.mu.Unlock()
}

// Wait blocks until every loop has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Run blocks until ctx is done, then stops the scheduler and waits for all
// loops.
func (s *Scheduler) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	}
	s.Stop()
	s.Wait()
}

func (s *Scheduler) current(e *entry) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[e.job.ID] == e
}

func (s *Scheduler) loop(e *entry) {
	defer s.wg.Done()

	if s.cfg.RunImmediately && !s.tick(e) {
		return
	}

	t := time.NewTicker(e.job.Every(s.cfg.IntervalUnit))
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-e.stop:
			return
		case <-t.C:
		}
		if !s.tick(e) {
			return
		}
	}
}

// tick runs one check if e is still registered and reports whether the loop
// should continue.
func (s *Scheduler) tick(e *entry) bool {
	if !s.current(e) {
		return false
	}

	err := s.checker.Check(s.ctx, e.job)
	if err == nil {
		return true
	}

	stage := ""
	var ce *monitor.CheckError
	if errors.As(err, &ce) {
		stage = string(ce.Stage)
	}
	s.logger.Warn("scheduler: check failed", "job_id", e.job.ID, "job", e.job.Name, "stage", stage, "error", err)
	events.Emit(s.events, "", events.CheckFailed, map[string]string{
		"job_id": e.job.ID,
		"stage":  stage,
		"error":  err.Error(),
	})
	return true
}
