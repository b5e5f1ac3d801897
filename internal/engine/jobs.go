package engine

import (
	"context"
	"fmt"
	"sync"

	"webmonitor-engine/internal/domain"
	"webmonitor-engine/internal/events"
	"webmonitor-engine/internal/monitor"
	"webmonitor-engine/internal/store"
)

// AddJob stores the job and schedules it.
func (e *Engine) AddJob(ctx context.Context, nj domain.NewJob) (domain.Job, error) {
	j, err := e.repo.AddJob(ctx, nj)
	if err != nil {
		return domain.Job{}, err
	}
	e.schedule(j)
	events.Emit(e.events, events.RequestIDFrom(ctx), events.JobCreated, j)
	return j, nil
}

func (e *Engine) Job(ctx context.Context, id string) (*domain.Job, error) {
	return e.repo.Job(ctx, id)
}

func (e *Engine) Jobs(ctx context.Context) ([]domain.Job, error) {
	return e.repo.Jobs(ctx)
}

// UpdateJob stores the new definition and restarts the job's loop with it.
func (e *Engine) UpdateJob(ctx context.Context, j domain.Job) (domain.Job, error) {
	updated, err := e.repo.UpdateJob(ctx, j)
	if err != nil {
		return domain.Job{}, err
	}
	if !e.passive {
		e.sched.Unschedule(updated.ID)
	}
	e.schedule(updated)
	events.Emit(e.events, events.RequestIDFrom(ctx), events.JobUpdated, updated)
	return updated, nil
}

// DeleteJob unschedules the job, waits for a check in flight, then deletes
// the job with its snapshots.
func (e *Engine) DeleteJob(ctx context.Context, id string) error {
	if !e.passive {
		e.sched.Unschedule(id)
	}
	unlock := e.locks.lock(id)
	defer unlock()
	if err := e.repo.DeleteJob(ctx, id); err != nil {
		return err
	}
	events.Emit(e.events, events.RequestIDFrom(ctx), events.JobDeleted, map[string]string{"id": id})
	return nil
}

func (e *Engine) schedule(j domain.Job) {
	if e.passive {
		return
	}
	e.sched.Schedule(j)
}

func (e *Engine) Snapshots(ctx context.Context, jobID string) ([]domain.Snapshot, error) {
	return e.repo.Snapshots(ctx, jobID)
}

func (e *Engine) Snapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	return e.repo.Snapshot(ctx, id)
}

func (e *Engine) LatestSnapshot(ctx context.Context, jobID string) (*domain.Snapshot, error) {
	return e.repo.LatestSnapshot(ctx, jobID)
}

func (e *Engine) DeleteSnapshot(ctx context.Context, id string) error {
	return e.repo.DeleteSnapshot(ctx, id)
}

// PruneSnapshots keeps the newest keep snapshots of every job.
func (e *Engine) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be >= 1, got %d", keep)
	}
	return e.db.PruneSnapshots(ctx, keep)
}

// CheckNow runs one check of the job outside its schedule.
func (e *Engine) CheckNow(ctx context.Context, id string) (monitor.Result, error) {
	unlock := e.locks.lock(id)
	defer unlock()
	j, err := e.repo.Job(ctx, id)
	if err != nil {
		return monitor.Result{}, err
	}
	if j == nil {
		return monitor.Result{}, store.ErrNotFound
	}
	return e.mon.Run(ctx, *j)
}

// Check is the scheduler's entry point. Checks of one job are serialized
// with CheckNow and DeleteJob; a tick that waited out a delete or update
// is dropped.
func (e *Engine) Check(ctx context.Context, j domain.Job) error {
	unlock := e.locks.lock(j.ID)
	defer unlock()
	if !e.sched.IsActive(j.ID) {
		return nil
	}
	return e.mon.Check(ctx, j)
}

type jobLocks struct {
	mu sync.Mutex
	m  map[string]*jobLock
}

type jobLock struct {
	mu   sync.Mutex
	refs int
}

func (l *jobLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*jobLock)
	}
	jl, ok := l.m[id]
	if !ok {
		jl = &jobLock{}
		l.m[id] = jl
	}
	jl.refs++
	l.mu.Unlock()

	jl.mu.Lock()
	return func() {
		jl.mu.Unlock()
		l.mu.Lock()
		jl.refs--
		if jl.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
