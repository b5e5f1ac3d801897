// Package monitor runs one check of a job: fetch, filter, compare with the
// latest snapshot, persist and notify.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"webmonitor-engine/internal/change"
	"webmonitor-engine/internal/domain"
	"webmonitor-engine/internal/events"
	"webmonitor-engine/internal/fetch"
	"webmonitor-engine/internal/filter"
	"webmonitor-engine/internal/notify"
)

var (
	ErrFetch   = errors.New("fetch failed")
	ErrFilter  = errors.New("filter failed")
	ErrStorage = errors.New("storage failed")
)

type Stage string

const (
	StageFetch   Stage = "fetch"
	StageFilter  Stage = "filter"
	StageStorage Stage = "storage"
)

// CheckError reports the stage that aborted a check.
// errors.Is matches the stage sentinel as well as the underlying cause.
type CheckError struct {
	JobID string
	Stage Stage
	Err   error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %s: %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *CheckError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *CheckError) sentinel() error {
	switch e.Stage {
	case StageFetch:
		return ErrFetch
	case StageFilter:
		return ErrFilter
	default:
		return ErrStorage
	}
}

// SnapshotStore is the part of the repository a check needs.
type SnapshotStore interface {
	LatestSnapshot(ctx context.Context, jobID string) (*domain.Snapshot, error)
	AddSnapshot(ctx context.Context, snap domain.NewSnapshot) (domain.Snapshot, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, job domain.Job, prev *domain.Snapshot, next domain.Snapshot) []notify.Outcome
}

type Config struct {
	// FetchTimeout bounds the fetch step. Default: 30s.
	FetchTimeout time.Duration
	// StorageTimeout bounds each storage call. Default: 10s.
	StorageTimeout time.Duration
}

type Monitor struct {
	cfg      Config
	fetcher  fetch.Fetcher
	store    SnapshotStore
	notifier Dispatcher
	events   events.Publisher
	logger   *slog.Logger
}

// Result describes a completed check. Snapshot is set only when Changed.
type Result struct {
	Changed  bool             `json:"changed"`
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`
}

// New builds a Monitor. pub and logger may be nil.
func New(cfg Config, f fetch.Fetcher, s SnapshotStore, d Dispatcher, pub events.Publisher, logger *slog.Logger) *Monitor {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{cfg: cfg, fetcher: f, store: s, notifier: d, events: pub, logger: logger}
}

// Check runs one check of job and discards the result.
func (m *Monitor) Check(ctx context.Context, job domain.Job) error {
	_, err := m.Run(ctx, job)
	return err
}

// Run executes the pipeline. Notification failures never fail the check.
func (m *Monitor) Run(ctx context.Context, job domain.Job) (Result, error) {
	fail := func(stage Stage, err error) (Result, error) {
		return Result{}, &CheckError{JobID: job.ID, Stage: stage, Err: err}
	}

	fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	body, err := m.fetcher.FetchText(fctx, job.URL)
	cancel()
	if err != nil {
		return fail(StageFetch, err)
	}

	for _, f := range job.Filters {
		if filter.Unsupported(f) {
			m.logger.Debug("monitor: filter not evaluated, passing input through", "job_id", job.ID, "type", f.Type)
			break
		}
	}
	data, err := filter.Apply(body, job.Filters)
	if err != nil {
		return fail(StageFilter, err)
	}

	sctx, cancel := context.WithTimeout(ctx, m.cfg.StorageTimeout)
	prev, err := m.store.LatestSnapshot(sctx, job.ID)
	cancel()
	if err != nil {
		return fail(StageStorage, err)
	}

	var prevData *string
	if prev != nil {
		prevData = &prev.Data
	}
	if !change.HasChanged(prevData, data) {
		m.logger.Debug("monitor: unchanged", "job_id", job.ID)
		return Result{}, nil
	}

	sctx, cancel = context.WithTimeout(ctx, m.cfg.StorageTimeout)
	snap, err := m.store.AddSnapshot(sctx, domain.NewSnapshot{JobID: job.ID, Data: data})
	cancel()
	if err != nil {
		return fail(StageStorage, err)
	}
	m.logger.Info("monitor: change detected", "job_id", job.ID, "job", job.Name, "snapshot_id", snap.ID)
	events.Emit(m.events, "", events.SnapshotCreated, snap)

	if m.notifier != nil && len(job.Notifications) > 0 {
		m.notifier.Dispatch(ctx, job, prev, snap)
	}
	return Result{Changed: true, Snapshot: &snap}, nil
}
