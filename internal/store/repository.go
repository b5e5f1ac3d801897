// Package store persists jobs and their snapshots in sqlite.
package store

import (
	"context"
	"errors"

	"webmonitor-engine/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Repository is the storage contract of the engine. Implementations must be
// safe for concurrent use.
type Repository interface {
	Jobs(ctx context.Context) ([]domain.Job, error)
	// Job returns nil, nil when no job has the id.
	Job(ctx context.Context, id string) (*domain.Job, error)
	AddJob(ctx context.Context, job domain.NewJob) (domain.Job, error)
	UpdateJob(ctx context.Context, job domain.Job) (domain.Job, error)
	DeleteJob(ctx context.Context, id string) error

	Snapshots(ctx context.Context, jobID string) ([]domain.Snapshot, error)
	// LatestSnapshot returns the most recently inserted snapshot of the job,
	// or nil, nil when there is none.
	LatestSnapshot(ctx context.Context, jobID string) (*domain.Snapshot, error)
	AddSnapshot(ctx context.Context, snap domain.NewSnapshot) (domain.Snapshot, error)
	Snapshot(ctx context.Context, id string) (*domain.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

var _ Repository = (*DB)(nil)
