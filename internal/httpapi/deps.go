package httpapi

import (
	"context"
	"log/slog"
	"sync/atomic"

	"webmonitor-engine/internal/config"
	"webmonitor-engine/internal/domain"
	"webmonitor-engine/internal/events"
	"webmonitor-engine/internal/monitor"
)

// Engine is the part of *engine.Engine the API serves.
type Engine interface {
	AddJob(ctx context.Context, nj domain.NewJob) (domain.Job, error)
	Job(ctx context.Context, id string) (*domain.Job, error)
	Jobs(ctx context.Context) ([]domain.Job, error)
	UpdateJob(ctx context.Context, j domain.Job) (domain.Job, error)
	DeleteJob(ctx context.Context, id string) error
	CheckNow(ctx context.Context, id string) (monitor.Result, error)

	Snapshots(ctx context.Context, jobID string) ([]domain.Snapshot, error)
	LatestSnapshot(ctx context.Context, jobID string) (*domain.Snapshot, error)
	Snapshot(ctx context.Context, id string) (*domain.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error

	Active() []string
}

// Checkpointer flushes the sqlite WAL. *store.DB implements it.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

type Deps struct {
	Engine Engine
	DB     Checkpointer

	Hub *events.Hub

	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// SetSMTPPassword stores the SMTP password under a keyring account;
	// secrets.SetSMTPPassword unless replaced in tests.
	SetSMTPPassword func(account, password string) error

	Logger *slog.Logger
}
