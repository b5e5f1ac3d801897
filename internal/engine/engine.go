// Package engine wires storage, fetching, notification and scheduling into
// the running webmonitor service.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"webmonitor-engine/internal/config"
	"webmonitor-engine/internal/domain"
	"webmonitor-engine/internal/events"
	"webmonitor-engine/internal/fetch"
	"webmonitor-engine/internal/monitor"
	"webmonitor-engine/internal/notify"
	"webmonitor-engine/internal/scheduler"
	"webmonitor-engine/internal/secrets"
	"webmonitor-engine/internal/store"
)

// ErrLocked means another process already runs a scheduling engine on the
// same data directory.
var ErrLocked = errors.New("data directory is locked by another webmonitor process")

const lockFile = "webmonitor.lock"

// Deps are optional collaborators. Zero values get production defaults.
type Deps struct {
	Logger *slog.Logger
	Events events.Publisher

	// Fetcher replaces the HTTP fetcher.
	Fetcher fetch.Fetcher
	// SMTPPassword replaces the keyring lookup of the SMTP password.
	SMTPPassword func() (string, error)

	// Passive engines schedule nothing and take no lock. The CLI uses one
	// to read and edit jobs next to a running server.
	Passive bool
}

type Engine struct {
	cfg    config.Config
	db     *store.DB
	repo   store.Repository
	mon    *monitor.Monitor
	sched  *scheduler.Scheduler
	events events.Publisher
	logger *slog.Logger
	lock   *flock.Flock

	locks   jobLocks
	passive bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// New opens the store under cfg.App.DataDir, imports the configured seed jobs
// and schedules every stored job.
func New(ctx context.Context, cfg config.Config, deps Deps) (*Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dataDir := cfg.App.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	var lock *flock.Flock
	if !deps.Passive {
		lock = flock.New(filepath.Join(dataDir, lockFile))
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock data dir: %w", err)
		}
		if !ok {
			return nil, ErrLocked
		}
	}
	unlock := func() {
		if lock != nil {
			_ = lock.Unlock()
		}
	}

	dbPath := cfg.DBPath(dataDir)
	db, err := store.Open(dbPath)
	if err != nil {
		unlock()
		return nil, err
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = fetch.New(fetch.Config{
			Timeout:     cfg.Fetch.Timeout,
			UserAgent:   cfg.Fetch.UserAgent,
			MaxBytes:    cfg.Fetch.MaxBytes,
			RatePerHost: cfg.Fetch.RatePerHost,
			Burst:       cfg.Fetch.Burst,
		})
	}

	password := deps.SMTPPassword
	if password == nil {
		account := cfg.SMTPKeyringAccount()
		password = func() (string, error) { return secrets.GetSMTPPassword(account) }
	}
	dispatcher := notify.NewDispatcher(notify.Config{
		DiscordTimeout: cfg.Notify.Discord.Timeout,
		Email: notify.EmailConfig{
			Host:     cfg.Notify.Email.SMTPHost,
			Port:     cfg.Notify.Email.SMTPPort,
			Username: cfg.Notify.Email.Username,
			Password: password,
		},
	}, logger)

	mon := monitor.New(monitor.Config{
		FetchTimeout:   cfg.Fetch.Timeout,
		StorageTimeout: cfg.Storage.Timeout,
	}, fetcher, db, dispatcher, deps.Events, logger)

	e := &Engine{
		cfg:     cfg,
		db:      db,
		repo:    db,
		mon:     mon,
		events:  deps.Events,
		logger:  logger,
		lock:    lock,
		passive: deps.Passive,
	}
	e.sched = scheduler.New(scheduler.Config{
		IntervalUnit:   cfg.Scheduler.IntervalUnit,
		RunImmediately: cfg.Scheduler.RunImmediately,
	}, e, deps.Events, logger)

	if err := e.start(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	logger.Info("engine: started", "data_dir", dataDir, "db", dbPath, "jobs", e.sched.Len(), "passive", deps.Passive)
	return e, nil
}

func (e *Engine) start(ctx context.Context) error {
	if e.passive {
		return nil
	}
	if err := e.importSeedJobs(ctx); err != nil {
		return fmt.Errorf("import seed jobs: %w", err)
	}

	jobs, err := e.repo.Jobs(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !e.sched.Schedule(j) {
				e.logger.Warn("engine: job not scheduled", "job_id", j.ID, "job", j.Name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	hctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		scheduler.Every(hctx, time.Hour, "storage housekeeping", e.housekeeping, e.logger)
	}()
	return nil
}

// importSeedJobs stores configured jobs that are not stored yet, matching by
// name and canonical URL.
func (e *Engine) importSeedJobs(ctx context.Context) error {
	if len(e.cfg.Jobs) == 0 {
		return nil
	}
	existing, err := e.repo.Jobs(ctx)
	if err != nil {
		return err
	}
	stored := func(nj domain.NewJob) bool {
		for _, j := range existing {
			if domain.SameTarget(j.Name, j.URL, nj.Name, nj.URL) {
				return true
			}
		}
		return false
	}
	for i, nj := range e.cfg.Jobs {
		if stored(nj) {
			continue
		}
		j, err := e.repo.AddJob(ctx, nj)
		if err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
		existing = append(existing, j)
		e.logger.Info("engine: imported job", "job_id", j.ID, "job", j.Name)
	}
	return nil
}

func (e *Engine) housekeeping(ctx context.Context) error {
	if keep := e.cfg.Storage.KeepSnapshots; keep > 0 {
		n, err := e.db.PruneSnapshots(ctx, keep)
		if err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
		if n > 0 {
			e.logger.Info("engine: pruned snapshots", "deleted", n, "keep", keep)
		}
	}
	return e.db.Checkpoint(ctx)
}

// Close stops the scheduler, waits for in-flight checks, closes the store
// and releases the data-dir lock.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		e.sched.Stop()
		e.sched.Wait()
		e.wg.Wait()
		err = e.db.Close()
		if e.lock != nil {
			if uerr := e.lock.Unlock(); uerr != nil && err == nil {
				err = uerr
			}
		}
	})
	return err
}

// Active returns the ids of scheduled jobs.
func (e *Engine) Active() []string { return e.sched.Active() }

func (e *Engine) Passive() bool { return e.passive }

// DB exposes the store for maintenance endpoints.
func (e *Engine) DB() *store.DB { return e.db }
