// Package notify fans a change event out to a job's notification targets.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"webmonitor-engine/internal/domain"
)

// Notifier delivers one change event to one target.
type Notifier interface {
	Notify(ctx context.Context, job domain.Job, prev *domain.Snapshot, next domain.Snapshot) error
}

// Error is a delivery failure for a single target.
type Error struct {
	Index int
	Type  domain.NotificationType
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notification[%d] %s: %v", e.Index, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Outcome is the result of one target send. Err is nil on success.
type Outcome struct {
	Index int
	Type  domain.NotificationType
	Err   error
}

type Config struct {
	// DiscordTimeout bounds one webhook call. Default: 10s.
	DiscordTimeout time.Duration
	Email          EmailConfig
}

type Dispatcher struct {
	discord *http.Client
	email   EmailConfig
	logger  *slog.Logger

	// build maps a target to its Notifier; replaced in tests.
	build func(n domain.Notification) (Notifier, error)
}

func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.DiscordTimeout <= 0 {
		cfg.DiscordTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		discord: &http.Client{Timeout: cfg.DiscordTimeout},
		email:   cfg.Email,
		logger:  logger,
	}
	d.build = d.notifierFor
	return d
}

func (d *Dispatcher) notifierFor(n domain.Notification) (Notifier, error) {
	switch {
	case n.Type == domain.NotifyDiscord && n.Discord != nil:
		return &DiscordNotifier{Options: *n.Discord, Client: d.discord}, nil
	case n.Type == domain.NotifyEmail && n.Email != nil:
		return &EmailNotifier{Options: *n.Email, Config: d.email, Logger: d.logger}, nil
	default:
		return nil, fmt.Errorf("unsupported notification type %q", n.Type)
	}
}

// Dispatch sends to every target of job concurrently and waits for all of
// them. Failures are logged per target and returned as outcomes; they never
// abort the other sends.
func (d *Dispatcher) Dispatch(ctx context.Context, job domain.Job, prev *domain.Snapshot, next domain.Snapshot) []Outcome {
	outcomes := make([]Outcome, len(job.Notifications))

	var g errgroup.Group
	for i, n := range job.Notifications {
		g.Go(func() error {
			err := d.send(ctx, job, n, prev, next)
			if err != nil {
				err = &Error{Index: i, Type: n.Type, Err: err}
				d.logger.Warn("notify: send failed", "job_id", job.ID, "job", job.Name, "target", i, "type", n.Type, "error", err)
			} else {
				d.logger.Debug("notify: sent", "job_id", job.ID, "target", i, "type", n.Type)
			}
			outcomes[i] = Outcome{Index: i, Type: n.Type, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, job domain.Job, n domain.Notification, prev *domain.Snapshot, next domain.Snapshot) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	nt, err := d.build(n)
	if err != nil {
		return err
	}
	return nt.Notify(ctx, job, prev, next)
}
