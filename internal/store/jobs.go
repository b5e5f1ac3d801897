package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"webmonitor-engine/internal/domain"
)

const jobColumns = `id, name, url, interval_seconds, show_diff, filters, notifications`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (domain.Job, error) {
	var (
		j                   domain.Job
		interval            int64
		showDiff            int
		filtersJSON, notifs string
	)
	if err := r.Scan(&j.ID, &j.Name, &j.URL, &interval, &showDiff, &filtersJSON, &notifs); err != nil {
		return domain.Job{}, err
	}
	j.Interval = uint64(interval)
	j.ShowDiff = showDiff != 0
	if err := json.Unmarshal([]byte(filtersJSON), &j.Filters); err != nil {
		return domain.Job{}, fmt.Errorf("decode filters of job %s: %w", j.ID, err)
	}
	if err := json.Unmarshal([]byte(notifs), &j.Notifications); err != nil {
		return domain.Job{}, fmt.Errorf("decode notifications of job %s: %w", j.ID, err)
	}
	return j, nil
}

func encodeJob(j domain.NewJob) (filters, notifs string, err error) {
	if j.Filters == nil {
		j.Filters = []domain.Filter{}
	}
	if j.Notifications == nil {
		j.Notifications = []domain.Notification{}
	}
	fb, err := json.Marshal(j.Filters)
	if err != nil {
		return "", "", fmt.Errorf("encode filters: %w", err)
	}
	nb, err := json.Marshal(j.Notifications)
	if err != nil {
		return "", "", fmt.Errorf("encode notifications: %w", err)
	}
	return string(fb), string(nb), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Jobs returns all jobs in insertion order.
func (d *DB) Jobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := d.Pool.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY seq;`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := []domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) Job(ctx context.Context, id string) (*domain.Job, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ? LIMIT 1;`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &j, nil
}

func (d *DB) AddJob(ctx context.Context, nj domain.NewJob) (domain.Job, error) {
	if err := nj.Validate(); err != nil {
		return domain.Job{}, err
	}
	filters, notifs, err := encodeJob(nj)
	if err != nil {
		return domain.Job{}, err
	}
	id, err := newID()
	if err != nil {
		return domain.Job{}, err
	}

	ts := now()
	_, err = d.Pool.ExecContext(ctx, `
INSERT INTO jobs(id, name, url, interval_seconds, show_diff, filters, notifications, created_at, updated_at)
VALUES(?,?,?,?,?,?,?,?,?);`,
		id, nj.Name, nj.URL, int64(nj.Interval), boolInt(nj.ShowDiff), filters, notifs, ts, ts,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("insert job: %w", err)
	}
	return nj.WithID(id), nil
}

func (d *DB) UpdateJob(ctx context.Context, j domain.Job) (domain.Job, error) {
	if err := j.Validate(); err != nil {
		return domain.Job{}, err
	}
	filters, notifs, err := encodeJob(j.Insertable())
	if err != nil {
		return domain.Job{}, err
	}

	res, err := d.Pool.ExecContext(ctx, `
UPDATE jobs
SET name = ?, url = ?, interval_seconds = ?, show_diff = ?, filters = ?, notifications = ?, updated_at = ?
WHERE id = ?;`,
		j.Name, j.URL, int64(j.Interval), boolInt(j.ShowDiff), filters, notifs, now(), j.ID,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("update job %s: %w", j.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Job{}, fmt.Errorf("update job %s: %w", j.ID, ErrNotFound)
	}
	return j, nil
}

// DeleteJob removes the job and every snapshot recorded for it.
func (d *DB) DeleteJob(ctx context.Context, id string) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete job %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE job_id = ?;`, id); err != nil {
		return fmt.Errorf("delete snapshots of job %s: %w", id, err)
	}
	return tx.Commit()
}
