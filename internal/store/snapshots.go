package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"webmonitor-engine/internal/domain"
)

const snapshotColumns = `seq, id, job_id, data, created_at`

func scanSnapshot(r rowScanner) (domain.Snapshot, error) {
	var (
		s         domain.Snapshot
		createdAt string
	)
	if err := r.Scan(&s.Seq, &s.ID, &s.JobID, &s.Data, &createdAt); err != nil {
		return domain.Snapshot{}, err
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return s, nil
}

func (d *DB) querySnapshot(ctx context.Context, query string, args ...any) (*domain.Snapshot, error) {
	s, err := scanSnapshot(d.Pool.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Snapshots returns the job's snapshots, oldest first.
func (d *DB) Snapshots(ctx context.Context, jobID string) ([]domain.Snapshot, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE job_id = ? ORDER BY seq;`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots of job %s: %w", jobID, err)
	}
	defer rows.Close()

	out := []domain.Snapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) LatestSnapshot(ctx context.Context, jobID string) (*domain.Snapshot, error) {
	s, err := d.querySnapshot(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE job_id = ? ORDER BY seq DESC LIMIT 1;`, jobID)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot of job %s: %w", jobID, err)
	}
	return s, nil
}

func (d *DB) Snapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	s, err := d.querySnapshot(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE id = ? LIMIT 1;`, id)
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return s, nil
}

func (d *DB) AddSnapshot(ctx context.Context, ns domain.NewSnapshot) (domain.Snapshot, error) {
	if ns.JobID == "" {
		return domain.Snapshot{}, errors.New("add snapshot: job id is required")
	}
	id, err := newID()
	if err != nil {
		return domain.Snapshot{}, err
	}
	created := time.Now().UTC()

	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO snapshots(id, job_id, data, created_at)
VALUES(?,?,?,?);`,
		id, ns.JobID, ns.Data, created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	return domain.Snapshot{
		ID:        id,
		JobID:     ns.JobID,
		Data:      ns.Data,
		Seq:       seq,
		CreatedAt: created,
	}, nil
}

func (d *DB) DeleteSnapshot(ctx context.Context, id string) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete snapshot %s: %w", id, ErrNotFound)
	}
	return nil
}

// PruneSnapshots keeps the newest keep snapshots of every job and deletes
// the rest. keep <= 0 is a no-op.
func (d *DB) PruneSnapshots(ctx context.Context, keep int) (deleted int64, err error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := d.Pool.ExecContext(ctx, `
DELETE FROM snapshots
WHERE seq IN (
  SELECT seq FROM (
    SELECT seq, ROW_NUMBER() OVER (PARTITION BY job_id ORDER BY seq DESC) AS rn
    FROM snapshots
  ) WHERE rn > ?
);`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
