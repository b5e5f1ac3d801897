package domain

import "time"

// Snapshot is one persisted filtered-content observation for a job.
// Seq is the storage insertion order; the latest snapshot of a job is the
// one with the highest Seq.
type Snapshot struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	Data      string    `json:"data"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewSnapshot struct {
	JobID string `json:"jobId"`
	Data  string `json:"data"`
}
