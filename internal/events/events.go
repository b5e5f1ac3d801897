package events

import (
	"context"
	"encoding/json"
	"time"
)

const (
	JobCreated      = "job_created"
	JobUpdated      = "job_updated"
	JobDeleted      = "job_deleted"
	SnapshotCreated = "snapshot_created"
	CheckFailed     = "check_failed"
)

// Publisher accepts encoded events. *Hub implements it.
type Publisher interface {
	Publish(evt string)
}

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// Emit encodes a version 1 event and publishes it. A nil Publisher drops it.
func Emit(p Publisher, reqID, typ string, data any) {
	if p == nil {
		return
	}
	p.Publish(MakeEvent(reqID, typ, 1, data))
}

type ctxKey struct{}

// WithRequestID tags ctx so events emitted while serving a request carry
// its id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
