package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"webmonitor-engine/internal/domain"
	"webmonitor-engine/internal/events"
	"webmonitor-engine/internal/filter"
	"webmonitor-engine/internal/notify"
	"webmonitor-engine/internal/store"
)

type fakeFetcher struct {
	mu   sync.Mutex
	body string
	err  error
}

func (f *fakeFetcher) set(body string) {
	f.mu.Lock()
	f.body = body
	f.mu.Unlock()
}

func (f *fakeFetcher) FetchText(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.body, nil
}

type dispatchCall struct {
	prev *domain.Snapshot
	next domain.Snapshot
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, job domain.Job, prev *domain.Snapshot, next domain.Snapshot) []notify.Outcome {
	d.mu.Lock()
	d.calls = append(d.calls, dispatchCall{prev, next})
	d.mu.Unlock()
	return nil
}

type failingStore struct {
	store.Repository
	addErr error
}

func (s failingStore) AddSnapshot(ctx context.Context, snap domain.NewSnapshot) (domain.Snapshot, error) {
	return domain.Snapshot{}, s.addErr
}

type recorder struct{ got []string }

func (r *recorder) Publish(evt string) { r.got = append(r.got, evt) }

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func addJob(t *testing.T, db *store.DB, filters ...domain.Filter) domain.Job {
	t.Helper()
	job, err := db.AddJob(context.Background(), domain.NewJob{
		Name:          "prices",
		URL:           "https://example.com/p",
		Interval:      60,
		Filters:       filters,
		Notifications: []domain.Notification{domain.Discord("https://discord.example/hook", "")},
	})
	if err != nil {
		t.Fatalf("add job: %v", err)
	}
	return job
}

func TestFirstCheckStoresAndNotifies(t *testing.T) {
	db := openTestDB(t)
	job := addJob(t, db, domain.CSS(".price"))
	f := &fakeFetcher{body: `<div class="price">10</div><div>x</div>`}
	d := &fakeDispatcher{}
	pub := &recorder{}
	m := New(Config{}, f, db, d, pub, nil)

	res, err := m.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Changed || res.Snapshot == nil {
		t.Fatalf("result = %+v, want changed", res)
	}
	if res.Snapshot.Data != `<div class="price">10</div>` {
		t.Errorf("data = %q", res.Snapshot.Data)
	}

	snaps, err := db.Snapshots(context.Background(), job.ID)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("snapshots = %d, %v; want 1", len(snaps), err)
	}
	if len(d.calls) != 1 || d.calls[0].prev != nil || d.calls[0].next.ID != snaps[0].ID {
		t.Fatalf("dispatch calls = %+v", d.calls)
	}
	if len(pub.got) != 1 || !strings.Contains(pub.got[0], events.SnapshotCreated) {
		t.Errorf("events = %v", pub.got)
	}
}

func TestUnchangedCheckIsNoop(t *testing.T) {
	db := openTestDB(t)
	job := addJob(t, db)
	f := &fakeFetcher{body: "same"}
	d := &fakeDispatcher{}
	m := New(Config{}, f, db, d, nil, nil)

	for i := 0; i < 3; i++ {
		if err := m.Check(context.Background(), job); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}
	snaps, _ := db.Snapshots(context.Background(), job.ID)
	if len(snaps) != 1 {
		t.Errorf("snapshots = %d, want 1", len(snaps))
	}
	if len(d.calls) != 1 {
		t.Errorf("dispatches = %d, want 1", len(d.calls))
	}
}

func TestChangePassesPreviousSnapshot(t *testing.T) {
	db := openTestDB(t)
	job := addJob(t, db)
	f := &fakeFetcher{body: "a\nb"}
	d := &fakeDispatcher{}
	m := New(Config{}, f, db, d, nil, nil)

	if err := m.Check(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	f.set("a\nc")
	if err := m.Check(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 2 {
		t.Fatalf("dispatches = %d, want 2", len(d.calls))
	}
	second := d.calls[1]
	if second.prev == nil || second.prev.Data != "a\nb" || second.next.Data != "a\nc" {
		t.Errorf("second dispatch prev=%v next=%q", second.prev, second.next.Data)
	}
}

func TestEmptyFiltersStoreRawBody(t *testing.T) {
	db := openTestDB(t)
	job := addJob(t, db)
	raw := "<html><body><p>hi</p></body></html>"
	m := New(Config{}, &fakeFetcher{body: raw}, db, nil, nil, nil)

	res, err := m.Run(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if res.Snapshot.Data != raw {
		t.Errorf("data = %q, want raw body", res.Snapshot.Data)
	}
}

func TestFetchFailure(t *testing.T) {
	db := openTestDB(t)
	job := addJob(t, db)
	cause := errors.New("connection refused")
	d := &fakeDispatcher{}
	m := New(Config{}, &fakeFetcher{err: cause}, db, d, nil, nil)

	err := m.Check(context.Background(), job)
	if !errors.Is(err, ErrFetch) || !errors.Is(err, cause) {
		t.Fatalf("err = %v, want ErrFetch wrapping cause", err)
	}
	var ce *CheckError
	if !errors.As(err, &ce) || ce.Stage != StageFetch || ce.JobID != job.ID {
		t.Errorf("check error = %+v", ce)
	}
	if snaps, _ := db.Snapshots(context.Background(), job.ID); len(snaps) != 0 {
		t.Errorf("snapshots = %d, want 0", len(snaps))
	}
	if len(d.calls) != 0 {
		t.Error("dispatched after fetch failure")
	}
}

func TestFilterFailure(t *testing.T) {
	db := openTestDB(t)
	job := addJob(t, db, domain.CSS("div["))
	m := New(Config{}, &fakeFetcher{body: "<div></div>"}, db, nil, nil, nil)

	err := m.Check(context.Background(), job)
	if !errors.Is(err, ErrFilter) || !errors.Is(err, filter.ErrSelectorParse) {
		t.Fatalf("err = %v, want ErrFilter and ErrSelectorParse", err)
	}
}

func TestStorageWriteFailureSkipsNotify(t *testing.T) {
	db := openTestDB(t)
	job := addJob(t, db)
	d := &fakeDispatcher{}
	s := failingStore{Repository: db, addErr: errors.New("disk full")}
	m := New(Config{}, &fakeFetcher{body: "x"}, s, d, nil, nil)

	err := m.Check(context.Background(), job)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	if len(d.calls) != 0 {
		t.Error("notified although the snapshot was not stored")
	}
}

type slowFetcher struct{}

func (slowFetcher) FetchText(ctx context.Context, url string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestFetchTimeout(t *testing.T) {
	db := openTestDB(t)
	job := addJob(t, db)
	m := New(Config{FetchTimeout: 10 * time.Millisecond}, slowFetcher{}, db, nil, nil, nil)

	err := m.Check(context.Background(), job)
	if !errors.Is(err, ErrFetch) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ErrFetch with deadline", err)
	}
}
