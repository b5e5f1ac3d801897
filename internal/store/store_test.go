package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"webmonitor-engine/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleJob(name string) domain.NewJob {
	return domain.NewJob{
		Name:     name,
		URL:      "https://example.com/" + name,
		Interval: 60,
		ShowDiff: true,
		Filters: []domain.Filter{
			domain.CSS("div.price"),
			domain.XPath("//p"),
			domain.HTML2Text(),
		},
		Notifications: []domain.Notification{
			domain.Discord("https://discord.example/hook", "@here"),
			domain.Email("bot@example.com", "me@example.com", "changed"),
		},
	}
}

func TestJobRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	added, err := db.AddJob(ctx, sampleJob("a"))
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if added.ID == "" {
		t.Fatal("AddJob did not assign an id")
	}

	got, err := db.Job(ctx, added.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if got == nil {
		t.Fatal("Job: not found")
	}
	if got.Name != "a" || got.Interval != 60 || !got.ShowDiff {
		t.Errorf("job fields = %+v", got)
	}
	wantTypes := []domain.FilterType{domain.FilterCSS, domain.FilterXPath, domain.FilterHTML2Text}
	if len(got.Filters) != len(wantTypes) {
		t.Fatalf("filters: got %d, want %d", len(got.Filters), len(wantTypes))
	}
	for i, ft := range wantTypes {
		if got.Filters[i].Type != ft {
			t.Errorf("filters[%d] = %s, want %s", i, got.Filters[i].Type, ft)
		}
	}
	if len(got.Notifications) != 2 || got.Notifications[0].Discord == nil || got.Notifications[1].Email == nil {
		t.Fatalf("notifications not preserved in order: %+v", got.Notifications)
	}
	if got.Notifications[0].Discord.UserMentions != "@here" {
		t.Errorf("mentions = %q", got.Notifications[0].Discord.UserMentions)
	}
}

func TestJobMissing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	got, err := db.Job(ctx, "nope")
	if err != nil || got != nil {
		t.Fatalf("Job(missing) = %v, %v; want nil, nil", got, err)
	}
	if err := db.DeleteJob(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteJob(missing) = %v, want ErrNotFound", err)
	}
	_, err = db.UpdateJob(ctx, sampleJob("x").WithID("nope"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestAddJobRejectsInvalid(t *testing.T) {
	db := openTestDB(t)
	nj := sampleJob("bad")
	nj.Interval = 0
	if _, err := db.AddJob(context.Background(), nj); err == nil {
		t.Fatal("AddJob accepted interval 0")
	}
}

func TestUpdateAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a, _ := db.AddJob(ctx, sampleJob("a"))
	b, _ := db.AddJob(ctx, sampleJob("b"))

	a.Name = "renamed"
	a.Filters = nil
	if _, err := db.UpdateJob(ctx, a); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	jobs, err := db.Jobs(ctx)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs: got %d, want 2", len(jobs))
	}
	if jobs[0].ID != a.ID || jobs[1].ID != b.ID {
		t.Errorf("jobs not in insertion order")
	}
	if jobs[0].Name != "renamed" || len(jobs[0].Filters) != 0 {
		t.Errorf("update not persisted: %+v", jobs[0])
	}
}

func TestLatestSnapshotFollowsInsertionOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	latest, err := db.LatestSnapshot(ctx, "job-1")
	if err != nil || latest != nil {
		t.Fatalf("LatestSnapshot(empty) = %v, %v; want nil, nil", latest, err)
	}

	var last domain.Snapshot
	for i := 0; i < 5; i++ {
		s, err := db.AddSnapshot(ctx, domain.NewSnapshot{JobID: "job-1", Data: fmt.Sprint(i)})
		if err != nil {
			t.Fatalf("AddSnapshot: %v", err)
		}
		last = s
	}
	if _, err := db.AddSnapshot(ctx, domain.NewSnapshot{JobID: "job-2", Data: "other"}); err != nil {
		t.Fatalf("AddSnapshot: %v", err)
	}

	latest, err = db.LatestSnapshot(ctx, "job-1")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if latest == nil || latest.ID != last.ID || latest.Data != "4" {
		t.Fatalf("latest = %+v, want data 4", latest)
	}

	all, err := db.Snapshots(ctx, "job-1")
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("snapshots: got %d, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Seq <= all[i-1].Seq {
			t.Errorf("snapshots not ordered by seq: %d after %d", all[i].Seq, all[i-1].Seq)
		}
	}
}

func TestSnapshotGetDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s, err := db.AddSnapshot(ctx, domain.NewSnapshot{JobID: "j", Data: "x"})
	if err != nil {
		t.Fatalf("AddSnapshot: %v", err)
	}
	got, err := db.Snapshot(ctx, s.ID)
	if err != nil || got == nil || got.Data != "x" {
		t.Fatalf("Snapshot = %+v, %v", got, err)
	}
	if err := db.DeleteSnapshot(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if err := db.DeleteSnapshot(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestDeleteJobRemovesSnapshots(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	j, _ := db.AddJob(ctx, sampleJob("a"))
	_, _ = db.AddSnapshot(ctx, domain.NewSnapshot{JobID: j.ID, Data: "x"})

	if err := db.DeleteJob(ctx, j.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	snaps, _ := db.Snapshots(ctx, j.ID)
	if len(snaps) != 0 {
		t.Errorf("snapshots left after delete: %d", len(snaps))
	}
}

func TestPruneSnapshots(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, job := range []string{"a", "b"} {
		for i := 0; i < 4; i++ {
			_, _ = db.AddSnapshot(ctx, domain.NewSnapshot{JobID: job, Data: fmt.Sprint(i)})
		}
	}
	n, err := db.PruneSnapshots(ctx, 2)
	if err != nil {
		t.Fatalf("PruneSnapshots: %v", err)
	}
	if n != 4 {
		t.Errorf("deleted %d, want 4", n)
	}
	latest, _ := db.LatestSnapshot(ctx, "a")
	if latest == nil || latest.Data != "3" {
		t.Errorf("latest after prune = %+v, want data 3", latest)
	}
}

func TestConcurrentSnapshotWrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := db.AddSnapshot(ctx, domain.NewSnapshot{JobID: "j", Data: fmt.Sprint(i)}); err != nil {
				t.Errorf("AddSnapshot: %v", err)
			}
		}(i)
	}
	wg.Wait()

	all, _ := db.Snapshots(ctx, "j")
	if len(all) != 20 {
		t.Errorf("snapshots: got %d, want 20", len(all))
	}
}
