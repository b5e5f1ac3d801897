package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"webmonitor-engine/internal/config"
	"webmonitor-engine/internal/domain"
	"webmonitor-engine/internal/engine"
)

const jobYAML = `name: docs
url: https://example.com/docs
interval: 600
showDiff: true
filters:
  - type: css
    selector: main
  - type: html2markdown
notifications:
  - type: discord
    webhookUrl: https://discord.example/hook
`

func TestReadJobFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yml")
	if err := os.WriteFile(path, []byte(jobYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	nj, err := readJobFile(path)
	if err != nil {
		t.Fatalf("readJobFile: %v", err)
	}
	if nj.Name != "docs" || len(nj.Filters) != 2 || nj.Filters[1] != domain.HTML2Markdown() {
		t.Errorf("job = %+v", nj)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"name":"x","url":"nope","interval":0}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readJobFile(bad); err == nil {
		t.Error("invalid job accepted")
	}
}

func TestJobsAddAndDelete(t *testing.T) {
	dir := t.TempDir()
	jobFile := filepath.Join(dir, "job.yml")
	if err := os.WriteFile(jobFile, []byte(jobYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) {
		t.Helper()
		if err := newApp().Run(append([]string{"webmonitor", "--data-dir", dir}, args...)); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}
	run("jobs", "add", "--file", jobFile)
	run("jobs", "list")

	if _, err := os.Stat(filepath.Join(dir, "config.yml")); err != nil {
		t.Fatalf("config not bootstrapped: %v", err)
	}

	cfg, err := config.Load(filepath.Join(dir, "config.yml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.App.DataDir = dir
	eng, err := engine.New(context.Background(), cfg, engine.Deps{Passive: true})
	if err != nil {
		t.Fatal(err)
	}
	jobs, err := eng.Jobs(context.Background())
	eng.Close()
	if err != nil || len(jobs) != 1 {
		t.Fatalf("jobs = %+v, %v", jobs, err)
	}

	run("snapshots", jobs[0].ID)
	run("jobs", "delete", jobs[0].ID)
	if err := newApp().Run([]string{"webmonitor", "--data-dir", dir, "jobs", "delete", jobs[0].ID}); err == nil {
		t.Error("deleting a missing job succeeded")
	}
}

func TestMissingArguments(t *testing.T) {
	dir := t.TempDir()
	for _, args := range [][]string{{"check"}, {"jobs", "delete"}, {"jobs", "add"}} {
		if err := newApp().Run(append([]string{"webmonitor", "--data-dir", dir}, args...)); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}
