package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"webmonitor-engine/internal/domain"
)

func firstArg(c *cli.Context, name string) (string, error) {
	v := strings.TrimSpace(c.Args().First())
	if v == "" {
		return "", fmt.Errorf("%s: missing %s", c.Command.FullName(), name)
	}
	return v, nil
}

func check(c *cli.Context) error {
	id, err := firstArg(c, "<job-id>")
	if err != nil {
		return err
	}
	eng, err := openPassive(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.CheckNow(context.Background(), id)
	if err != nil {
		return err
	}
	if !res.Changed {
		fmt.Println("unchanged")
		return nil
	}
	fmt.Printf("changed: snapshot %s (%d bytes)\n", res.Snapshot.ID, len(res.Snapshot.Data))
	return nil
}

func listJobs(c *cli.Context) error {
	eng, err := openPassive(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	jobs, err := eng.Jobs(context.Background())
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("webmonitor: no jobs found")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEVERY\tFILTERS\tTARGETS\tURL")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			j.ID, j.Name, j.Every(time.Second), len(j.Filters), len(j.Notifications), j.URL)
	}
	return tw.Flush()
}

// readJobFile decodes a job definition; .json files are JSON, anything else
// is YAML.
func readJobFile(path string) (domain.NewJob, error) {
	var nj domain.NewJob
	b, err := os.ReadFile(path)
	if err != nil {
		return nj, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(b, &nj)
	} else {
		err = yaml.Unmarshal(b, &nj)
	}
	if err != nil {
		return nj, fmt.Errorf("%s: %w", path, err)
	}
	return nj, nj.Validate()
}

func addJob(c *cli.Context) error {
	path := c.String("file")
	if path == "" {
		return errors.New("jobs add: --file is required")
	}
	nj, err := readJobFile(path)
	if err != nil {
		return err
	}
	eng, err := openPassive(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	j, err := eng.AddJob(context.Background(), nj)
	if err != nil {
		return err
	}
	fmt.Println(j.ID)
	fmt.Fprintln(os.Stderr, "note: a running server schedules new jobs after a restart")
	return nil
}

func deleteJob(c *cli.Context) error {
	id, err := firstArg(c, "<job-id>")
	if err != nil {
		return err
	}
	eng, err := openPassive(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.DeleteJob(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", id)
	return nil
}

func listSnapshots(c *cli.Context) error {
	id, err := firstArg(c, "<job-id>")
	if err != nil {
		return err
	}
	eng, err := openPassive(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	snaps, err := eng.Snapshots(context.Background(), id)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("webmonitor: no snapshots found")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tCREATED\tBYTES")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", s.Seq, s.ID, s.CreatedAt.Format(time.RFC3339), len(s.Data))
	}
	return tw.Flush()
}

func pruneSnapshots(c *cli.Context) error {
	eng, err := openPassive(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	n, err := eng.PruneSnapshots(context.Background(), c.Int("keep"))
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d snapshots\n", n)
	return nil
}
