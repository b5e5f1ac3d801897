package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "webmonitor:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "webmonitor"
	app.HelpName = "webmonitor"
	app.Usage = "watch web pages and get notified when they change"
	app.UsageText = "webmonitor [--data-dir DIR] <command> [arguments...]"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "data-dir, d",
			Usage:  "directory holding config.yml and the database",
			EnvVar: "WEBMONITOR_DATA_DIR",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the scheduler and the admin API",
			Action: serve,
			Flags:  serveFlags,
		},
		{
			Name:      "check",
			Usage:     "check one job now and print the outcome",
			ArgsUsage: "<job-id>",
			Action:    check,
		},
		{
			Name:  "jobs",
			Usage: "manage watched jobs",
			Subcommands: []cli.Command{
				{
					Name:    "list",
					Aliases: []string{"ls"},
					Usage:   "list stored jobs",
					Action:  listJobs,
				},
				{
					Name:   "add",
					Usage:  "add a job from a YAML or JSON file",
					Action: addJob,
					Flags: []cli.Flag{
						cli.StringFlag{Name: "file, f", Usage: "job definition file"},
					},
				},
				{
					Name:      "delete",
					Aliases:   []string{"rm"},
					Usage:     "delete a job and its snapshots",
					ArgsUsage: "<job-id>",
					Action:    deleteJob,
				},
			},
		},
		{
			Name:      "snapshots",
			Usage:     "list the snapshots of a job",
			ArgsUsage: "<job-id>",
			Action:    listSnapshots,
			Subcommands: []cli.Command{
				{
					Name:   "prune",
					Usage:  "keep only the newest snapshots of every job",
					Action: pruneSnapshots,
					Flags: []cli.Flag{
						cli.IntFlag{Name: "keep, k", Value: 10, Usage: "snapshots to keep per job"},
					},
				},
			},
		},
	}
	return app
}
