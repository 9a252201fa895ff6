package command_services

import (
	"context"
	"fmt"
	"time"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/report"
	"github.com/paularlott/gisadmin/internal/stats"

	"github.com/paularlott/cli"
)

var StatsCmd = &cli.Command{
	Name:  "stats",
	Usage: "Report service usage",
	Description: `Summarise the request counts and times of every service from the server logs.

The server log level must be FINE for requests to be logged.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "csv",
			Usage:    "Output CSV file",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:         "period",
			Usage:        "The period to report on, 24h, week or 30d.",
			DefaultValue: "24h",
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		period, err := stats.ParsePeriod(cmd.GetString("period"))
		if err != nil {
			return err
		}

		ctx, s, err := cmdutil.Open(ctx, cmd, "services stats", cmdutil.NeedServer)
		if err != nil {
			return err
		}

		agg, err := stats.Collect(ctx, s.Server, period, time.Now())
		if err != nil {
			return s.Close(ctx, err, "")
		}

		file := cmd.GetStringArg("csv")
		rows := agg.Rows()
		if err := report.WriteFile(file, stats.Header, rows); err != nil {
			return s.Close(ctx, err, "")
		}
		if err := s.Upload(ctx, file); err != nil {
			return s.Close(ctx, err, "")
		}

		summary := fmt.Sprintf("%d services from %d log messages", len(rows), agg.Messages())
		fmt.Println(summary)
		return s.Close(ctx, nil, summary)
	},
}
