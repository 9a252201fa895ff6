package command_services

import (
	"context"
	"strconv"
	"time"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/report"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

var MonitorCmd = &cli.Command{
	Name:  "monitor",
	Usage: "Record service instance usage",
	Description: `Append the current instance counts of a service to a CSV file, the file is created
with a header row the first time. Run it on a schedule to build a history.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "service",
			Usage:    "The service, e.g. Maps/Roads.MapServer",
			Required: true,
		},
		&cli.StringArg{
			Name:     "csv",
			Usage:    "The CSV file to append to",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		ctx, s, err := cmdutil.Open(ctx, cmd, "services monitor", cmdutil.NeedServer)
		if err != nil {
			return err
		}

		service := cmd.GetStringArg("service")

		info, err := s.Server.ServiceInfo(ctx, service)
		if err != nil {
			return s.Close(ctx, err, "")
		}
		summary, err := s.Server.ServiceStatistics(ctx, service)
		if err != nil {
			return s.Close(ctx, err, "")
		}

		running := info.MaxInstancesPerNode - summary.NotCreated
		log.Info().
			Str("service", service).
			Int("min", info.MinInstancesPerNode).
			Int("max", info.MaxInstancesPerNode).
			Int("running", running).
			Int("busy", summary.Busy).
			Msg("server: instance usage")

		row := []string{
			time.Now().Format(time.DateTime),
			strconv.Itoa(info.MinInstancesPerNode),
			strconv.Itoa(info.MaxInstancesPerNode),
			strconv.Itoa(running),
			strconv.Itoa(summary.Busy),
			strconv.Itoa(summary.Free),
		}
		if err := report.AppendFile(cmd.GetStringArg("csv"), report.MonitorHeader, [][]string{row}); err != nil {
			return s.Close(ctx, err, "")
		}

		return s.Close(ctx, nil, strconv.Itoa(running)+" running instances")
	},
}
