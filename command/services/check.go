package command_services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/availability"
	"github.com/paularlott/gisadmin/internal/notify"
	"github.com/paularlott/gisadmin/internal/report"
	"github.com/paularlott/gisadmin/internal/statestore"
	"github.com/paularlott/gisadmin/internal/statestore/model"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

var CheckCmd = &cli.Command{
	Name:  "check",
	Usage: "Check service availability",
	Description: `Check every service of the site, or the one given, is running and returns data.

Results are compared with the previous check of the site and an alert is sent when a
service fails or changes state.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:  "service",
			Usage: "Only check this service, e.g. Maps/Roads.MapServer",
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "stopped-is-error",
			Usage: "Report stopped services as errors.",
		},
		&cli.BoolFlag{
			Name:  "always-notify",
			Usage: "Send the summary even when nothing has changed.",
		},
		&cli.StringFlag{
			Name:  "csv",
			Usage: "Write the results to this CSV file.",
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		ctx, s, err := cmdutil.Open(ctx, cmd, "services check", cmdutil.NeedServer)
		if err != nil {
			return err
		}

		service := cmd.GetStringArg("service")
		summary, err := availability.Check(ctx, s.Server, availability.Options{
			Service:        service,
			StoppedIsError: cmd.GetBool("stopped-is-error"),
		})
		if err != nil {
			return s.Close(ctx, err, "")
		}

		table := [][]string{report.AvailabilityHeader}
		report.PrintTable(os.Stdout, append(table, summary.Rows()...))

		if file := cmd.GetString("csv"); file != "" {
			if err := report.WriteFile(file, report.AvailabilityHeader, summary.Rows()); err != nil {
				return s.Close(ctx, err, summary.String())
			}
			if err := s.Upload(ctx, file); err != nil {
				log.Error().Err(err).Msg("report: failed to upload")
			}
		}

		s.Metrics.ServiceResults(s.Site.Alias, map[string]int{
			string(availability.ResultRunning):   summary.Running,
			string(availability.ResultStopped):   summary.Stopped,
			string(availability.ResultError):     summary.Errors,
			string(availability.ResultDataError): summary.DataErrors,
		})

		changes := compareWithPrevious(s, service, summary)

		lines := summary.Messages()
		for _, c := range changes {
			lines = append(lines, c.String())
		}

		switch {
		case !summary.Healthy():
			s.Notify(ctx, notify.LevelError, "Services failing on "+s.Site.Alias, lines...)
		case len(changes) > 0 || cmd.GetBool("always-notify"):
			s.Notify(ctx, notify.LevelInfo, "Services on "+s.Site.Alias+": "+summary.String(), lines...)
		}

		fmt.Println(summary.String())
		if !summary.Healthy() {
			return s.Close(ctx, fmt.Errorf("%s: %s", summary.String(), strings.Join(summary.Messages(), "; ")), summary.String())
		}
		return s.Close(ctx, nil, summary.String())
	},
}

// compareWithPrevious finds changes since the last check and records the new states.
// A single service check is only compared with that service and does not replace the site states.
func compareWithPrevious(s *cmdutil.Session, service string, summary *availability.Summary) []availability.Change {
	previous, err := statestore.PreviousStates(s.Store, s.Site.Alias)
	if err != nil {
		log.Error().Err(err).Msg("db: failed to read previous states")
		return nil
	}

	if service != "" {
		if from, ok := previous[service]; ok {
			previous = map[string]string{service: from}
		} else {
			previous = map[string]string{}
		}
		return availability.Changes(previous, summary.States())
	}

	changes := availability.Changes(previous, summary.States())

	now := time.Now().UTC()
	states := make([]*model.ServiceState, 0, len(summary.Services))
	for _, r := range summary.Services {
		states = append(states, &model.ServiceState{
			Site:      s.Site.Alias,
			Service:   r.Service,
			Result:    string(r.Result),
			State:     r.State,
			Message:   r.Message,
			UpdatedAt: now,
		})
	}
	if err := s.Store.SaveServiceStates(s.Site.Alias, states); err != nil {
		log.Error().Err(err).Msg("db: failed to save service states")
	}

	return changes
}
