package command_services

import (
	"context"
	"errors"
	"fmt"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/agsserver"
	"github.com/paularlott/gisadmin/internal/workers"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

var StartCmd = &cli.Command{
	Name:        "start",
	Usage:       "Start services",
	Description: "Start a service, or every service in a folder.",
	Arguments:   startStopArgs(),
	MaxArgs:     cli.NoArgs,
	Flags:       startStopFlags(),
	Run: func(ctx context.Context, cmd *cli.Command) error {
		return startStop(ctx, cmd, "start", func(ctx context.Context, server *agsserver.Server, service string) error {
			return server.StartService(ctx, service)
		})
	},
}

var StopCmd = &cli.Command{
	Name:        "stop",
	Usage:       "Stop services",
	Description: "Stop a service, or every service in a folder.",
	Arguments:   startStopArgs(),
	MaxArgs:     cli.NoArgs,
	Flags:       startStopFlags(),
	Run: func(ctx context.Context, cmd *cli.Command) error {
		return startStop(ctx, cmd, "stop", func(ctx context.Context, server *agsserver.Server, service string) error {
			return server.StopService(ctx, service)
		})
	},
}

func startStopArgs() []cli.Argument {
	return []cli.Argument{
		&cli.StringArg{
			Name:  "service",
			Usage: "The service, e.g. Maps/Roads.MapServer",
		},
	}
}

func startStopFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "folder",
			Usage: "Apply to every service in this folder, / for the root folder.",
		},
		&cli.IntFlag{
			Name:         "parallel",
			Aliases:      []string{"p"},
			Usage:        "Number of services to change at once.",
			DefaultValue: workers.DefaultParallel,
		},
	}
}

func startStop(ctx context.Context, cmd *cli.Command, action string, apply func(ctx context.Context, server *agsserver.Server, service string) error) error {
	service := cmd.GetStringArg("service")
	folder := cmd.GetString("folder")
	if (service == "") == (folder == "") {
		return errors.New("give either a service or --folder")
	}

	ctx, s, err := cmdutil.Open(ctx, cmd, "services "+action, cmdutil.NeedServer)
	if err != nil {
		return err
	}

	services := []string{service}
	if folder != "" {
		if services, err = s.Server.ListFolder(ctx, folder); err != nil {
			return s.Close(ctx, err, "")
		}
	}

	pool := workers.New(cmd.GetInt("parallel"), float64(s.Site.RateLimit))
	results := workers.Run(ctx, pool, services, func(ctx context.Context, service string) (struct{}, error) {
		log.Info().Str("service", service).Msgf("server: %s service", action)
		return struct{}{}, apply(ctx, s.Server, service)
	})

	failed := workers.Failed(results)
	summary := fmt.Sprintf("%d services, %d failed", len(services), len(failed))
	fmt.Println(summary)

	if len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, r := range failed {
			errs = append(errs, fmt.Errorf("%s: %w", r.ID, r.Err))
		}
		return s.Close(ctx, errors.Join(errs...), summary)
	}
	return s.Close(ctx, nil, summary)
}
