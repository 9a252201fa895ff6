package command_services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/agsserver"
	"github.com/paularlott/gisadmin/internal/arcrest"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

const (
	cacheModeNew           = "new"
	cacheModeRecreateAll   = "recreate-all"
	cacheModeRecreateEmpty = "recreate-empty"

	cachePollInterval = 15 * time.Second
)

var CacheCmd = &cli.Command{
	Name:  "cache",
	Usage: "Build or rebuild a map service cache",
	Description: `Create the tile cache of a map service from a TOML settings file, or recreate the
tiles of an existing cache at every scale, then wait for the caching job to finish.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "service",
			Usage:    "The map service, e.g. Maps/Roads.MapServer",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:         "mode",
			Usage:        "new, recreate-all or recreate-empty.",
			DefaultValue: cacheModeRecreateEmpty,
		},
		&cli.StringFlag{
			Name:  "settings",
			Usage: "Cache settings TOML file, required for a new cache.",
		},
		&cli.IntFlag{
			Name:         "instances",
			Usage:        "Number of caching instances to use.",
			DefaultValue: 3,
		},
		&cli.StringFlag{
			Name:         "max-wait",
			Usage:        "How long to wait for the job, 0 waits until interrupted.",
			DefaultValue: "12h",
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		mode := cmd.GetString("mode")
		maxWait, err := time.ParseDuration(cmd.GetString("max-wait"))
		if err != nil {
			return fmt.Errorf("invalid max wait: %w", err)
		}

		var settings *agsserver.CacheSettings
		switch mode {
		case cacheModeNew:
			if cmd.GetString("settings") == "" {
				return errors.New("a new cache needs --settings")
			}
			if settings, err = agsserver.LoadCacheSettings(cmd.GetString("settings")); err != nil {
				return err
			}
		case cacheModeRecreateAll, cacheModeRecreateEmpty:
		default:
			return fmt.Errorf("unknown cache mode %q", mode)
		}

		ctx, s, err := cmdutil.Open(ctx, cmd, "services cache", cmdutil.NeedServer)
		if err != nil {
			return err
		}

		service := cmd.GetStringArg("service")
		tool, job, err := submitCache(ctx, s.Server, service, mode, settings, cmd.GetInt("instances"))
		if err != nil {
			return s.Close(ctx, fmt.Errorf("Failed to submit caching job: %w", err), "")
		}

		log.Info().Str("service", service).Str("job", job.JobID).Msg("server: caching job submitted")

		var status *agsserver.JobStatus
		err = arcrest.WaitForJob(ctx, cachePollInterval, maxWait, func(ctx context.Context) (bool, error) {
			var pollErr error
			if status, pollErr = s.Server.CacheJobStatus(ctx, tool, job.JobID); pollErr != nil {
				return false, pollErr
			}
			log.Debug().Str("job", job.JobID).Str("status", status.JobStatus).Msg("server: caching job status")
			return status.Finished(), nil
		})
		if err != nil {
			return s.Close(ctx, fmt.Errorf("caching job %s: %w", job.JobID, err), "")
		}

		if !status.Healthy() {
			var messages []string
			for _, m := range status.Messages {
				if strings.EqualFold(m.Type, "esriJobMessageTypeError") {
					messages = append(messages, m.Description)
				}
			}
			return s.Close(ctx, fmt.Errorf("caching job %s ended %s: %s", job.JobID, status.JobStatus, strings.Join(messages, "; ")), "")
		}

		fmt.Println("Cache job", job.JobID, "finished")
		return s.Close(ctx, nil, "cache "+mode+" finished")
	},
}

func submitCache(ctx context.Context, server *agsserver.Server, service string, mode string, settings *agsserver.CacheSettings, instances int) (string, *agsserver.JobStatus, error) {
	if mode == cacheModeNew {
		job, err := server.SubmitCreateCache(ctx, service, settings)
		return agsserver.ToolCreateCache, job, err
	}

	scales, err := server.TileScales(ctx, service)
	if err != nil {
		return "", nil, err
	}
	if len(scales) == 0 {
		return "", nil, fmt.Errorf("%s has no cache to recreate", service)
	}

	update := agsserver.UpdateEmptyTiles
	if mode == cacheModeRecreateAll {
		update = agsserver.UpdateRecreateAll
	}

	job, err := server.SubmitManageCache(ctx, service, scales, instances, update)
	return agsserver.ToolManageCache, job, err
}
