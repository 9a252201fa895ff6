package command_features

import (
	"context"
	"fmt"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/arcrest"
	"github.com/paularlott/gisadmin/internal/config"
	"github.com/paularlott/gisadmin/internal/features"

	"github.com/paularlott/cli"
)

var PurgeCmd = &cli.Command{
	Name:  "purge",
	Usage: "Delete old features",
	Description: `Delete the features of a layer whose date field is older than the maximum age.

The layer is reached through the server when --server-url is set, otherwise through the portal.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "layer-url",
			Usage:    "The layer URL, e.g. https://gis.example.com/server/rest/services/Incidents/FeatureServer/0",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "date-field",
			Usage: "The date field compared with the maximum age.",
		},
		&cli.StringFlag{
			Name:         "max-age",
			Usage:        "Features older than this are deleted, e.g. 30d or 72h.",
			DefaultValue: "30d",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "List the features that would be deleted without deleting them.",
		},
		&cli.IntFlag{
			Name:         "batch-size",
			Usage:        "Number of features deleted per request.",
			DefaultValue: features.DefaultBatchSize,
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		maxAge, err := features.ParseMaxAge(cmd.GetString("max-age"))
		if err != nil {
			return err
		}

		site, err := config.GetSite(cmd)
		if err != nil {
			return err
		}
		need := cmdutil.NeedPortal
		if site.ServerURL != "" {
			need = cmdutil.NeedServer
		}

		ctx, s, err := cmdutil.Open(ctx, cmd, "features purge", need)
		if err != nil {
			return err
		}

		var client *arcrest.Client
		if s.Server != nil {
			client = s.Server.REST()
		} else {
			client = s.Portal.Client()
		}

		layer := features.NewLayer(client, cmd.GetStringArg("layer-url"))
		result, err := features.Purge(ctx, layer, features.PurgeOptions{
			DateField: cmd.GetString("date-field"),
			MaxAge:    maxAge,
			DryRun:    cmd.GetBool("dry-run"),
			BatchSize: cmd.GetInt("batch-size"),
		})
		if err != nil {
			return s.Close(ctx, err, "")
		}

		if cmd.GetBool("dry-run") {
			summary := fmt.Sprintf("%d of %d features would be deleted", len(result.Stale), result.Scanned)
			fmt.Println(summary)
			for _, id := range result.Stale {
				fmt.Println(id)
			}
			return s.Close(ctx, nil, summary)
		}

		summary := fmt.Sprintf("%d of %d features deleted, %d failed", result.Deleted, result.Scanned, len(result.Failed))
		fmt.Println(summary)
		if len(result.Failed) > 0 {
			return s.Close(ctx, fmt.Errorf("%d features could not be deleted: %v", len(result.Failed), result.Failed), summary)
		}
		return s.Close(ctx, nil, summary)
	},
}
