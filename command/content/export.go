package command_content

import (
	"context"
	"fmt"
	"time"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/arcrest"
	"github.com/paularlott/gisadmin/internal/content"
	"github.com/paularlott/gisadmin/internal/portal"

	"github.com/paularlott/cli"
)

var ExportCmd = &cli.Command{
	Name:  "export",
	Usage: "Export a feature service",
	Description: `Export a hosted feature service item and download the export, the temporary export item
is deleted afterwards.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "item-id",
			Usage:    "The feature service item",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:         "format",
			Aliases:      []string{"f"},
			Usage:        "Export format, e.g. \"File Geodatabase\", \"Shapefile\", \"CSV\" or \"GeoJson\".",
			DefaultValue: portal.ExportFormatFileGeodatabase,
		},
		&cli.StringFlag{
			Name:         "dest",
			Aliases:      []string{"d"},
			Usage:        "The folder to download to.",
			DefaultValue: ".",
		},
		&cli.IntFlag{
			Name:         "chunk-size",
			Usage:        "Bytes read per chunk while downloading.",
			DefaultValue: arcrest.DefaultChunkSize,
		},
		&cli.StringFlag{
			Name:         "max-wait",
			Usage:        "How long to wait for the export to finish.",
			DefaultValue: content.DefaultMaxWait.String(),
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		maxWait, err := time.ParseDuration(cmd.GetString("max-wait"))
		if err != nil {
			return fmt.Errorf("invalid max wait: %w", err)
		}

		ctx, s, err := cmdutil.Open(ctx, cmd, "content export", cmdutil.NeedPortal)
		if err != nil {
			return err
		}

		download, err := content.ExportOne(ctx, s.Portal, cmd.GetStringArg("item-id"), content.Options{
			Dest:         cmd.GetString("dest"),
			ChunkSize:    cmd.GetInt("chunk-size"),
			ExportFormat: cmd.GetString("format"),
			MaxWait:      maxWait,
		})
		if err != nil {
			return s.Close(ctx, err, "")
		}

		fmt.Printf("Exported %s to %s (%d bytes)\n", download.Item.Title, download.Path, download.Bytes)
		return s.Close(ctx, nil, "exported "+download.Item.ID)
	},
}
