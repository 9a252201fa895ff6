package command_content

import (
	"context"
	"fmt"
	"time"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/arcrest"
	"github.com/paularlott/gisadmin/internal/content"
	"github.com/paularlott/gisadmin/internal/workers"

	"github.com/paularlott/cli"
)

var DownloadCmd = &cli.Command{
	Name:  "download",
	Usage: "Download portal items",
	Description: `Download the data of the given items, or back up every item of the organisation into a
dated folder when no ids are given. Hosted feature services are exported before downloading.`,
	MaxArgs: cli.UnlimitedArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:         "dest",
			Aliases:      []string{"d"},
			Usage:        "The folder to download to.",
			DefaultValue: ".",
		},
		&cli.IntFlag{
			Name:         "parallel",
			Aliases:      []string{"p"},
			Usage:        "Number of items to download at once.",
			DefaultValue: workers.DefaultParallel,
		},
		&cli.IntFlag{
			Name:         "chunk-size",
			Usage:        "Bytes read per chunk while downloading.",
			DefaultValue: arcrest.DefaultChunkSize,
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Export format of hosted feature services.",
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		ctx, s, err := cmdutil.Open(ctx, cmd, "content download", cmdutil.NeedPortal)
		if err != nil {
			return err
		}

		opts := content.Options{
			Dest:         cmd.GetString("dest"),
			ChunkSize:    cmd.GetInt("chunk-size"),
			ExportFormat: cmd.GetString("format"),
		}

		ids := cmd.GetArgs()

		if len(ids) == 0 {
			self, err := s.Portal.Self(ctx)
			if err != nil {
				return s.Close(ctx, fmt.Errorf("Failed to read portal: %w", err), "")
			}
			if ids, err = content.SearchAll(ctx, s.Portal, "orgid:"+self.ID); err != nil {
				return s.Close(ctx, fmt.Errorf("Failed to search items: %w", err), "")
			}
			opts.Dest = content.BackupDir(opts.Dest, time.Now())
		}

		pool := workers.New(cmd.GetInt("parallel"), float64(s.Site.RateLimit))
		results, err := content.Backup(ctx, s.Portal, pool, ids, opts)
		if err != nil {
			return s.Close(ctx, err, "")
		}

		downloaded, skipped, failed := content.Summarize(results)
		summary := fmt.Sprintf("%d downloaded, %d skipped, %d failed", downloaded, skipped, len(failed))
		fmt.Println(summary)

		if len(failed) > 0 {
			lines := make([]string, 0, len(failed))
			for _, r := range failed {
				lines = append(lines, r.ID+": "+r.Err.Error())
			}
			return s.Close(ctx, fmt.Errorf("%d items failed to download: %v", len(failed), lines), summary)
		}
		return s.Close(ctx, nil, summary)
	},
}
