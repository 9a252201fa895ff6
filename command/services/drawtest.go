package command_services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/drawtest"
	"github.com/paularlott/gisadmin/internal/report"

	"github.com/paularlott/cli"
)

var DrawTestCmd = &cli.Command{
	Name:  "drawtest",
	Usage: "Time drawing a map service",
	Description: `Time drawing a map service around the centre of a bounding box. Cached services are
drawn tile by tile at every cache level and the missing tiles counted, dynamic services are
exported at each of the given scales.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "service",
			Usage:    "The map service, e.g. Maps/Roads.MapServer",
			Required: true,
		},
		&cli.StringArg{
			Name:     "csv",
			Usage:    "Output CSV file",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "bbox",
			Usage: "Bounding box in map units, \"xmin ymin xmax ymax\".",
		},
		&cli.StringFlag{
			Name:  "scales",
			Usage: "Scales for a dynamic service separated by ;, e.g. 50000;10000.",
		},
		&cli.StringFlag{
			Name:         "format",
			Usage:        "Image format of dynamic exports.",
			DefaultValue: "png",
		},
		&cli.IntFlag{
			Name:         "queries",
			Aliases:      []string{"n"},
			Usage:        "Number of times to draw each scale.",
			DefaultValue: 1,
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		if !cmd.HasFlag("bbox") {
			return errors.New("a bounding box is required, set --bbox")
		}
		bbox, err := drawtest.ParseBBox(cmd.GetString("bbox"))
		if err != nil {
			return err
		}
		scales, err := drawtest.ParseScales(cmd.GetString("scales"))
		if err != nil {
			return err
		}

		ctx, s, err := cmdutil.Open(ctx, cmd, "services drawtest", cmdutil.NeedServer)
		if err != nil {
			return err
		}

		result, err := drawtest.Run(ctx, s.Server, cmd.GetStringArg("service"), drawtest.Options{
			BBox:    bbox,
			Scales:  scales,
			Format:  cmd.GetString("format"),
			Queries: cmd.GetInt("queries"),
		})
		if err != nil {
			return s.Close(ctx, err, "")
		}

		report.PrintTable(os.Stdout, append([][]string{result.Header()}, result.Rows()...))

		file := cmd.GetStringArg("csv")
		if err := report.WriteFile(file, result.Header(), result.Rows()); err != nil {
			return s.Close(ctx, err, "")
		}
		if err := s.Upload(ctx, file); err != nil {
			return s.Close(ctx, err, "")
		}

		return s.Close(ctx, nil, fmt.Sprintf("%d scales drawn", len(result.Scales)))
	},
}
