package command_content

import (
	"context"
	"fmt"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/arcrest"
	"github.com/paularlott/gisadmin/internal/portal"
	"github.com/paularlott/gisadmin/internal/report"
	"github.com/paularlott/gisadmin/internal/workers"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

var ReportCmd = &cli.Command{
	Name:  "report",
	Usage: "Report the services used by web maps",
	Description: `List every service used by the web maps of the portal, and how many web maps use
each service.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "csv",
			Usage:    "Output file listing each service of each web map",
			Required: true,
		},
		&cli.StringArg{
			Name:     "grouped-csv",
			Usage:    "Output file counting the web maps using each service",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:         "parallel",
			Aliases:      []string{"p"},
			Usage:        "Number of web maps to read at once.",
			DefaultValue: workers.DefaultParallel,
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		ctx, s, err := cmdutil.Open(ctx, cmd, "content report", cmdutil.NeedPortal)
		if err != nil {
			return err
		}

		self, err := s.Portal.Self(ctx)
		if err != nil {
			return s.Close(ctx, fmt.Errorf("Failed to read portal: %w", err), "")
		}

		var ids []string
		query := fmt.Sprintf(`type:"Web Map" -type:"Web Mapping Application" orgid:%s`, self.ID)
		for item, err := range s.Portal.SearchItems(ctx, query, "title", arcrest.DefaultPageSize) {
			if err != nil {
				return s.Close(ctx, fmt.Errorf("Failed to search web maps: %w", err), "")
			}
			ids = append(ids, item.ID)
		}

		log.Info().Int("webmaps", len(ids)).Msg("portal: reading web maps")

		pool := workers.New(cmd.GetInt("parallel"), float64(s.Site.RateLimit))
		results := workers.Run(ctx, pool, ids, func(ctx context.Context, id string) (*portal.WebMap, error) {
			return s.Portal.WebMap(ctx, id)
		})

		inventory := report.NewInventory(s.Portal.URL())
		for _, id := range ids {
			if r := results[id]; r.Err == nil {
				inventory.Add(id, r.Value)
			}
		}

		file := cmd.GetStringArg("csv")
		if err := report.WriteFile(file, report.ServicesHeader, inventory.Rows()); err != nil {
			return s.Close(ctx, err, "")
		}
		grouped := cmd.GetStringArg("grouped-csv")
		if err := report.WriteFile(grouped, report.GroupedServicesHeader, inventory.GroupedRows()); err != nil {
			return s.Close(ctx, err, "")
		}

		for _, f := range []string{file, grouped} {
			if err := s.Upload(ctx, f); err != nil {
				return s.Close(ctx, err, "")
			}
		}

		failed := workers.Failed(results)
		summary := fmt.Sprintf("%d web maps, %d services, %d unreadable", len(ids), len(inventory.GroupedRows()), len(failed))
		fmt.Println(summary)

		if len(failed) > 0 {
			return s.Close(ctx, fmt.Errorf("%d web maps could not be read", len(failed)), summary)
		}
		return s.Close(ctx, nil, summary)
	},
}
