package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/config"
	"github.com/paularlott/gisadmin/internal/report"
	"github.com/paularlott/gisadmin/internal/statestore"

	"github.com/paularlott/cli"
)

var HistoryCmd = &cli.Command{
	Name:        "history",
	Usage:       "List recent runs",
	Description: "List the most recent command runs recorded in the state store.",
	MaxArgs:     cli.NoArgs,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:         "limit",
			Aliases:      []string{"n"},
			Usage:        "Number of runs to show.",
			DefaultValue: statestore.DefaultHistory,
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		if err := cmdutil.InitLogging(cmd); err != nil {
			return err
		}

		store, err := statestore.Open(config.GetStoreConfig(cmd))
		if err != nil {
			return fmt.Errorf("Failed to open state store: %w", err)
		}
		defer store.Close()

		runs, err := store.GetRuns(cmd.GetInt("limit"))
		if err != nil {
			return fmt.Errorf("Failed to read runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}

		table := [][]string{{"Started", "Command", "Site", "Duration", "Result", "Summary"}}
		for _, run := range runs {
			result := "ok"
			if !run.Success {
				result = "failed"
			}
			table = append(table, []string{
				run.StartedAt.Local().Format(time.DateTime),
				run.Command,
				run.Site,
				run.Duration().Round(time.Millisecond).String(),
				result,
				run.Summary,
			})
		}

		report.PrintTable(os.Stdout, table)
		return nil
	},
}
