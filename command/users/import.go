package command_users

import (
	"context"
	"fmt"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/userimport"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

var ImportCmd = &cli.Command{
	Name:  "import",
	Usage: "Create portal users from a file",
	Description: `Create portal accounts from a pipe delimited or YAML file.

Built-in accounts are account|password|email|name|role|description, enterprise accounts are
login|email|name|role|description. Invalid lines are reported and skipped.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "file",
			Usage:    "The users file, .yaml or .yml files are read as YAML",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:         "type",
			Aliases:      []string{"t"},
			Usage:        "The type of accounts, built-in or enterprise.",
			DefaultValue: "built-in",
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		kind, err := userimport.ParseKind(cmd.GetString("type"))
		if err != nil {
			return err
		}

		users, rowErrs, err := userimport.LoadPortalUsers(cmd.GetStringArg("file"), kind)
		if err != nil {
			return err
		}
		for _, rowErr := range rowErrs {
			log.Error().Err(rowErr).Msg("users: skipping line")
		}

		ctx, s, err := cmdutil.Open(ctx, cmd, "users import", cmdutil.NeedPortal)
		if err != nil {
			return err
		}

		result := userimport.ImportPortalUsers(ctx, s.Portal, users, kind)
		failed := len(result.Failed) + len(rowErrs)
		summary := fmt.Sprintf("%d created, %d failed", len(result.Created), failed)
		fmt.Println(summary)

		if failed > 0 {
			return s.Close(ctx, fmt.Errorf("%d of %d users were not created", failed, failed+len(result.Created)), summary)
		}
		return s.Close(ctx, nil, summary)
	},
}
