package command_users

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/userimport"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

var ImportServerCmd = &cli.Command{
	Name:  "import-server",
	Usage: "Create server users and roles from a CSV file",
	Description: `Create server roles, users and role membership from a CSV file with a header row of
username,role,privilege,password,email,fullname,description.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "csv",
			Usage:    "The users CSV file",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		file, err := os.Open(cmd.GetStringArg("csv"))
		if err != nil {
			return fmt.Errorf("Failed to open users file: %w", err)
		}
		batch, rowErrs, err := userimport.ParseServerUsers(file)
		file.Close()
		if err != nil {
			return err
		}
		for _, rowErr := range rowErrs {
			log.Error().Err(rowErr).Msg("users: skipping line")
		}

		ctx, s, err := cmdutil.Open(ctx, cmd, "users import-server", cmdutil.NeedServer)
		if err != nil {
			return err
		}

		errs := userimport.ApplyServerBatch(ctx, s.Server, batch)
		summary := fmt.Sprintf("%d roles, %d users, %d errors", len(batch.Roles), len(batch.Users), len(errs)+len(rowErrs))
		fmt.Println(summary)

		if len(rowErrs) > 0 {
			errs = append(errs, fmt.Errorf("%d invalid lines", len(rowErrs)))
		}
		return s.Close(ctx, errors.Join(errs...), summary)
	},
}
