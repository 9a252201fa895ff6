package command_services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/paularlott/gisadmin/command/cmdutil"

	"github.com/paularlott/cli"
)

var PermissionsCmd = &cli.Command{
	Name:        "permissions",
	Usage:       "Check a principal can access a service",
	Description: "Check a role is given access to a service or folder, failing when it is not.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "service",
			Usage:    "The service or folder",
			Required: true,
		},
		&cli.StringArg{
			Name:     "principal",
			Usage:    "The role expected to have access",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		ctx, s, err := cmdutil.Open(ctx, cmd, "services permissions", cmdutil.NeedServer)
		if err != nil {
			return err
		}

		service := cmd.GetStringArg("service")
		principal := cmd.GetStringArg("principal")

		principals, err := s.Server.Permissions(ctx, service)
		if err != nil {
			return s.Close(ctx, err, "")
		}

		fmt.Printf("%s: %s\n", service, strings.Join(principals, ", "))

		if len(principals) == 0 {
			return s.Close(ctx, fmt.Errorf("no permissions are set on %s", service), "")
		}
		if !slices.Contains(principals, principal) {
			return s.Close(ctx, fmt.Errorf("%s is not applied to %s", principal, service), "")
		}

		return s.Close(ctx, nil, principal+" is applied to "+service)
	},
}
