package command_users

import (
	"github.com/paularlott/cli"
)

var UsersCmd = &cli.Command{
	Name:        "users",
	Usage:       "Manage portal and server users",
	Description: "Import users into the portal or server and report on portal accounts.",
	MaxArgs:     cli.NoArgs,
	Commands: []*cli.Command{
		ImportCmd,
		ImportServerCmd,
		ReportCmd,
	},
}
