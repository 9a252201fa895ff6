package command_services

import (
	"github.com/paularlott/cli"
)

var ServicesCmd = &cli.Command{
	Name:        "services",
	Usage:       "Manage server services",
	Description: "Check, start, stop, monitor and cache the services of a server site.",
	MaxArgs:     cli.NoArgs,
	Commands: []*cli.Command{
		CheckCmd,
		StartCmd,
		StopCmd,
		PermissionsCmd,
		StatsCmd,
		MonitorCmd,
		CacheCmd,
		DrawTestCmd,
	},
}
