package command_features

import (
	"github.com/paularlott/cli"
)

var FeaturesCmd = &cli.Command{
	Name:        "features",
	Usage:       "Manage feature layers",
	Description: "Maintain the features held in feature service layers.",
	MaxArgs:     cli.NoArgs,
	Commands: []*cli.Command{
		PurgeCmd,
	},
}
