package command_content

import (
	"github.com/paularlott/cli"
)

var ContentCmd = &cli.Command{
	Name:        "content",
	Usage:       "Manage portal content",
	Description: "Report on, back up, export and register portal items.",
	MaxArgs:     cli.NoArgs,
	Commands: []*cli.Command{
		ReportCmd,
		DownloadCmd,
		ExportCmd,
		RegisterCmd,
	},
}
