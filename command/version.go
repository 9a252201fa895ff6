package command

import (
	"context"
	"fmt"
	"runtime"

	"github.com/paularlott/gisadmin/build"

	"github.com/paularlott/cli"
)

var VersionCmd = &cli.Command{
	Name:        "version",
	Usage:       "Show the version",
	Description: "Show the version and build date.",
	MaxArgs:     cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		fmt.Printf("gisadmin v%s (%s) %s/%s\n", build.Version, build.Date, runtime.GOOS, runtime.GOARCH)
		return nil
	},
}
