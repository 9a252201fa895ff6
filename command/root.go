package command

import (
	"context"
	"os"
	"path/filepath"

	"github.com/paularlott/gisadmin/build"
	"github.com/paularlott/gisadmin/command/cmdutil"
	command_content "github.com/paularlott/gisadmin/command/content"
	command_features "github.com/paularlott/gisadmin/command/features"
	command_services "github.com/paularlott/gisadmin/command/services"
	command_users "github.com/paularlott/gisadmin/command/users"
	"github.com/paularlott/gisadmin/internal/config"

	"github.com/paularlott/cli"
	cli_toml "github.com/paularlott/cli/toml"
)

var configFile = config.CONFIG_FILE

var RootCmd = &cli.Command{
	Name:  "gisadmin",
	Usage: "Administer a GIS portal and server",
	Description: `gisadmin runs administration tasks against a GIS portal and its federated servers.

It imports users, checks service availability, reports on usage and content, manages map caches and backs up portal items.`,
	Version: build.Version,
	ConfigFile: cli_toml.NewConfigFile(&configFile, func() []string {
		paths := []string{"."}

		home, err := os.UserHomeDir()
		if err == nil {
			paths = append(paths, home)
		}

		paths = append(paths, filepath.Join(home, ".config", config.CONFIG_DIR))

		return paths
	}),
	Flags: globalFlags(),
	PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		return ctx, cmdutil.InitLogging(cmd)
	},
	Commands: []*cli.Command{
		command_users.UsersCmd,
		command_services.ServicesCmd,
		command_content.ContentCmd,
		command_features.FeaturesCmd,
		ConnectCmd,
		HistoryCmd,
		VersionCmd,
	},
}

// Execute runs the command line, the log file is closed on return.
func Execute(ctx context.Context) error {
	defer cmdutil.CloseLogging()
	return RootCmd.Execute(ctx)
}
