package command

import (
	"context"
	"fmt"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/config"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

var ConnectCmd = &cli.Command{
	Name:  "connect",
	Usage: "Save a site",
	Description: `Sign in to the portal and server given by the site flags and save their addresses under the alias.

Passwords are never saved, they are prompted for or read from ` + config.CONFIG_ENV_PREFIX + `_PASSWORD.`,
	MaxArgs: cli.NoArgs,
	Run: func(ctx context.Context, cmd *cli.Command) error {
		site, err := config.GetSite(cmd)
		if err != nil {
			return err
		}

		var need cmdutil.Need
		if site.PortalURL != "" {
			need |= cmdutil.NeedPortal
		}
		if site.ServerURL != "" {
			need |= cmdutil.NeedServer
		}

		ctx, s, err := cmdutil.Open(ctx, cmd, "connect", need)
		if err != nil {
			return fmt.Errorf("Failed to connect: %w", err)
		}

		if s.Server != nil {
			info, err := s.Server.SiteInfo(ctx)
			if err != nil {
				return s.Close(ctx, fmt.Errorf("Server is not responding: %w", err), "")
			}
			log.Info().Float64("version", info.CurrentVersion).Msg("server: connected")
		}

		if err := config.SaveSite(s.Site, cmd); err != nil {
			return s.Close(ctx, err, "")
		}

		fmt.Println("Site saved as", s.Site.Alias)
		return s.Close(ctx, nil, "saved "+s.Site.Alias)
	},
}
