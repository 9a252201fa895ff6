package command_content

import (
	"context"
	"fmt"
	"strings"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/portal"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

var RegisterCmd = &cli.Command{
	Name:  "register",
	Usage: "Register a service as a portal item",
	Description: `Add a service URL to the portal as an item owned by the signed in user and share it.

Credentials given with --service-username are stored with the item so the service can be used
without signing in to the server.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "service-url",
			Usage:    "The service URL",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:         "type",
			Usage:        "The item type.",
			DefaultValue: "Map Service",
		},
		&cli.StringFlag{
			Name:  "title",
			Usage: "The item title, defaults to the service name.",
		},
		&cli.StringFlag{
			Name:  "summary",
			Usage: "A short summary of the item.",
		},
		&cli.StringFlag{
			Name:  "description",
			Usage: "The item description.",
		},
		&cli.StringSliceFlag{
			Name:  "tag",
			Usage: "An item tag, may be repeated.",
		},
		&cli.StringFlag{
			Name:  "thumbnail",
			Usage: "URL of the item thumbnail.",
		},
		&cli.StringFlag{
			Name:  "service-username",
			Usage: "Username stored with the item to access a secured service.",
		},
		&cli.StringFlag{
			Name:  "service-password",
			Usage: "Password stored with the item to access a secured service.",
		},
		&cli.StringFlag{
			Name:         "share",
			Usage:        "Share with public, org or private.",
			DefaultValue: "private",
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		share := strings.ToLower(cmd.GetString("share"))
		switch share {
		case "public", "org", "private":
		default:
			return fmt.Errorf("unknown sharing %q, use public, org or private", share)
		}

		ctx, s, err := cmdutil.Open(ctx, cmd, "content register", cmdutil.NeedPortal)
		if err != nil {
			return err
		}
		if s.Site.Username == "" {
			return s.Close(ctx, fmt.Errorf("registering an item needs a username"), "")
		}

		serviceURL := cmd.GetStringArg("service-url")
		reg := portal.ItemRegistration{
			URL:             serviceURL,
			Type:            cmd.GetString("type"),
			Title:           cmd.GetString("title"),
			Snippet:         cmd.GetString("summary"),
			Description:     cmd.GetString("description"),
			Tags:            strings.Join(cmd.GetStringSlice("tag"), ","),
			Thumbnail:       cmd.GetString("thumbnail"),
			ServiceUsername: cmd.GetString("service-username"),
			ServicePassword: cmd.GetString("service-password"),
		}
		if reg.Title == "" {
			reg.Title = serviceTitle(serviceURL)
		}

		id, err := s.Portal.RegisterItem(ctx, s.Site.Username, reg)
		if err != nil {
			return s.Close(ctx, fmt.Errorf("Failed to register %s: %w", serviceURL, err), "")
		}
		log.Info().Str("item", id).Str("url", serviceURL).Msg("portal: service registered")

		if share != "private" {
			if err := s.Portal.ShareItem(ctx, s.Site.Username, id, share); err != nil {
				return s.Close(ctx, fmt.Errorf("Failed to share %s: %w", id, err), "registered "+id)
			}
		}

		fmt.Println("Registered item", id)
		return s.Close(ctx, nil, "registered "+id)
	},
}

// serviceTitle turns .../rest/services/Maps/Roads/MapServer into Roads.
func serviceTitle(serviceURL string) string {
	parts := strings.Split(strings.Trim(serviceURL, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if strings.HasSuffix(parts[i], "Server") && i > 0 {
			return parts[i-1]
		}
	}
	return parts[len(parts)-1]
}
