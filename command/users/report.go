package command_users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paularlott/gisadmin/command/cmdutil"
	"github.com/paularlott/gisadmin/internal/arcrest"
	"github.com/paularlott/gisadmin/internal/portal"
	"github.com/paularlott/gisadmin/internal/report"
	"github.com/paularlott/gisadmin/internal/workers"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

type userDetail struct {
	groups []portal.Group
	items  []portal.Item
}

var ReportCmd = &cli.Command{
	Name:  "report",
	Usage: "Report on portal users",
	Description: `Write three CSV reports on the portal accounts: users inactive for over a year,
group membership of every user and the number and size of the items each user owns.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:     "inactive-csv",
			Usage:    "Output file for inactive users",
			Required: true,
		},
		&cli.StringArg{
			Name:     "permissions-csv",
			Usage:    "Output file for group membership",
			Required: true,
		},
		&cli.StringArg{
			Name:     "content-csv",
			Usage:    "Output file for user content",
			Required: true,
		},
	},
	MaxArgs: cli.NoArgs,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:         "parallel",
			Aliases:      []string{"p"},
			Usage:        "Number of users to look up at once.",
			DefaultValue: workers.DefaultParallel,
		},
	},
	Run: func(ctx context.Context, cmd *cli.Command) error {
		ctx, s, err := cmdutil.Open(ctx, cmd, "users report", cmdutil.NeedPortal)
		if err != nil {
			return err
		}

		files, err := writeUserReports(ctx, s, cmd)
		if err != nil {
			return s.Close(ctx, err, "")
		}

		for _, file := range files {
			if err := s.Upload(ctx, file); err != nil {
				return s.Close(ctx, fmt.Errorf("Failed to upload %s: %w", file, err), "")
			}
		}

		return s.Close(ctx, nil, fmt.Sprintf("wrote %d reports", len(files)))
	},
}

func writeUserReports(ctx context.Context, s *cmdutil.Session, cmd *cli.Command) ([]string, error) {
	self, err := s.Portal.Self(ctx)
	if err != nil {
		return nil, fmt.Errorf("Failed to read portal: %w", err)
	}

	var users []portal.User
	for user, err := range s.Portal.SearchUsers(ctx, arcrest.DefaultPageSize) {
		if err != nil {
			return nil, fmt.Errorf("Failed to list users: %w", err)
		}
		if report.IsSystemAccount(user.Username) {
			continue
		}
		users = append(users, user)
	}

	groups, err := arcrest.Collect(s.Portal.SearchGroups(ctx, self.ID, arcrest.DefaultPageSize))
	if err != nil {
		return nil, fmt.Errorf("Failed to list groups: %w", err)
	}

	log.Info().Int("users", len(users)).Int("groups", len(groups)).Msg("users: loading user details")

	usernames := make([]string, len(users))
	for i, u := range users {
		usernames[i] = u.Username
	}

	pool := workers.New(cmd.GetInt("parallel"), float64(s.Site.RateLimit))
	results := workers.Run(ctx, pool, usernames, func(ctx context.Context, username string) (*userDetail, error) {
		groups, err := s.Portal.UserGroups(ctx, username)
		if err != nil {
			return nil, err
		}
		items, err := s.Portal.UserItems(ctx, username)
		if err != nil {
			return nil, err
		}
		return &userDetail{groups: groups, items: items}, nil
	})

	if failed := workers.Failed(results); len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, r := range failed {
			errs = append(errs, fmt.Errorf("%s: %w", r.ID, r.Err))
		}
		return nil, errors.Join(errs...)
	}

	membership := make(map[string][]portal.Group, len(results))
	items := make(map[string][]portal.Item, len(results))
	for username, r := range results {
		membership[username] = r.Value.groups
		items[username] = r.Value.items
	}

	inactive := cmd.GetStringArg("inactive-csv")
	if err := report.WriteFile(inactive, report.InactiveHeader, report.InactiveUsers(users, time.Now())); err != nil {
		return nil, err
	}

	permissions := cmd.GetStringArg("permissions-csv")
	header, rows := report.Permissions(users, groups, membership)
	if err := report.WriteFile(permissions, header, rows); err != nil {
		return nil, err
	}

	content := cmd.GetStringArg("content-csv")
	if err := report.WriteFile(content, report.ContentHeader, report.Content(users, items)); err != nil {
		return nil, err
	}

	fmt.Printf("%d users, %d groups\n", len(users), len(groups))
	return []string{inactive, permissions, content}, nil
}
