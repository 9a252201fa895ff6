package report

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/internal/portal"
)

const (
	InactiveDays = 365
	dateFormat   = "02/01/2006 15:04:05"
	bytesPerMB   = 1024 * 1024
)

var (
	InactiveHeader    = []string{"Name", "Email", "Level", "Role", "Date Created", "Last Login", "Days Since Last Login"}
	PermissionsHeader = []string{"Name", "Email", "Level", "Role"}
	ContentHeader     = []string{"Name", "Email", "Level", "Role", "Number of Items", "Data Usage (MB)"}
)

// Built in accounts that are never reported on.
var systemAccounts = map[string]bool{
	"system_publisher":  true,
	"esri_boundaries":   true,
	"esri_demographics": true,
	"esri_livingatlas":  true,
	"esri_nav":          true,
}

func IsSystemAccount(username string) bool {
	return systemAccounts[strings.ToLower(username)]
}

func formatEpochMs(ms int64) string {
	return time.UnixMilli(ms).Format(dateFormat)
}

// InactiveUsers lists accounts not used for more than InactiveDays, counting from the account
// creation for accounts that never logged in, most inactive first.
func InactiveUsers(users []portal.User, now time.Time) [][]string {
	type row struct {
		cells []string
		days  int
	}
	var rows []row

	for _, u := range users {
		if IsSystemAccount(u.Username) {
			continue
		}

		lastLogin := "Not logged in"
		since := u.Created
		if u.LastLogin > 0 {
			lastLogin = formatEpochMs(u.LastLogin)
			since = u.LastLogin
		}

		days := int(now.Sub(time.UnixMilli(since)).Hours() / 24)
		if days <= InactiveDays {
			continue
		}

		rows = append(rows, row{
			cells: []string{u.Username, u.Email, u.Level, u.Role, formatEpochMs(u.Created), lastLogin, strconv.Itoa(days)},
			days:  days,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].days > rows[j].days })

	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.cells
	}
	return out
}

// Permissions returns one column per group title with Yes for each member, and the matching header.
func Permissions(users []portal.User, groups []portal.Group, membership map[string][]portal.Group) ([]string, [][]string) {
	header := append([]string{}, PermissionsHeader...)
	for _, g := range groups {
		header = append(header, g.Title)
	}

	var rows [][]string
	for _, u := range users {
		if IsSystemAccount(u.Username) {
			continue
		}

		member := make(map[string]bool)
		for _, g := range membership[u.Username] {
			member[g.ID] = true
		}

		row := []string{u.Username, u.Email, u.Level, u.Role}
		for _, g := range groups {
			if member[g.ID] {
				row = append(row, "Yes")
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return header, rows
}

// Content reports the item count and storage in megabytes of each user, largest first.
func Content(users []portal.User, items map[string][]portal.Item) [][]string {
	type row struct {
		cells []string
		bytes int64
	}
	var rows []row

	for _, u := range users {
		if IsSystemAccount(u.Username) {
			continue
		}

		var size int64
		for _, item := range items[u.Username] {
			size += item.Size
		}

		mb := float64(size) / bytesPerMB
		rows = append(rows, row{
			cells: []string{u.Username, u.Email, u.Level, u.Role, strconv.Itoa(len(items[u.Username])), strconv.FormatFloat(mb, 'f', 2, 64)},
			bytes: size,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].bytes > rows[j].bytes })

	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.cells
	}
	return out
}
