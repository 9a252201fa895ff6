package userimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/paularlott/gisadmin/internal/agsserver"

	"github.com/rs/zerolog/log"
)

// Columns of the server users file, the description is always the last column.
const (
	colUsername = iota
	colRole
	colPrivilege
	colPassword
	colEmail
	colFullName
	minServerColumns
)

var validPrivileges = map[string]bool{
	agsserver.PrivilegeAdminister: true,
	agsserver.PrivilegePublish:    true,
	agsserver.PrivilegeAccess:     true,
}

type ServerRole struct {
	Name        string
	Privilege   string
	Description string
}

// ServerBatch groups the rows of a server users file into roles, users and role membership.
type ServerBatch struct {
	Roles   []ServerRole
	Users   []agsserver.ServerUser
	Members map[string][]string
}

// ParseServerUsers reads username,role,privilege,password,email,fullname,...,description with a header row.
func ParseServerUsers(r io.Reader) (*ServerBatch, []*RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	batch := &ServerBatch{Members: make(map[string][]string)}
	roleIndex := make(map[string]int)
	var rowErrs []*RowError

	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rowErrs = append(rowErrs, &RowError{Line: parseErr.Line, Err: parseErr.Err})
				continue
			}
			return nil, nil, fmt.Errorf("failed to read users: %w", err)
		}

		// Header
		if line == 1 {
			continue
		}

		if len(record) < minServerColumns+1 {
			rowErrs = append(rowErrs, &RowError{Line: line, Err: fmt.Errorf("expected at least %d columns, got %d", minServerColumns+1, len(record))})
			continue
		}

		username := strings.TrimSpace(record[colUsername])
		role := strings.TrimSpace(record[colRole])
		privilege := strings.ToUpper(strings.TrimSpace(record[colPrivilege]))
		description := strings.TrimSpace(record[len(record)-1])

		switch {
		case username == "":
			rowErrs = append(rowErrs, &RowError{Line: line, Err: errors.New("username is empty")})
			continue
		case role == "":
			rowErrs = append(rowErrs, &RowError{Line: line, Username: username, Err: errors.New("role is empty")})
			continue
		case !validPrivileges[privilege]:
			rowErrs = append(rowErrs, &RowError{Line: line, Username: username, Err: fmt.Errorf("privilege must be ADMINISTER, PUBLISH or ACCESS, got %q", record[colPrivilege])})
			continue
		}

		// The last row seen for a role decides its privilege
		if idx, ok := roleIndex[role]; ok {
			batch.Roles[idx] = ServerRole{Name: role, Privilege: privilege, Description: description}
		} else {
			roleIndex[role] = len(batch.Roles)
			batch.Roles = append(batch.Roles, ServerRole{Name: role, Privilege: privilege, Description: description})
		}

		batch.Users = append(batch.Users, agsserver.ServerUser{
			Username:    username,
			Password:    record[colPassword],
			Email:       strings.TrimSpace(record[colEmail]),
			FullName:    strings.TrimSpace(record[colFullName]),
			Description: description,
		})
		batch.Members[role] = append(batch.Members[role], username)
	}

	return batch, rowErrs, nil
}

type ServerSecurity interface {
	AddRole(ctx context.Context, role string, description string) error
	AssignPrivilege(ctx context.Context, role string, privilege string) error
	AddUser(ctx context.Context, user agsserver.ServerUser) error
	AddUsersToRole(ctx context.Context, role string, usernames []string) error
}

// ApplyServerBatch adds the roles, then the users, then the role membership, failures are collected and the rest continue.
func ApplyServerBatch(ctx context.Context, security ServerSecurity, batch *ServerBatch) []error {
	var errs []error

	for _, role := range batch.Roles {
		if err := security.AddRole(ctx, role.Name, role.Description); err != nil {
			log.Error().Err(err).Str("role", role.Name).Msg("users: failed to add role")
			errs = append(errs, fmt.Errorf("role %s: %w", role.Name, err))
			continue
		}
		if err := security.AssignPrivilege(ctx, role.Name, role.Privilege); err != nil {
			log.Error().Err(err).Str("role", role.Name).Msg("users: failed to assign privilege")
			errs = append(errs, fmt.Errorf("role %s privilege: %w", role.Name, err))
			continue
		}
		log.Info().Str("role", role.Name).Str("privilege", role.Privilege).Msg("users: role added")
	}

	added := make(map[string]bool, len(batch.Users))
	for _, user := range batch.Users {
		if err := security.AddUser(ctx, user); err != nil {
			log.Error().Err(err).Str("username", user.Username).Msg("users: failed to add user")
			errs = append(errs, fmt.Errorf("user %s: %w", user.Username, err))
			continue
		}
		added[user.Username] = true
		log.Info().Str("username", user.Username).Msg("users: user added")
	}

	for _, role := range batch.Roles {
		var members []string
		for _, username := range batch.Members[role.Name] {
			if added[username] {
				members = append(members, username)
			}
		}
		if len(members) == 0 {
			continue
		}

		if err := security.AddUsersToRole(ctx, role.Name, members); err != nil {
			log.Error().Err(err).Str("role", role.Name).Msg("users: failed to add users to role")
			errs = append(errs, fmt.Errorf("role %s members: %w", role.Name, err))
		}
	}

	return errs
}
