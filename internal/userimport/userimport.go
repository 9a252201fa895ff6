package userimport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paularlott/gisadmin/internal/portal"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Kind int

const (
	BuiltIn Kind = iota
	Enterprise
)

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "built-in", "builtin", "arcgis", "":
		return BuiltIn, nil
	case "enterprise", "webadaptor":
		return Enterprise, nil
	}
	return BuiltIn, fmt.Errorf("unknown user type %q, use built-in or enterprise", s)
}

func (k Kind) String() string {
	if k == Enterprise {
		return "enterprise"
	}
	return "built-in"
}

func (k Kind) provider() string {
	if k == Enterprise {
		return portal.ProviderEnterprise
	}
	return portal.ProviderBuiltIn
}

var validRoles = map[string]bool{
	"org_user":      true,
	"org_publisher": true,
	"org_admin":     true,
}

var ErrInvalidRole = errors.New("role must be org_user, org_publisher or org_admin")

// RowError is a rejected input line, the rest of the file is still processed.
type RowError struct {
	Line     int
	Username string
	Err      error
}

func (e *RowError) Error() string {
	if e.Username != "" {
		return fmt.Sprintf("line %d (%s): %v", e.Line, e.Username, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

type PortalUser struct {
	Line        int    `yaml:"-"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Email       string `yaml:"email"`
	FullName    string `yaml:"fullname"`
	Role        string `yaml:"role"`
	Description string `yaml:"description"`
}

func (u *PortalUser) validate(kind Kind) error {
	if u.Username == "" {
		return errors.New("username is empty")
	}
	if kind == BuiltIn && u.Password == "" {
		return errors.New("built-in accounts need a password")
	}
	if !validRoles[strings.ToLower(u.Role)] {
		return fmt.Errorf("%w, got %q", ErrInvalidRole, u.Role)
	}
	return nil
}

// NewUser converts the row into a createUser request for the portal.
func (u *PortalUser) NewUser(kind Kind) portal.NewUser {
	password := u.Password
	if kind == Enterprise {
		password = ""
	}

	return portal.NewUser{
		Username:    u.Username,
		Password:    password,
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        strings.ToLower(u.Role),
		Description: u.Description,
		Provider:    kind.provider(),
	}
}

// ParsePortalUsers reads pipe delimited lines.
//
//	built-in:   account|password|email|name|role|description
//	enterprise: login|email|name|role|description
func ParsePortalUsers(r io.Reader, kind Kind) ([]PortalUser, []*RowError, error) {
	want := 6
	format := "<account>|<password>|<email address>|<name>|<role>|<description>"
	if kind == Enterprise {
		want = 5
		format = "<login>|<email address>|<name>|<role>|<description>"
	}

	var (
		users   []PortalUser
		rowErrs []*RowError
	)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		fields := strings.Split(text, "|")
		if len(fields) != want {
			rowErrs = append(rowErrs, &RowError{Line: line, Err: fmt.Errorf("expected %d fields, the format for %s accounts is %s", want, kind, format)})
			continue
		}

		var u PortalUser
		if kind == Enterprise {
			u = PortalUser{Username: fields[0], Email: fields[1], FullName: fields[2], Role: fields[3], Description: fields[4]}
		} else {
			u = PortalUser{Username: fields[0], Password: fields[1], Email: fields[2], FullName: fields[3], Role: fields[4], Description: fields[5]}
		}
		u.Line = line

		if err := u.validate(kind); err != nil {
			rowErrs = append(rowErrs, &RowError{Line: line, Username: u.Username, Err: err})
			continue
		}

		users = append(users, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read users: %w", err)
	}

	return users, rowErrs, nil
}

// ParsePortalUsersYAML reads a YAML list of users with the same fields as the pipe format.
func ParsePortalUsersYAML(r io.Reader, kind Kind) ([]PortalUser, []*RowError, error) {
	var entries []PortalUser
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("failed to parse users: %w", err)
	}

	var (
		users   []PortalUser
		rowErrs []*RowError
	)
	for i, u := range entries {
		u.Line = i + 1
		if err := u.validate(kind); err != nil {
			rowErrs = append(rowErrs, &RowError{Line: u.Line, Username: u.Username, Err: err})
			continue
		}
		users = append(users, u)
	}

	return users, rowErrs, nil
}

// LoadPortalUsers reads a users file, .yaml and .yml files are parsed as YAML and anything else as pipe delimited text.
func LoadPortalUsers(path string, kind Kind) ([]PortalUser, []*RowError, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open users file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParsePortalUsersYAML(file, kind)
	default:
		return ParsePortalUsers(file, kind)
	}
}

type UserCreator interface {
	CreateUser(ctx context.Context, user portal.NewUser) error
}

type Result struct {
	Created []string
	Failed  []*RowError
}

func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d users failed", len(r.Failed), len(r.Failed)+len(r.Created))
}

// ImportPortalUsers creates each user in turn, a failed user is recorded and the rest continue.
func ImportPortalUsers(ctx context.Context, creator UserCreator, users []PortalUser, kind Kind) *Result {
	result := &Result{}

	for _, u := range users {
		if ctx.Err() != nil {
			result.Failed = append(result.Failed, &RowError{Line: u.Line, Username: u.Username, Err: ctx.Err()})
			continue
		}

		if err := creator.CreateUser(ctx, u.NewUser(kind)); err != nil {
			log.Error().Err(err).Str("username", u.Username).Msg("users: failed to create user")
			result.Failed = append(result.Failed, &RowError{Line: u.Line, Username: u.Username, Err: err})
			continue
		}

		log.Info().Str("username", u.Username).Str("role", u.Role).Msg("users: account created")
		result.Created = append(result.Created, u.Username)
	}

	return result
}
