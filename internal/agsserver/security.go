package agsserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/paularlott/gisadmin/internal/arcrest"
)

const (
	PrivilegeAdminister = "ADMINISTER"
	PrivilegePublish    = "PUBLISH"
	PrivilegeAccess     = "ACCESS"
)

type ServerUser struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	FullName    string `json:"fullname"`
	Email       string `json:"email"`
	Description string `json:"description"`
}

func (s *Server) AddRole(ctx context.Context, role string, description string) error {
	payload, err := json.Marshal(map[string]string{"rolename": role, "description": description})
	if err != nil {
		return err
	}
	return s.admin.Call(ctx, "admin/security/roles/add", arcrest.Params{"Role": string(payload)}, nil)
}

func (s *Server) AssignPrivilege(ctx context.Context, role string, privilege string) error {
	params := arcrest.Params{
		"rolename":  role,
		"privilege": strings.ToUpper(privilege),
	}
	return s.admin.Call(ctx, "admin/security/roles/assignPrivilege", params, nil)
}

func (s *Server) AddUser(ctx context.Context, user ServerUser) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.admin.Call(ctx, "admin/security/users/add", arcrest.Params{"user": string(payload)}, nil)
}

func (s *Server) AddUsersToRole(ctx context.Context, role string, usernames []string) error {
	params := arcrest.Params{
		"rolename": role,
		"users":    strings.Join(usernames, ","),
	}
	return s.admin.Call(ctx, "admin/security/roles/addUsersToRole", params, nil)
}
