package agsserver

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/paularlott/gisadmin/internal/arcrest"

	"github.com/rs/zerolog/log"
)

const (
	ServiceTypeMap     = "MapServer"
	ServiceTypeFeature = "FeatureServer"

	StateStarted = "STARTED"
	StateStopped = "STOPPED"
)

// Folders that hold the product's own services, they are never listed.
var systemFolders = map[string]bool{
	"system":    true,
	"utilities": true,
}

// Server wraps the REST services directory and the admin API of one server site.
type Server struct {
	rest  *arcrest.Client
	admin *arcrest.Client
}

// New returns a server using rest for the services directory and admin for the admin API,
// admin may be nil when both are published at the same address.
func New(rest *arcrest.Client, admin *arcrest.Client) *Server {
	if admin == nil {
		admin = rest
	}
	return &Server{rest: rest, admin: admin}
}

func (s *Server) REST() *arcrest.Client {
	return s.rest
}

func (s *Server) Admin() *arcrest.Client {
	return s.admin
}

// RESTPath converts a service name such as Maps/Roads.MapServer to its services directory path.
func RESTPath(service string) string {
	if idx := strings.LastIndex(service, "."); idx > 0 {
		return "rest/services/" + escapePath(service[:idx]) + "/" + service[idx+1:]
	}
	return "rest/services/" + escapePath(service)
}

func adminPath(service string) string {
	return "admin/services/" + escapePath(service)
}

// ServiceType is the suffix of a service name, MapServer for Maps/Roads.MapServer.
func ServiceType(service string) string {
	if idx := strings.LastIndex(service, "."); idx >= 0 {
		return service[idx+1:]
	}
	return ""
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

type serviceEntry struct {
	FolderName  string `json:"folderName"`
	ServiceName string `json:"serviceName"`
	Type        string `json:"type"`
}

type serviceListing struct {
	Folders  []string       `json:"folders"`
	Services []serviceEntry `json:"services"`
}

func (e serviceEntry) name() string {
	if e.FolderName == "" || e.FolderName == "/" {
		return e.ServiceName + "." + e.Type
	}
	return e.FolderName + "/" + e.ServiceName + "." + e.Type
}

// ListServices returns every service in the root and the user folders as folder/name.Type.
func (s *Server) ListServices(ctx context.Context) ([]string, error) {
	root := &serviceListing{}
	if err := s.admin.Get(ctx, "admin/services", nil, root); err != nil {
		return nil, err
	}

	var services []string
	for _, e := range root.Services {
		services = append(services, e.name())
	}

	for _, folder := range root.Folders {
		if systemFolders[strings.ToLower(folder)] {
			continue
		}

		folderServices, err := s.ListFolder(ctx, folder)
		if err != nil {
			return nil, err
		}
		services = append(services, folderServices...)
	}

	log.Debug().Int("services", len(services)).Msg("server: listed services")

	return services, nil
}

// ListFolder returns the services of one folder, an empty folder name is the root.
func (s *Server) ListFolder(ctx context.Context, folder string) ([]string, error) {
	endpoint := "admin/services"
	if folder != "" && folder != "/" {
		endpoint = adminPath(folder)
	}

	listing := &serviceListing{}
	if err := s.admin.Get(ctx, endpoint, nil, listing); err != nil {
		return nil, fmt.Errorf("folder %s: %w", folder, err)
	}

	services := make([]string, 0, len(listing.Services))
	for _, e := range listing.Services {
		if e.FolderName == "" && folder != "" {
			e.FolderName = folder
		}
		services = append(services, e.name())
	}

	return services, nil
}

type ServiceStatus struct {
	ConfiguredState string `json:"configuredState"`
	RealTimeState   string `json:"realTimeState"`
}

// Stopped reports a service that is not running, any state other than stopped counts as running.
func (st *ServiceStatus) Stopped() bool {
	return strings.Contains(strings.ToLower(st.RealTimeState), "stopped")
}

func (s *Server) ServiceStatus(ctx context.Context, service string) (*ServiceStatus, error) {
	status := &ServiceStatus{}
	if err := s.admin.Get(ctx, adminPath(service)+"/status", nil, status); err != nil {
		return nil, err
	}
	return status, nil
}

type ServiceInfo struct {
	ServiceName         string `json:"serviceName"`
	Type                string `json:"type"`
	MinInstancesPerNode int    `json:"minInstancesPerNode"`
	MaxInstancesPerNode int    `json:"maxInstancesPerNode"`
}

func (s *Server) ServiceInfo(ctx context.Context, service string) (*ServiceInfo, error) {
	info := &ServiceInfo{}
	if err := s.admin.Get(ctx, adminPath(service), nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

type InstanceSummary struct {
	Busy         int `json:"busy"`
	Free         int `json:"free"`
	Initializing int `json:"initializing"`
	NotCreated   int `json:"notCreated"`
}

func (s *Server) ServiceStatistics(ctx context.Context, service string) (*InstanceSummary, error) {
	var stats struct {
		Summary InstanceSummary `json:"summary"`
	}
	if err := s.admin.Get(ctx, adminPath(service)+"/statistics", nil, &stats); err != nil {
		return nil, err
	}
	return &stats.Summary, nil
}

func (s *Server) StartService(ctx context.Context, service string) error {
	return s.admin.Call(ctx, adminPath(service)+"/start", nil, nil)
}

func (s *Server) StopService(ctx context.Context, service string) error {
	return s.admin.Call(ctx, adminPath(service)+"/stop", nil, nil)
}

// Permissions returns the sorted principals with access to a service or folder.
func (s *Server) Permissions(ctx context.Context, service string) ([]string, error) {
	var resp struct {
		Permissions []struct {
			Principal string `json:"principal"`
		} `json:"permissions"`
	}
	if err := s.admin.Get(ctx, adminPath(service)+"/permissions", nil, &resp); err != nil {
		return nil, err
	}

	principals := make([]string, 0, len(resp.Permissions))
	for _, p := range resp.Permissions {
		principals = append(principals, p.Principal)
	}
	sort.Strings(principals)

	return principals, nil
}
