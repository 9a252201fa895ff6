package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paularlott/gisadmin/internal/agsserver"

	"github.com/rs/zerolog/log"
)

type Result string

const (
	ResultRunning   Result = "running"
	ResultStopped   Result = "stopped"
	ResultError     Result = "error"
	ResultDataError Result = "data error"
)

// ServiceSource is the part of a server the check reads from.
type ServiceSource interface {
	SiteInfo(ctx context.Context) (*agsserver.SiteInfo, error)
	ListServices(ctx context.Context) ([]string, error)
	ServiceStatus(ctx context.Context, service string) (*agsserver.ServiceStatus, error)
	Describe(ctx context.Context, service string) (*agsserver.ServiceDescription, error)
	CountFeatures(ctx context.Context, service string, layerID int) (int, error)
}

type Options struct {
	// Service limits the check to one service, a stopped service is then always an error.
	Service        string
	StoppedIsError bool
}

type ServiceResult struct {
	Service string
	State   string
	Result  Result
	Message string
}

type Summary struct {
	Running    int
	Stopped    int
	Errors     int
	DataErrors int
	Services   []ServiceResult
}

// Healthy reports a run without service or data errors.
func (s *Summary) Healthy() bool {
	return s.Errors == 0 && s.DataErrors == 0
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d running, %d stopped, %d errors, %d data errors", s.Running, s.Stopped, s.Errors, s.DataErrors)
}

// Messages lists the services that need attention.
func (s *Summary) Messages() []string {
	var messages []string
	for _, r := range s.Services {
		if r.Message != "" {
			messages = append(messages, fmt.Sprintf("%s: %s", r.Service, r.Message))
		}
	}
	return messages
}

// Rows returns Service,Status,Result rows sorted by service.
func (s *Summary) Rows() [][]string {
	rows := make([][]string, 0, len(s.Services))
	for _, r := range s.Services {
		rows = append(rows, []string{r.Service, r.State, string(r.Result)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return rows
}

// States maps each service to its result, used to detect changes between runs.
func (s *Summary) States() map[string]string {
	states := make(map[string]string, len(s.Services))
	for _, r := range s.Services {
		states[r.Service] = string(r.Result)
	}
	return states
}

// Check classifies every service, or the one named in opts, as running, stopped, broken or without data.
func Check(ctx context.Context, src ServiceSource, opts Options) (*Summary, error) {
	if _, err := src.SiteInfo(ctx); err != nil {
		return nil, fmt.Errorf("site is not responding: %w", err)
	}

	services := []string{opts.Service}
	stoppedIsError := opts.StoppedIsError || opts.Service != ""
	if opts.Service == "" {
		var err error
		services, err = src.ListServices(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list services: %w", err)
		}
	}

	summary := &Summary{}
	for _, service := range services {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		r := checkService(ctx, src, service, stoppedIsError)
		switch r.Result {
		case ResultRunning:
			summary.Running++
		case ResultStopped:
			summary.Stopped++
		case ResultError:
			if strings.EqualFold(r.State, agsserver.StateStopped) {
				summary.Stopped++
			}
			summary.Errors++
		case ResultDataError:
			summary.Running++
			summary.DataErrors++
		}

		log.Debug().Str("service", service).Str("result", string(r.Result)).Str("message", r.Message).Msg("availability: checked")
		summary.Services = append(summary.Services, r)
	}

	return summary, nil
}

func checkService(ctx context.Context, src ServiceSource, service string, stoppedIsError bool) ServiceResult {
	r := ServiceResult{Service: service}

	status, err := src.ServiceStatus(ctx, service)
	if err != nil {
		r.Result = ResultError
		r.Message = "status unavailable: " + err.Error()
		return r
	}
	r.State = status.RealTimeState

	if status.Stopped() {
		r.Result = ResultStopped
		if stoppedIsError {
			r.Result = ResultError
			r.Message = "service is stopped"
		}
		return r
	}

	desc, err := src.Describe(ctx, service)
	if err != nil {
		r.Result = ResultError
		r.Message = err.Error()
		return r
	}

	r.Result = ResultRunning

	switch agsserver.ServiceType(service) {
	case agsserver.ServiceTypeMap, agsserver.ServiceTypeFeature:
		layer, err := desc.FirstDataLayer()
		if err != nil {
			r.Result = ResultDataError
			r.Message = "No layers"
			return r
		}

		if _, err := src.CountFeatures(ctx, service, layer.ID); err != nil {
			r.Result = ResultDataError
			r.Message = "No data"
			if !errors.Is(err, agsserver.ErrNoData) {
				r.Message = "No data: " + err.Error()
			}
		}
	}

	return r
}

type Change struct {
	Service string
	From    string
	To      string
}

func (c Change) String() string {
	if c.From == "" {
		return fmt.Sprintf("%s is %s", c.Service, c.To)
	}
	if c.To == "" {
		return fmt.Sprintf("%s is no longer listed", c.Service)
	}
	return fmt.Sprintf("%s changed from %s to %s", c.Service, c.From, c.To)
}

// Changes compares the service results with a previous run, sorted by service.
func Changes(previous map[string]string, current map[string]string) []Change {
	var changes []Change

	for service, to := range current {
		if from := previous[service]; from != to {
			changes = append(changes, Change{Service: service, From: from, To: to})
		}
	}
	for service, from := range previous {
		if _, ok := current[service]; !ok {
			changes = append(changes, Change{Service: service, From: from})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Service < changes[j].Service })
	return changes
}
