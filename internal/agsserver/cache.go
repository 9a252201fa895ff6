package agsserver

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/paularlott/gisadmin/internal/arcrest"

	"github.com/BurntSushi/toml"
)

const (
	cachingTools      = "rest/services/System/CachingTools/GPServer/"
	ToolCreateCache   = "Create Map Cache"
	ToolManageCache   = "Manage Map Cache Tiles"
	UpdateRecreateAll = "RECREATE_ALL_TILES"
	UpdateEmptyTiles  = "RECREATE_EMPTY_TILES"
)

// CacheSettings are the parameters of a new map cache, loaded from a TOML file.
type CacheSettings struct {
	OutFolder              string `toml:"out_folder"`
	TileOrigin             string `toml:"tile_origin"`
	Scales                 string `toml:"scales"`
	StorageFormat          string `toml:"storage_format"`
	CacheFormat            string `toml:"cache_format"`
	TileCompressionQuality int    `toml:"tile_compression_quality"`
	DPI                    int    `toml:"dpi"`
	TileWidth              int    `toml:"tile_width"`
	TileHeight             int    `toml:"tile_height"`
	UseLocalCacheDir       bool   `toml:"use_local_cache_dir"`
}

func LoadCacheSettings(path string) (*CacheSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache settings: %w", err)
	}

	settings := &CacheSettings{
		StorageFormat:          "COMPACT",
		CacheFormat:            "MIXED",
		TileCompressionQuality: 75,
		DPI:                    96,
		TileWidth:              256,
		TileHeight:             256,
	}
	if _, err := toml.Decode(string(data), settings); err != nil {
		return nil, fmt.Errorf("failed to parse cache settings %s: %w", path, err)
	}

	if settings.OutFolder == "" || settings.Scales == "" {
		return nil, fmt.Errorf("cache settings %s must set out_folder and scales", path)
	}

	return settings, nil
}

type JobStatus struct {
	JobID     string `json:"jobId"`
	JobStatus string `json:"jobStatus"`
	Messages  []struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"messages"`
}

// Healthy reports a job that has been accepted and has not failed.
func (j *JobStatus) Healthy() bool {
	switch strings.ToLower(j.JobStatus) {
	case "esrijobsubmitted", "esrijobwaiting", "esrijobexecuting", "esrijobsucceeded":
		return true
	}
	return false
}

func (j *JobStatus) Finished() bool {
	switch strings.ToLower(j.JobStatus) {
	case "esrijobsucceeded", "esrijobfailed", "esrijobcancelled", "esrijobtimedout":
		return true
	}
	return false
}

func cacheServiceURL(service string) string {
	name := service
	if idx := strings.LastIndex(service, "."); idx > 0 {
		name = service[:idx]
	}
	return name + ":MapServer"
}

func (s *Server) submitJob(ctx context.Context, tool string, params arcrest.Params) (*JobStatus, error) {
	job := &JobStatus{}
	if err := s.rest.Call(ctx, cachingTools+url.PathEscape(tool)+"/submitJob", params, job); err != nil {
		return nil, err
	}
	if job.JobID == "" {
		return nil, fmt.Errorf("%s returned no job id", tool)
	}
	return job, nil
}

// SubmitCreateCache starts building a new cache for a map service.
func (s *Server) SubmitCreateCache(ctx context.Context, service string, settings *CacheSettings) (*JobStatus, error) {
	params := arcrest.Params{
		"service_url":              cacheServiceURL(service),
		"out_folder":               settings.OutFolder,
		"tile_origin":              settings.TileOrigin,
		"levels":                   settings.Scales,
		"storage_format":           settings.StorageFormat,
		"cache_format":             settings.CacheFormat,
		"tile_compression_quality": strconv.Itoa(settings.TileCompressionQuality),
		"dpi":                      strconv.Itoa(settings.DPI),
		"tile_width":               strconv.Itoa(settings.TileWidth),
		"tile_height":              strconv.Itoa(settings.TileHeight),
		"use_local_cache_dir":      strconv.FormatBool(settings.UseLocalCacheDir),
	}
	return s.submitJob(ctx, ToolCreateCache, params)
}

// SubmitManageCache rebuilds the tiles of an existing cache at the given scales.
func (s *Server) SubmitManageCache(ctx context.Context, service string, scales []float64, threads int, mode string) (*JobStatus, error) {
	levels := make([]string, 0, len(scales))
	for _, scale := range scales {
		levels = append(levels, strconv.FormatFloat(scale, 'f', -1, 64))
	}

	params := arcrest.Params{
		"service_url":  cacheServiceURL(service),
		"levels":       strings.Join(levels, ";"),
		"thread_count": strconv.Itoa(threads),
		"update_mode":  mode,
	}
	return s.submitJob(ctx, ToolManageCache, params)
}

func (s *Server) CacheJobStatus(ctx context.Context, tool string, jobID string) (*JobStatus, error) {
	job := &JobStatus{}
	if err := s.rest.Call(ctx, cachingTools+url.PathEscape(tool)+"/jobs/"+url.PathEscape(jobID), nil, job); err != nil {
		return nil, err
	}
	return job, nil
}
