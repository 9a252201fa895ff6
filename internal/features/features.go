package features

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/internal/arcrest"

	"github.com/rs/zerolog/log"
)

const DefaultBatchSize = 500

type Feature struct {
	Attributes map[string]any `json:"attributes"`
}

type QueryResult struct {
	ObjectIDField         string    `json:"objectIdFieldName"`
	Features              []Feature `json:"features"`
	ExceededTransferLimit bool      `json:"exceededTransferLimit"`
}

type DeleteResult struct {
	ObjectID int64 `json:"objectId"`
	Success  bool  `json:"success"`
}

// DeleteResponse carries per feature results, some servers only return success for a delete by where.
type DeleteResponse struct {
	Results []DeleteResult `json:"deleteResults"`
	Success bool           `json:"success"`
}

// Layer is a single feature service layer addressed by its full URL.
type Layer struct {
	client *arcrest.Client
	url    string
}

func NewLayer(client *arcrest.Client, layerURL string) *Layer {
	return &Layer{client: client, url: strings.TrimRight(layerURL, "/")}
}

func (l *Layer) URL() string {
	return l.url
}

// Query returns one page of features starting at offset, the server sets ExceededTransferLimit
// when more pages follow.
func (l *Layer) Query(ctx context.Context, where string, outFields string, offset int) (*QueryResult, error) {
	params := arcrest.Params{
		"where":     where,
		"outFields": outFields,
	}
	if offset > 0 {
		params["resultOffset"] = strconv.Itoa(offset)
	}

	result := &QueryResult{}
	if err := l.client.Call(ctx, l.url+"/query", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (l *Layer) DeleteWhere(ctx context.Context, where string) (*DeleteResponse, error) {
	resp := &DeleteResponse{}
	if err := l.client.Call(ctx, l.url+"/deleteFeatures", arcrest.Params{"where": where}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func attribute(attrs map[string]any, name string) (any, bool) {
	if v, ok := attrs[name]; ok {
		return v, true
	}
	for k, v := range attrs {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// SelectStale returns the object ids of features whose date field, in epoch milliseconds, is before cutoff.
// Features with a null date are kept.
func SelectStale(result *QueryResult, dateField string, cutoff time.Time) ([]int64, error) {
	idField := result.ObjectIDField
	if idField == "" {
		idField = "OBJECTID"
	}
	cutoffMs := cutoff.UnixMilli()

	var ids []int64
	for _, f := range result.Features {
		raw, ok := attribute(f.Attributes, dateField)
		if !ok {
			return nil, fmt.Errorf("field %s not found in layer", dateField)
		}
		if raw == nil {
			continue
		}

		ms, ok := toInt64(raw)
		if !ok {
			return nil, fmt.Errorf("field %s is not a date, got %v", dateField, raw)
		}
		if ms >= cutoffMs {
			continue
		}

		rawID, _ := attribute(f.Attributes, idField)
		id, ok := toInt64(rawID)
		if !ok {
			return nil, fmt.Errorf("feature has no %s", idField)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// WhereObjectIDs builds OBJECTID IN (...) for a delete request.
func WhereObjectIDs(field string, ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return field + " IN (" + strings.Join(parts, ",") + ")"
}

func batches(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = DefaultBatchSize
	}

	var out [][]int64
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

type FeatureLayer interface {
	Query(ctx context.Context, where string, outFields string, offset int) (*QueryResult, error)
	DeleteWhere(ctx context.Context, where string) (*DeleteResponse, error)
}

// QueryAll pages through every feature matching where, following the transfer limit.
func QueryAll(ctx context.Context, layer FeatureLayer, where string, outFields string) (*QueryResult, error) {
	all := &QueryResult{}

	for pages := 1; ; pages++ {
		page, err := layer.Query(ctx, where, outFields, len(all.Features))
		if err != nil {
			return nil, err
		}
		if all.ObjectIDField == "" {
			all.ObjectIDField = page.ObjectIDField
		}
		all.Features = append(all.Features, page.Features...)

		if !page.ExceededTransferLimit || len(page.Features) == 0 {
			log.Debug().Int("pages", pages).Int("features", len(all.Features)).Msg("features: query complete")
			return all, nil
		}
	}
}

// ParseMaxAge reads a Go duration, or a whole number of days such as 30d.
func ParseMaxAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid age %q, use a duration such as 72h or 30d", s)
	}
	return d, nil
}

type PurgeOptions struct {
	DateField string
	MaxAge    time.Duration
	DryRun    bool
	BatchSize int
	Now       time.Time
}

type PurgeResult struct {
	Scanned int
	Stale   []int64
	Deleted int
	Failed  []int64
}

// Purge deletes the features older than MaxAge, with DryRun only the stale ids are reported.
func Purge(ctx context.Context, layer FeatureLayer, opts PurgeOptions) (*PurgeResult, error) {
	if opts.DateField == "" {
		return nil, fmt.Errorf("a date field is required")
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	query, err := QueryAll(ctx, layer, "1=1", "*")
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}

	stale, err := SelectStale(query, opts.DateField, now.Add(-opts.MaxAge))
	if err != nil {
		return nil, err
	}

	result := &PurgeResult{Scanned: len(query.Features), Stale: stale}
	log.Info().Int("scanned", result.Scanned).Int("stale", len(stale)).Bool("dry_run", opts.DryRun).Msg("features: stale features selected")

	if opts.DryRun || len(stale) == 0 {
		return result, nil
	}

	idField := query.ObjectIDField
	if idField == "" {
		idField = "OBJECTID"
	}

	for _, batch := range batches(stale, opts.BatchSize) {
		resp, err := layer.DeleteWhere(ctx, WhereObjectIDs(idField, batch))
		if err != nil {
			return result, fmt.Errorf("failed to delete features: %w", err)
		}

		if len(resp.Results) == 0 {
			if resp.Success {
				result.Deleted += len(batch)
			} else {
				result.Failed = append(result.Failed, batch...)
			}
			continue
		}

		for _, d := range resp.Results {
			if d.Success {
				result.Deleted++
			} else {
				result.Failed = append(result.Failed, d.ObjectID)
			}
		}
	}

	log.Info().Int("deleted", result.Deleted).Int("failed", len(result.Failed)).Msg("features: purge complete")

	return result, nil
}
