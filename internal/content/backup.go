package content

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/internal/portal"
	"github.com/paularlott/gisadmin/internal/workers"

	"github.com/rs/zerolog/log"
)

const (
	TypeFeatureService = "feature service"
	TypeCodeAttachment = "code attachment"
	KeywordHosted      = "Hosted Service"

	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 30 * time.Minute
)

var ErrSkipped = errors.New("item type is not downloaded")

// ItemSource is the part of a portal used to back up content.
type ItemSource interface {
	Item(ctx context.Context, id string) (*portal.Item, error)
	SearchItems(ctx context.Context, query string, sortField string, pageSize int) iter.Seq2[portal.Item, error]
	Export(ctx context.Context, owner string, itemID string, format string) (*portal.ExportJob, error)
	WaitForExport(ctx context.Context, owner string, job *portal.ExportJob, interval time.Duration, maxWait time.Duration) error
	DeleteItem(ctx context.Context, owner string, itemID string) error
	DownloadItem(ctx context.Context, id string, destination string, chunkSize int) (int64, error)
}

type Options struct {
	Dest         string
	ChunkSize    int
	ExportFormat string
	PollInterval time.Duration
	MaxWait      time.Duration
}

func (o *Options) defaults() {
	if o.ExportFormat == "" {
		o.ExportFormat = portal.ExportFormatFileGeodatabase
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}
}

// Download is one item written to disk.
type Download struct {
	Item     portal.Item
	Path     string
	Bytes    int64
	Exported bool
}

// BackupDir is the dated folder a full backup is written to.
func BackupDir(dest string, now time.Time) string {
	return filepath.Join(dest, "AGSBackup-"+now.Format("20060102"))
}

// SearchAll returns the ids of every item matching query.
func SearchAll(ctx context.Context, src ItemSource, query string) ([]string, error) {
	var ids []string
	for item, err := range src.SearchItems(ctx, query, "", 0) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

var unsafeChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")

// FileName picks the local file name of an item, items without an extension are JSON.
func FileName(item *portal.Item) string {
	name := item.Name
	if name == "" {
		name = item.Title
	}
	if name == "" {
		name = item.ID
	}
	name = unsafeChars.Replace(strings.TrimSpace(name))

	if filepath.Ext(name) == "" {
		name += ".json"
	}
	return name
}

// DownloadOne writes a single item into opts.Dest, hosted feature services are exported first
// and the temporary export item removed afterwards.
func DownloadOne(ctx context.Context, src ItemSource, id string, opts Options) (*Download, error) {
	opts.defaults()

	item, err := src.Item(ctx, id)
	if err != nil {
		return nil, err
	}

	itemType := strings.ToLower(item.Type)
	if itemType == TypeCodeAttachment {
		log.Warn().Str("item", item.ID).Str("title", item.Title).Msg("content: not downloading code attachment")
		return nil, ErrSkipped
	}

	if itemType == TypeFeatureService && item.HasKeyword(KeywordHosted) {
		return exportAndDownload(ctx, src, item, opts)
	}

	log.Info().Str("item", item.ID).Str("title", item.Title).Msg("content: downloading item data")

	path := filepath.Join(opts.Dest, item.ID+"-"+FileName(item))
	written, err := src.DownloadItem(ctx, item.ID, path, opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	return &Download{Item: *item, Path: path, Bytes: written}, nil
}

// ExportOne exports a feature service item in opts.ExportFormat and downloads the result.
func ExportOne(ctx context.Context, src ItemSource, id string, opts Options) (*Download, error) {
	opts.defaults()

	item, err := src.Item(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.ToLower(item.Type) != TypeFeatureService {
		return nil, fmt.Errorf("item %s is a %s, only feature services can be exported", id, item.Type)
	}

	return exportAndDownload(ctx, src, item, opts)
}

func exportAndDownload(ctx context.Context, src ItemSource, item *portal.Item, opts Options) (*Download, error) {
	log.Info().Str("item", item.ID).Str("title", item.Title).Str("format", opts.ExportFormat).Msg("content: exporting feature service")

	job, err := src.Export(ctx, item.Owner, item.ID, opts.ExportFormat)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", item.ID, err)
	}

	// The export item is temporary whatever happens to the download
	defer func() {
		if err := src.DeleteItem(context.WithoutCancel(ctx), item.Owner, job.ExportItemID); err != nil {
			log.Warn().Err(err).Str("item", job.ExportItemID).Msg("content: failed to delete export item")
		}
	}()

	if err := src.WaitForExport(ctx, item.Owner, job, opts.PollInterval, opts.MaxWait); err != nil {
		return nil, err
	}

	path := filepath.Join(opts.Dest, item.ID+"-"+exportFileName(item, opts.ExportFormat))
	written, err := src.DownloadItem(ctx, job.ExportItemID, path, opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	return &Download{Item: *item, Path: path, Bytes: written, Exported: true}, nil
}

func exportFileName(item *portal.Item, format string) string {
	name := item.Title
	if name == "" {
		name = item.ID
	}
	name = unsafeChars.Replace(strings.TrimSpace(name))

	switch strings.ToLower(format) {
	case "csv":
		return name + ".csv"
	case "geojson":
		return name + ".geojson"
	}
	return name + ".zip"
}

// Backup downloads every id on the pool, failures and skipped items are reported per id.
func Backup(ctx context.Context, src ItemSource, pool *workers.Pool, ids []string, opts Options) (map[string]workers.Result[*Download], error) {
	if err := os.MkdirAll(opts.Dest, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.Dest, err)
	}

	log.Info().Int("items", len(ids)).Int("parallel", pool.Parallel()).Str("dest", opts.Dest).Msg("content: starting download")

	results := workers.Run(ctx, pool, ids, func(ctx context.Context, id string) (*Download, error) {
		return DownloadOne(ctx, src, id, opts)
	})

	return results, nil
}

// Summarize counts downloaded, skipped and failed items.
func Summarize(results map[string]workers.Result[*Download]) (downloaded int, skipped int, failed []workers.Result[*Download]) {
	for _, r := range results {
		switch {
		case r.Err == nil:
			downloaded++
		case errors.Is(r.Err, ErrSkipped):
			skipped++
		}
	}

	for _, r := range workers.Failed(results) {
		if !errors.Is(r.Err, ErrSkipped) {
			failed = append(failed, r)
		}
	}
	return downloaded, skipped, failed
}
