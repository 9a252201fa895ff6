package drawtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paularlott/gisadmin/internal/agsserver"
	"github.com/paularlott/gisadmin/internal/arcrest"

	"github.com/rs/zerolog/log"
)

const (
	ImageWidth  = 1280
	ImageHeight = 768
	DefaultDPI  = 96

	metresPerInch = 0.0254

	// Tile positions this close to a whole tile count as on the boundary
	gridEpsilon = 1e-6
)

var (
	CachedHeader  = []string{"Scale", "Number of Tiles Found", "Number of Tiles Missing", "Draw Time (Seconds)"}
	DynamicHeader = []string{"Scale", "Draw Time (Seconds)"}
)

// MapSource is the part of a server used to draw a map service.
type MapSource interface {
	Describe(ctx context.Context, service string) (*agsserver.ServiceDescription, error)
	Tile(ctx context.Context, service string, level int, row int, col int) ([]byte, error)
	ExportMap(ctx context.Context, service string, req agsserver.ExportRequest) error
}

type Options struct {
	BBox    agsserver.Extent
	Scales  []float64 // dynamic services only, cached services use their levels
	Format  string
	Queries int
}

type ScaleResult struct {
	Scale    float64
	Found    int
	Missing  int
	DrawTime time.Duration // total over all queries
}

type Result struct {
	Cached  bool
	Queries int
	Scales  []ScaleResult
}

// ParseBBox reads "xmin ymin xmax ymax", commas are accepted as separators too.
func ParseBBox(s string) (agsserver.Extent, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) != 4 {
		return agsserver.Extent{}, fmt.Errorf("bounding box needs 4 coordinates, got %d", len(fields))
	}

	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return agsserver.Extent{}, fmt.Errorf("invalid bounding box coordinate %q", f)
		}
		v[i] = n
	}

	if v[2] <= v[0] || v[3] <= v[1] {
		return agsserver.Extent{}, errors.New("bounding box max must be greater than min")
	}

	return agsserver.Extent{XMin: v[0], YMin: v[1], XMax: v[2], YMax: v[3]}, nil
}

// ParseScales reads scales separated by ; or ,.
func ParseScales(s string) ([]float64, error) {
	var scales []float64
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' || r == ' ' }) {
		n, err := strconv.ParseFloat(strings.TrimPrefix(f, "1:"), 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid scale %q", f)
		}
		scales = append(scales, n)
	}
	return scales, nil
}

// TileRange is the half open block of tiles a request covers.
type TileRange struct {
	MinCol, MaxCol int
	MinRow, MaxRow int
}

func (r TileRange) Count() int {
	if r.MaxCol <= r.MinCol || r.MaxRow <= r.MinRow {
		return 0
	}
	return (r.MaxCol - r.MinCol) * (r.MaxRow - r.MinRow)
}

// TilesAround finds the tiles an ImageWidth x ImageHeight view centred on centre would draw at lod.
// Map units are assumed to be metres.
func TilesAround(info *agsserver.TileInfo, lod agsserver.LOD, centre agsserver.Point) TileRange {
	dpi := float64(info.DPI)
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	halfX := (ImageWidth / dpi * metresPerInch * lod.Scale) / 2
	halfY := (ImageHeight / dpi * metresPerInch * lod.Scale) / 2

	tileWidth := lod.Resolution * float64(info.Cols)
	tileHeight := lod.Resolution * float64(info.Rows)

	col := func(x float64) float64 { return (x - info.Origin.X) / tileWidth }
	row := func(y float64) float64 { return (info.Origin.Y - y) / tileHeight }

	// Max bounds are exclusive, a view edge inside a tile still draws that tile
	return TileRange{
		MinCol: int(math.Floor(col(centre.X-halfX) + gridEpsilon)),
		MaxCol: int(math.Ceil(col(centre.X+halfX) - gridEpsilon)),
		MinRow: int(math.Floor(row(centre.Y+halfY) + gridEpsilon)),
		MaxRow: int(math.Ceil(row(centre.Y-halfY) - gridEpsilon)),
	}
}

func isMissing(err error) bool {
	var apiErr *arcrest.ApiError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// Run times drawing a map service, tile by tile when it is cached, otherwise with export requests.
func Run(ctx context.Context, src MapSource, service string, opts Options) (*Result, error) {
	if opts.Queries <= 0 {
		opts.Queries = 1
	}

	desc, err := src.Describe(ctx, service)
	if err != nil {
		return nil, err
	}

	if desc.TileInfo != nil && len(desc.TileInfo.LODs) > 0 {
		log.Info().Str("service", service).Msg("drawtest: map service is cached")
		return runCached(ctx, src, service, desc.TileInfo, opts)
	}

	log.Info().Str("service", service).Msg("drawtest: map service is dynamic")
	if len(opts.Scales) == 0 {
		return nil, errors.New("scales are required for a dynamic map service")
	}
	return runDynamic(ctx, src, service, opts)
}

func runCached(ctx context.Context, src MapSource, service string, info *agsserver.TileInfo, opts Options) (*Result, error) {
	centre := agsserver.Point{
		X: opts.BBox.XMin + (opts.BBox.XMax-opts.BBox.XMin)/2,
		Y: opts.BBox.YMin + (opts.BBox.YMax-opts.BBox.YMin)/2,
	}

	result := &Result{Cached: true, Queries: opts.Queries, Scales: make([]ScaleResult, len(info.LODs))}
	for i, lod := range info.LODs {
		result.Scales[i].Scale = lod.Scale
	}

	for q := 0; q < opts.Queries; q++ {
		log.Debug().Int("query", q+1).Msg("drawtest: fetching tiles")

		for i, lod := range info.LODs {
			tiles := TilesAround(info, lod, centre)
			found, missing := 0, 0
			var elapsed time.Duration

			for col := tiles.MinCol; col < tiles.MaxCol; col++ {
				for row := tiles.MinRow; row < tiles.MaxRow; row++ {
					start := time.Now()
					_, err := src.Tile(ctx, service, lod.Level, row, col)
					if err != nil {
						if isMissing(err) {
							missing++
							continue
						}
						return nil, fmt.Errorf("tile %d/%d/%d: %w", lod.Level, row, col, err)
					}
					elapsed += time.Since(start)
					found++
				}
			}

			log.Debug().
				Float64("scale", lod.Scale).
				Int("found", found).
				Int("missing", missing).
				Dur("draw_time", elapsed).
				Msg("drawtest: level done")

			// Tile counts are the same for every query, draw time accumulates
			if q == 0 {
				result.Scales[i].Found = found
				result.Scales[i].Missing = missing
			}
			result.Scales[i].DrawTime += elapsed
		}
	}

	return result, nil
}

func runDynamic(ctx context.Context, src MapSource, service string, opts Options) (*Result, error) {
	result := &Result{Queries: opts.Queries, Scales: make([]ScaleResult, len(opts.Scales))}
	for i, scale := range opts.Scales {
		result.Scales[i].Scale = scale
	}

	for q := 0; q < opts.Queries; q++ {
		for i, scale := range opts.Scales {
			start := time.Now()
			err := src.ExportMap(ctx, service, agsserver.ExportRequest{
				BBox:   opts.BBox,
				Scale:  scale,
				Width:  ImageWidth,
				Height: ImageHeight,
				DPI:    DefaultDPI,
				Format: opts.Format,
			})
			if err != nil {
				return nil, fmt.Errorf("export at 1:%s: %w", formatScale(scale), err)
			}
			elapsed := time.Since(start)

			log.Debug().Float64("scale", scale).Dur("draw_time", elapsed).Msg("drawtest: export done")
			result.Scales[i].DrawTime += elapsed
		}
	}

	return result, nil
}

func formatScale(scale float64) string {
	return strconv.FormatFloat(scale, 'f', -1, 64)
}

// average is the mean draw time in seconds rounded to 4 places.
func (r *Result) average(s ScaleResult) string {
	secs := s.DrawTime.Seconds() / float64(r.Queries)
	return strconv.FormatFloat(math.Round(secs*10000)/10000, 'f', -1, 64)
}

func (r *Result) Header() []string {
	if r.Cached {
		return CachedHeader
	}
	return DynamicHeader
}

func (r *Result) Rows() [][]string {
	rows := make([][]string, 0, len(r.Scales))
	for _, s := range r.Scales {
		if r.Cached {
			rows = append(rows, []string{formatScale(s.Scale), strconv.Itoa(s.Found), strconv.Itoa(s.Missing), r.average(s)})
		} else {
			rows = append(rows, []string{formatScale(s.Scale), r.average(s)})
		}
	}
	return rows
}
