package agsserver

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/paularlott/gisadmin/internal/arcrest"
)

var (
	ErrNoLayers = errors.New("no layers")
	ErrNoData   = errors.New("no data")
)

type SiteInfo struct {
	CurrentVersion float64 `json:"currentVersion"`
}

// SiteInfo reads the services directory root, used to check the site answers at all.
func (s *Server) SiteInfo(ctx context.Context) (*SiteInfo, error) {
	info := &SiteInfo{}
	if err := s.rest.Get(ctx, "rest/services", nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

type LayerInfo struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	SubLayerIDs []int  `json:"subLayerIds"`
}

// IsGroup reports a group layer, those hold no features themselves.
func (l LayerInfo) IsGroup() bool {
	return l.SubLayerIDs != nil
}

type LOD struct {
	Level      int     `json:"level"`
	Resolution float64 `json:"resolution"`
	Scale      float64 `json:"scale"`
}

type TileInfo struct {
	Rows   int    `json:"rows"`
	Cols   int    `json:"cols"`
	DPI    int    `json:"dpi"`
	Format string `json:"format"`
	Origin Point  `json:"origin"`
	LODs   []LOD  `json:"lods"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Extent struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// ServiceDescription is the services directory entry of a map or feature service.
type ServiceDescription struct {
	CurrentVersion float64     `json:"currentVersion"`
	Layers         []LayerInfo `json:"layers"`
	SingleFusedMap bool        `json:"singleFusedMapCache"`
	TileInfo       *TileInfo   `json:"tileInfo"`
	FullExtent     *Extent     `json:"fullExtent"`
	InitialExtent  *Extent     `json:"initialExtent"`
}

// Describe reads the services directory entry, an error envelope means the service is not working.
func (s *Server) Describe(ctx context.Context, service string) (*ServiceDescription, error) {
	desc := &ServiceDescription{}
	if err := s.rest.Get(ctx, RESTPath(service), nil, desc); err != nil {
		return nil, err
	}
	return desc, nil
}

// FirstDataLayer returns the first layer that is not a group layer.
func (d *ServiceDescription) FirstDataLayer() (LayerInfo, error) {
	for _, l := range d.Layers {
		if !l.IsGroup() {
			return l, nil
		}
	}
	return LayerInfo{}, ErrNoLayers
}

// CountFeatures runs a count only query against a layer of a service.
func (s *Server) CountFeatures(ctx context.Context, service string, layerID int) (int, error) {
	var resp struct {
		Count *int `json:"count"`
	}

	params := arcrest.Params{
		"where":           "1=1",
		"returnCountOnly": "true",
	}
	endpoint := RESTPath(service) + "/" + strconv.Itoa(layerID) + "/query"
	if err := s.rest.Get(ctx, endpoint, params, &resp); err != nil {
		return 0, err
	}
	if resp.Count == nil {
		return 0, ErrNoData
	}

	return *resp.Count, nil
}

// TileScales returns the cached scales of a map service, empty when the service is not cached.
func (s *Server) TileScales(ctx context.Context, service string) ([]float64, error) {
	desc, err := s.Describe(ctx, service)
	if err != nil {
		return nil, err
	}
	if desc.TileInfo == nil {
		return nil, nil
	}

	scales := make([]float64, 0, len(desc.TileInfo.LODs))
	for _, lod := range desc.TileInfo.LODs {
		scales = append(scales, lod.Scale)
	}
	return scales, nil
}

// Tile fetches one cached tile.
func (s *Server) Tile(ctx context.Context, service string, level int, row int, col int) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/tile/%d/%d/%d", RESTPath(service), level, row, col)
	return s.rest.Fetch(ctx, endpoint, nil)
}

type ExportRequest struct {
	BBox   Extent
	Scale  float64
	Width  int
	Height int
	DPI    int
	Format string
}

// ExportMap asks a dynamic map service to draw an image.
func (s *Server) ExportMap(ctx context.Context, service string, req ExportRequest) error {
	format := req.Format
	if format == "" {
		format = "png"
	}

	params := arcrest.Params{
		"bbox":     fmt.Sprintf("%f,%f,%f,%f", req.BBox.XMin, req.BBox.YMin, req.BBox.XMax, req.BBox.YMax),
		"size":     fmt.Sprintf("%d,%d", req.Width, req.Height),
		"dpi":      strconv.Itoa(req.DPI),
		"format":   format,
		"mapScale": strconv.FormatFloat(req.Scale, 'f', -1, 64),
	}

	var resp struct {
		Href string `json:"href"`
	}
	if err := s.rest.Get(ctx, RESTPath(service)+"/export", params, &resp); err != nil {
		return err
	}
	if resp.Href == "" {
		return ErrNoData
	}

	return nil
}
