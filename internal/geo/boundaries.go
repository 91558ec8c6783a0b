// Package geo turns municipality boundary polygons into named centroids for
// geography-mode enrichment.
package geo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"capfactor/internal/types"
)

// Downloader fetches a remote document. *external.BaseClient satisfies it.
type Downloader interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// BoundaryLoader reads a GeoJSON FeatureCollection from a local path or an
// http(s) URL.
type BoundaryLoader struct {
	downloader   Downloader
	state        string
	nameProperty string
	logger       *slog.Logger
}

// LoaderConfig configures a BoundaryLoader.
type LoaderConfig struct {
	State        string
	NameProperty string
	Logger       *slog.Logger
}

// NewBoundaryLoader creates a loader. downloader may be nil when only local
// files are used.
func NewBoundaryLoader(downloader Downloader, cfg LoaderConfig) *BoundaryLoader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prop := cfg.NameProperty
	if prop == "" {
		prop = "name"
	}
	return &BoundaryLoader{
		downloader:   downloader,
		state:        cfg.State,
		nameProperty: prop,
		logger:       logger,
	}
}

// Load reads source and returns one Area per polygon feature.
func (l *BoundaryLoader) Load(ctx context.Context, source string) ([]types.Area, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if l.downloader == nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamBoundary, "no downloader configured for remote boundaries", nil)
		}
		data, err = l.downloader.GetBytes(ctx, source)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamBoundary, "failed to download boundaries", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalArtifact, fmt.Sprintf("failed to read boundaries from %s", source), err)
		}
	}

	areas, skipped, err := ParseAreas(data, l.state, l.nameProperty)
	if err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "boundaries loaded", "source", source, "areas", len(areas), "skipped", skipped)
	return areas, nil
}

// ParseAreas decodes a FeatureCollection and computes the area-weighted
// centroid of each polygon feature. Features without a name or without a
// polygonal geometry are skipped and counted. Output is sorted by name.
func ParseAreas(data []byte, state, nameProperty string) ([]types.Area, int, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeUpstreamBoundary, "invalid GeoJSON feature collection", err)
	}

	areas := make([]types.Area, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		name := strings.TrimSpace(f.Properties.MustString(nameProperty, ""))
		if name == "" || !polygonal(f.Geometry) {
			skipped++
			continue
		}
		centroid, _ := planar.CentroidArea(f.Geometry)
		areas = append(areas, types.Area{
			Name:       name,
			State:      state,
			Coordinate: types.Coordinate{Lat: centroid.Lat(), Lon: centroid.Lon()},
		})
	}
	sort.SliceStable(areas, func(i, j int) bool { return areas[i].Name < areas[j].Name })
	return areas, skipped, nil
}

func polygonal(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return true
	default:
		return false
	}
}
