// Package tracts loads census-tract boundaries from TIGER/Line shapefiles
// and converts them to GeoJSON for point-in-polygon assignment.
package tracts

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/biscayne-labs/resilience-cli/internal/fetcher"
)

// GEOIDProperty is the attribute carrying the tract identifier in
// TIGER/Line tract shapefiles.
const GEOIDProperty = "GEOID"

// Load reads tract boundaries from path, which may be either a .shp file
// or a TIGER/Line .zip bundle. Zip bundles are extracted to a temp
// directory that is removed before returning.
func Load(path string) (*geojson.FeatureCollection, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		tempDir, err := os.MkdirTemp("", "tracts-*")
		if err != nil {
			return nil, eris.Wrap(err, "tracts: create temp dir")
		}
		defer func() { _ = os.RemoveAll(tempDir) }()

		extracted, err := fetcher.ExtractZIP(path, tempDir)
		if err != nil {
			return nil, eris.Wrapf(err, "tracts: extract %s", path)
		}
		for _, name := range extracted {
			if strings.EqualFold(filepath.Ext(name), ".shp") {
				return ParseShapefile(name)
			}
		}
		return nil, eris.Errorf("tracts: no .shp entry in %s", path)
	}
	return ParseShapefile(path)
}

// ParseShapefile reads a tract shapefile and returns its records as a
// GeoJSON feature collection. Every DBF attribute becomes a string
// property; records with missing or unsupported geometry are skipped.
func ParseShapefile(shpPath string) (*geojson.FeatureCollection, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tracts: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	fc := geojson.NewFeatureCollection()
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		geom := shapeToGeometry(shape)
		if geom == nil {
			skipped++
			continue
		}

		feat := geojson.NewFeature(geom)
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val == "" {
				continue
			}
			feat.Properties[name] = val
		}
		if id, ok := feat.Properties[GEOIDProperty]; ok {
			feat.ID = id
		}
		fc.Append(feat)
	}

	if skipped > 0 {
		zap.L().Debug("tracts: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return fc, nil
}

// shapeToGeometry converts a go-shp shape to an orb geometry.
// Returns nil for nil or unsupported shapes.
func shapeToGeometry(shape shp.Shape) orb.Geometry {
	switch s := shape.(type) {
	case *shp.Point:
		return orb.Point{s.X, s.Y}

	case *shp.PolyLine:
		if s == nil || s.NumParts == 0 || len(s.Points) == 0 {
			return nil
		}
		mls := make(orb.MultiLineString, 0, s.NumParts)
		for _, part := range splitParts(s.Parts, len(s.Points)) {
			ls := make(orb.LineString, 0, part.end-part.start)
			for j := part.start; j < part.end; j++ {
				ls = append(ls, orb.Point{s.Points[j].X, s.Points[j].Y})
			}
			mls = append(mls, ls)
		}
		return mls

	case *shp.Polygon:
		if s == nil || s.NumParts == 0 || len(s.Points) == 0 {
			return nil
		}
		// Each part becomes its own single-ring polygon. TIGER tract
		// boundaries have no interior rings, so this is lossless there.
		mp := make(orb.MultiPolygon, 0, s.NumParts)
		for _, part := range splitParts(s.Parts, len(s.Points)) {
			ring := make(orb.Ring, 0, part.end-part.start)
			for j := part.start; j < part.end; j++ {
				ring = append(ring, orb.Point{s.Points[j].X, s.Points[j].Y})
			}
			mp = append(mp, orb.Polygon{ring})
		}
		return mp

	default:
		return nil
	}
}

type partRange struct {
	start, end int32
}

func splitParts(parts []int32, total int) []partRange {
	out := make([]partRange, 0, len(parts))
	for i, start := range parts {
		end := int32(total)
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if end <= start {
			continue
		}
		out = append(out, partRange{start: start, end: end})
	}
	return out
}
