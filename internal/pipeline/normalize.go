// Package pipeline turns raw GeoJSON feature collections and tabular side data
// into enriched, classified collections with summary statistics and declarative
// style expressions.
package pipeline

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// mercatorHalfWorld is half the Web-Mercator world width in meters.
const mercatorHalfWorld = 20037508.34

// Normalize returns a collection whose coordinates are guaranteed to be in
// geographic degrees (EPSG:4326). Detection is a bounds check on the first
// coordinate of the first feature with geometry: if it already lies within
// [-180,180]x[-90,90] the input is returned unchanged. Otherwise every
// coordinate is run through the spherical Web-Mercator inverse.
//
// Empty or geometry-less collections are returned unchanged. Normalize never
// fails; it is the caller's problem if a projected input happens to start
// inside geographic bounds (Miami-Dade projected coordinates are in the
// millions, so this does not occur in practice).
func Normalize(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	if fc == nil || len(fc.Features) == 0 {
		return fc
	}

	first, ok := firstCoordinate(fc)
	if !ok {
		return fc
	}
	if inGeographicBounds(first) {
		return fc
	}

	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		nf := *f
		if f.Geometry != nil {
			nf.Geometry = project.Geometry(orb.Clone(f.Geometry), mercatorInverse)
		}
		out.Append(&nf)
	}
	return out
}

// inGeographicBounds reports whether a coordinate pair is plausible in degrees.
func inGeographicBounds(p orb.Point) bool {
	return math.Abs(p[0]) <= 180 && math.Abs(p[1]) <= 90
}

// mercatorInverse converts a Web-Mercator (EPSG:3857) coordinate in meters to
// geographic degrees (EPSG:4326).
func mercatorInverse(p orb.Point) orb.Point {
	lon := p[0] / mercatorHalfWorld * 180
	lat := 180 / math.Pi * (2*math.Atan(math.Exp(p[1]/mercatorHalfWorld*math.Pi)) - math.Pi/2)
	return orb.Point{lon, lat}
}

// firstCoordinate returns the first coordinate pair found by depth-first
// traversal of the first feature that has geometry.
func firstCoordinate(fc *geojson.FeatureCollection) (orb.Point, bool) {
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if p, ok := firstPoint(f.Geometry); ok {
			return p, true
		}
	}
	return orb.Point{}, false
}

func firstPoint(g orb.Geometry) (orb.Point, bool) {
	switch g := g.(type) {
	case orb.Point:
		return g, true
	case orb.MultiPoint:
		if len(g) > 0 {
			return g[0], true
		}
	case orb.LineString:
		if len(g) > 0 {
			return g[0], true
		}
	case orb.MultiLineString:
		for _, ls := range g {
			if len(ls) > 0 {
				return ls[0], true
			}
		}
	case orb.Ring:
		if len(g) > 0 {
			return g[0], true
		}
	case orb.Polygon:
		for _, r := range g {
			if len(r) > 0 {
				return r[0], true
			}
		}
	case orb.MultiPolygon:
		for _, p := range g {
			if pt, ok := firstPoint(p); ok {
				return pt, true
			}
		}
	case orb.Collection:
		for _, sub := range g {
			if pt, ok := firstPoint(sub); ok {
				return pt, true
			}
		}
	case orb.Bound:
		return g.Min, true
	}
	return orb.Point{}, false
}
