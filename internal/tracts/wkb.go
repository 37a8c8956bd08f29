package tracts

import (
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// EncodeWKB converts an orb geometry to EWKB bytes with SRID 4326.
// Returns nil, nil for nil or unsupported geometries.
func EncodeWKB(g orb.Geometry) ([]byte, error) {
	if g == nil {
		return nil, nil
	}

	var out geom.T

	switch s := g.(type) {
	case orb.Point:
		out = geom.NewPointFlat(geom.XY, []float64{s[0], s[1]}).SetSRID(4326)

	case orb.MultiLineString:
		mls := geom.NewMultiLineString(geom.XY).SetSRID(4326)
		for _, line := range s {
			if err := mls.Push(geom.NewLineStringFlat(geom.XY, flatPoints(line))); err != nil {
				return nil, eris.Wrap(err, "tracts: encode linestring")
			}
		}
		out = mls

	case orb.LineString:
		out = geom.NewLineStringFlat(geom.XY, flatPoints(s)).SetSRID(4326)

	case orb.Polygon:
		poly, err := polygonToGeom(s)
		if err != nil {
			return nil, err
		}
		out = poly.SetSRID(4326)

	case orb.MultiPolygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
		for _, p := range s {
			poly, err := polygonToGeom(p)
			if err != nil {
				return nil, err
			}
			if err := mp.Push(poly); err != nil {
				return nil, eris.Wrap(err, "tracts: encode polygon part")
			}
		}
		out = mp

	default:
		return nil, nil
	}

	data, err := ewkb.Marshal(out, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "tracts: encode WKB")
	}
	return data, nil
}

func polygonToGeom(p orb.Polygon) (*geom.Polygon, error) {
	poly := geom.NewPolygon(geom.XY)
	for _, ring := range p {
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flatPoints(orb.LineString(ring)))); err != nil {
			return nil, eris.Wrap(err, "tracts: encode ring")
		}
	}
	return poly, nil
}

func flatPoints(line orb.LineString) []float64 {
	flat := make([]float64, 0, len(line)*2)
	for _, pt := range line {
		flat = append(flat, pt[0], pt[1])
	}
	return flat
}
