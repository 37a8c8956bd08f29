package pipeline

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// FieldStats summarizes one numeric field over a collection. Bounds are nil
// when the field has zero non-null samples; consumers must treat nil bounds
// as "no legend/classification possible".
type FieldStats struct {
	Minimum  *float64 `json:"minimum"`
	Midpoint *float64 `json:"midpoint"`
	Maximum  *float64 `json:"maximum"`
	Missing  int      `json:"missing"`
}

// Stats holds population-level summary statistics for one enriched layer.
// Recomputed from scratch whenever the enriched collection changes.
type Stats struct {
	Total      int                   `json:"total"`
	Fields     map[string]FieldStats `json:"fields"`
	Categories map[string][]string   `json:"categories"`
}

// ClassifyCollection enriches every feature of a normalized collection and
// computes summary statistics. The input is not mutated; a new collection is
// produced. Features with entirely missing enrichable fields still appear in
// the output with null enrichment, never dropped. Re-running on unchanged
// inputs yields identical output.
func ClassifyCollection(fc *geojson.FeatureCollection, side SideTable, cfg LayerConfig) (*geojson.FeatureCollection, *Stats) {
	stats := &Stats{
		Fields:     make(map[string]FieldStats),
		Categories: make(map[string][]string),
	}

	out := geojson.NewFeatureCollection()
	if fc == nil {
		for _, field := range cfg.NumericFields {
			stats.Fields[field] = FieldStats{}
		}
		if cfg.SideTable != nil {
			stats.Fields[cfg.SideTable.Property] = FieldStats{}
		}
		return out, stats
	}

	samples := make(map[string][]float64)
	seen := make(map[string]bool)

	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		stats.Total++

		nf := *f
		props := cloneProperties(f.Properties)

		// Categorical field, taken verbatim; absent stays absent.
		if cat, ok := stringProperty(props, cfg.CategoryField); ok {
			props[PropCategory] = cat
			if !seen[cat] {
				seen[cat] = true
				stats.Categories[cfg.CategoryField] = append(stats.Categories[cfg.CategoryField], cat)
			}
		}

		// Numeric fields through the value parser.
		for _, field := range cfg.NumericFields {
			if v, ok := ParseNumber(props[field]); ok {
				props[numericProperty(field)] = v
				samples[field] = append(samples[field], v)
			}
		}

		// Side-table join on the normalized identifier.
		if cfg.SideTable != nil {
			if id, ok := stringProperty(props, cfg.IDProperty); ok {
				if v, found := side[id]; found {
					props[cfg.SideTable.Property] = v
					samples[cfg.SideTable.Property] = append(samples[cfg.SideTable.Property], v)
				}
			}
		}

		// Identifier: source-declared id, else the join-id property, else
		// ordinal position. First match wins and stays stable afterward.
		switch {
		case f.ID != nil:
			nf.ID = f.ID
		default:
			if v, ok := props[cfg.IDProperty]; ok && v != nil && v != "" {
				nf.ID = v
			} else {
				nf.ID = i
			}
		}

		nf.Properties = props
		out.Append(&nf)
	}

	for _, field := range cfg.NumericFields {
		stats.Fields[field] = fieldStats(samples[field], stats.Total)
	}
	if cfg.SideTable != nil {
		stats.Fields[cfg.SideTable.Property] = fieldStats(samples[cfg.SideTable.Property], stats.Total)
	}

	return out, stats
}

// AssignTracts writes the containing tract identifier onto each point feature
// by point-in-polygon containment against the tract collection. Points inside
// no tract are left untouched.
func AssignTracts(points, tracts *geojson.FeatureCollection, tractIDProperty string) *geojson.FeatureCollection {
	if points == nil || tracts == nil || len(tracts.Features) == 0 {
		return points
	}

	out := geojson.NewFeatureCollection()
	for _, f := range points.Features {
		if f == nil {
			continue
		}
		nf := *f
		if pt, ok := f.Geometry.(orb.Point); ok {
			if geoid, found := containingTract(pt, tracts, tractIDProperty); found {
				props := cloneProperties(f.Properties)
				props[PropTract] = geoid
				nf.Properties = props
			}
		}
		out.Append(&nf)
	}
	return out
}

func containingTract(pt orb.Point, tracts *geojson.FeatureCollection, idProperty string) (string, bool) {
	for _, t := range tracts.Features {
		if t == nil {
			continue
		}
		var inside bool
		switch g := t.Geometry.(type) {
		case orb.Polygon:
			inside = planar.PolygonContains(g, pt)
		case orb.MultiPolygon:
			inside = planar.MultiPolygonContains(g, pt)
		}
		if !inside {
			continue
		}
		if id, ok := stringProperty(t.Properties, idProperty); ok {
			return id, true
		}
	}
	return "", false
}

// numericProperty is the derived property name a parsed numeric field is
// written under, e.g. POPULATION -> population.
func numericProperty(field string) string {
	return strings.ToLower(field)
}

func fieldStats(vals []float64, total int) FieldStats {
	fs := FieldStats{Missing: total - len(vals)}
	if len(vals) == 0 {
		return fs
	}
	minV, maxV := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	mid := minV + (maxV-minV)/2
	fs.Minimum = &minV
	fs.Midpoint = &mid
	fs.Maximum = &maxV
	return fs
}

func stringProperty(props geojson.Properties, key string) (string, bool) {
	if props == nil || key == "" {
		return "", false
	}
	s, ok := props[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func cloneProperties(props geojson.Properties) geojson.Properties {
	out := make(geojson.Properties, len(props)+4)
	for k, v := range props {
		out[k] = v
	}
	return out
}
