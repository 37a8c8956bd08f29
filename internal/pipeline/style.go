package pipeline

// Style expression trees use MapLibre expression syntax: nested []any values
// a declarative styling engine consumes directly. The pipeline builds them
// once per classification pass; they are opaque to everything downstream.

// LayerStyle bundles the color expressions for one layer.
type LayerStyle struct {
	// Category is the exact-match expression for the categorical field,
	// or a flat fallback color when no palette applies.
	Category any `json:"category"`
	// Numeric maps each numeric field to its piecewise-linear ramp
	// expression, keyed by the derived property the ramp reads.
	Numeric map[string]any `json:"numeric"`
}

// BuildStyle constructs the declarative color expressions for a layer from
// its configuration and the statistics of the current classification pass.
func BuildStyle(cfg LayerConfig, stats *Stats) LayerStyle {
	style := LayerStyle{
		Category: CategoricalExpression(PropCategory, cfg.Palette, cfg.FallbackColor),
		Numeric:  make(map[string]any),
	}
	if stats == nil {
		return style
	}
	for _, field := range cfg.NumericFields {
		style.Numeric[numericProperty(field)] = ContinuousExpression(
			numericProperty(field), stats.Fields[field], cfg.Ramp, cfg.FallbackColor)
	}
	if cfg.SideTable != nil {
		style.Numeric[cfg.SideTable.Property] = ContinuousExpression(
			cfg.SideTable.Property, stats.Fields[cfg.SideTable.Property], cfg.Ramp, cfg.FallbackColor)
	}
	return style
}

// CategoricalExpression builds an exact-match palette lookup:
//
//	["match", ["get", property], v1, c1, ..., fallback]
//
// Unmatched and null categories resolve to the fallback color. An empty
// palette degenerates to the fallback color alone.
func CategoricalExpression(property string, palette []CategoryColor, fallback string) any {
	if len(palette) == 0 {
		return fallback
	}
	expr := []any{"match", []any{"get", property}}
	for _, cc := range palette {
		expr = append(expr, cc.Value, cc.Color)
	}
	return append(expr, fallback)
}

// ContinuousExpression builds a piecewise-linear interpolation across the
// {minimum, 25%, 50%, 75%, maximum} breakpoints of a numeric field:
//
//	["interpolate", ["linear"], ["get", property], b0, c0, ..., b4, c4]
//
// When minimum equals maximum the ramp degenerates to a single flat color,
// and when the field has no samples at all it degenerates to the fallback.
func ContinuousExpression(property string, fs FieldStats, ramp []string, fallback string) any {
	if fs.Minimum == nil || fs.Maximum == nil || len(ramp) == 0 {
		return fallback
	}
	minV, maxV := *fs.Minimum, *fs.Maximum
	// A single-color ramp has no gradient to interpolate across.
	if minV == maxV || len(ramp) < 2 {
		return ramp[len(ramp)/2]
	}

	span := maxV - minV
	expr := []any{"interpolate", []any{"linear"}, []any{"get", property}}
	for i, color := range ramp {
		frac := float64(i) / float64(len(ramp)-1)
		expr = append(expr, minV+span*frac, color)
	}
	return expr
}
