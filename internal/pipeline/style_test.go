package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(f float64) *float64 { return &f }

func TestCategoricalExpression(t *testing.T) {
	palette := []CategoryColor{
		{Value: "Very High", Color: "#d7301f"},
		{Value: "Very Low", Color: "#2b83ba"},
	}

	expr := CategoricalExpression("risk_category", palette, "#bdbdbd").([]any)

	assert.Equal(t, []any{
		"match", []any{"get", "risk_category"},
		"Very High", "#d7301f",
		"Very Low", "#2b83ba",
		"#bdbdbd",
	}, expr)
}

func TestCategoricalExpression_EmptyPalette(t *testing.T) {
	got := CategoricalExpression("risk_category", nil, "#bdbdbd")
	assert.Equal(t, "#bdbdbd", got)
}

func TestContinuousExpression(t *testing.T) {
	ramp := []string{"#fef0d9", "#fdcc8a", "#fc8d59", "#e34a33", "#b30000"}
	fs := FieldStats{Minimum: fptr(0), Midpoint: fptr(50), Maximum: fptr(100)}

	expr := ContinuousExpression("population", fs, ramp, "#bdbdbd").([]any)

	require.Equal(t, "interpolate", expr[0])
	assert.Equal(t, []any{"linear"}, expr[1])
	assert.Equal(t, []any{"get", "population"}, expr[2])

	// Breakpoints at min, 25%, 50%, 75%, max.
	assert.Equal(t, 0.0, expr[3])
	assert.Equal(t, "#fef0d9", expr[4])
	assert.Equal(t, 25.0, expr[5])
	assert.Equal(t, 50.0, expr[7])
	assert.Equal(t, 75.0, expr[9])
	assert.Equal(t, 100.0, expr[11])
	assert.Equal(t, "#b30000", expr[12])
}

func TestContinuousExpression_FlatWhenMinEqualsMax(t *testing.T) {
	ramp := []string{"#a", "#b", "#c", "#d", "#e"}
	fs := FieldStats{Minimum: fptr(7), Midpoint: fptr(7), Maximum: fptr(7)}

	got := ContinuousExpression("population", fs, ramp, "#bdbdbd")
	assert.Equal(t, "#c", got)
}

func TestContinuousExpression_FlatWhenSingleColorRamp(t *testing.T) {
	fs := FieldStats{Minimum: fptr(1), Midpoint: fptr(3), Maximum: fptr(5)}

	got := ContinuousExpression("population", fs, []string{"#123456"}, "#999999")
	assert.Equal(t, "#123456", got)
}

func TestContinuousExpression_FallbackWhenNoSamples(t *testing.T) {
	got := ContinuousExpression("population", FieldStats{Missing: 5}, []string{"#a"}, "#bdbdbd")
	assert.Equal(t, "#bdbdbd", got)
}

func TestBuildStyle(t *testing.T) {
	cfg := DefaultLayers()["risk"]
	_, stats := ClassifyCollection(nil, SideTable{}, cfg)

	style := BuildStyle(cfg, stats)

	// Zero-sample numeric fields degenerate to the fallback color.
	assert.Equal(t, cfg.FallbackColor, style.Numeric["population"])
	assert.Equal(t, cfg.FallbackColor, style.Numeric["aux_percentage"])

	expr, ok := style.Category.([]any)
	require.True(t, ok)
	assert.Equal(t, "match", expr[0])
}
