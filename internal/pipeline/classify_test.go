package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tractSquare(minLon, minLat, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat},
		{minLon + size, minLat},
		{minLon + size, minLat + size},
		{minLon, minLat + size},
		{minLon, minLat},
	}}
}

func riskFeature(geoid, rating string, population any) *geojson.Feature {
	f := geojson.NewFeature(tractSquare(-80.3, 25.6, 0.1))
	f.Properties = geojson.Properties{
		"GEOID":      geoid,
		"RISK_RATNG": rating,
		"POPULATION": population,
	}
	return f
}

func riskLayer() LayerConfig {
	return DefaultLayers()["risk"]
}

func TestClassifyCollection_EndToEnd(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(riskFeature("12086000107", "Very High", "4,521"))
	fc.Append(riskFeature("12086000205", "Very Low", "3,002"))

	enriched, stats := ClassifyCollection(fc, SideTable{}, riskLayer())

	require.Len(t, enriched.Features, 2)
	assert.Equal(t, 2, stats.Total)

	// Risk category set, in first-appearance order.
	assert.Equal(t, []string{"Very High", "Very Low"}, stats.Categories["RISK_RATNG"])

	// No side-table entries: aux percentage null for both features.
	aux := stats.Fields["aux_percentage"]
	assert.Nil(t, aux.Minimum)
	assert.Nil(t, aux.Maximum)
	assert.Equal(t, 2, aux.Missing)
	for _, f := range enriched.Features {
		_, has := f.Properties["aux_percentage"]
		assert.False(t, has)
	}

	// Population parsed through the value parser.
	pop := stats.Fields["POPULATION"]
	require.NotNil(t, pop.Minimum)
	assert.Equal(t, 3002.0, *pop.Minimum)
	assert.Equal(t, 4521.0, *pop.Maximum)
	assert.Equal(t, 3002.0+(4521.0-3002.0)/2, *pop.Midpoint)
	assert.Equal(t, 0, pop.Missing)

	// Categorical colors map each feature to its fixed palette color.
	expr := CategoricalExpression(PropCategory, riskLayer().Palette, riskLayer().FallbackColor).([]any)
	assert.Equal(t, "match", expr[0])
	assert.Contains(t, expr, "Very High")
	assert.Contains(t, expr, "#d7301f")
	assert.Contains(t, expr, "Very Low")
	assert.Contains(t, expr, "#2b83ba")
}

func TestClassifyCollection_SideTableJoin(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(riskFeature("12086000107", "Very High", 100))
	fc.Append(riskFeature("12086000205", "Very Low", 200))

	side := SideTable{"12086000107": 3.14}

	enriched, stats := ClassifyCollection(fc, side, riskLayer())

	assert.Equal(t, 3.14, enriched.Features[0].Properties["aux_percentage"])
	_, has := enriched.Features[1].Properties["aux_percentage"]
	assert.False(t, has)

	aux := stats.Fields["aux_percentage"]
	require.NotNil(t, aux.Minimum)
	assert.Equal(t, 3.14, *aux.Minimum)
	assert.Equal(t, 3.14, *aux.Maximum)
	assert.Equal(t, 1, aux.Missing)
}

func TestClassifyCollection_IdentifierPrecedence(t *testing.T) {
	fc := geojson.NewFeatureCollection()

	declared := riskFeature("12086000107", "Very High", 1)
	declared.ID = "explicit-id"
	fc.Append(declared)

	joinKey := riskFeature("12086000205", "Very Low", 2)
	fc.Append(joinKey)

	bare := geojson.NewFeature(tractSquare(-80.3, 25.6, 0.1))
	bare.Properties = geojson.Properties{}
	fc.Append(bare)

	enriched, _ := ClassifyCollection(fc, SideTable{}, riskLayer())

	assert.Equal(t, "explicit-id", enriched.Features[0].ID)
	assert.Equal(t, "12086000205", enriched.Features[1].ID)
	assert.Equal(t, 2, enriched.Features[2].ID)
}

func TestClassifyCollection_MissingEverything(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	bare := geojson.NewFeature(tractSquare(-80.3, 25.6, 0.1))
	bare.Properties = geojson.Properties{}
	fc.Append(bare)

	enriched, stats := ClassifyCollection(fc, SideTable{}, riskLayer())

	// Never dropped, enrichment stays null.
	require.Len(t, enriched.Features, 1)
	assert.Equal(t, 1, stats.Total)
	assert.Empty(t, stats.Categories["RISK_RATNG"])

	pop := stats.Fields["POPULATION"]
	assert.Nil(t, pop.Minimum)
	assert.Nil(t, pop.Midpoint)
	assert.Nil(t, pop.Maximum)
	assert.Equal(t, 1, pop.Missing)
}

func TestClassifyCollection_Idempotent(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(riskFeature("12086000107", "Very High", "4,521"))
	fc.Append(riskFeature("12086000205", "Relatively Moderate", "1,000"))

	side := SideTable{"12086000107": 3.14, "12086000205": 7.9}
	cfg := riskLayer()

	_, stats1 := ClassifyCollection(fc, side, cfg)
	_, stats2 := ClassifyCollection(fc, side, cfg)

	json1, err := json.Marshal(stats1)
	require.NoError(t, err)
	json2, err := json.Marshal(stats2)
	require.NoError(t, err)
	assert.Equal(t, json1, json2)
	assert.Equal(t, stats1, stats2)
}

func TestClassifyCollection_DoesNotMutateInput(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(riskFeature("12086000107", "Very High", "4,521"))

	_, _ = ClassifyCollection(fc, SideTable{}, riskLayer())

	_, has := fc.Features[0].Properties[PropCategory]
	assert.False(t, has, "input properties must not be enriched in place")
	assert.Nil(t, fc.Features[0].ID)
}

func TestClassifyCollection_NilCollection(t *testing.T) {
	enriched, stats := ClassifyCollection(nil, SideTable{}, riskLayer())

	assert.Empty(t, enriched.Features)
	assert.Equal(t, 0, stats.Total)
	assert.Nil(t, stats.Fields["POPULATION"].Minimum)
}

func TestAssignTracts(t *testing.T) {
	tracts := geojson.NewFeatureCollection()
	tracts.Append(riskFeature("12086000107", "Very High", 1)) // square at (-80.3,25.6)+0.1

	east := geojson.NewFeature(tractSquare(-80.1, 25.6, 0.1))
	east.Properties = geojson.Properties{"GEOID": "12086000205"}
	tracts.Append(east)

	points := geojson.NewFeatureCollection()
	inside := geojson.NewFeature(orb.Point{-80.25, 25.65})
	inside.Properties = geojson.Properties{"name": "Seawall A"}
	points.Append(inside)

	outside := geojson.NewFeature(orb.Point{-79.0, 26.5})
	outside.Properties = geojson.Properties{"name": "Pump B"}
	points.Append(outside)

	got := AssignTracts(points, tracts, "GEOID")

	require.Len(t, got.Features, 2)
	assert.Equal(t, "12086000107", got.Features[0].Properties[PropTract])
	_, has := got.Features[1].Properties[PropTract]
	assert.False(t, has)

	// Input untouched.
	_, has = points.Features[0].Properties[PropTract]
	assert.False(t, has)
}

func TestAssignTracts_NilInputs(t *testing.T) {
	points := geojson.NewFeatureCollection()
	assert.Same(t, points, AssignTracts(points, nil, "GEOID"))
	assert.Nil(t, AssignTracts(nil, geojson.NewFeatureCollection(), "GEOID"))
}
