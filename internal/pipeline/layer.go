package pipeline

// Source names for the built-in data feeds.
const (
	SourceProjects = "projects"
	SourceRisk     = "risk"
)

// Derived property names written onto enriched features.
const (
	PropCategory = "risk_category"
	PropTract    = "tract_geoid"
)

// CategoryColor associates one categorical value with a palette color.
// Order matters: expressions and legends preserve palette order.
type CategoryColor struct {
	Value string `yaml:"value" mapstructure:"value"`
	Color string `yaml:"color" mapstructure:"color"`
}

// LayerConfig parameterizes the classification pipeline for one layer.
// Field names, palettes, ramps, and the side-table join are configuration
// data, so all layers share a single pipeline implementation.
type LayerConfig struct {
	Source        string            `yaml:"source" mapstructure:"source"`                 // which feed supplies the features
	IDProperty    string            `yaml:"id_property" mapstructure:"id_property"`       // fallback identifier property, also the join key
	CategoryField string            `yaml:"category_field" mapstructure:"category_field"` // categorical property, taken verbatim
	NumericFields []string          `yaml:"numeric_fields" mapstructure:"numeric_fields"` // properties run through ParseNumber
	SideTable     *SideTableBinding `yaml:"side_table" mapstructure:"side_table"`         // optional side-table join
	Palette       []CategoryColor   `yaml:"palette" mapstructure:"palette"`               // categorical colors, exact match
	Ramp          []string          `yaml:"ramp" mapstructure:"ramp"`                     // five colors for continuous interpolation
	FallbackColor string            `yaml:"fallback_color" mapstructure:"fallback_color"` // unmatched/null classification color
	AssignTracts  bool              `yaml:"assign_tracts" mapstructure:"assign_tracts"`   // point-in-polygon tract assignment from the risk layer
}

// DefaultLayers returns the standard layer configurations for the Miami-Dade
// resilience dashboard: infrastructure projects (points) and FEMA risk/census
// tracts (polygons).
func DefaultLayers() map[string]LayerConfig {
	return map[string]LayerConfig{
		"projects": {
			Source:        SourceProjects,
			IDProperty:    "name",
			CategoryField: "type",
			NumericFields: []string{"cost"},
			Palette: []CategoryColor{
				{Value: "Seawall", Color: "#1f78b4"},
				{Value: "Stormwater", Color: "#33a02c"},
				{Value: "Pump Station", Color: "#6a3d9a"},
				{Value: "Living Shoreline", Color: "#b2df8a"},
				{Value: "Road Elevation", Color: "#ff7f00"},
			},
			Ramp:          []string{"#edf8fb", "#b2e2e2", "#66c2a4", "#2ca25f", "#006d2c"},
			FallbackColor: "#9e9e9e",
			AssignTracts:  true,
		},
		"risk": {
			Source:        SourceRisk,
			IDProperty:    "GEOID",
			CategoryField: "RISK_RATNG",
			NumericFields: []string{"POPULATION"},
			SideTable: &SideTableBinding{
				IDColumn:    "GEO_ID",
				ValueColumn: "PRED3_PE",
				KeyPrefix:   "1400000US",
				Property:    "aux_percentage",
			},
			Palette: []CategoryColor{
				{Value: "Very High", Color: "#d7301f"},
				{Value: "Relatively High", Color: "#fc8d59"},
				{Value: "Relatively Moderate", Color: "#fdcc8a"},
				{Value: "Relatively Low", Color: "#fef0d9"},
				{Value: "Very Low", Color: "#2b83ba"},
			},
			Ramp:          []string{"#fef0d9", "#fdcc8a", "#fc8d59", "#e34a33", "#b30000"},
			FallbackColor: "#bdbdbd",
		},
	}
}
