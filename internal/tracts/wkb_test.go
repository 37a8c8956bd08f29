package tracts

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func TestEncodeWKB_Point(t *testing.T) {
	wkb, err := EncodeWKB(orb.Point{-80.19, 25.77})

	require.NoError(t, err)
	require.NotNil(t, wkb)

	g, err := ewkb.Unmarshal(wkb)
	require.NoError(t, err)
	assert.Equal(t, 4326, g.SRID())
	assert.Equal(t, []float64{-80.19, 25.77}, g.FlatCoords())
}

func TestEncodeWKB_MultiPolygon(t *testing.T) {
	mp := orb.MultiPolygon{
		{
			orb.Ring{{-80, 25}, {-80, 26}, {-79, 26}, {-79, 25}, {-80, 25}},
		},
		{
			orb.Ring{{-81, 26}, {-81, 27}, {-80, 27}, {-80, 26}, {-81, 26}},
		},
	}

	wkb, err := EncodeWKB(mp)
	require.NoError(t, err)
	require.NotNil(t, wkb)

	g, err := ewkb.Unmarshal(wkb)
	require.NoError(t, err)
	assert.Equal(t, 4326, g.SRID())
}

func TestEncodeWKB_MultiLineString(t *testing.T) {
	mls := orb.MultiLineString{
		{{-80, 25}, {-80.1, 25.1}, {-80.2, 25.2}},
	}

	wkb, err := EncodeWKB(mls)
	require.NoError(t, err)
	assert.NotNil(t, wkb)
}

func TestEncodeWKB_NilGeometry(t *testing.T) {
	wkb, err := EncodeWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, wkb)
}

func TestEncodeWKB_UnsupportedGeometry(t *testing.T) {
	wkb, err := EncodeWKB(orb.Collection{orb.Point{0, 0}})
	require.NoError(t, err)
	assert.Nil(t, wkb)
}
