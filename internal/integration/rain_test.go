package integration

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/kommunekamp/internal/entities"
)

var square = orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}

func rainFeature(g orb.Geometry, vaar, host, sommer, vinter interface{}) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.Properties["NEDBOR_VAAR"] = vaar
	f.Properties["NEDBOR_HOST"] = host
	f.Properties["NEDBOR_SOMMER"] = sommer
	f.Properties["NEDBOR_VINTER"] = vinter
	return f
}

func TestRainFromFeatures(t *testing.T) {
	features := []*geojson.Feature{
		rainFeature(orb.Point{5, 5}, 100, 200, 300, 400),
		rainFeature(orb.Point{2, 8}, "150", "250", "350", "450"),
		// outside the municipality
		rainFeature(orb.Point{15, 5}, 9000, 9000, 9000, 9000),
		// crosses the border
		rainFeature(orb.LineString{{5, 5}, {12, 5}}, 9000, 9000, 9000, 9000),
	}

	rain, err := RainFromFeatures(square, features)
	require.NoError(t, err)
	assert.Equal(t, 1100.0, rain)
}

func TestRainFromFeaturesRounds(t *testing.T) {
	features := []*geojson.Feature{
		rainFeature(orb.Point{1, 1}, 1, 0, 0, 0),
		rainFeature(orb.Point{2, 2}, 2, 0, 0, 0),
	}

	rain, err := RainFromFeatures(square, features)
	require.NoError(t, err)
	assert.Equal(t, 2.0, rain)
}

func TestRainFromFeaturesNoneInside(t *testing.T) {
	features := []*geojson.Feature{rainFeature(orb.Point{20, 20}, 1, 1, 1, 1)}

	_, err := RainFromFeatures(square, features)
	assert.ErrorIs(t, err, entities.ErrMetricUnavailable)

	_, err = RainFromFeatures(square, nil)
	assert.ErrorIs(t, err, entities.ErrMetricUnavailable)
}

func TestRainFromFeaturesBadProperty(t *testing.T) {
	features := []*geojson.Feature{rainFeature(orb.Point{1, 1}, "lots", 1, 1, 1)}

	_, err := RainFromFeatures(square, features)
	assert.ErrorIs(t, err, entities.ErrMetricUnavailable)
}

func TestWithin(t *testing.T) {
	assert.True(t, Within(orb.Point{1, 1}, square))
	assert.False(t, Within(orb.Point{11, 1}, square))
	assert.True(t, Within(orb.LineString{{1, 1}, {9, 9}}, square))
	assert.False(t, Within(orb.LineString{{1, 1}, {11, 9}}, square))
	assert.True(t, Within(orb.Polygon{{{1, 1}, {2, 1}, {2, 2}, {1, 1}}}, square))

	multi := orb.MultiPolygon{square, {{{20, 20}, {30, 20}, {30, 30}, {20, 30}, {20, 20}}}}
	assert.True(t, Within(orb.Point{25, 25}, multi))
	assert.False(t, Within(orb.Point{15, 15}, multi))

	assert.False(t, Within(orb.Point{1, 1}, orb.Point{1, 1}), "non-areal regions contain nothing")
}
