package integration

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/spf13/cast"

	"github.com/abelzeko/kommunekamp/internal/entities"
)

// Seasonal precipitation properties on the rain dataset
var rainSeasons = []string{"NEDBOR_VAAR", "NEDBOR_HOST", "NEDBOR_SOMMER", "NEDBOR_VINTER"}

// RainFromFeatures averages the yearly precipitation of the features lying within region.
// Each feature's yearly value is the sum of its four seasonal properties; the mean is rounded.
func RainFromFeatures(region orb.Geometry, features []*geojson.Feature) (float64, error) {
	var sum float64
	var count int

	for _, f := range features {
		if f == nil || f.Geometry == nil || !Within(f.Geometry, region) {
			continue
		}

		var yearly float64
		for _, season := range rainSeasons {
			v, err := cast.ToFloat64E(f.Properties[season])
			if err != nil {
				return 0, fmt.Errorf("%w: rain: property %s: %v", entities.ErrMetricUnavailable, season, err)
			}
			yearly += math.Trunc(v)
		}
		sum += yearly
		count++
	}

	if count == 0 {
		return 0, fmt.Errorf("%w: rain: no measurements inside the municipality", entities.ErrMetricUnavailable)
	}
	return math.Round(sum / float64(count)), nil
}

// Within reports whether every vertex of g lies inside region.
// Region must be a Polygon or MultiPolygon.
func Within(g orb.Geometry, region orb.Geometry) bool {
	points := vertices(g)
	if len(points) == 0 {
		return false
	}
	for _, p := range points {
		if !Contains(region, p) {
			return false
		}
	}
	return true
}

// Contains reports whether the point lies inside the (multi)polygon region
func Contains(region orb.Geometry, p orb.Point) bool {
	switch r := region.(type) {
	case orb.Polygon:
		return planar.PolygonContains(r, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(r, p)
	default:
		return false
	}
}

func vertices(g orb.Geometry) []orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return []orb.Point{v}
	case orb.MultiPoint:
		return v
	case orb.LineString:
		return v
	case orb.MultiLineString:
		var pts []orb.Point
		for _, ls := range v {
			pts = append(pts, ls...)
		}
		return pts
	case orb.Ring:
		return v
	case orb.Polygon:
		var pts []orb.Point
		for _, ring := range v {
			pts = append(pts, ring...)
		}
		return pts
	case orb.MultiPolygon:
		var pts []orb.Point
		for _, poly := range v {
			for _, ring := range poly {
				pts = append(pts, ring...)
			}
		}
		return pts
	default:
		return nil
	}
}
