package usecases

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/integration"
	"github.com/abelzeko/kommunekamp/internal/telemetry"
)

var osloPolygon = orb.Polygon{{{10, 59}, {11, 59}, {11, 60}, {10, 60}, {10, 59}}}

type fakeProvider struct {
	komms    map[string]*geojson.Feature
	rain     []*geojson.Feature
	getErr   error
	rainErr  error
	bboxArgs []int
}

func (p *fakeProvider) GetKomm(_ context.Context, id string) (*geojson.Feature, error) {
	if p.getErr != nil {
		return nil, p.getErr
	}
	f, ok := p.komms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entities.ErrKommNotFound, id)
	}
	return f, nil
}

func (p *fakeProvider) DatasetBBox(_ context.Context, datasetID int, _ orb.Bound) ([]*geojson.Feature, error) {
	p.bboxArgs = append(p.bboxArgs, datasetID)
	return p.rain, p.rainErr
}

type fakeSpatial struct {
	counts   map[string]int
	lengths  map[string]float64
	countErr error
}

func (s *fakeSpatial) CountWithin(_ context.Context, dataset string, _ orb.Geometry) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.counts[dataset], nil
}

func (s *fakeSpatial) LengthWithinKm(_ context.Context, dataset string, _ orb.Geometry) (float64, error) {
	return s.lengths[dataset], nil
}

func kommFeature(name string) *geojson.Feature {
	f := geojson.NewFeature(osloPolygon)
	f.Properties[integration.KommNameProperty] = name
	return f
}

func rainPoint(p orb.Point, total float64) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.Properties["NEDBOR_VAAR"] = total
	f.Properties["NEDBOR_HOST"] = 0
	f.Properties["NEDBOR_SOMMER"] = 0
	f.Properties["NEDBOR_VINTER"] = 0
	return f
}

func TestBuildCollectsAllMetrics(t *testing.T) {
	provider := &fakeProvider{
		komms: map[string]*geojson.Feature{"0301": kommFeature("Oslo")},
		rain:  []*geojson.Feature{rainPoint(orb.Point{10.5, 59.5}, 760), rainPoint(orb.Point{10.2, 59.8}, 800)},
	}
	spatial := &fakeSpatial{
		counts:  map[string]int{integration.DatasetBreweries: 12},
		lengths: map[string]float64{integration.DatasetFootTrails: 42},
	}

	builder, err := NewKommBuilder(provider, spatial, integration.StaticDemographics{Value: 30}, 80, nil)
	require.NoError(t, err)

	komm, err := builder.Build(context.Background(), "0301")
	require.NoError(t, err)

	assert.Equal(t, "0301", komm.ID)
	assert.Equal(t, "Oslo", komm.Name)
	assert.False(t, komm.Winner)
	assert.Equal(t, entities.Value(12), komm.Attributes[entities.AttrBreweries])
	assert.Equal(t, entities.Value(42), komm.Attributes[entities.AttrFootTrails])
	assert.Equal(t, entities.Value(780), komm.Attributes[entities.AttrRain])
	assert.Equal(t, entities.Value(30), komm.Attributes[entities.AttrPercentageUnder35])
	assert.Equal(t, []int{80}, provider.bboxArgs)
}

func TestBuildMarksFailedMetricsUnavailable(t *testing.T) {
	provider := &fakeProvider{
		komms:   map[string]*geojson.Feature{"0301": kommFeature("Oslo")},
		rainErr: fmt.Errorf("%w: boom", integration.ErrUpstream),
	}
	spatial := &fakeSpatial{countErr: errors.New("connection refused")}
	metrics := telemetry.NewMetrics()

	builder, err := NewKommBuilder(provider, spatial, nil, 0, metrics)
	require.NoError(t, err)

	komm, err := builder.Build(context.Background(), "0301")
	require.NoError(t, err, "a failing metric must not fail the build")

	assert.Equal(t, entities.Unavailable(), komm.Attributes[entities.AttrBreweries])
	assert.Equal(t, entities.Unavailable(), komm.Attributes[entities.AttrRain])
	assert.True(t, komm.Attributes[entities.AttrFootTrails].Available)
	assert.Equal(t, entities.Value(30), komm.Attributes[entities.AttrPercentageUnder35])

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MetricUnavailable.WithLabelValues(entities.AttrBreweries)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MetricUnavailable.WithLabelValues(entities.AttrRain)))
}

func TestBuildWithoutSpatialDatabase(t *testing.T) {
	provider := &fakeProvider{komms: map[string]*geojson.Feature{"0301": kommFeature("Oslo")}}

	builder, err := NewKommBuilder(provider, nil, nil, 0, nil)
	require.NoError(t, err)

	komm, err := builder.Build(context.Background(), "0301")
	require.NoError(t, err)
	assert.False(t, komm.Attributes[entities.AttrBreweries].Available)
	assert.False(t, komm.Attributes[entities.AttrFootTrails].Available)
	assert.False(t, komm.Attributes[entities.AttrRain].Available, "no rain stations returned")

	// every attribute is present so scoring never sees a missing key
	assert.Len(t, komm.AttributeNames(), 4)
}

func TestBuildErrors(t *testing.T) {
	provider := &fakeProvider{komms: map[string]*geojson.Feature{}}
	builder, err := NewKommBuilder(provider, nil, nil, 0, nil)
	require.NoError(t, err)

	_, err = builder.Build(context.Background(), "  ")
	assert.ErrorIs(t, err, entities.ErrInvalidKommID)

	_, err = builder.Build(context.Background(), "9999")
	assert.ErrorIs(t, err, entities.ErrKommNotFound)

	provider.getErr = fmt.Errorf("%w: datavarehus down", integration.ErrUpstream)
	_, err = builder.Build(context.Background(), "0301")
	assert.ErrorIs(t, err, integration.ErrUpstream)
	assert.False(t, errors.Is(err, entities.ErrKommNotFound))
}

func TestNewKommBuilderRequiresProvider(t *testing.T) {
	_, err := NewKommBuilder(nil, nil, nil, 0, nil)
	assert.Error(t, err)
}
