// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/integration"
	"github.com/abelzeko/kommunekamp/internal/telemetry"
)

// KommProvider looks up municipality features and dataset features by bounding box
type KommProvider interface {
	GetKomm(ctx context.Context, id string) (*geojson.Feature, error)
	DatasetBBox(ctx context.Context, datasetID int, bound orb.Bound) ([]*geojson.Feature, error)
}

// EntityBuilder assembles an entity record for one municipality
type EntityBuilder interface {
	Build(ctx context.Context, id string) (*entities.Komm, error)
}

var errNoSpatialDatabase = fmt.Errorf("%w: no spatial database configured", entities.ErrMetricUnavailable)

// KommBuilder gathers every derived metric of a municipality
type KommBuilder struct {
	provider      KommProvider
	spatial       integration.SpatialQuerier
	demographics  integration.DemographicsSource
	rainDatasetID int
	metrics       *telemetry.Metrics
}

// NewKommBuilder creates a builder. spatial may be nil, in which case the spatial
// metrics are reported unavailable.
func NewKommBuilder(provider KommProvider, spatial integration.SpatialQuerier, demographics integration.DemographicsSource, rainDatasetID int, metrics *telemetry.Metrics) (*KommBuilder, error) {
	if provider == nil {
		return nil, errors.New("komm provider is required")
	}
	if demographics == nil {
		demographics = integration.StaticDemographics{Value: 30}
	}
	if rainDatasetID == 0 {
		rainDatasetID = 80
	}
	return &KommBuilder{
		provider:      provider,
		spatial:       spatial,
		demographics:  demographics,
		rainDatasetID: rainDatasetID,
		metrics:       metrics,
	}, nil
}

// Build fetches the municipality and computes its metrics. Only the lookup itself
// is fatal; a failing metric is logged and recorded as unavailable.
func (b *KommBuilder) Build(ctx context.Context, id string) (*entities.Komm, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", entities.ErrInvalidKommID)
	}

	feature, err := b.provider.GetKomm(ctx, id)
	if err != nil {
		if errors.Is(err, entities.ErrKommNotFound) || errors.Is(err, entities.ErrInvalidKommID) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up komm %s: %w", id, err)
	}
	if feature.Geometry == nil {
		return nil, fmt.Errorf("%w: komm %s has no geometry", integration.ErrUpstream, id)
	}

	komm := entities.NewKomm(id, integration.KommName(feature))
	region := feature.Geometry

	b.collect(ctx, komm, entities.AttrBreweries, func(ctx context.Context) (float64, error) {
		if b.spatial == nil {
			return 0, errNoSpatialDatabase
		}
		n, err := b.spatial.CountWithin(ctx, integration.DatasetBreweries, region)
		return float64(n), err
	})
	b.collect(ctx, komm, entities.AttrFootTrails, func(ctx context.Context) (float64, error) {
		if b.spatial == nil {
			return 0, errNoSpatialDatabase
		}
		return b.spatial.LengthWithinKm(ctx, integration.DatasetFootTrails, region)
	})
	b.collect(ctx, komm, entities.AttrRain, func(ctx context.Context) (float64, error) {
		features, err := b.provider.DatasetBBox(ctx, b.rainDatasetID, region.Bound())
		if err != nil {
			return 0, err
		}
		return integration.RainFromFeatures(region, features)
	})
	b.collect(ctx, komm, entities.AttrPercentageUnder35, func(ctx context.Context) (float64, error) {
		return b.demographics.PercentageUnder35(ctx, id)
	})

	log.Info().Str("komm", komm.ID).Str("name", komm.Name).Msg("Built komm")
	return komm, nil
}

func (b *KommBuilder) collect(ctx context.Context, komm *entities.Komm, attribute string, fetch func(context.Context) (float64, error)) {
	v, err := fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Str("komm", komm.ID).Str("attribute", attribute).Msg("Metric unavailable")
		b.metrics.CountUnavailable(attribute)
		komm.SetAttribute(attribute, entities.Unavailable())
		return
	}
	komm.SetAttribute(attribute, entities.Value(v))
}
