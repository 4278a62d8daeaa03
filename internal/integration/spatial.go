package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Spatial datasets the querier knows about. Table names cannot be bound as
// query parameters, so only these constants are ever placed into SQL text.
const (
	DatasetBreweries  = "osm_breweries"
	DatasetFootTrails = "fotrute"
)

var knownDatasets = map[string]bool{
	DatasetBreweries:  true,
	DatasetFootTrails: true,
}

// SpatialQuerier answers aggregate questions about a dataset within a polygon
type SpatialQuerier interface {
	CountWithin(ctx context.Context, dataset string, region orb.Geometry) (int, error)
	LengthWithinKm(ctx context.Context, dataset string, region orb.Geometry) (float64, error)
}

// PostGISQuerier implements SpatialQuerier against a PostGIS database
type PostGISQuerier struct {
	db      *sqlx.DB
	timeout time.Duration
}

// OpenPostGIS connects to PostGIS and verifies the connection
func OpenPostGIS(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgis DSN is required")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewPostGISQuerier wraps an open database handle
func NewPostGISQuerier(db *sqlx.DB, timeout time.Duration) *PostGISQuerier {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &PostGISQuerier{db: db, timeout: timeout}
}

// CountWithin counts the dataset's features contained in region
func (q *PostGISQuerier) CountWithin(ctx context.Context, dataset string, region orb.Geometry) (int, error) {
	if !knownDatasets[dataset] {
		return 0, fmt.Errorf("unknown spatial dataset: %s", dataset)
	}
	gj, err := geometryJSON(region)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT count(*)
		FROM %s
		WHERE ST_Contains(ST_SetSRID(ST_GeomFromGeoJSON($1), 4326), the_geom)`, dataset)

	var count int
	if err := q.db.GetContext(ctx, &count, query, gj); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", dataset, err)
	}
	return count, nil
}

// LengthWithinKm sums the length, in whole kilometres, of the dataset's lines clipped to region.
// No intersecting lines yields zero.
func (q *PostGISQuerier) LengthWithinKm(ctx context.Context, dataset string, region orb.Geometry) (float64, error) {
	if !knownDatasets[dataset] {
		return 0, fmt.Errorf("unknown spatial dataset: %s", dataset)
	}
	gj, err := geometryJSON(region)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT SUM(
			ST_Length(
				ST_Intersection(
					s.the_geom::geography,
					ST_SetSRID(ST_GeomFromGeoJSON($1), 4326)::geography
				)
			)
		) / 1000 AS len
		FROM %s s
		WHERE ST_Intersects(ST_SetSRID(ST_GeomFromGeoJSON($1), 4326), s.the_geom)`, dataset)

	var length sql.NullFloat64
	if err := q.db.GetContext(ctx, &length, query, gj); err != nil {
		return 0, fmt.Errorf("failed to measure %s: %w", dataset, err)
	}
	if !length.Valid {
		return 0, nil
	}
	return math.Round(length.Float64), nil
}

func geometryJSON(g orb.Geometry) (string, error) {
	if g == nil {
		return "", fmt.Errorf("region geometry is required")
	}
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return "", fmt.Errorf("failed to encode geometry: %w", err)
	}
	return string(data), nil
}
