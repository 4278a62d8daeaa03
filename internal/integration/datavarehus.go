package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/telemetry"
)

// KommNameProperty is the feature property holding the municipality's display name
const KommNameProperty = "ADMENHETNAVN.NAVN"

var kommIDPattern = regexp.MustCompile(`^[0-9]{1,4}$`)

// ValidKommID reports whether id looks like a municipality number
func ValidKommID(id string) bool {
	return kommIDPattern.MatchString(id)
}

// DatavarehusConfig configures the geodata warehouse client
type DatavarehusConfig struct {
	BaseURL           string
	Token             string
	KommDatasetID     int
	Timeout           time.Duration
	RequestsPerSecond float64
	Metrics           *telemetry.Metrics
}

// DatavarehusClient looks up municipality geometry and dataset features
type DatavarehusClient struct {
	baseURL       string
	token         string
	kommDatasetID int
	client        *http.Client
	limiter       *rate.Limiter
	lookupBreaker *gobreaker.CircuitBreaker
	bboxBreaker   *gobreaker.CircuitBreaker
	metrics       *telemetry.Metrics
}

type featureResponse struct {
	Features []*geojson.Feature `json:"features"`
}

// NewDatavarehusClient creates a new geodata warehouse client
func NewDatavarehusClient(cfg DatavarehusConfig) (*DatavarehusClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("datavarehus base URL is required")
	}
	if cfg.KommDatasetID == 0 {
		cfg.KommDatasetID = 7
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &DatavarehusClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.Token,
		kommDatasetID: cfg.KommDatasetID,
		client:        &http.Client{Timeout: cfg.Timeout},
		limiter:       rate.NewLimiter(limit, 1),
		lookupBreaker: newBreaker("datavarehus"),
		bboxBreaker:   newBreaker("datavarehus-bbox"),
		metrics:       cfg.Metrics,
	}, nil
}

// GetKomm returns the municipality feature (geometry and properties) for id
func (c *DatavarehusClient) GetKomm(ctx context.Context, id string) (*geojson.Feature, error) {
	if !ValidKommID(id) {
		return nil, fmt.Errorf("%w: %q", entities.ErrInvalidKommID, id)
	}

	query := url.Values{}
	query.Set("Query", fmt.Sprintf("FTEMA=4003 AND KOMM=%s", id))
	path := fmt.Sprintf("/datasets/%d/features/query", c.kommDatasetID)

	features, err := c.getFeatures(ctx, c.lookupBreaker, path, query)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: %s", entities.ErrKommNotFound, id)
	}
	return features[0], nil
}

// DatasetBBox returns every feature of a dataset intersecting the bounding box.
// It has its own breaker so failing optional datasets cannot block komm lookups.
func (c *DatavarehusClient) DatasetBBox(ctx context.Context, datasetID int, bound orb.Bound) ([]*geojson.Feature, error) {
	query := url.Values{}
	query.Set("Bbox", FormatBBox(bound))
	path := fmt.Sprintf("/datasets/%d/features/bboxquery", datasetID)

	return c.getFeatures(ctx, c.bboxBreaker, path, query)
}

// FormatBBox renders a bound as minx,miny,maxx,maxy
func FormatBBox(b orb.Bound) string {
	coords := []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
	parts := make([]string, len(coords))
	for i, v := range coords {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// KommName returns the display name of a municipality feature
func KommName(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	return f.Properties.MustString(KommNameProperty, "")
}

func (c *DatavarehusClient) getFeatures(ctx context.Context, cb *gobreaker.CircuitBreaker, path string, query url.Values) ([]*geojson.Feature, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	features, err := execute(cb, func() ([]*geojson.Feature, error) {
		return c.fetch(ctx, path, query)
	})
	c.metrics.ObserveUpstream("datavarehus", start, err)
	return features, err
}

func (c *DatavarehusClient) fetch(ctx context.Context, path string, query url.Values) ([]*geojson.Feature, error) {
	reqURL := c.baseURL + path + "?" + query.Encode()
	log.Debug().Str("url", reqURL).Msg("Sending request to datavarehus")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-WAAPI-TOKEN", c.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Datavarehus request failed")
		return nil, fmt.Errorf("%w: datavarehus: %v", ErrUpstream, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Error().Int("status", res.StatusCode).Str("path", path).Msg("Datavarehus returned unexpected status")
		return nil, &StatusError{Service: "datavarehus", Code: res.StatusCode, base: ErrUpstream}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: datavarehus: failed to read response: %v", ErrUpstream, err)
	}

	var payload featureResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: datavarehus: failed to decode features: %v", ErrUpstream, err)
	}

	log.Debug().Int("features", len(payload.Features)).Str("path", path).Msg("Received datavarehus features")
	return payload.Features, nil
}
