package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/telemetry"
)

// DemographicsSource supplies the share of a municipality's population under 35
type DemographicsSource interface {
	PercentageUnder35(ctx context.Context, kommID string) (float64, error)
}

// StaticDemographics returns the same percentage for every municipality
type StaticDemographics struct {
	Value float64
}

// PercentageUnder35 implements DemographicsSource
func (s StaticDemographics) PercentageUnder35(_ context.Context, _ string) (float64, error) {
	return s.Value, nil
}

// DemographicsScraper reads the percentage from an HTML statistics table.
// Each data row holds the municipality number (optionally followed by its name)
// in the first cell and the percentage in the last cell.
type DemographicsScraper struct {
	sourceURL string
	client    *http.Client
	metrics   *telemetry.Metrics
}

// NewDemographicsScraper creates a scraper for the given statistics page
func NewDemographicsScraper(sourceURL string, timeout time.Duration, metrics *telemetry.Metrics) (*DemographicsScraper, error) {
	if sourceURL == "" {
		return nil, errors.New("demographics source URL is required")
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &DemographicsScraper{
		sourceURL: sourceURL,
		client:    &http.Client{Timeout: timeout},
		metrics:   metrics,
	}, nil
}

// PercentageUnder35 fetches the statistics page and returns the row for kommID
func (s *DemographicsScraper) PercentageUnder35(ctx context.Context, kommID string) (float64, error) {
	start := time.Now()
	doc, err := s.fetch(ctx)
	s.metrics.ObserveUpstream("demographics", start, err)
	if err != nil {
		return 0, err
	}
	return ParseDemographicsTable(doc, kommID)
}

func (s *DemographicsScraper) fetch(ctx context.Context) (*goquery.Document, error) {
	log.Debug().Str("url", s.sourceURL).Msg("Sending HTTP request to statistics page")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: demographics: %v", ErrUpstream, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: demographics: unexpected status code: %d %s", ErrUpstream, res.StatusCode, res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the statistics page: %w", err)
	}
	return doc, nil
}

// ParseDemographicsTable finds kommID's row in the document and parses its percentage
func ParseDemographicsTable(doc *goquery.Document, kommID string) (float64, error) {
	var (
		found   bool
		value   float64
		rowErr  error
		scanned int
	)

	doc.Find("table tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true
		}
		scanned++

		fields := strings.Fields(cells.First().Text())
		if len(fields) == 0 || fields[0] != kommID {
			return true
		}

		found = true
		value, rowErr = parsePercentage(cells.Last().Text())
		return false
	})

	log.Debug().Int("rows", scanned).Str("komm", kommID).Bool("found", found).Msg("Scanned statistics table")

	if !found {
		return 0, fmt.Errorf("%w: no demographics row for komm %s", entities.ErrMetricUnavailable, kommID)
	}
	if rowErr != nil {
		return 0, fmt.Errorf("%w: %v", entities.ErrMetricUnavailable, rowErr)
	}
	return value, nil
}

// parsePercentage accepts "34,5", "34.5 %" and similar
func parsePercentage(text string) (float64, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percentage %q", strings.TrimSpace(text))
	}
	return v, nil
}
