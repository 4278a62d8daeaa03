package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/kommunekamp/internal/entities"
)

const statisticsPage = `
<!DOCTYPE html>
<html>
<body>
	<table>
		<tr><th>Kommune</th><th>Navn</th><th>Under 35 (%)</th></tr>
		<tr><td>0301</td><td>Oslo</td><td>47,3</td></tr>
		<tr><td>5001 Trondheim</td><td>Trondheim</td><td>45.1 %</td></tr>
		<tr><td>1103</td><td>Stavanger</td><td>n/a</td></tr>
	</table>
</body>
</html>`

// mockHTMLServer creates a test server that serves a fixed HTML response
func mockHTMLServer(html string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, html)
	}))
}

func TestDemographicsScraper(t *testing.T) {
	server := mockHTMLServer(statisticsPage)
	defer server.Close()

	scraper, err := NewDemographicsScraper(server.URL, 0, nil)
	require.NoError(t, err)

	pct, err := scraper.PercentageUnder35(context.Background(), "0301")
	require.NoError(t, err)
	assert.InDelta(t, 47.3, pct, 1e-9)

	pct, err = scraper.PercentageUnder35(context.Background(), "5001")
	require.NoError(t, err)
	assert.InDelta(t, 45.1, pct, 1e-9)
}

func TestDemographicsMissingAndInvalidRows(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(statisticsPage))
	require.NoError(t, err)

	_, err = ParseDemographicsTable(doc, "4601")
	assert.ErrorIs(t, err, entities.ErrMetricUnavailable)

	_, err = ParseDemographicsTable(doc, "1103")
	assert.ErrorIs(t, err, entities.ErrMetricUnavailable)
}

func TestDemographicsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	scraper, err := NewDemographicsScraper(server.URL, 0, nil)
	require.NoError(t, err)

	_, err = scraper.PercentageUnder35(context.Background(), "0301")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestStaticDemographics(t *testing.T) {
	pct, err := StaticDemographics{Value: 30}.PercentageUnder35(context.Background(), "0301")
	require.NoError(t, err)
	assert.Equal(t, 30.0, pct)
}
