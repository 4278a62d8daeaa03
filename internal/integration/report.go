package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/telemetry"
)

const (
	DefaultReportTemplateID     = "4ySbCCCqx"
	DefaultReportFilenamePrefix = "Norkart_Kommunekamp"
)

// ReportConfig configures the report service client
type ReportConfig struct {
	BaseURL        string
	Token          string
	TemplateID     string
	FilenamePrefix string
	Timeout        time.Duration
	Metrics        *telemetry.Metrics
	// Now is used to stamp filenames; defaults to time.Now
	Now func() time.Time
}

// Document is a rendered report
type Document struct {
	Body        []byte
	ContentType string
	Filename    string
}

// ReportClient renders comparison reports through the external report service
type ReportClient struct {
	baseURL        string
	token          string
	templateID     string
	filenamePrefix string
	client         *http.Client
	breaker        *gobreaker.CircuitBreaker
	metrics        *telemetry.Metrics
	now            func() time.Time
}

type reportEnvelope struct {
	Data string `json:"Data"`
}

type reportPayload struct {
	Data []*entities.Komm `json:"data"`
}

// NewReportClient creates a new report service client
func NewReportClient(cfg ReportConfig) (*ReportClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("report service URL is required")
	}
	if cfg.TemplateID == "" {
		cfg.TemplateID = DefaultReportTemplateID
	}
	if cfg.FilenamePrefix == "" {
		cfg.FilenamePrefix = DefaultReportFilenamePrefix
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &ReportClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.Token,
		templateID:     cfg.TemplateID,
		filenamePrefix: cfg.FilenamePrefix,
		client:         &http.Client{Timeout: cfg.Timeout},
		breaker:        newBreaker("report"),
		metrics:        cfg.Metrics,
		now:            cfg.Now,
	}, nil
}

// Filename builds the download name of a report
func Filename(prefix, id1, id2 string, t time.Time) string {
	return fmt.Sprintf("%s_%s_vs_%s_%d.pdf", prefix, id1, id2, t.Unix())
}

// Generate renders the report for two scored municipalities
func (c *ReportClient) Generate(ctx context.Context, komm1, komm2 *entities.Komm) (*Document, error) {
	if komm1 == nil || komm2 == nil {
		return nil, errors.New("both municipalities are required")
	}

	body, err := EncodeReportRequest(komm1, komm2)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := execute(c.breaker, func() (*Document, error) {
		return c.post(ctx, body)
	})
	c.metrics.ObserveUpstream("report", start, err)
	if err != nil {
		c.metrics.CountReport("error")
		return nil, err
	}
	c.metrics.CountReport("ok")

	doc.Filename = Filename(c.filenamePrefix, komm1.ID, komm2.ID, c.now())
	log.Info().Str("komm1", komm1.ID).Str("komm2", komm2.ID).Str("file", doc.Filename).Int("bytes", len(doc.Body)).Msg("Report generated")
	return doc, nil
}

// EncodeReportRequest builds the request body: the pair is serialized to a JSON
// string and embedded as the Data field of the outer object.
func EncodeReportRequest(komm1, komm2 *entities.Komm) ([]byte, error) {
	inner, err := json.Marshal(reportPayload{Data: []*entities.Komm{komm1, komm2}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode report data: %w", err)
	}
	body, err := json.Marshal(reportEnvelope{Data: string(inner)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode report envelope: %w", err)
	}
	return body, nil
}

func (c *ReportClient) post(ctx context.Context, body []byte) (*Document, error) {
	reqURL := fmt.Sprintf("%s/generateReport/%s", c.baseURL, c.templateID)
	log.Debug().Str("url", reqURL).Msg("Sending request to report service")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-WAAPI-TOKEN", c.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportFailed, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrReportFailed, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		log.Error().Int("status", res.StatusCode).Str("body", truncate(string(data), 200)).Msg("Report service returned an error")
		return nil, &StatusError{Service: "report", Code: res.StatusCode, base: ErrReportFailed}
	}

	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &Document{Body: data, ContentType: contentType}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
